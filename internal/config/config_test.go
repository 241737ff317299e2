package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/avatars.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.OpTimeout)
	assert.Equal(t, 5, cfg.Avatars.Quota)
	assert.Equal(t, time.Hour, cfg.Auth.JWTTTL)
	assert.Equal(t, "avatar-vault", cfg.Auth.Issuer)
	assert.False(t, cfg.Auth.Enabled())
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10.0, cfg.RateLimit.RPS)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/avatars")
	t.Setenv("DB_OP_TIMEOUT", "250ms")
	t.Setenv("AVATAR_QUOTA", "3")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_TTL", "15m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost/avatars", cfg.Database.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.OpTimeout)
	assert.Equal(t, 3, cfg.Avatars.Quota)
	assert.True(t, cfg.Auth.Enabled())
	assert.Equal(t, 15*time.Minute, cfg.Auth.JWTTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}},
		{"zero quota", map[string]string{"AVATAR_QUOTA": "0"}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"zero rate", map[string]string{"RATE_LIMIT_RPS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromViper(viper.New())
			assert.Error(t, err)
		})
	}
}

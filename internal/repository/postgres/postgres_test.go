package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
	"github.com/sakif/avatar-vault/internal/repository/sqlstore"
)

func TestDialect(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "SELECT id FROM users WHERE id = $1 FOR UPDATE", d.Rebind(d.LockOwnerQuery()))
	assert.Equal(t, "DOUBLE PRECISION", d.FloatType())
}

func TestClassify(t *testing.T) {
	d := Dialect{}
	tests := []struct {
		name string
		err  error
		want sqlstore.Violation
	}{
		{"slot", &pq.Error{Code: uniqueViolation, Constraint: sqlstore.SlotConstraint}, sqlstore.SlotTaken},
		{"name", &pq.Error{Code: uniqueViolation, Constraint: sqlstore.NameConstraint}, sqlstore.NameTaken},
		{"wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: uniqueViolation, Constraint: sqlstore.NameConstraint}), sqlstore.NameTaken},
		{"other unique", &pq.Error{Code: uniqueViolation, Constraint: "users_pkey"}, sqlstore.NoViolation},
		{"foreign key", &pq.Error{Code: "23503", Constraint: sqlstore.SlotConstraint}, sqlstore.NoViolation},
		{"plain", errors.New("boom"), sqlstore.NoViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.Classify(tt.err))
		})
	}
}

// TestRepository runs against a live server when TEST_DATABASE_URL is set.
func TestRepository(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := New(url, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	userID := "pg-test-" + model.NewAvatarID()

	a, err := db.Create(ctx, userID, model.NewAvatar{
		Name:              "Alpha",
		BasicMeasurements: model.Measurements{"height": 180},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Slot)

	_, err = db.Create(ctx, userID, model.NewAvatar{Name: "ALPHA"})
	assert.True(t, errors.Is(err, apperror.ErrDuplicateName))

	got, err := db.Get(ctx, userID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Measurements{"height": 180}, got.BasicMeasurements)

	require.NoError(t, db.Delete(ctx, userID, a.ID))
	list, err := db.List(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

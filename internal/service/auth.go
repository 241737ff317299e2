package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/auth"
	"github.com/sakif/avatar-vault/internal/model"
)

// TokenResult is returned by the token endpoint.
type TokenResult struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresIn int       `json:"expiresIn"`
	User      TokenUser `json:"user"`
}

type TokenUser struct {
	ID string `json:"id"`
}

// AuthService exchanges the shared API key for a user-scoped bearer token.
type AuthService struct {
	tokens *auth.TokenService
	keys   *auth.APIKeyVerifier
	logger *slog.Logger
}

func NewAuthService(tokens *auth.TokenService, keys *auth.APIKeyVerifier, logger *slog.Logger) *AuthService {
	return &AuthService{tokens: tokens, keys: keys, logger: logger}
}

// IssueToken returns a token whose subject is userID.
func (s *AuthService) IssueToken(_ context.Context, userID, apiKey string) (*TokenResult, error) {
	userID = strings.TrimSpace(userID)
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}

	if err := s.keys.Verify(apiKey); err != nil {
		if !errors.Is(err, auth.ErrInvalidAPIKey) {
			s.logger.Error("api key verification failed", slog.String("error", err.Error()))
		}
		s.logger.Warn("token request rejected", slog.String("userID", userID))
		return nil, apperror.Unauthorized("invalid API key")
	}

	token, err := s.tokens.Generate(userID)
	if err != nil {
		s.logger.Error("failed to sign token",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	s.logger.Info("token issued", slog.String("userID", userID))
	return &TokenResult{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(s.tokens.TTL().Seconds()),
		User:      TokenUser{ID: userID},
	}, nil
}

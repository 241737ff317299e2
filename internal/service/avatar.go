// Package service holds the business layer between HTTP handlers and the
// repository. It logs every mutation and shapes list responses; validation
// and atomicity live in the repository itself.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
	"github.com/sakif/avatar-vault/internal/repository"
)

// AvatarList is the list envelope. Limit is the per-user quota, so
// Count == Total always; both are kept for clients that page elsewhere.
type AvatarList struct {
	UserID string         `json:"userId"`
	Limit  int            `json:"limit"`
	Count  int            `json:"count"`
	Total  int            `json:"total"`
	Items  []model.Avatar `json:"items"`
}

type AvatarService struct {
	repo   repository.AvatarRepository
	logger *slog.Logger
}

func NewAvatarService(repo repository.AvatarRepository, logger *slog.Logger) *AvatarService {
	return &AvatarService{repo: repo, logger: logger}
}

func (s *AvatarService) Create(ctx context.Context, userID string, in model.NewAvatar) (*model.Avatar, error) {
	a, err := s.repo.Create(ctx, userID, in)
	if err != nil {
		s.logFailure("create avatar", userID, "", err)
		return nil, err
	}
	s.logger.Info("avatar created",
		slog.String("userID", userID),
		slog.String("avatarID", a.ID),
		slog.Int("slot", a.Slot),
	)
	return a, nil
}

func (s *AvatarService) Get(ctx context.Context, userID, avatarID string) (*model.Avatar, error) {
	a, err := s.repo.Get(ctx, userID, avatarID)
	if err != nil {
		s.logFailure("get avatar", userID, avatarID, err)
		return nil, err
	}
	return a, nil
}

func (s *AvatarService) List(ctx context.Context, userID string) (*AvatarList, error) {
	items, err := s.repo.List(ctx, userID)
	if err != nil {
		s.logFailure("list avatars", userID, "", err)
		return nil, err
	}
	if items == nil {
		items = []model.Avatar{}
	}
	return &AvatarList{
		UserID: userID,
		Limit:  s.repo.Quota(),
		Count:  len(items),
		Total:  len(items),
		Items:  items,
	}, nil
}

func (s *AvatarService) Update(ctx context.Context, userID, avatarID string, patch model.AvatarPatch) (*model.Avatar, error) {
	a, err := s.repo.Update(ctx, userID, avatarID, patch)
	if err != nil {
		s.logFailure("update avatar", userID, avatarID, err)
		return nil, err
	}
	s.logger.Info("avatar updated",
		slog.String("userID", userID),
		slog.String("avatarID", a.ID),
	)
	return a, nil
}

func (s *AvatarService) Delete(ctx context.Context, userID, avatarID string) error {
	if err := s.repo.Delete(ctx, userID, avatarID); err != nil {
		s.logFailure("delete avatar", userID, avatarID, err)
		return err
	}
	s.logger.Info("avatar deleted",
		slog.String("userID", userID),
		slog.String("avatarID", avatarID),
	)
	return nil
}

// Healthy reports whether the store answers.
func (s *AvatarService) Healthy(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// logFailure keeps expected client errors at debug level so they do not
// drown out storage failures.
func (s *AvatarService) logFailure(op, userID, avatarID string, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("userID", userID),
		slog.String("error", err.Error()),
	}
	if avatarID != "" {
		attrs = append(attrs, slog.String("avatarID", avatarID))
	}
	if errors.Is(err, apperror.ErrUnavailable) {
		s.logger.Error("avatar operation failed", attrs...)
		return
	}
	s.logger.Debug("avatar operation rejected", attrs...)
}

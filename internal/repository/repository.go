// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and postgres subpackages,
// both backed by the shared sqlstore engine.
package repository

import (
	"context"

	"github.com/sakif/avatar-vault/internal/model"
)

// AvatarRepository is the sole entry point to avatar persistence. Every
// method is one atomic unit of work.
type AvatarRepository interface {
	Create(ctx context.Context, userID string, in model.NewAvatar) (*model.Avatar, error)
	Get(ctx context.Context, userID, avatarID string) (*model.Avatar, error)
	List(ctx context.Context, userID string) ([]model.Avatar, error)
	Update(ctx context.Context, userID, avatarID string, patch model.AvatarPatch) (*model.Avatar, error)
	Delete(ctx context.Context, userID, avatarID string) error
	// Quota is the maximum number of avatars a user may own.
	Quota() int
	Ping(ctx context.Context) error
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
)

// fakeAvatarRepo is an in-memory repository.AvatarRepository. It skips the
// validation the real stores do; the service tests only care about
// delegation, envelopes and error passing.
type fakeAvatarRepo struct {
	avatars map[string]model.Avatar
	quota   int
	err     error
	pingErr error
}

func newFakeRepo() *fakeAvatarRepo {
	return &fakeAvatarRepo{avatars: map[string]model.Avatar{}, quota: 5}
}

func (f *fakeAvatarRepo) Create(_ context.Context, userID string, in model.NewAvatar) (*model.Avatar, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := model.Avatar{
		ID:     model.NewAvatarID(),
		UserID: userID,
		Name:   in.Name,
		Slot:   len(f.avatars) + 1,
	}
	f.avatars[a.ID] = a
	return &a, nil
}

func (f *fakeAvatarRepo) Get(_ context.Context, userID, avatarID string) (*model.Avatar, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.avatars[avatarID]
	if !ok || a.UserID != userID {
		return nil, apperror.NotFound("avatar", avatarID)
	}
	return &a, nil
}

func (f *fakeAvatarRepo) List(_ context.Context, userID string) ([]model.Avatar, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Avatar
	for _, a := range f.avatars {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (f *fakeAvatarRepo) Update(ctx context.Context, userID, avatarID string, patch model.AvatarPatch) (*model.Avatar, error) {
	a, err := f.Get(ctx, userID, avatarID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		a.Name = *patch.Name
	}
	f.avatars[a.ID] = *a
	return a, nil
}

func (f *fakeAvatarRepo) Delete(ctx context.Context, userID, avatarID string) error {
	if _, err := f.Get(ctx, userID, avatarID); err != nil {
		return err
	}
	delete(f.avatars, avatarID)
	return nil
}

func (f *fakeAvatarRepo) Quota() int { return f.quota }

func (f *fakeAvatarRepo) Ping(context.Context) error { return f.pingErr }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAvatarService_Lifecycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewAvatarService(repo, discardLogger())
	ctx := context.Background()

	a, err := svc.Create(ctx, "user-1", model.NewAvatar{Name: "first"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "user-1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)

	name := "renamed"
	updated, err := svc.Update(ctx, "user-1", a.ID, model.AvatarPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, svc.Delete(ctx, "user-1", a.ID))
	_, err = svc.Get(ctx, "user-1", a.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestAvatarService_ListEnvelope(t *testing.T) {
	repo := newFakeRepo()
	repo.quota = 3
	svc := NewAvatarService(repo, discardLogger())
	ctx := context.Background()

	empty, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", empty.UserID)
	assert.Equal(t, 3, empty.Limit)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Items, "items must encode as [] not null")

	for _, n := range []string{"a", "b"} {
		_, err := svc.Create(ctx, "user-1", model.NewAvatar{Name: n})
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, "user-2", model.NewAvatar{Name: "other"})
	require.NoError(t, err)

	list, err := svc.List(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Equal(t, 2, list.Total)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "a", list.Items[0].Name)
}

func TestAvatarService_PassesErrorsThrough(t *testing.T) {
	repo := newFakeRepo()
	repo.err = apperror.Unavailable("list avatars", errors.New("disk I/O error"))
	svc := NewAvatarService(repo, discardLogger())

	_, err := svc.List(context.Background(), "user-1")
	assert.True(t, errors.Is(err, apperror.ErrUnavailable))

	repo.err = apperror.QuotaExceeded(5, nil)
	_, err = svc.Create(context.Background(), "user-1", model.NewAvatar{})
	assert.True(t, errors.Is(err, apperror.ErrQuotaExceeded))
}

func TestAvatarService_Healthy(t *testing.T) {
	repo := newFakeRepo()
	svc := NewAvatarService(repo, discardLogger())
	assert.NoError(t, svc.Healthy(context.Background()))

	repo.pingErr = errors.New("down")
	assert.Error(t, svc.Healthy(context.Background()))
}

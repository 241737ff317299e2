package sqlstore

import (
	"context"

	"github.com/sakif/avatar-vault/internal/model"
)

// MorphTargetStore persists morph slider values. Morph ids are free-form;
// no catalog is enforced here.
type MorphTargetStore struct {
	kv kvTable
}

func NewMorphTargetStore(d Dialect) *MorphTargetStore {
	return &MorphTargetStore{kv: kvTable{
		d:         d,
		table:     "avatar_morph_targets",
		keyColumn: "morph_id",
	}}
}

func (s *MorphTargetStore) ReplaceAll(ctx context.Context, q Querier, avatarID string, m model.MorphTargets) error {
	return s.kv.replaceAll(ctx, q, avatarID, m)
}

func (s *MorphTargetStore) Fetch(ctx context.Context, q Querier, avatarID string) (model.MorphTargets, error) {
	values, err := s.kv.fetch(ctx, q, avatarID)
	if err != nil {
		return nil, err
	}
	return model.MorphTargets(values), nil
}

func (s *MorphTargetStore) DeleteAll(ctx context.Context, q Querier, avatarID string) error {
	return s.kv.deleteAll(ctx, q, avatarID)
}

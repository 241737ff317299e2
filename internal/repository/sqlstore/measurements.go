package sqlstore

import (
	"context"

	"github.com/sakif/avatar-vault/internal/model"
)

// MeasurementCategory selects one of the two independent measurement tables.
type MeasurementCategory string

const (
	BasicMeasurements MeasurementCategory = "basic"
	BodyMeasurements  MeasurementCategory = "body"
)

// MeasurementStore persists one category of measurements.
type MeasurementStore struct {
	kv kvTable
}

func NewMeasurementStore(d Dialect, category MeasurementCategory) *MeasurementStore {
	return &MeasurementStore{kv: kvTable{
		d:         d,
		table:     "avatar_" + string(category) + "_measurements",
		keyColumn: "measurement_key",
	}}
}

// ReplaceAll swaps the avatar's whole mapping for m. An empty m clears it.
func (s *MeasurementStore) ReplaceAll(ctx context.Context, q Querier, avatarID string, m model.Measurements) error {
	return s.kv.replaceAll(ctx, q, avatarID, m)
}

// Fetch never returns nil; an avatar without rows yields an empty mapping.
func (s *MeasurementStore) Fetch(ctx context.Context, q Querier, avatarID string) (model.Measurements, error) {
	values, err := s.kv.fetch(ctx, q, avatarID)
	if err != nil {
		return nil, err
	}
	return model.Measurements(values), nil
}

func (s *MeasurementStore) DeleteAll(ctx context.Context, q Querier, avatarID string) error {
	return s.kv.deleteAll(ctx, q, avatarID)
}

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sakif/avatar-vault/internal/model"
)

// QuickModeStore keeps at most one quick-mode record per avatar. The nested
// measurement mapping is stored as a JSON object in the record itself.
type QuickModeStore struct {
	d Dialect
}

func NewQuickModeStore(d Dialect) *QuickModeStore {
	return &QuickModeStore{d: d}
}

// ReplaceAll writes s as the avatar's quick-mode record. A nil s deletes the
// record rather than storing an empty one.
func (st *QuickModeStore) ReplaceAll(ctx context.Context, q Querier, avatarID string, s *model.QuickModeSettings) error {
	if err := st.DeleteAll(ctx, q, avatarID); err != nil {
		return err
	}
	if s == nil {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}

	measurements := s.Measurements
	if measurements == nil {
		measurements = model.Measurements{}
	}
	encoded, err := json.Marshal(measurements)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding quick-mode measurements: %w", err)
	}

	_, err = q.ExecContext(ctx, st.d.Rebind(
		`INSERT INTO avatar_quick_mode (avatar_id, body_shape, athletic_level, measurements, updated_at)
		 VALUES (?, ?, ?, ?, ?)`),
		avatarID,
		string(s.BodyShape),
		string(s.AthleticLevel),
		string(encoded),
		now(),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting quick-mode record: %w", err)
	}
	return nil
}

// Fetch returns nil when the avatar has no quick-mode record.
func (st *QuickModeStore) Fetch(ctx context.Context, q Querier, avatarID string) (*model.QuickModeSettings, error) {
	var (
		s       model.QuickModeSettings
		encoded string
	)
	err := q.QueryRowContext(ctx, st.d.Rebind(
		`SELECT body_shape, athletic_level, measurements
		 FROM avatar_quick_mode WHERE avatar_id = ?`), avatarID,
	).Scan(&s.BodyShape, &s.AthleticLevel, &encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading quick-mode record: %w", err)
	}

	if err := json.Unmarshal([]byte(encoded), &s.Measurements); err != nil {
		return nil, fmt.Errorf("sqlstore: decoding quick-mode measurements: %w", err)
	}
	if s.Measurements == nil {
		s.Measurements = model.Measurements{}
	}
	return &s, nil
}

func (st *QuickModeStore) DeleteAll(ctx context.Context, q Querier, avatarID string) error {
	_, err := q.ExecContext(ctx, st.d.Rebind(`DELETE FROM avatar_quick_mode WHERE avatar_id = ?`), avatarID)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting quick-mode record: %w", err)
	}
	return nil
}

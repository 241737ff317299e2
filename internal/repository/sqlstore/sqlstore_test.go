package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
	"github.com/sakif/avatar-vault/internal/repository/sqlite"
	"github.com/sakif/avatar-vault/internal/repository/sqlstore"
)

var dialect = sqlite.Dialect{}

// newTx migrates a scratch database, seeds user-1 and returns an open
// transaction that is rolled back at the end of the test.
func newTx(t *testing.T) *sql.Tx {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, sqlstore.Migrate(ctx, db, dialect))
	// Running it twice must be harmless.
	require.NoError(t, sqlstore.Migrate(ctx, db, dialect))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })

	_, err = tx.Exec(`INSERT INTO users (id, created_at) VALUES ('user-1', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	return tx
}

func insertAvatar(tx *sql.Tx, id string, slot int) error {
	_, err := tx.Exec(`
		INSERT INTO avatars (id, user_id, name, name_key, slot, gender, age_range, creation_mode, source, created_at, updated_at)
		VALUES (?, 'user-1', ?, ?, ?, 'unspecified', 'unspecified', 'manual', 'web', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, id, id, slot)
	return err
}

func TestSlotAllocator_RetriesOnceAfterConflict(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "first", 1))

	alloc := sqlstore.NewSlotAllocator(dialect, 5)

	var calls []int
	slot, err := alloc.Allocate(ctx, tx, "user-1", func(slot int) error {
		calls = append(calls, slot)
		if len(calls) == 1 {
			// Simulate a concurrent writer that grabbed the slot first.
			if err := insertAvatar(tx, "racer", slot); err != nil {
				return err
			}
			return insertAvatar(tx, "loser", slot)
		}
		return insertAvatar(tx, "winner", slot)
	})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2}, calls)
	assert.Equal(t, 2, slot)

	// The savepoint rollback also undid the racer's insert.
	taken, err := alloc.Occupied(ctx, tx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{1: true, 2: true}, taken)
}

func TestSlotAllocator_SecondConflictIsQuotaExceeded(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "first", 1))

	alloc := sqlstore.NewSlotAllocator(dialect, 5)

	calls := 0
	_, err := alloc.Allocate(ctx, tx, "user-1", func(int) error {
		calls++
		return insertAvatar(tx, "dup", 1)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.True(t, errors.Is(err, apperror.ErrQuotaExceeded))
	assert.True(t, errors.Is(err, apperror.ErrSlotConflict))
}

func TestSlotAllocator_Full(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "a", 1))
	require.NoError(t, insertAvatar(tx, "b", 2))

	alloc := sqlstore.NewSlotAllocator(dialect, 2)
	_, err := alloc.Allocate(ctx, tx, "user-1", func(int) error {
		t.Fatal("claim must not run when every slot is taken")
		return nil
	})
	assert.True(t, errors.Is(err, apperror.ErrQuotaExceeded))
	assert.False(t, errors.Is(err, apperror.ErrSlotConflict))
}

func TestSlotAllocator_OtherErrorsPassThrough(t *testing.T) {
	tx := newTx(t)
	boom := errors.New("boom")

	alloc := sqlstore.NewSlotAllocator(dialect, 5)
	_, err := alloc.Allocate(context.Background(), tx, "user-1", func(int) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSlotAllocator_ReleaseIsIdempotent(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "a", 1))

	alloc := sqlstore.NewSlotAllocator(dialect, 5)
	require.NoError(t, alloc.Release(ctx, tx, "user-1", 1))
	require.NoError(t, alloc.Release(ctx, tx, "user-1", 1))

	taken, err := alloc.Occupied(ctx, tx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func TestMeasurementStore_CategoriesAreIndependent(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "a", 1))

	basic := sqlstore.NewMeasurementStore(dialect, sqlstore.BasicMeasurements)
	body := sqlstore.NewMeasurementStore(dialect, sqlstore.BodyMeasurements)

	require.NoError(t, basic.ReplaceAll(ctx, tx, "a", model.Measurements{"height": 180, "weight": 80}))
	require.NoError(t, body.ReplaceAll(ctx, tx, "a", model.Measurements{"height": 1}))

	got, err := basic.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.Measurements{"height": 180, "weight": 80}, got)

	require.NoError(t, basic.ReplaceAll(ctx, tx, "a", model.Measurements{"waist": 70}))
	got, err = basic.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.Measurements{"waist": 70}, got)

	require.NoError(t, basic.DeleteAll(ctx, tx, "a"))
	got, err = basic.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got, err = body.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.Measurements{"height": 1}, got)
}

func TestMorphTargetStore_ReplaceAll(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "a", 1))

	s := sqlstore.NewMorphTargetStore(dialect)
	require.NoError(t, s.ReplaceAll(ctx, tx, "a", model.MorphTargets{"jaw": 0.5, "brow": -1}))
	require.NoError(t, s.ReplaceAll(ctx, tx, "a", model.MorphTargets{"jaw": 0.1}))

	got, err := s.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.MorphTargets{"jaw": 0.1}, got)
}

func TestQuickModeStore(t *testing.T) {
	tx := newTx(t)
	ctx := context.Background()
	require.NoError(t, insertAvatar(tx, "a", 1))

	s := sqlstore.NewQuickModeStore(dialect)

	got, err := s.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	in := &model.QuickModeSettings{
		BodyShape:     model.BodyShapeOval,
		AthleticLevel: model.AthleticLight,
	}
	require.NoError(t, s.ReplaceAll(ctx, tx, "a", in))

	got, err = s.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.BodyShapeOval, got.BodyShape)
	assert.NotNil(t, got.Measurements)
	assert.Empty(t, got.Measurements)

	bad := &model.QuickModeSettings{BodyShape: "blob", AthleticLevel: model.AthleticLight}
	err = s.ReplaceAll(ctx, tx, "a", bad)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	require.NoError(t, s.ReplaceAll(ctx, tx, "a", nil))
	got, err = s.Fetch(ctx, tx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDialectClassify(t *testing.T) {
	tx := newTx(t)
	require.NoError(t, insertAvatar(tx, "a", 1))

	_, err := tx.Exec(`SAVEPOINT probe`)
	require.NoError(t, err)
	err = insertAvatar(tx, "b", 1)
	require.Error(t, err)
	assert.Equal(t, sqlstore.SlotTaken, dialect.Classify(err))
	_, err = tx.Exec(`ROLLBACK TO SAVEPOINT probe`)
	require.NoError(t, err)

	// Same name_key ("a") in a different slot.
	_, err = tx.Exec(`
		INSERT INTO avatars (id, user_id, name, name_key, slot, gender, age_range, creation_mode, source, created_at, updated_at)
		VALUES ('c', 'user-1', 'A', 'a', 2, 'unspecified', 'unspecified', 'manual', 'web', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	require.Error(t, err)
	assert.Equal(t, sqlstore.NameTaken, dialect.Classify(err))

	assert.Equal(t, sqlstore.NoViolation, dialect.Classify(errors.New("other")))
	assert.Equal(t, sqlstore.NoViolation, dialect.Classify(nil))
}

package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/avatar-vault/internal/apperror"
)

// SlotAllocator hands out the lowest free slot in 1..Quota.
type SlotAllocator struct {
	d     Dialect
	quota int
}

func NewSlotAllocator(d Dialect, quota int) *SlotAllocator {
	return &SlotAllocator{d: d, quota: quota}
}

func (a *SlotAllocator) Quota() int {
	return a.quota
}

// Occupied returns the set of slots the user currently holds.
func (a *SlotAllocator) Occupied(ctx context.Context, q Querier, userID string) (map[int]bool, error) {
	rows, err := q.QueryContext(ctx, a.d.Rebind(`SELECT slot FROM avatars WHERE user_id = ?`), userID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading slots: %w", err)
	}
	defer rows.Close()

	taken := make(map[int]bool)
	for rows.Next() {
		var slot int
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning slot: %w", err)
		}
		taken[slot] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating slots: %w", err)
	}
	return taken, nil
}

// Allocate picks the lowest free slot and passes it to claim, which must
// insert the avatar row. Each claim runs under a savepoint. If claim breaks
// the slot constraint (a concurrent writer got there first) the savepoint is
// rolled back and allocation is retried once; a second conflict is reported
// as quota exhaustion caused by a slot conflict.
func (a *SlotAllocator) Allocate(ctx context.Context, q Querier, userID string, claim func(slot int) error) (int, error) {
	const attempts = 2

	var lastSlot int
	for attempt := 1; attempt <= attempts; attempt++ {
		taken, err := a.Occupied(ctx, q, userID)
		if err != nil {
			return 0, err
		}
		if len(taken) >= a.quota {
			return 0, apperror.QuotaExceeded(a.quota, nil)
		}

		slot := lowestFree(taken, a.quota)
		if slot == 0 {
			return 0, apperror.QuotaExceeded(a.quota, nil)
		}
		lastSlot = slot

		if _, err := q.ExecContext(ctx, "SAVEPOINT slot_claim"); err != nil {
			return 0, fmt.Errorf("sqlstore: savepoint: %w", err)
		}
		claimErr := claim(slot)
		if claimErr == nil {
			if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT slot_claim"); err != nil {
				return 0, fmt.Errorf("sqlstore: release savepoint: %w", err)
			}
			return slot, nil
		}

		if _, err := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT slot_claim"); err != nil {
			return 0, fmt.Errorf("sqlstore: rollback to savepoint: %w", err)
		}
		if a.d.Classify(claimErr) != SlotTaken {
			return 0, claimErr
		}
	}
	return 0, apperror.QuotaExceeded(a.quota, apperror.SlotConflict(lastSlot))
}

// Release frees the slot by deleting the avatar that holds it. Dependent
// rows go with it through ON DELETE CASCADE. Releasing a free slot is a
// no-op.
func (a *SlotAllocator) Release(ctx context.Context, q Querier, userID string, slot int) error {
	_, err := q.ExecContext(ctx, a.d.Rebind(`DELETE FROM avatars WHERE user_id = ? AND slot = ?`), userID, slot)
	if err != nil {
		return fmt.Errorf("sqlstore: releasing slot %d: %w", slot, err)
	}
	return nil
}

func lowestFree(taken map[int]bool, quota int) int {
	for slot := 1; slot <= quota; slot++ {
		if !taken[slot] {
			return slot
		}
	}
	return 0
}

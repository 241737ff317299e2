package sqlstore

import (
	"context"
	"fmt"
)

// ensureUser inserts the owner row on first use and, where the dialect
// supports it, locks it for the rest of the transaction.
func (r *Repository) ensureUser(ctx context.Context, q Querier, userID string) error {
	_, err := q.ExecContext(ctx, r.d.Rebind(
		`INSERT INTO users (id, created_at) VALUES (?, ?) ON CONFLICT (id) DO NOTHING`),
		userID, now(),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: ensuring user: %w", err)
	}

	if lock := r.d.LockOwnerQuery(); lock != "" {
		var id string
		if err := q.QueryRowContext(ctx, r.d.Rebind(lock), userID).Scan(&id); err != nil {
			return fmt.Errorf("sqlstore: locking user: %w", err)
		}
	}
	return nil
}

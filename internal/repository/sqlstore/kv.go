package sqlstore

import (
	"context"
	"fmt"
	"sort"
)

// kvTable is a narrow (avatar_id, key, value) relation. The measurement and
// morph-target stores are both thin wrappers around it.
type kvTable struct {
	d         Dialect
	table     string
	keyColumn string
}

func (t kvTable) replaceAll(ctx context.Context, q Querier, avatarID string, values map[string]float64) error {
	if err := t.deleteAll(ctx, q, avatarID); err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	// Sorted so concurrent writers touch rows in the same order.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	query := t.d.Rebind(fmt.Sprintf(
		`INSERT INTO %s (avatar_id, %s, value) VALUES (?, ?, ?)`, t.table, t.keyColumn))
	for _, k := range keys {
		if _, err := q.ExecContext(ctx, query, avatarID, k, values[k]); err != nil {
			return fmt.Errorf("sqlstore: inserting %s row %q: %w", t.table, k, err)
		}
	}
	return nil
}

func (t kvTable) fetch(ctx context.Context, q Querier, avatarID string) (map[string]float64, error) {
	rows, err := q.QueryContext(ctx, t.d.Rebind(fmt.Sprintf(
		`SELECT %s, value FROM %s WHERE avatar_id = ?`, t.keyColumn, t.table)), avatarID)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading %s: %w", t.table, err)
	}
	defer rows.Close()

	values := make(map[string]float64)
	for rows.Next() {
		var (
			key   string
			value float64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning %s row: %w", t.table, err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating %s: %w", t.table, err)
	}
	return values, nil
}

func (t kvTable) deleteAll(ctx context.Context, q Querier, avatarID string) error {
	_, err := q.ExecContext(ctx, t.d.Rebind(fmt.Sprintf(
		`DELETE FROM %s WHERE avatar_id = ?`, t.table)), avatarID)
	if err != nil {
		return fmt.Errorf("sqlstore: clearing %s: %w", t.table, err)
	}
	return nil
}

// Package sqlstore is the engine-neutral avatar persistence engine.
//
// It holds the four sub-stores (basic measurements, body measurements, morph
// targets, quick-mode), the slot allocator and the Repository that composes
// them into atomic units of work. Everything is plain database/sql; the few
// engine differences (placeholders, column types, locking, constraint error
// shapes) sit behind the Dialect interface, implemented by the sqlite and
// postgres packages.
package sqlstore

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Violation classifies a constraint error raised by the engine.
type Violation int

const (
	NoViolation Violation = iota
	// SlotTaken is a breach of UNIQUE (user_id, slot).
	SlotTaken
	// NameTaken is a breach of UNIQUE (user_id, name_key).
	NameTaken
)

// Constraint names shared by every dialect's schema.
const (
	SlotConstraint = "avatars_user_slot_key"
	NameConstraint = "avatars_user_name_key"
)

// Dialect captures what differs between storage engines.
type Dialect interface {
	Name() string
	// Rebind rewrites the ? placeholders used throughout this package.
	Rebind(query string) string
	FloatType() string
	TimestampType() string
	// LockOwnerQuery locks the users row so that allocations for the same
	// user serialise. Engines that take the write lock at BEGIN return "".
	LockOwnerQuery() string
	Classify(err error) Violation
}

// Querier is satisfied by *sql.Tx and *sql.DB. Sub-stores always receive
// the caller's transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// RebindQuestion leaves ? placeholders as they are.
func RebindQuestion(query string) string {
	return query
}

// RebindDollar turns each ? into $1, $2, ... in order.
func RebindDollar(query string) string {
	n := strings.Count(query, "?")
	if n == 0 {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + n*2)
	i := 0
	for _, r := range query {
		if r == '?' {
			i++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(i))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

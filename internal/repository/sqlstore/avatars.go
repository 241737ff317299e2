package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/avatar-vault/internal/apperror"
	"github.com/sakif/avatar-vault/internal/model"
)

// DefaultQuota is the number of slots per user when Options.Quota is unset.
const DefaultQuota = 5

type Options struct {
	Quota     int
	OpTimeout time.Duration
	Logger    *slog.Logger
}

// Repository composes the header table, the four sub-stores and the slot
// allocator. Every public method is a single transaction.
type Repository struct {
	db   *sql.DB
	d    Dialect
	opts Options

	slots *SlotAllocator
	basic *MeasurementStore
	body  *MeasurementStore
	morph *MorphTargetStore
	quick *QuickModeStore
}

func New(db *sql.DB, d Dialect, opts Options) *Repository {
	if opts.Quota <= 0 {
		opts.Quota = DefaultQuota
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Repository{
		db:    db,
		d:     d,
		opts:  opts,
		slots: NewSlotAllocator(d, opts.Quota),
		basic: NewMeasurementStore(d, BasicMeasurements),
		body:  NewMeasurementStore(d, BodyMeasurements),
		morph: NewMorphTargetStore(d),
		quick: NewQuickModeStore(d),
	}
}

func (r *Repository) Quota() int {
	return r.opts.Quota
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return apperror.Unavailable("ping", err)
	}
	return nil
}

const headerColumns = `id, user_id, name, slot, gender, age_range, creation_mode, source, created_at, updated_at`

// Create stores a new avatar in the lowest free slot.
func (r *Repository) Create(ctx context.Context, userID string, in model.NewAvatar) (*model.Avatar, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var out *model.Avatar
	err := r.inTx(ctx, "create avatar", func(ctx context.Context, tx *sql.Tx) error {
		if err := r.ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := r.checkNameFree(ctx, tx, userID, in.Name, ""); err != nil {
			return err
		}

		id := model.NewAvatarID()
		ts := now()
		_, err := r.slots.Allocate(ctx, tx, userID, func(slot int) error {
			_, err := tx.ExecContext(ctx, r.d.Rebind(
				`INSERT INTO avatars (`+headerColumns+`, name_key)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
				id, userID, in.Name, slot,
				string(in.Metadata.Gender), string(in.Metadata.AgeRange),
				string(in.Metadata.CreationMode), string(in.Metadata.Source),
				ts, ts, model.NameKey(in.Name),
			)
			return err
		})
		if err != nil {
			if r.d.Classify(err) == NameTaken {
				return apperror.DuplicateName(in.Name)
			}
			return err
		}

		if err := r.writeCollections(ctx, tx, id, in); err != nil {
			return err
		}

		out, err = r.load(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns the avatar only if userID owns it. An avatar owned by someone
// else is indistinguishable from one that does not exist.
func (r *Repository) Get(ctx context.Context, userID, avatarID string) (*model.Avatar, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	id, err := model.ParseAvatarID(avatarID)
	if err != nil {
		return nil, err
	}

	var out *model.Avatar
	err = r.inTx(ctx, "get avatar", func(ctx context.Context, tx *sql.Tx) error {
		out, err = r.load(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns every avatar of the user ordered by slot.
func (r *Repository) List(ctx context.Context, userID string) ([]model.Avatar, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}

	var out []model.Avatar
	err := r.inTx(ctx, "list avatars", func(ctx context.Context, tx *sql.Tx) error {
		headers, err := r.readHeaders(ctx, tx, `WHERE user_id = ? ORDER BY slot`, userID)
		if err != nil {
			return err
		}
		out = make([]model.Avatar, 0, len(headers))
		for i := range headers {
			if err := r.attachCollections(ctx, tx, &headers[i]); err != nil {
				return err
			}
			out = append(out, headers[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update applies patch to the header and replaces each collection the patch
// carries. An empty patch returns the current avatar unchanged.
func (r *Repository) Update(ctx context.Context, userID, avatarID string, patch model.AvatarPatch) (*model.Avatar, error) {
	if err := model.ValidateUserID(userID); err != nil {
		return nil, err
	}
	id, err := model.ParseAvatarID(avatarID)
	if err != nil {
		return nil, err
	}
	if err := patch.Normalize(); err != nil {
		return nil, err
	}

	var out *model.Avatar
	err = r.inTx(ctx, "update avatar", func(ctx context.Context, tx *sql.Tx) error {
		current, err := r.header(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			out, err = r.load(ctx, tx, userID, id)
			return err
		}

		name := current.Name
		if patch.Name != nil {
			name = *patch.Name
			if err := r.checkNameFree(ctx, tx, userID, name, id); err != nil {
				return err
			}
		}
		md := current.Metadata
		if patch.Metadata != nil {
			md = patch.Metadata.Apply(md)
		}

		_, err = tx.ExecContext(ctx, r.d.Rebind(
			`UPDATE avatars
			 SET name = ?, name_key = ?, gender = ?, age_range = ?, creation_mode = ?, source = ?, updated_at = ?
			 WHERE id = ? AND user_id = ?`),
			name, model.NameKey(name),
			string(md.Gender), string(md.AgeRange), string(md.CreationMode), string(md.Source),
			now(), id, userID,
		)
		if err != nil {
			if r.d.Classify(err) == NameTaken {
				return apperror.DuplicateName(name)
			}
			return fmt.Errorf("sqlstore: updating avatar: %w", err)
		}

		if patch.BasicMeasurements != nil {
			if err := r.basic.ReplaceAll(ctx, tx, id, *patch.BasicMeasurements); err != nil {
				return err
			}
		}
		if patch.BodyMeasurements != nil {
			if err := r.body.ReplaceAll(ctx, tx, id, *patch.BodyMeasurements); err != nil {
				return err
			}
		}
		if patch.MorphTargets != nil {
			if err := r.morph.ReplaceAll(ctx, tx, id, *patch.MorphTargets); err != nil {
				return err
			}
		}
		if patch.SetQuickMode {
			if err := r.quick.ReplaceAll(ctx, tx, id, patch.QuickMode); err != nil {
				return err
			}
		}

		out, err = r.load(ctx, tx, userID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the avatar and frees its slot.
func (r *Repository) Delete(ctx context.Context, userID, avatarID string) error {
	if err := model.ValidateUserID(userID); err != nil {
		return err
	}
	id, err := model.ParseAvatarID(avatarID)
	if err != nil {
		return err
	}

	return r.inTx(ctx, "delete avatar", func(ctx context.Context, tx *sql.Tx) error {
		h, err := r.header(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		return r.slots.Release(ctx, tx, userID, h.Slot)
	})
}

func (r *Repository) checkNameFree(ctx context.Context, q Querier, userID, name, exceptID string) error {
	var id string
	err := q.QueryRowContext(ctx, r.d.Rebind(
		`SELECT id FROM avatars WHERE user_id = ? AND name_key = ? AND id <> ?`),
		userID, model.NameKey(name), exceptID,
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("sqlstore: checking name: %w", err)
	default:
		return apperror.DuplicateName(name)
	}
}

func (r *Repository) writeCollections(ctx context.Context, q Querier, id string, in model.NewAvatar) error {
	if len(in.BasicMeasurements) > 0 {
		if err := r.basic.ReplaceAll(ctx, q, id, in.BasicMeasurements); err != nil {
			return err
		}
	}
	if len(in.BodyMeasurements) > 0 {
		if err := r.body.ReplaceAll(ctx, q, id, in.BodyMeasurements); err != nil {
			return err
		}
	}
	if len(in.MorphTargets) > 0 {
		if err := r.morph.ReplaceAll(ctx, q, id, in.MorphTargets); err != nil {
			return err
		}
	}
	if in.QuickMode != nil {
		if err := r.quick.ReplaceAll(ctx, q, id, in.QuickMode); err != nil {
			return err
		}
	}
	return nil
}

// load reads the header and all four collections.
func (r *Repository) load(ctx context.Context, q Querier, userID, id string) (*model.Avatar, error) {
	a, err := r.header(ctx, q, userID, id)
	if err != nil {
		return nil, err
	}
	if err := r.attachCollections(ctx, q, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) header(ctx context.Context, q Querier, userID, id string) (*model.Avatar, error) {
	headers, err := r.readHeaders(ctx, q, `WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, apperror.NotFound("avatar", id)
	}
	return &headers[0], nil
}

// readHeaders drains the result set before returning so callers can issue
// further queries on the same transaction.
func (r *Repository) readHeaders(ctx context.Context, q Querier, where string, args ...any) ([]model.Avatar, error) {
	rows, err := q.QueryContext(ctx, r.d.Rebind(`SELECT `+headerColumns+` FROM avatars `+where), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: reading avatars: %w", err)
	}
	defer rows.Close()

	var out []model.Avatar
	for rows.Next() {
		var a model.Avatar
		err := rows.Scan(
			&a.ID, &a.UserID, &a.Name, &a.Slot,
			&a.Metadata.Gender, &a.Metadata.AgeRange, &a.Metadata.CreationMode, &a.Metadata.Source,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning avatar: %w", err)
		}
		a.CreatedAt = a.CreatedAt.UTC()
		a.UpdatedAt = a.UpdatedAt.UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating avatars: %w", err)
	}
	return out, nil
}

func (r *Repository) attachCollections(ctx context.Context, q Querier, a *model.Avatar) error {
	var err error
	if a.BasicMeasurements, err = r.basic.Fetch(ctx, q, a.ID); err != nil {
		return err
	}
	if a.BodyMeasurements, err = r.body.Fetch(ctx, q, a.ID); err != nil {
		return err
	}
	if a.MorphTargets, err = r.morph.Fetch(ctx, q, a.ID); err != nil {
		return err
	}
	if a.QuickMode, err = r.quick.Fetch(ctx, q, a.ID); err != nil {
		return err
	}
	return nil
}

// now is truncated to microseconds, the finest precision every engine keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

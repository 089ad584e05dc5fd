package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/referralbot/core/logger"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("users: not found")

const userColumns = `id, telegram_id, username, referral_code, referrer_id,
	full_name, father_name, mother_name, birth_place, birth_date,
	registration_place, record_number, registration_number, national_id,
	job_title, job_position, created_at, updated_at`

// Repository reads and writes users_telegram through sqlx.
// Queries use ? placeholders rebound for the driver, so the same SQL runs on
// Postgres in production and SQLite in tests.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) get(ctx context.Context, op, where string, arg any) (*User, error) {
	start := time.Now()
	var u User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users_telegram WHERE ` + where + ` = ?`)
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logFailure(ctx, op, start, err)
		return nil, fmt.Errorf("users.%s: %w", op, err)
	}
	return &u, nil
}

// GetByTelegramID fetches a user by chat identifier.
func (r *Repository) GetByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return r.get(ctx, "GetByTelegramID", "telegram_id", telegramID)
}

// GetByID fetches a user by internal id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.get(ctx, "GetByID", "id", id)
}

// GetByReferralCode fetches the owner of a referral code.
func (r *Repository) GetByReferralCode(ctx context.Context, code string) (*User, error) {
	return r.get(ctx, "GetByReferralCode", "referral_code", code)
}

// Insert creates a user with the given telegram id, username and referral code
// and returns the stored row. When a row for the telegram id already exists,
// that row is returned unchanged.
func (r *Repository) Insert(ctx context.Context, telegramID int64, username *string, code string) (*User, error) {
	start := time.Now()
	q := r.db.Rebind(`INSERT INTO users_telegram (telegram_id, username, referral_code)
		VALUES (?, ?, ?)
		ON CONFLICT (telegram_id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, q, telegramID, username, code)
	if err != nil {
		r.logFailure(ctx, "Insert", start, err)
		return nil, fmt.Errorf("users.Insert: %w", err)
	}
	created, _ := res.RowsAffected()
	u, err := r.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, logger.CompUsers, "users.insert",
		slog.String("status", "ok"),
		slog.Int64("id", u.ID),
		slog.Bool("created", created == 1),
		slog.Duration("duration", time.Since(start)),
	)
	return u, nil
}

// SetReferrer links userID to referrerID unless a referrer is already set or
// the ids are equal. It reports whether the row changed.
func (r *Repository) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	start := time.Now()
	q := r.db.Rebind(`UPDATE users_telegram
		SET referrer_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND referrer_id IS NULL AND id <> ?`)
	res, err := r.db.ExecContext(ctx, q, referrerID, userID, referrerID)
	if err != nil {
		r.logFailure(ctx, "SetReferrer", start, err)
		return false, fmt.Errorf("users.SetReferrer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("users.SetReferrer: rows affected: %w", err)
	}
	return n == 1, nil
}

// UpdateProfile overwrites all profile columns of the user with the given telegram id.
// Identity and referral columns are never touched.
func (r *Repository) UpdateProfile(ctx context.Context, telegramID int64, p Profile) error {
	sets := make([]string, 0, len(Fields)+1)
	args := make([]any, 0, len(Fields)+1)
	for _, f := range Fields {
		sets = append(sets, string(f)+" = ?")
		args = append(args, p.Get(f))
	}
	return r.updateProfile(ctx, "UpdateProfile", telegramID, sets, args)
}

// ClearProfile sets every profile column to NULL.
func (r *Repository) ClearProfile(ctx context.Context, telegramID int64) error {
	sets := make([]string, 0, len(Fields))
	for _, f := range Fields {
		sets = append(sets, string(f)+" = NULL")
	}
	return r.updateProfile(ctx, "ClearProfile", telegramID, sets, nil)
}

func (r *Repository) updateProfile(ctx context.Context, op string, telegramID int64, sets []string, args []any) error {
	start := time.Now()
	q := r.db.Rebind(`UPDATE users_telegram SET ` + strings.Join(sets, ", ") +
		`, updated_at = CURRENT_TIMESTAMP WHERE telegram_id = ?`)
	res, err := r.db.ExecContext(ctx, q, append(args, telegramID)...)
	if err != nil {
		r.logFailure(ctx, op, start, err)
		return fmt.Errorf("users.%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	logger.Info(ctx, logger.CompUsers, "users.profile",
		slog.String("status", "ok"),
		slog.String("op", op),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// ListByReferrer returns the users whose referrer is referrerID, oldest first.
func (r *Repository) ListByReferrer(ctx context.Context, referrerID int64) ([]User, error) {
	start := time.Now()
	var out []User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users_telegram WHERE referrer_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, q, referrerID); err != nil {
		r.logFailure(ctx, "ListByReferrer", start, err)
		return nil, fmt.Errorf("users.ListByReferrer: %w", err)
	}
	return out, nil
}

func (r *Repository) logFailure(ctx context.Context, op string, start time.Time, err error) {
	logger.Error(ctx, logger.CompUsers, "users.query",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.Duration("duration", time.Since(start)),
	)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

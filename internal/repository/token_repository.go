package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/iliyamo/account-service/internal/database"
	"github.com/iliyamo/account-service/internal/model"
)

// TokenRepo persists tokens, one row per (user_id, type).
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenColumns = "id, type, value, user_id, created_at, updated_at"

// lockAttempts bounds how often WithLocked retries after a deadlock.
const lockAttempts = 3

// WithLocked reads the (userID, typ) row with SELECT ... FOR UPDATE, lets fn
// decide, and upserts the returned value, all in one transaction.  When no
// row exists yet, concurrent callers each hold a gap lock on the unique index
// and their inserts deadlock; InnoDB rolls one back and that caller runs
// again, now finding the winner's row.  fn may therefore be called more than
// once.
func (r *TokenRepo) WithLocked(ctx context.Context, userID string, typ model.TokenType, fn func(cur *model.Token) (string, error)) error {
	var err error
	for attempt := 0; attempt < lockAttempts; attempt++ {
		err = r.withLockedOnce(ctx, userID, typ, fn)
		if !database.IsDeadlock(err) {
			return err
		}
	}
	return err
}

func (r *TokenRepo) withLockedOnce(ctx context.Context, userID string, typ model.TokenType, fn func(cur *model.Token) (string, error)) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cur *model.Token
	t, err := scanToken(tx.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE user_id=? AND type=? LIMIT 1 FOR UPDATE", userID, typ))
	switch {
	case err == nil:
		cur = &t
	case errors.Is(err, ErrNotFound):
	default:
		return fmt.Errorf("lock token: %w", err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next != "" {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tokens (id, type, value, user_id) VALUES (?,?,?,?) ON DUPLICATE KEY UPDATE value=VALUES(value)",
			uuid.NewString(), typ, next, userID); err != nil {
			return fmt.Errorf("upsert token: %w", err)
		}
	}
	return tx.Commit()
}

// Get returns the user's token of the given type.
func (r *TokenRepo) Get(ctx context.Context, userID string, typ model.TokenType) (model.Token, error) {
	return scanToken(r.DB.QueryRowContext(ctx,
		"SELECT "+tokenColumns+" FROM tokens WHERE user_id=? AND type=? LIMIT 1", userID, typ))
}

// Delete removes the user's token of the given type, if any.
func (r *TokenRepo) Delete(ctx context.Context, userID string, typ model.TokenType) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM tokens WHERE user_id=? AND type=?", userID, typ)
	return err
}

func scanToken(row *sql.Row) (model.Token, error) {
	var t model.Token
	var typ string
	err := row.Scan(&t.ID, &typ, &t.Value, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Token{}, ErrNotFound
	}
	if err != nil {
		return model.Token{}, err
	}
	t.Type = model.TokenType(typ)
	return t, nil
}

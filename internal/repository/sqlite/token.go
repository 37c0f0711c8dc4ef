package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/repository"
)

// TokenDB implements repository.TokenRepository for bearer tokens.
type TokenDB struct {
	conn *sqlx.DB
}

var _ repository.TokenRepository = (*TokenDB)(nil)

// GetOrCreate returns the user's stable token key.
//
// The insert is keyed on the UNIQUE user_id and DOES NOTHING on conflict, so
// two concurrent first logins race to insert and both read back the single
// winning key — no duplicate tokens, no check-then-act window.
func (db *TokenDB) GetOrCreate(ctx context.Context, userID, candidateKey string) (string, bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO tokens (user_id, key, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, candidateKey, time.Now().UTC(),
	)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: inserting token for user %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("sqlite: inserting token for user %s: %w", userID, err)
	}

	var key string
	err = db.conn.GetContext(ctx, &key,
		`SELECT key FROM tokens WHERE user_id = ?`, userID)
	if err != nil {
		return "", false, fmt.Errorf("sqlite: reading token for user %s: %w", userID, err)
	}

	return key, affected == 1, nil
}

// GetUserID resolves a token key to the owning user's ID.
func (db *TokenDB) GetUserID(ctx context.Context, key string) (string, error) {
	var userID string
	err := db.conn.GetContext(ctx, &userID,
		`SELECT user_id FROM tokens WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", apperror.Unauthenticated("invalid token")
		}
		return "", fmt.Errorf("sqlite: resolving token: %w", err)
	}
	return userID, nil
}

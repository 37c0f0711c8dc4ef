package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/repository"
)

// UserDB implements repository.UserRepository for users and profiles.
type UserDB struct {
	conn *sqlx.DB
}

var _ repository.UserRepository = (*UserDB)(nil)

// Anonymous placeholder account identity. There is exactly one such row;
// EnsureAnonymous upserts it and every anonymous issue references it.
const (
	anonymousUsername = "anonymous"
	anonymousEmail    = "anonymous@example.com"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.created_at, u.updated_at,
	 COALESCE(p.role, '') AS role`

// Create inserts a new user. The ID and timestamps are assigned here.
func (db *UserDB) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}
	return nil
}

// GetByID retrieves a user with their profile role (empty if no profile).
func (db *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u,
		`SELECT `+userColumns+`
		 FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE u.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// GetByEmail retrieves a user by email, with their profile role.
func (db *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u,
		`SELECT `+userColumns+`
		 FROM users u LEFT JOIN profiles p ON p.user_id = u.id
		 WHERE u.email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return &u, nil
}

// EnsureAnonymous upserts the shared anonymous placeholder and returns its
// ID. The insert is keyed on the UNIQUE username, so concurrent calls and
// restarts all resolve to the same row.
func (db *UserDB) EnsureAnonymous(ctx context.Context) (string, error) {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, '', ?, ?)
		 ON CONFLICT (username) DO NOTHING`,
		xid.New().String(), anonymousUsername, anonymousEmail, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("sqlite: upserting anonymous user: %w", err)
	}

	var id string
	err = db.conn.GetContext(ctx, &id,
		`SELECT id FROM users WHERE username = ?`, anonymousUsername)
	if err != nil {
		return "", fmt.Errorf("sqlite: resolving anonymous user: %w", err)
	}
	return id, nil
}

// EnsureProfile creates the profile row if the user has none yet.
// Reports whether this call created it.
func (db *UserDB) EnsureProfile(ctx context.Context, userID string, role model.Role) (bool, error) {
	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id, role, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, role, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: ensuring profile for user %s: %w", userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: ensuring profile for user %s: %w", userID, err)
	}
	return affected == 1, nil
}

// UpsertProfile creates or overwrites the profile with the given role.
// Used by the admin bootstrap at startup.
func (db *UserDB) UpsertProfile(ctx context.Context, userID string, role model.Role) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profiles (user_id, role, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET role = excluded.role`,
		userID, role, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting profile for user %s: %w", userID, err)
	}
	return nil
}

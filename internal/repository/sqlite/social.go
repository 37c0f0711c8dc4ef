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

// SocialDB implements repository.SocialRepository for provider links.
type SocialDB struct {
	conn *sqlx.DB
}

var _ repository.SocialRepository = (*SocialDB)(nil)

// Find looks up an association by (provider, external_id).
func (db *SocialDB) Find(ctx context.Context, provider, externalID string) (*model.SocialAssociation, error) {
	var assoc model.SocialAssociation
	err := db.conn.GetContext(ctx, &assoc,
		`SELECT id, provider, external_id, user_id, created_at
		 FROM social_associations
		 WHERE provider = ? AND external_id = ?`, provider, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("social association", provider+"/"+externalID)
		}
		return nil, fmt.Errorf("sqlite: finding association %s/%s: %w", provider, externalID, err)
	}
	return &assoc, nil
}

// Create inserts a new association. ID and timestamp are assigned here.
func (db *SocialDB) Create(ctx context.Context, assoc *model.SocialAssociation) error {
	assoc.ID = xid.New().String()
	assoc.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO social_associations (id, provider, external_id, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		assoc.ID, assoc.Provider, assoc.ExternalID, assoc.UserID, assoc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting association %s/%s: %w", assoc.Provider, assoc.ExternalID, err)
	}
	return nil
}

// Reattach moves the association to toUserID in one conditional update.
// The WHERE clause pins the expected current owner, so a concurrent
// completion that already moved it makes this a no-op — last write wins,
// never an intermediate ownerless row.
func (db *SocialDB) Reattach(ctx context.Context, id, fromUserID, toUserID string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE social_associations SET user_id = ?
		 WHERE id = ? AND user_id = ?`,
		toUserID, id, fromUserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: reattaching association %s: %w", id, err)
	}
	return nil
}

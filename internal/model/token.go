package model

import "time"

// Token is the opaque bearer credential bound 1:1 to a user.
//
// Tokens are created lazily on first successful authentication and reused on
// every login after that. They are not rotated and never expire; revocation
// means deleting the row.
type Token struct {
	UserID    string    `json:"userId"    db:"user_id"`
	Key       string    `json:"key"       db:"key"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SocialAssociation links a third-party identity provider account to a
// local user. (Provider, ExternalID) is unique; UserID always points at a
// user — reconciliation moves the link in one update, never detaching it.
type SocialAssociation struct {
	ID         string    `json:"id"         db:"id"`
	Provider   string    `json:"provider"   db:"provider"`
	ExternalID string    `json:"externalId" db:"external_id"`
	UserID     string    `json:"userId"     db:"user_id"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
}

// Package repository defines the data access interfaces consumed by the
// service layer. The sqlite subpackage provides the concrete implementation;
// tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/issue-tracker/internal/model"
)

// ListOptions controls issue listing.
//
// CreatedBy narrows the result to one owner — the service sets it for
// reporter callers so they only ever see their own issues.
type ListOptions struct {
	CreatedBy string
	Limit     int
	Offset    int
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// EnsureAnonymous idempotently creates the shared anonymous placeholder
	// account and returns its ID. Called once at startup.
	EnsureAnonymous(ctx context.Context) (string, error)

	// EnsureProfile creates the one-to-one profile row if absent.
	// Reports whether a new profile was created.
	EnsureProfile(ctx context.Context, userID string, role model.Role) (bool, error)

	// UpsertProfile creates or overwrites the profile row with the given role.
	UpsertProfile(ctx context.Context, userID string, role model.Role) error
}

type TokenRepository interface {
	// GetOrCreate returns the user's stable token key, inserting candidateKey
	// atomically when the user has none yet. Reports whether the token was
	// created by this call.
	GetOrCreate(ctx context.Context, userID, candidateKey string) (string, bool, error)

	// GetUserID resolves a token key to the owning user's ID.
	GetUserID(ctx context.Context, key string) (string, error)
}

type SocialRepository interface {
	Find(ctx context.Context, provider, externalID string) (*model.SocialAssociation, error)
	Create(ctx context.Context, assoc *model.SocialAssociation) error

	// Reattach moves an association to a new owner in a single conditional
	// update: it only succeeds while the association still belongs to
	// fromUserID, so concurrent completions resolve last-write-wins without
	// an intermediate detached state.
	Reattach(ctx context.Context, id, fromUserID, toUserID string) error
}

type IssueRepository interface {
	Create(ctx context.Context, issue *model.Issue) error
	GetByID(ctx context.Context, id string) (*model.Issue, error)
	List(ctx context.Context, opts ListOptions) ([]model.Issue, error)

	// UpdateStatusSeverity mutates only the two triage fields; nil means
	// leave unchanged. Returns the updated row.
	UpdateStatusSeverity(ctx context.Context, id string, status *model.Status, severity *model.Severity) (*model.Issue, error)

	Delete(ctx context.Context, id string) error

	// Stats counts issues grouped by status and severity. An empty createdBy
	// aggregates over all issues.
	Stats(ctx context.Context, createdBy string) (*model.Stats, error)
}

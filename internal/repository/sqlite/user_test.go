package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/model"
)

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$notarealhash",
	}

	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if user.UpdatedAt.IsZero() {
		t.Error("Create() did not set user.UpdatedAt")
	}
}

func TestUserCreate_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "bob")

	duplicate := &model.User{
		Username: "bob",
		Email:    "other@example.com",
	}
	if err := db.Users().Create(context.Background(), duplicate); err == nil {
		t.Fatal("Create() should have returned an error for duplicate username")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "carol")

	duplicate := &model.User{
		Username: "carol2",
		Email:    "carol@example.com", // createTestUser derives email from username
	}
	if err := db.Users().Create(context.Background(), duplicate); err == nil {
		t.Fatal("Create() should have returned an error for duplicate email")
	}
}

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "dave")

	got, err := db.Users().GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Username != "dave" {
		t.Errorf("GetByID() username = %q, want %q", got.Username, "dave")
	}
	if got.Role != "" {
		t.Errorf("GetByID() role = %q, want empty (no profile)", got.Role)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByID(context.Background(), "does-not-exist")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "erin")

	got, err := db.Users().GetByEmail(context.Background(), "erin@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail() ID = %q, want %q", got.ID, created.ID)
	}
}

func TestUserGetByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserEnsureAnonymous_Idempotent(t *testing.T) {
	db := newTestDB(t)

	first, err := db.Users().EnsureAnonymous(context.Background())
	if err != nil {
		t.Fatalf("EnsureAnonymous() error = %v", err)
	}
	if first == "" {
		t.Fatal("EnsureAnonymous() returned empty ID")
	}

	// A second call must resolve to the same row, not create another.
	second, err := db.Users().EnsureAnonymous(context.Background())
	if err != nil {
		t.Fatalf("EnsureAnonymous() second call error = %v", err)
	}
	if second != first {
		t.Errorf("EnsureAnonymous() returned %q on second call, want %q", second, first)
	}

	anon, err := db.Users().GetByID(context.Background(), first)
	if err != nil {
		t.Fatalf("GetByID(anonymous) error = %v", err)
	}
	if anon.Username != anonymousUsername {
		t.Errorf("anonymous username = %q, want %q", anon.Username, anonymousUsername)
	}
	if anon.Email != anonymousEmail {
		t.Errorf("anonymous email = %q, want %q", anon.Email, anonymousEmail)
	}
}

func TestUserEnsureProfile(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "frank")

	created, err := db.Users().EnsureProfile(context.Background(), user.ID, model.RoleReporter)
	if err != nil {
		t.Fatalf("EnsureProfile() error = %v", err)
	}
	if !created {
		t.Error("EnsureProfile() created = false on first call, want true")
	}

	// Second call keeps the existing role and reports created=false.
	created, err = db.Users().EnsureProfile(context.Background(), user.ID, model.RoleAdmin)
	if err != nil {
		t.Fatalf("EnsureProfile() second call error = %v", err)
	}
	if created {
		t.Error("EnsureProfile() created = true on second call, want false")
	}

	got, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Role != model.RoleReporter {
		t.Errorf("role after repeated EnsureProfile = %q, want %q", got.Role, model.RoleReporter)
	}
}

func TestUserUpsertProfile_OverwritesRole(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "grace")

	if _, err := db.Users().EnsureProfile(context.Background(), user.ID, model.RoleReporter); err != nil {
		t.Fatalf("EnsureProfile() error = %v", err)
	}
	if err := db.Users().UpsertProfile(context.Background(), user.ID, model.RoleAdmin); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("role after UpsertProfile = %q, want %q", got.Role, model.RoleAdmin)
	}
}

package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/issue-tracker/internal/model"
)

// newTestDB returns a DB backed by an in-memory SQLite database.
// Each test gets a fresh database; Close is registered via t.Cleanup.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser creates a user and fails the test on error.
func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username: username,
		Email:    username + "@example.com",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user %q: %v", username, err)
	}
	return user
}

// createTestIssue creates an issue owned by the given user.
func createTestIssue(t *testing.T, db *DB, createdBy, title string) *model.Issue {
	t.Helper()

	issue := &model.Issue{
		Title:       title,
		Description: "description of " + title,
		CreatedBy:   createdBy,
	}
	if err := db.Issues().Create(context.Background(), issue); err != nil {
		t.Fatalf("failed to create test issue %q: %v", title, err)
	}
	return issue
}

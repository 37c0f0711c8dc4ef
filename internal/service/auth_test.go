package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/auth"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/repository"
)

const testStateSecret = "test-secret-0123456789"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces.
// They store data in maps and return the same apperror sentinels the
// sqlite implementations do, so the service under test can't tell the
// difference.

type fakeUserRepo struct {
	users    map[string]*model.User // keyed by ID
	profiles map[string]model.Role  // userID → role
	nextID   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:    make(map[string]*model.User),
		profiles: make(map[string]model.Role),
	}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range f.users {
		if u.Username == user.Username {
			return fmt.Errorf("fake: UNIQUE constraint failed: users.username")
		}
		if u.Email == user.Email {
			return fmt.Errorf("fake: UNIQUE constraint failed: users.email")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	result.Role = f.profiles[id]
	return &result, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for id, u := range f.users {
		if u.Email == email {
			result := *u
			result.Role = f.profiles[id]
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) EnsureAnonymous(ctx context.Context) (string, error) {
	for _, u := range f.users {
		if u.Username == "anonymous" {
			return u.ID, nil
		}
	}
	anon := &model.User{Username: "anonymous", Email: "anonymous@example.com"}
	if err := f.Create(ctx, anon); err != nil {
		return "", err
	}
	return anon.ID, nil
}

func (f *fakeUserRepo) EnsureProfile(_ context.Context, userID string, role model.Role) (bool, error) {
	if _, ok := f.profiles[userID]; ok {
		return false, nil
	}
	f.profiles[userID] = role
	return true, nil
}

func (f *fakeUserRepo) UpsertProfile(_ context.Context, userID string, role model.Role) error {
	f.profiles[userID] = role
	return nil
}

type fakeTokenRepo struct {
	keys map[string]string // userID → key
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{keys: make(map[string]string)}
}

func (f *fakeTokenRepo) GetOrCreate(_ context.Context, userID, candidateKey string) (string, bool, error) {
	if key, ok := f.keys[userID]; ok {
		return key, false, nil
	}
	f.keys[userID] = candidateKey
	return candidateKey, true, nil
}

func (f *fakeTokenRepo) GetUserID(_ context.Context, key string) (string, error) {
	for userID, k := range f.keys {
		if k == key {
			return userID, nil
		}
	}
	return "", apperror.Unauthenticated("invalid token")
}

type fakeSocialRepo struct {
	assocs map[string]*model.SocialAssociation // provider/externalID → assoc
	nextID int
}

func newFakeSocialRepo() *fakeSocialRepo {
	return &fakeSocialRepo{assocs: make(map[string]*model.SocialAssociation)}
}

func socialKey(provider, externalID string) string {
	return provider + "/" + externalID
}

func (f *fakeSocialRepo) Find(_ context.Context, provider, externalID string) (*model.SocialAssociation, error) {
	a, ok := f.assocs[socialKey(provider, externalID)]
	if !ok {
		return nil, apperror.NotFound("social association", socialKey(provider, externalID))
	}
	result := *a
	return &result, nil
}

func (f *fakeSocialRepo) Create(_ context.Context, assoc *model.SocialAssociation) error {
	key := socialKey(assoc.Provider, assoc.ExternalID)
	if _, ok := f.assocs[key]; ok {
		return fmt.Errorf("fake: UNIQUE constraint failed: social_associations")
	}
	f.nextID++
	assoc.ID = fmt.Sprintf("assoc-%d", f.nextID)
	stored := *assoc
	f.assocs[key] = &stored
	return nil
}

func (f *fakeSocialRepo) Reattach(_ context.Context, id, fromUserID, toUserID string) error {
	for _, a := range f.assocs {
		if a.ID == id && a.UserID == fromUserID {
			a.UserID = toUserID
		}
	}
	return nil
}

// fakeOAuthProvider returns a canned Google profile without any network.
type fakeOAuthProvider struct {
	user *auth.GoogleUser
	err  error
}

func (f *fakeOAuthProvider) AuthURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (f *fakeOAuthProvider) Exchange(_ context.Context, _ string) (*auth.GoogleUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// authFixture wires an AuthService against all fakes.
type authFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	tokens   *fakeTokenRepo
	social   *fakeSocialRepo
	provider *fakeOAuthProvider
}

func newAuthFixture(t *testing.T, gUser *auth.GoogleUser) *authFixture {
	t.Helper()

	state, err := auth.NewStateService(testStateSecret)
	if err != nil {
		t.Fatalf("NewStateService() error = %v", err)
	}

	f := &authFixture{
		users:    newFakeUserRepo(),
		tokens:   newFakeTokenRepo(),
		social:   newFakeSocialRepo(),
		provider: &fakeOAuthProvider{user: gUser},
	}
	f.svc = NewAuthService(
		f.users, f.tokens, f.social,
		auth.NewPasswordServiceForTest(4),
		f.provider, state, testLogger(),
	)
	return f
}

// registerUser creates a password-backed account directly in the fake repo.
func (f *authFixture) registerUser(t *testing.T, username, password string) *model.User {
	t.Helper()

	hash, err := auth.NewPasswordServiceForTest(4).Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return user
}

func (f *authFixture) issueState(t *testing.T) string {
	t.Helper()
	state, err := auth.NewStateService(testStateSecret)
	if err != nil {
		t.Fatalf("NewStateService() error = %v", err)
	}
	s, err := state.Issue()
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return s
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	user := f.registerUser(t, "alice", "correct horse battery")

	result, err := f.svc.Login(context.Background(), "alice@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.User.ID != user.ID {
		t.Errorf("Login() user = %q, want %q", result.User.ID, user.ID)
	}
	if result.Token == "" {
		t.Error("Login() returned empty token")
	}
	if !result.IsNew {
		t.Error("Login() IsNew = false on first login, want true")
	}
}

func TestLogin_TokenStableAcrossLogins(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerUser(t, "bob", "hunter2hunter2")

	first, err := f.svc.Login(context.Background(), "bob@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	second, err := f.svc.Login(context.Background(), "bob@example.com", "hunter2hunter2")
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}

	if second.Token != first.Token {
		t.Errorf("second Login() token = %q, want same as first %q", second.Token, first.Token)
	}
	if second.IsNew {
		t.Error("second Login() IsNew = true, want false")
	}
}

func TestLogin_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.Login(context.Background(), "nobody@example.com", "whatever")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Login() error = %v, want ErrUnauthenticated", err)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerUser(t, "carol", "right password")

	_, err := f.svc.Login(context.Background(), "carol@example.com", "wrong password")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Login() error = %v, want ErrUnauthenticated", err)
	}
}

func TestLogin_SocialOnlyAccount(t *testing.T) {
	f := newAuthFixture(t, nil)

	// No password hash — account was provisioned through OAuth.
	user := &model.User{Username: "dave", Email: "dave@example.com"}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("creating user: %v", err)
	}

	_, err := f.svc.Login(context.Background(), "dave@example.com", "any password")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Login() error = %v, want ErrUnauthenticated", err)
	}
}

// =========================================================================
// OAUTH COMPLETION
// =========================================================================

func TestCompleteOAuth_UnsupportedProvider(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.CompleteOAuth(context.Background(), "github", f.issueState(t), "code")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("CompleteOAuth() error = %v, want ErrValidation", err)
	}
}

func TestCompleteOAuth_InvalidState(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, "tampered-state", "code")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("CompleteOAuth() error = %v, want ErrUnauthenticated", err)
	}
}

func TestCompleteOAuth_NewUser(t *testing.T) {
	f := newAuthFixture(t, &auth.GoogleUser{
		ID:    "google-uid-1",
		Email: "erin@example.com",
		Name:  "Erin Example",
	})

	result, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}

	if !result.IsNew {
		t.Error("CompleteOAuth() IsNew = false for first login, want true")
	}
	if result.User.Username != "erin" {
		t.Errorf("username = %q, want %q (derived from email)", result.User.Username, "erin")
	}
	if result.User.Role != model.RoleReporter {
		t.Errorf("role = %q, want auto-provisioned %q", result.User.Role, model.RoleReporter)
	}
	if result.Token == "" {
		t.Error("CompleteOAuth() returned empty token")
	}

	// The association must now exist.
	assoc, err := f.social.Find(context.Background(), auth.ProviderGoogle, "google-uid-1")
	if err != nil {
		t.Fatalf("Find() after completion error = %v", err)
	}
	if assoc.UserID != result.User.ID {
		t.Errorf("association UserID = %q, want %q", assoc.UserID, result.User.ID)
	}
}

func TestCompleteOAuth_ExistingAssociation(t *testing.T) {
	f := newAuthFixture(t, &auth.GoogleUser{
		ID:    "google-uid-2",
		Email: "frank@example.com",
	})

	first, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("first CompleteOAuth() error = %v", err)
	}
	second, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("second CompleteOAuth() error = %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("second completion resolved user %q, want %q", second.User.ID, first.User.ID)
	}
	if second.Token != first.Token {
		t.Errorf("second completion token = %q, want stable %q", second.Token, first.Token)
	}
	if second.IsNew {
		t.Error("second completion IsNew = true, want false")
	}
}

func TestCompleteOAuth_AdoptsAccountByEmail(t *testing.T) {
	f := newAuthFixture(t, &auth.GoogleUser{
		ID:    "google-uid-3",
		Email: "grace@example.com",
	})
	existing := f.registerUser(t, "grace", "some password!")

	result, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}

	if result.User.ID != existing.ID {
		t.Errorf("completion resolved user %q, want existing account %q", result.User.ID, existing.ID)
	}
	assoc, err := f.social.Find(context.Background(), auth.ProviderGoogle, "google-uid-3")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if assoc.UserID != existing.ID {
		t.Errorf("association UserID = %q, want %q", assoc.UserID, existing.ID)
	}
}

func TestCompleteOAuth_ReattachesOnEmailMatch(t *testing.T) {
	f := newAuthFixture(t, &auth.GoogleUser{
		ID:    "google-uid-4",
		Email: "old@example.com",
	})

	// First completion creates an account from the old email.
	first, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("first CompleteOAuth() error = %v", err)
	}

	// The Google account's email now matches a different local account.
	target := f.registerUser(t, "heidi", "heidi password")
	f.provider.user = &auth.GoogleUser{ID: "google-uid-4", Email: target.Email}

	result, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("second CompleteOAuth() error = %v", err)
	}

	if result.User.ID != target.ID {
		t.Errorf("completion resolved user %q, want email-matching account %q", result.User.ID, target.ID)
	}
	if result.User.ID == first.User.ID {
		t.Error("completion still resolved the original association owner")
	}
	assoc, err := f.social.Find(context.Background(), auth.ProviderGoogle, "google-uid-4")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if assoc.UserID != target.ID {
		t.Errorf("association UserID = %q, want reattached to %q", assoc.UserID, target.ID)
	}
}

func TestCompleteOAuth_UsernameCollision(t *testing.T) {
	f := newAuthFixture(t, &auth.GoogleUser{
		ID:    "google-uid-5",
		Email: "ivan@other.example.com",
	})
	// Same username local part, different email, no association.
	f.registerUser(t, "ivan", "ivan password")

	result, err := f.svc.CompleteOAuth(context.Background(), auth.ProviderGoogle, f.issueState(t), "code")
	if err != nil {
		t.Fatalf("CompleteOAuth() error = %v", err)
	}

	if result.User.Username == "ivan" {
		t.Error("completion reused the taken username")
	}
	if result.User.Email != "ivan@other.example.com" {
		t.Errorf("email = %q, want %q", result.User.Email, "ivan@other.example.com")
	}
}

// =========================================================================
// AUTH URL / TOKEN RESOLUTION
// =========================================================================

func TestAuthURL(t *testing.T) {
	f := newAuthFixture(t, nil)

	url, err := f.svc.AuthURL()
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}
	if url == "" {
		t.Fatal("AuthURL() returned empty URL")
	}
}

func TestResolveToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.registerUser(t, "judy", "judy password")

	result, err := f.svc.Login(context.Background(), "judy@example.com", "judy password")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := f.svc.ResolveToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if user.ID != result.User.ID {
		t.Errorf("ResolveToken() user = %q, want %q", user.ID, result.User.ID)
	}
}

func TestResolveToken_Invalid(t *testing.T) {
	f := newAuthFixture(t, nil)

	_, err := f.svc.ResolveToken(context.Background(), "not-a-real-key")
	if !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("ResolveToken() error = %v, want ErrUnauthenticated", err)
	}
}

func TestGetUser_EmptyID(t *testing.T) {
	f := newAuthFixture(t, nil)

	if _, err := f.svc.GetUser(context.Background(), ""); err == nil {
		t.Error("GetUser() with empty ID should return an error")
	}
}

// Compile-time checks that the fakes stay in sync with the interfaces.
var (
	_ repository.UserRepository   = (*fakeUserRepo)(nil)
	_ repository.TokenRepository  = (*fakeTokenRepo)(nil)
	_ repository.SocialRepository = (*fakeSocialRepo)(nil)
	_ OAuthProvider               = (*fakeOAuthProvider)(nil)
)

// Package service contains the business logic layer: it validates input,
// enforces the role rules, and orchestrates repositories. Handlers translate
// HTTP to service calls; repositories translate service calls to SQL.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/auth"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/repository"
)

// OAuthProvider is the slice of auth.GoogleProvider the service needs.
// Tests substitute a fake so no network calls happen.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
}

// AuthService handles login, the OAuth completion flow, and token resolution.
type AuthService struct {
	users     repository.UserRepository
	tokens    repository.TokenRepository
	social    repository.SocialRepository
	passwords *auth.PasswordService
	provider  OAuthProvider
	state     *auth.StateService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens repository.TokenRepository,
	social repository.SocialRepository,
	passwords *auth.PasswordService,
	provider OAuthProvider,
	state *auth.StateService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		social:    social,
		passwords: passwords,
		provider:  provider,
		state:     state,
		logger:    logger,
	}
}

// AuthResult bundles the outcome of an authentication operation.
type AuthResult struct {
	User  *model.User
	Token string

	// IsNew reports whether the bearer token was created by this operation,
	// i.e. this was the account's first successful authentication.
	IsNew bool
}

// Login authenticates an email/password pair and returns the user's stable
// bearer token. Unknown emails and wrong passwords both yield the same
// InvalidCredentials error so the response doesn't leak which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.InvalidCredentials()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	// Social-only accounts have an empty hash and can't log in with a password.
	if user.PasswordHash == "" {
		return nil, apperror.InvalidCredentials()
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.InvalidCredentials()
	}

	result, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return result, nil
}

// AuthURL returns the Google authorization URL with a fresh signed state.
func (s *AuthService) AuthURL() (string, error) {
	state, err := s.state.Issue()
	if err != nil {
		return "", fmt.Errorf("service/auth: issuing state: %w", err)
	}
	return s.provider.AuthURL(state), nil
}

// CompleteOAuth finishes the social login flow for the given provider path
// segment. Only google-oauth2 is accepted; anything else is a validation
// error before the code is exchanged.
//
// After the exchange, the Google identity is resolved to a local account:
//
//  1. An existing (provider, external_id) association wins. If the Google
//     email meanwhile belongs to a different local account, the association
//     is moved there with one conditional update — concurrent completions
//     resolve last-write-wins, never leaving the association detached.
//  2. Otherwise an account with a matching email adopts the association.
//  3. Otherwise a new account is created from the Google profile.
//
// Accounts reached through social login always get a reporter profile if
// they have none yet.
func (s *AuthService) CompleteOAuth(ctx context.Context, provider, state, code string) (*AuthResult, error) {
	if provider != auth.ProviderGoogle {
		return nil, apperror.ValidationFailed("provider",
			fmt.Sprintf("unsupported provider %q", provider))
	}
	if err := s.state.Verify(state); err != nil {
		return nil, apperror.Unauthenticated("invalid or expired state")
	}
	if code == "" {
		return nil, apperror.ValidationFailed("code", "authorization code is required")
	}

	gUser, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("service/auth: completing OAuth exchange: %w", err)
	}

	user, err := s.resolveGoogleUser(ctx, gUser)
	if err != nil {
		return nil, err
	}

	created, err := s.users.EnsureProfile(ctx, user.ID, model.RoleReporter)
	if err != nil {
		return nil, fmt.Errorf("service/auth: provisioning profile for user %s: %w", user.ID, err)
	}
	if created {
		user.Role = model.RoleReporter
	}

	result, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Google",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
		slog.Bool("isNew", result.IsNew),
	)
	return result, nil
}

// resolveGoogleUser maps a Google profile to a local account, creating the
// account and the social association as needed.
func (s *AuthService) resolveGoogleUser(ctx context.Context, gUser *auth.GoogleUser) (*model.User, error) {
	assoc, err := s.social.Find(ctx, auth.ProviderGoogle, gUser.ID)
	if err == nil {
		return s.reconcileAssociation(ctx, assoc, gUser)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: finding association: %w", err)
	}

	// No association yet. An account with the same email adopts the Google
	// identity; otherwise a fresh account is created.
	user, err := s.users.GetByEmail(ctx, gUser.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.createFromGoogle(ctx, gUser)
	}
	if err != nil {
		return nil, err
	}

	if err := s.social.Create(ctx, &model.SocialAssociation{
		Provider:   auth.ProviderGoogle,
		ExternalID: gUser.ID,
		UserID:     user.ID,
	}); err != nil {
		return nil, fmt.Errorf("service/auth: creating association: %w", err)
	}
	return user, nil
}

// reconcileAssociation handles an existing association whose owner may no
// longer match the email Google reports.
func (s *AuthService) reconcileAssociation(ctx context.Context, assoc *model.SocialAssociation, gUser *auth.GoogleUser) (*model.User, error) {
	owner, err := s.users.GetByID(ctx, assoc.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: loading association owner: %w", err)
	}
	if gUser.Email == "" || owner.Email == gUser.Email {
		return owner, nil
	}

	byEmail, err := s.users.GetByEmail(ctx, gUser.Email)
	if errors.Is(err, apperror.ErrNotFound) {
		// Email changed on the Google side but matches no local account;
		// the association stays where it is.
		return owner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: reconciling association: %w", err)
	}

	if err := s.social.Reattach(ctx, assoc.ID, owner.ID, byEmail.ID); err != nil {
		return nil, fmt.Errorf("service/auth: reattaching association: %w", err)
	}
	s.logger.Info("social association reattached",
		slog.String("associationID", assoc.ID),
		slog.String("fromUserID", owner.ID),
		slog.String("toUserID", byEmail.ID),
	)
	return byEmail, nil
}

// createFromGoogle creates a local account for a first-time Google login.
// The username is derived from the email's local part; on a collision a
// random suffix is appended and the insert retried once.
func (s *AuthService) createFromGoogle(ctx context.Context, gUser *auth.GoogleUser) (*model.User, error) {
	if gUser.Email == "" {
		return nil, apperror.ValidationFailed("email", "Google account has no email")
	}

	base, _, _ := strings.Cut(gUser.Email, "@")
	user := &model.User{
		Username: base,
		Email:    gUser.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		suffix, kerr := auth.NewTokenKey()
		if kerr != nil {
			return nil, fmt.Errorf("service/auth: creating user from Google profile: %w", err)
		}
		user.Username = base + "-" + suffix[:6]
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("service/auth: creating user from Google profile: %w", err)
		}
	}
	return user, nil
}

// issueToken returns the user's stable bearer token, minting one on first use.
func (s *AuthService) issueToken(ctx context.Context, user *model.User) (*AuthResult, error) {
	candidate, err := auth.NewTokenKey()
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	key, created, err := s.tokens.GetOrCreate(ctx, user.ID, candidate)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: key, IsNew: created}, nil
}

// ResolveToken maps a bearer token key to its user. It satisfies
// auth.CallerResolver for the request middleware.
func (s *AuthService) ResolveToken(ctx context.Context, key string) (*model.User, error) {
	userID, err := s.tokens.GetUserID(ctx, key)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("invalid token")
		}
		return nil, fmt.Errorf("service/auth: resolving token owner: %w", err)
	}
	return user, nil
}

// GetUser returns the user for the given internal ID.
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}
	return s.users.GetByID(ctx, id)
}

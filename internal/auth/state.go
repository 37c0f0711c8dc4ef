package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

// stateTTL bounds how long an OAuth authorization round-trip may take.
const stateTTL = 10 * time.Minute

// StateService issues and verifies the OAuth state parameter.
//
// The state is a short-lived HMAC-signed token carrying a random nonce.
// Because it is self-validating, the server keeps no per-flow state: the
// frontend receives the value from /auth/url, sends the user to Google, and
// the callback verifies the signature and expiry. A forged or stale state is
// rejected before any code exchange happens.
type StateService struct {
	secret []byte
}

// NewStateService creates a StateService with the given HMAC secret.
func NewStateService(secret string) (*StateService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: state secret must be at least 16 characters")
	}
	return &StateService{secret: []byte(secret)}, nil
}

type stateClaims struct {
	jwt.RegisteredClaims
}

// Issue creates a fresh signed state value.
func (s *StateService) Issue() (string, error) {
	now := time.Now()

	c := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        xid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
			Issuer:    "issue-tracker",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}

	return signed, nil
}

// Verify checks the signature and expiry of a state value returned by the
// provider redirect.
func (s *StateService) Verify(state string) error {
	_, err := jwt.ParseWithClaims(
		state,
		&stateClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer("issue-tracker"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("auth: state expired")
		}
		return fmt.Errorf("auth: invalid state: %w", err)
	}
	return nil
}

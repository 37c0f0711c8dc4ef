package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/issue-tracker/internal/apperror"
	"github.com/sakif/issue-tracker/internal/auth"
	"github.com/sakif/issue-tracker/internal/model"
	"github.com/sakif/issue-tracker/internal/service"
)

// AuthHandler serves login, the OAuth flow, and the current-user endpoint.
type AuthHandler struct {
	auth   *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authService, logger: logger}
}

// userPayload is the user shape returned by auth endpoints. The role flags
// mirror the role so clients don't have to compare strings.
type userPayload struct {
	*model.User
	IsReporter   bool `json:"is_reporter"`
	IsMaintainer bool `json:"is_maintainer"`
	IsAdmin      bool `json:"is_admin"`
}

func newUserPayload(u *model.User) userPayload {
	role := u.EffectiveRole()
	return userPayload{
		User:         u,
		IsReporter:   role == model.RoleReporter,
		IsMaintainer: role == model.RoleMaintainer,
		IsAdmin:      role == model.RoleAdmin,
	}
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  userPayload `json:"user"`
}

// HandleLogin authenticates an email/password pair.
//
// POST /api/auth/login {"email": ..., "password": ...} → 200 {token, user}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateStruct(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token: result.Token,
		User:  newUserPayload(result.User),
	})
}

// HandleMe returns the authenticated caller.
//
// GET /api/auth/user → 200 user
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthenticated("authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, newUserPayload(caller))
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
}

// HandleAuthURL returns the Google authorization URL with a fresh signed
// state, for the frontend to redirect the user to.
//
// GET /api/auth/url → 200 {auth_url}
func (h *AuthHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.auth.AuthURL()
	if err != nil {
		h.logger.Error("failed to build auth URL", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authURLResponse{AuthURL: url})
}

type oauthCompleteRequest struct {
	State string `json:"state"`
	Code  string `json:"code"`
}

type oauthCompleteResponse struct {
	Token     string      `json:"token"`
	User      userPayload `json:"user"`
	IsNewUser bool        `json:"is_new_user"`
}

// HandleOAuthComplete finishes the social login round-trip. The provider
// redirect arrives as a GET with query parameters; frontends that proxy the
// callback POST the same values as JSON. Both are accepted.
//
// GET|POST /api/auth/complete/{provider} → 200 {token, user, is_new_user}
func (h *AuthHandler) HandleOAuthComplete(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	var req oauthCompleteRequest
	if r.Method == http.MethodPost {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	} else {
		req.State = r.URL.Query().Get("state")
		req.Code = r.URL.Query().Get("code")
	}

	result, err := h.auth.CompleteOAuth(r.Context(), provider, req.State, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, oauthCompleteResponse{
		Token:     result.Token,
		User:      newUserPayload(result.User),
		IsNewUser: result.IsNew,
	})
}

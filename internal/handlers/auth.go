package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/jobs"
	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/models"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
)

const (
	msgGenericInput      = "Please check your inputs and try again."
	msgInvalidLogin      = "Invalid email or password."
	msgNotActivated      = "Account is not activated."
	msgRefreshMissing    = "Refresh token cookie is missing."
	msgRefreshInvalid    = "Invalid refresh token."
	msgActivationFailed  = "Activation failed."
	msgActivated         = "Account successfully activated."
	msgInvalidResetLink  = "Invalid or expired reset link."
	msgPasswordResetDone = "Your Password has been successfully reset."
)

// AuthHandler implements the account endpoints: registration, activation, login,
// logout, token refresh and password reset.
type AuthHandler struct {
	Users         UserStore
	Tokens        TokenService
	Confirmations ConfirmationService
	Jobs          jobs.Submitter
	Cookies       auth.CookiePolicy
	Limiter       RateLimiter
	NowFunc       func() time.Time
}

// Register handles POST /api/register/.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeRegister) {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid register payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil || req.Password == "" || req.Password != req.ConfirmedPassword {
		logger.Warn("register rejected input", "emailValid", err == nil, "passwordsMatch", req.Password == req.ConfirmedPassword)
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Registration failed."))
		return
	}

	user, err := h.Users.Create(ctx, models.User{Email: email, Password: hashed, IsActive: false})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("register existing account", "email", email)
			respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
			return
		}
		logger.Error("register failed to create user", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Registration failed."))
		return
	}

	uid, token, err := h.Confirmations.Make(user, auth.TokenActivation)
	if err != nil {
		logger.Error("register failed to create activation token", "error", err, "userId", user.ID)
	} else if err := h.Jobs.Submit(ctx, jobs.ActivationEmailJob{Email: user.Email, UID: uid, Token: token}); err != nil {
		logger.Error("register failed to submit activation email", "error", err, "userId", user.ID)
	}

	respondJSON(ctx, w, http.StatusCreated, detail("Registration successful. Please check your email."))
}

// Activate handles GET /api/activate/{uidb64}/{token}/. Activating an already active
// account with a valid link succeeds again.
func (h AuthHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeConfirm) {
		return
	}

	vars := mux.Vars(r)
	user, ok := h.userForLink(r, vars["uidb64"], vars["token"], auth.TokenActivation)
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"message": msgActivationFailed})
		return
	}

	if !user.IsActive {
		if err := h.Users.SetActive(ctx, user.ID); err != nil {
			logger.Error("activation failed to update user", "error", err, "userId", user.ID)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"message": msgActivationFailed})
			return
		}
		logger.Info("account activated", "userId", user.ID)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": msgActivated})
}

// Login handles POST /api/login/ and sets both token cookies.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeLogin) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgGenericInput))
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		logger.Warn("login missing credentials")
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgGenericInput))
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, detail("Login failed."))
			return
		}
		logger.Warn("login unknown account")
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgInvalidLogin))
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgInvalidLogin))
		return
	}
	if !user.IsActive {
		respondJSON(ctx, w, http.StatusForbidden, detail(msgNotActivated))
		return
	}

	tokens, err := h.Tokens.IssuePair(user.ID)
	if err != nil {
		logger.Error("login failed to issue tokens", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Login failed."))
		return
	}
	if err := h.Users.TouchLastLogin(ctx, user.ID, h.now()); err != nil {
		logger.Warn("login failed to record last login", "error", err, "userId", user.ID)
	}

	h.Cookies.SetTokenCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, loginResponse{
		Detail: "Login successful",
		User:   loginUser{ID: user.ID, Username: user.Email},
	})
}

// Logout handles POST /api/logout/. The refresh token is revoked and both cookies are
// cleared; revoking an unusable token is not an error.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	raw := cookie(r, auth.RefreshCookieName)
	if raw == "" {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgRefreshMissing))
		return
	}

	if err := h.Tokens.Revoke(ctx, raw); err != nil {
		logger.Error("logout failed to revoke refresh token", "error", err)
	}

	h.Cookies.ClearTokenCookies(w)
	respondJSON(ctx, w, http.StatusOK, detail("Logout successful! All tokens will be deleted. Refresh token is now invalid."))
}

// Refresh handles POST /api/token/refresh/ by minting a new access cookie.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeRefresh) {
		return
	}

	raw := cookie(r, auth.RefreshCookieName)
	if raw == "" {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgRefreshMissing))
		return
	}

	access, expires, result := h.Tokens.Rotate(ctx, raw)
	if !result.OK() {
		logger.Warn("refresh rejected", "reason", result.Reason.String())
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgRefreshInvalid))
		return
	}

	h.Cookies.SetAccessCookie(w, access, expires)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"detail": "Token refreshed", "access": access})
}

// PasswordReset handles POST /api/password_reset/. The response does not reveal
// whether an account exists for the address.
func (h AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeReset) {
		return
	}

	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid password reset payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	email, err := auth.NormalizeEmail(req.Email)
	if err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	user, err := h.Users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		uid, token, err := h.Confirmations.Make(user, auth.TokenPasswordReset)
		if err != nil {
			logger.Error("password reset failed to create token", "error", err, "userId", user.ID)
			break
		}
		if err := h.Jobs.Submit(ctx, jobs.PasswordResetEmailJob{Email: user.Email, UID: uid, Token: token}); err != nil {
			logger.Error("password reset failed to submit email", "error", err, "userId", user.ID)
		}
	case errors.Is(err, repositories.ErrNotFound):
		logger.Info("password reset for unknown address")
	default:
		logger.Error("password reset lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Password reset failed."))
		return
	}

	respondJSON(ctx, w, http.StatusOK, detail("An email has been sent to reset your password."))
}

// PasswordConfirm handles POST /api/password_confirm/{uidb64}/{token}/.
func (h AuthHandler) PasswordConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(ctx, w, h.Limiter, r, scopeConfirm) {
		return
	}

	vars := mux.Vars(r)
	user, ok := h.userForLink(r, vars["uidb64"], vars["token"], auth.TokenPasswordReset)
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgInvalidResetLink))
		return
	}

	var req passwordConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil || req.NewPassword == "" || req.NewPassword != req.ConfirmPassword {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	hashed, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("password confirm failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Password reset failed."))
		return
	}
	if err := h.Users.SetPassword(ctx, user.ID, hashed); err != nil {
		logger.Error("password confirm failed to store password", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Password reset failed."))
		return
	}

	logger.Info("password reset", "userId", user.ID)
	respondJSON(ctx, w, http.StatusOK, detail(msgPasswordResetDone))
}

func (h AuthHandler) userForLink(r *http.Request, uidb64, token string, purpose auth.TokenType) (models.User, bool) {
	id, err := auth.DecodeUID(uidb64)
	if err != nil {
		return models.User{}, false
	}
	user, err := h.Users.FindByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logging.FromContext(r.Context()).Error("confirmation link user lookup failed", "error", err)
		}
		return models.User{}, false
	}
	if !h.Confirmations.Check(user, purpose, token) {
		return models.User{}, false
	}
	return user, true
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func cookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

type registerRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ConfirmedPassword string `json:"confirmed_password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordConfirmRequest struct {
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type loginResponse struct {
	Detail string    `json:"detail"`
	User   loginUser `json:"user"`
}

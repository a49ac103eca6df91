package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// ErrUserNotFound is returned by a UserLookup when the subject no longer exists.
var ErrUserNotFound = errors.New("user not found")

// UserLookup resolves a token subject to its user record.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
}

// Gate resolves inbound requests to an active user. It never fails the request itself;
// callers branch on the returned Result.
type Gate struct {
	tokens *TokenIssuer
	users  UserLookup
}

// NewGate constructs a Gate validating access tokens with the issuer.
func NewGate(tokens *TokenIssuer, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Resolve reads the access token from the Authorization header, falling back to the
// access token cookie when no bearer token is supplied.
func (g *Gate) Resolve(r *http.Request) Result {
	raw := bearerToken(r)
	if raw == "" {
		raw = cookieValue(r, AccessCookieName)
	}
	return g.resolve(r.Context(), raw)
}

// ResolveCookie only considers the access token cookie.
func (g *Gate) ResolveCookie(r *http.Request) Result {
	return g.resolve(r.Context(), cookieValue(r, AccessCookieName))
}

func (g *Gate) resolve(ctx context.Context, raw string) Result {
	result := g.tokens.ValidateAccess(raw)
	if !result.OK() {
		return result
	}

	user, err := g.users.FindByID(ctx, result.Identity.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return rejected(ReasonUserMissing)
		}
		return rejected(ReasonLookupFailed)
	}
	if !user.IsActive {
		return rejected(ReasonUserInactive)
	}

	result.Identity.User = &user
	return result
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// TokenType distinguishes the purposes a signed token may be issued for.
type TokenType string

const (
	TokenAccess        TokenType = "access"
	TokenRefresh       TokenType = "refresh"
	TokenActivation    TokenType = "activation"
	TokenPasswordReset TokenType = "password_reset"
)

// Claims is the JWT payload used for every token the service signs.
type Claims struct {
	Type        TokenType `json:"typ"`
	Fingerprint string    `json:"fp,omitempty"`
	jwt.RegisteredClaims
}

// Reason explains the outcome of validating a credential.
type Reason int

const (
	ReasonOK Reason = iota
	ReasonMissing
	ReasonMalformed
	ReasonExpired
	ReasonWrongType
	ReasonRevoked
	ReasonUserMissing
	ReasonUserInactive
	ReasonLookupFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonMissing:
		return "missing"
	case ReasonMalformed:
		return "malformed"
	case ReasonExpired:
		return "expired"
	case ReasonWrongType:
		return "wrong_type"
	case ReasonRevoked:
		return "revoked"
	case ReasonUserMissing:
		return "user_missing"
	case ReasonUserInactive:
		return "user_inactive"
	case ReasonLookupFailed:
		return "lookup_failed"
	default:
		return "unknown"
	}
}

// Identity is what a valid credential resolves to. User is only populated by the Gate.
type Identity struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
	User      *models.User
}

// Result is the outcome of a validation. Identity is meaningful only when Reason is ReasonOK.
type Result struct {
	Identity Identity
	Reason   Reason
}

// OK reports whether the credential resolved to an identity.
func (r Result) OK() bool {
	return r.Reason == ReasonOK
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

// TokenIssuer signs and validates the access/refresh credential pair.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	revocations RevocationStore
	now         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer signing HS256 tokens with the provided secret.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration, revocations RevocationStore) *TokenIssuer {
	if revocations == nil {
		panic("auth: revocation store must not be nil")
	}
	return &TokenIssuer{
		secret:      []byte(secret),
		accessTTL:   accessTTL,
		refreshTTL:  refreshTTL,
		revocations: revocations,
		now:         time.Now,
	}
}

// AccessTTL returns the lifetime of issued access tokens.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the lifetime of issued refresh tokens.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssuePair creates a new access and refresh token for the provided user.
func (i *TokenIssuer) IssuePair(userID int64) (models.TokenPair, error) {
	if userID <= 0 {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	access, accessExp, err := i.sign(userID, TokenAccess, i.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, refreshExp, err := i.sign(userID, TokenRefresh, i.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateAccess checks the signature, expiry and type of an access token.
func (i *TokenIssuer) ValidateAccess(raw string) Result {
	return i.validate(raw, TokenAccess)
}

// ValidateRefresh checks a refresh token and consults the revocation list.
func (i *TokenIssuer) ValidateRefresh(ctx context.Context, raw string) Result {
	result := i.validate(raw, TokenRefresh)
	if !result.OK() {
		return result
	}

	revoked, err := i.revocations.IsRevoked(ctx, result.Identity.TokenID)
	if err != nil {
		return rejected(ReasonLookupFailed)
	}
	if revoked {
		return rejected(ReasonRevoked)
	}
	return result
}

// Rotate mints a new access token from a valid refresh token. The refresh token itself is unchanged.
func (i *TokenIssuer) Rotate(ctx context.Context, rawRefresh string) (string, time.Time, Result) {
	result := i.ValidateRefresh(ctx, rawRefresh)
	if !result.OK() {
		return "", time.Time{}, result
	}

	access, exp, err := i.sign(result.Identity.UserID, TokenAccess, i.accessTTL)
	if err != nil {
		return "", time.Time{}, rejected(ReasonLookupFailed)
	}
	return access, exp, result
}

// Revoke places the refresh token on the revocation list. Tokens that are already
// unusable are ignored so that logging out twice is not an error.
func (i *TokenIssuer) Revoke(ctx context.Context, rawRefresh string) error {
	result := i.validate(rawRefresh, TokenRefresh)
	if !result.OK() {
		return nil
	}

	if err := i.revocations.Revoke(ctx, Revocation{
		TokenID:   result.Identity.TokenID,
		UserID:    result.Identity.UserID,
		ExpiresAt: result.Identity.ExpiresAt,
	}); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (i *TokenIssuer) sign(userID int64, typ TokenType, ttl time.Duration) (string, time.Time, error) {
	now := i.now().UTC()
	expires := now.Add(ttl)
	claims := Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expires, nil
}

func (i *TokenIssuer) validate(raw string, want TokenType) Result {
	claims, reason := parseClaims(i.secret, raw, want, i.now)
	if reason != ReasonOK {
		return rejected(reason)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return rejected(ReasonMalformed)
	}

	identity := Identity{UserID: userID, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return Result{Identity: identity, Reason: ReasonOK}
}

func parseClaims(secret []byte, raw string, want TokenType, now func() time.Time) (*Claims, Reason) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ReasonMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ReasonExpired
		}
		return nil, ReasonMalformed
	}

	if claims.Type != want {
		return nil, ReasonWrongType
	}
	return claims, ReasonOK
}

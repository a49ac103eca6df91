package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// ErrInvalidUID indicates the uidb64 part of a confirmation link could not be decoded.
var ErrInvalidUID = errors.New("invalid uid")

// ConfirmationTokens issues the uidb64/token pairs embedded in activation and password
// reset links. A token is bound to the user's id, email and password hash, so a reset
// link stops working once the password it was issued for has been changed.
type ConfirmationTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewConfirmationTokens constructs a ConfirmationTokens signer.
func NewConfirmationTokens(secret string, ttl time.Duration) *ConfirmationTokens {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &ConfirmationTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Make returns the uidb64 and token for the given purpose.
func (c *ConfirmationTokens) Make(user models.User, purpose TokenType) (string, string, error) {
	if purpose != TokenActivation && purpose != TokenPasswordReset {
		return "", "", fmt.Errorf("unsupported confirmation purpose %q", purpose)
	}

	now := c.now().UTC()
	claims := Claims{
		Type:        purpose,
		Fingerprint: c.fingerprint(user, purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return EncodeUID(user.ID), token, nil
}

// Check reports whether token was issued for user and purpose and is still valid.
func (c *ConfirmationTokens) Check(user models.User, purpose TokenType, token string) bool {
	claims, reason := parseClaims(c.secret, token, purpose, c.now)
	if reason != ReasonOK {
		return false
	}
	if claims.Subject != strconv.FormatInt(user.ID, 10) {
		return false
	}
	return hmac.Equal([]byte(claims.Fingerprint), []byte(c.fingerprint(user, purpose)))
}

func (c *ConfirmationTokens) fingerprint(user models.User, purpose TokenType) string {
	mac := hmac.New(sha256.New, c.secret)
	fmt.Fprintf(mac, "%d|%s|%s|%s", user.ID, user.Email, user.Password, purpose)
	return hex.EncodeToString(mac.Sum(nil))
}

// EncodeUID renders a user id the way it appears in confirmation links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(uidb64 string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(uidb64)
	if err != nil {
		return 0, ErrInvalidUID
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidUID
	}
	return id, nil
}

package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// UserStore captures the persistence operations required by the account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	SetActive(ctx context.Context, id int64) error
	SetPassword(ctx context.Context, id int64, passwordHash string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// TokenService issues, refreshes and revokes the cookie credentials.
type TokenService interface {
	IssuePair(userID int64) (models.TokenPair, error)
	Rotate(ctx context.Context, rawRefresh string) (string, time.Time, auth.Result)
	Revoke(ctx context.Context, rawRefresh string) error
}

// ConfirmationService produces and checks activation and password reset links.
type ConfirmationService interface {
	Make(user models.User, purpose auth.TokenType) (string, string, error)
	Check(user models.User, purpose auth.TokenType, token string) bool
}

// Authenticator resolves requests to an identity without failing them.
type Authenticator interface {
	Resolve(r *http.Request) auth.Result
	ResolveCookie(r *http.Request) auth.Result
}

// VideoStore captures the video record operations.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) (models.Video, error)
	List(ctx context.Context) ([]models.Video, error)
	UpdateMetadata(ctx context.Context, id int64, meta models.VideoMetadata) (models.Video, error)
	Delete(ctx context.Context, id int64) (models.Video, error)
}

// VideoLookup answers whether a video record exists.
type VideoLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// MediaFiles stores uploaded files below the media root.
type MediaFiles interface {
	Save(ctx context.Context, dir, originalName string, r io.Reader) (string, error)
	Path(name string) (string, bool)
	Remove(name string) error
}

// VideoLifecycle reacts to video records being created or deleted.
type VideoLifecycle interface {
	VideoCreated(ctx context.Context, video models.Video) error
	VideoDeleted(ctx context.Context, video models.Video) error
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

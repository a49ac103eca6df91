package repositories

import (
	"errors"
	"fmt"

	"github.com/leo-rullani/backend-video-flix/internal/auth"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")

	// errUserNotFound also satisfies auth.ErrUserNotFound so the credential gate can
	// tell a deleted account from a failing database.
	errUserNotFound = fmt.Errorf("%w: %w", ErrNotFound, auth.ErrUserNotFound)
)

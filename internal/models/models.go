package models

import "time"

// User represents an account within the Videoflix platform.
type User struct {
	ID        int64
	Email     string
	Password  string
	IsActive  bool
	IsStaff   bool
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Video is the catalog record for an uploaded source file. Renditions are
// derived from SourcePath and are not stored here.
type Video struct {
	ID          int64
	Title       string
	Description string
	Category    string
	SourcePath  string
	Thumbnail   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasSource reports whether the record references a source file that can be transcoded.
func (v Video) HasSource() bool {
	return v.SourcePath != ""
}

// VideoMetadata holds the editable fields of a video record.
type VideoMetadata struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
}

// PublicVideo is the catalog view returned to authenticated clients.
type PublicVideo struct {
	ID           int64   `json:"id"`
	CreatedAt    string  `json:"created_at"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Category     string  `json:"category"`
}

// TokenPair groups the credentials issued to a user at login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

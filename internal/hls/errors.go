package hls

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceMissing indicates the source path is not a readable regular file.
	ErrSourceMissing = errors.New("source file missing")
	// ErrEncoderFailed indicates the encoder exited non-zero or produced no playlist.
	ErrEncoderFailed = errors.New("encoder failed")
	// ErrEncodeTimeout indicates the encoder did not finish before its deadline.
	ErrEncodeTimeout = errors.New("encoder deadline exceeded")
)

// EncodeError identifies the video and resolution whose rendition could not be produced.
type EncodeError struct {
	VideoID    int64
	Resolution string
	Err        error
	// Output holds the tail of the encoder's combined output, when available.
	Output string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode video %d at %s: %v", e.VideoID, e.Resolution, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

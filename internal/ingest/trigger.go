package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leo-rullani/backend-video-flix/internal/jobs"
	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/models"
)

// SourceCleaner removes a video's source file and rendition tree.
type SourceCleaner interface {
	Remove(videoID int64, sourcePath string) ([]string, error)
}

// ThumbnailRemover deletes stored thumbnails by their media-relative name.
type ThumbnailRemover interface {
	Remove(name string) error
}

// PrefixDeleter removes mirrored renditions below a key prefix.
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// CacheForgetter drops cached lookups for a video.
type CacheForgetter interface {
	Forget(id int64)
}

// Trigger reacts to video record lifecycle events: new records get their renditions
// scheduled, deleted records get their files removed.
type Trigger struct {
	submitter  jobs.Submitter
	cleaner    SourceCleaner
	thumbnails ThumbnailRemover
	mirror     PrefixDeleter
	cache      CacheForgetter
	logger     *slog.Logger
}

// Option customises a Trigger.
type Option func(*Trigger)

// WithThumbnails removes thumbnails alongside the video files.
func WithThumbnails(remover ThumbnailRemover) Option {
	return func(t *Trigger) { t.thumbnails = remover }
}

// WithMirror deletes mirrored renditions on video removal.
func WithMirror(mirror PrefixDeleter) Option {
	return func(t *Trigger) { t.mirror = mirror }
}

// WithCache invalidates cached existence lookups on video removal.
func WithCache(cache CacheForgetter) Option {
	return func(t *Trigger) { t.cache = cache }
}

// NewTrigger constructs a Trigger submitting work through submitter.
func NewTrigger(submitter jobs.Submitter, cleaner SourceCleaner, logger *slog.Logger, opts ...Option) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Trigger{submitter: submitter, cleaner: cleaner, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// VideoCreated schedules rendition generation for a newly stored video. Records
// without a source file are ignored. The request path only waits for the submit, so
// with a queue the renditions appear later.
func (t *Trigger) VideoCreated(ctx context.Context, video models.Video) error {
	logger := t.loggerFor(ctx).With("video_id", video.ID)
	if !video.HasSource() {
		logger.Info("video has no source file, nothing to transcode")
		return nil
	}
	if t.submitter == nil {
		return errors.New("ingest trigger: no job submitter configured")
	}

	job := jobs.TranscodeJob{VideoID: video.ID, SourcePath: video.SourcePath}
	if err := t.submitter.Submit(ctx, job); err != nil {
		return fmt.Errorf("submit transcode for video %d: %w", video.ID, err)
	}
	logger.Info("transcode submitted", "source", video.SourcePath)
	return nil
}

// VideoDeleted removes the files that belonged to a deleted record. Mirror and cache
// failures are logged only; filesystem failures are returned.
func (t *Trigger) VideoDeleted(ctx context.Context, video models.Video) error {
	logger := t.loggerFor(ctx).With("video_id", video.ID)

	if t.cache != nil {
		t.cache.Forget(video.ID)
	}

	var errs []error
	if t.cleaner != nil {
		removed, err := t.cleaner.Remove(video.ID, video.SourcePath)
		if err != nil {
			errs = append(errs, err)
		}
		if len(removed) > 0 {
			logger.Info("removed video files", "paths", removed)
		}
	}

	if t.thumbnails != nil && video.Thumbnail != "" {
		if err := t.thumbnails.Remove(video.Thumbnail); err != nil {
			errs = append(errs, fmt.Errorf("remove thumbnail: %w", err))
		}
	}

	if t.mirror != nil {
		prefix := strconv.FormatInt(video.ID, 10) + "/"
		if err := t.mirror.DeletePrefix(ctx, prefix); err != nil {
			logger.Warn("delete mirrored renditions", "prefix", prefix, "error", err)
		}
	}

	return errors.Join(errs...)
}

func (t *Trigger) loggerFor(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != slog.Default() {
		return logger
	}
	return t.logger
}

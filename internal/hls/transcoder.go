package hls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/metrics"
)

const (
	defaultEncodeTimeout = 30 * time.Minute
	lockRetryDelay       = 250 * time.Millisecond
	outputTailBytes      = 2048
)

// CommandRunner executes external commands and returns their combined output.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// Mirror receives completed rendition directories, e.g. an object store.
type Mirror interface {
	UploadDir(ctx context.Context, localDir, prefix string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// Request describes one transcode job.
type Request struct {
	VideoID    int64
	SourcePath string
	Overwrite  bool
}

// Report lists what a transcode job did per resolution.
type Report struct {
	VideoID   int64
	Generated []string
	Skipped   []string
}

// Transcoder produces the HLS renditions of a source file with ffmpeg.
type Transcoder struct {
	Layout  Layout
	Binary  string
	Timeout time.Duration
	Run     CommandRunner
	Mirror  Mirror
}

// NewTranscoder constructs a Transcoder writing below layout.Root.
func NewTranscoder(layout Layout, binary string, timeout time.Duration) *Transcoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = defaultEncodeTimeout
	}
	return &Transcoder{
		Layout:  layout,
		Binary:  binary,
		Timeout: timeout,
		Run:     defaultCommandRunner,
	}
}

// Transcode generates every missing rendition of the video. Completed renditions are
// skipped unless req.Overwrite is set, in which case their directories are purged and
// regenerated. The first failing resolution aborts the job; its partial output stays
// on disk but is never visible as a playlist.
func (t *Transcoder) Transcode(ctx context.Context, req Request) (Report, error) {
	report := Report{VideoID: req.VideoID}
	if req.VideoID <= 0 {
		return report, errors.New("video id must be provided")
	}

	if !sourceExists(req.SourcePath) {
		return report, fmt.Errorf("%w: %s", ErrSourceMissing, req.SourcePath)
	}

	ctx, span := logging.StartSpan(ctx, "hls.transcode")
	defer span.End()
	logger := logging.FromContext(ctx).With(slog.Int64("video_id", req.VideoID))

	videoDir := t.Layout.VideoDir(req.VideoID)
	if err := os.MkdirAll(videoDir, 0o755); err != nil {
		return report, fmt.Errorf("create video directory: %w", err)
	}

	lock := flock.New(filepath.Join(videoDir, lockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		return report, fmt.Errorf("lock video %d: %w", req.VideoID, errors.Join(err, ctx.Err()))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("release transcode lock", "error", err)
		}
	}()

	metrics.TranscodesInProgress.Inc()
	defer metrics.TranscodesInProgress.Dec()

	for _, res := range Resolutions {
		if !req.Overwrite && t.Layout.IsComplete(req.VideoID, res) {
			logger.Info("rendition already present, skipping", "resolution", res.Label)
			metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "skipped").Inc()
			report.Skipped = append(report.Skipped, res.Label)
			continue
		}

		// the video may have been deleted while an earlier rendition was encoding
		if !sourceExists(req.SourcePath) {
			err := fmt.Errorf("%w: %s", ErrSourceMissing, req.SourcePath)
			t.discard(videoDir, logger)
			span.Fail(err)
			return report, err
		}

		if err := t.encode(ctx, req, res); err != nil {
			logger.Error("rendition failed", "resolution", res.Label, "error", err)
			if !sourceExists(req.SourcePath) {
				t.discard(videoDir, logger)
			}
			span.Fail(err)
			return report, err
		}

		logger.Info("rendition generated", "resolution", res.Label)
		metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "generated").Inc()
		report.Generated = append(report.Generated, res.Label)

		if t.Mirror != nil {
			dir := t.Layout.RenditionDir(req.VideoID, res)
			if err := t.Mirror.UploadDir(ctx, dir, t.Layout.MirrorPrefix(req.VideoID, res)); err != nil {
				logger.Warn("mirror rendition failed", "resolution", res.Label, "error", err)
			}
		}
	}

	return report, nil
}

func (t *Transcoder) encode(ctx context.Context, req Request, res Resolution) error {
	ctx, span := logging.StartSpan(ctx, "hls.rendition."+res.Label)
	defer span.End()

	err := t.encodeRendition(ctx, req, res)
	span.Fail(err)
	return err
}

func (t *Transcoder) encodeRendition(ctx context.Context, req Request, res Resolution) error {
	dir := t.Layout.RenditionDir(req.VideoID, res)
	if err := os.RemoveAll(dir); err != nil {
		return &EncodeError{VideoID: req.VideoID, Resolution: res.Label, Err: fmt.Errorf("purge rendition directory: %w", err)}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &EncodeError{VideoID: req.VideoID, Resolution: res.Label, Err: fmt.Errorf("create rendition directory: %w", err)}
	}

	run := t.Run
	if run == nil {
		run = defaultCommandRunner
	}

	runCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	start := time.Now()
	out, err := run(runCtx, t.Binary, t.args(req.SourcePath, dir, res)...)
	metrics.TranscodeDuration.WithLabelValues(res.Label).Observe(time.Since(start).Seconds())

	if err != nil {
		encErr := &EncodeError{VideoID: req.VideoID, Resolution: res.Label, Output: tail(out)}
		switch {
		case ctx.Err() != nil:
			encErr.Err = ctx.Err()
			metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "failed").Inc()
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			encErr.Err = fmt.Errorf("%w after %s", ErrEncodeTimeout, t.Timeout)
			metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "timeout").Inc()
		default:
			encErr.Err = fmt.Errorf("%w: %v", ErrEncoderFailed, err)
			metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "failed").Inc()
		}
		return encErr
	}

	partial := filepath.Join(dir, partialPlaylistName)
	if err := os.Rename(partial, filepath.Join(dir, PlaylistName)); err != nil {
		metrics.TranscodeRenditionsTotal.WithLabelValues(res.Label, "failed").Inc()
		return &EncodeError{
			VideoID:    req.VideoID,
			Resolution: res.Label,
			Err:        fmt.Errorf("%w: publish playlist: %v", ErrEncoderFailed, err),
			Output:     tail(out),
		}
	}

	return nil
}

// discard removes a rendition tree whose source disappeared mid-job, so a
// concurrent delete does not leave directories recreated by the encoder behind.
func (t *Transcoder) discard(videoDir string, logger *slog.Logger) {
	if err := os.RemoveAll(videoDir); err != nil {
		logger.Warn("remove renditions of deleted video", "error", err)
		return
	}
	logger.Info("source removed during transcode, renditions discarded")
}

func sourceExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// args builds the ffmpeg invocation. The playlist is written under a hidden name and
// renamed into place once every segment exists.
func (t *Transcoder) args(source, dir string, res Resolution) []string {
	return []string{
		"-y",
		"-i", source,
		"-vf", "scale=-2:" + strconv.Itoa(res.Height),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-ac", "2",
		"-f", "hls",
		"-hls_time", strconv.Itoa(SegmentDuration),
		"-hls_playlist_type", "vod",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", filepath.Join(dir, segmentPattern),
		filepath.Join(dir, partialPlaylistName),
	}
}

func tail(out []byte) string {
	if len(out) > outputTailBytes {
		out = out[len(out)-outputTailBytes:]
	}
	return strings.TrimSpace(string(out))
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}

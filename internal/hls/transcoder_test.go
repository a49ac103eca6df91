package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeEncoder mimics ffmpeg's HLS muxer: it writes numbered segments next to the
// playlist path passed as the final argument.
type fakeEncoder struct {
	calls  atomic.Int32
	failOn string
	before func(call int32)
	mu     sync.Mutex
	args   [][]string
}

func (f *fakeEncoder) run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	call := f.calls.Add(1)
	if f.before != nil {
		f.before(call)
	}
	f.mu.Lock()
	f.args = append(f.args, append([]string{binary}, args...))
	f.mu.Unlock()

	var segmentPattern string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-hls_segment_filename" {
			segmentPattern = args[i+1]
		}
	}
	playlist := args[len(args)-1]

	if f.failOn != "" && strings.Contains(playlist, string(filepath.Separator)+f.failOn+string(filepath.Separator)) {
		if err := os.WriteFile(fmt.Sprintf(segmentPattern, 0), []byte("partial"), 0o644); err != nil {
			return nil, err
		}
		return []byte("Conversion failed!"), errors.New("exit status 1")
	}

	var body strings.Builder
	body.WriteString("#EXTM3U\n#EXT-X-PLAYLIST-TYPE:VOD\n")
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(fmt.Sprintf(segmentPattern, i), []byte("segment"), 0o644); err != nil {
			return nil, err
		}
		fmt.Fprintf(&body, "#EXTINF:10.0,\n%03d.ts\n", i)
	}
	body.WriteString("#EXT-X-ENDLIST\n")
	return nil, os.WriteFile(playlist, []byte(body.String()), 0o644)
}

func newTestTranscoder(t *testing.T, enc *fakeEncoder) (*Transcoder, string) {
	t.Helper()
	root := t.TempDir()
	source := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(source, []byte("source"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	tr := NewTranscoder(Layout{Root: root}, "ffmpeg", time.Minute)
	tr.Run = enc.run
	return tr, source
}

func TestTranscodeGeneratesAllRenditions(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)

	report, err := tr.Transcode(context.Background(), Request{VideoID: 7, SourcePath: source})
	if err != nil {
		t.Fatalf("transcode: %v", err)
	}
	if len(report.Generated) != 3 || len(report.Skipped) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, res := range Resolutions {
		if !tr.Layout.IsComplete(7, res) {
			t.Fatalf("expected %s playlist", res.Label)
		}
		dir := tr.Layout.RenditionDir(7, res)
		if _, err := os.Stat(filepath.Join(dir, partialPlaylistName)); !os.IsNotExist(err) {
			t.Fatalf("expected partial playlist to be renamed for %s, got %v", res.Label, err)
		}
		if _, err := os.Stat(filepath.Join(dir, "001.ts")); err != nil {
			t.Fatalf("expected segment for %s: %v", res.Label, err)
		}
	}

	wantPlaylist := filepath.Join(tr.Layout.Root, "7", "720p", "index.m3u8")
	if _, err := os.Stat(wantPlaylist); err != nil {
		t.Fatalf("expected %s: %v", wantPlaylist, err)
	}

	args := strings.Join(enc.args[1], " ")
	for _, want := range []string{"-i " + source, "scale=-2:720", "-c:v libx264", "-c:a aac", "-hls_time 10", "-hls_playlist_type vod", "%03d.ts"} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in encoder args: %s", want, args)
		}
	}
	if enc.args[1][0] != "ffmpeg" {
		t.Fatalf("expected ffmpeg binary, got %s", enc.args[1][0])
	}
}

func TestTranscodeIsIdempotent(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)
	ctx := context.Background()

	if _, err := tr.Transcode(ctx, Request{VideoID: 3, SourcePath: source}); err != nil {
		t.Fatalf("first transcode: %v", err)
	}
	before := snapshot(t, tr.Layout.VideoDir(3))

	report, err := tr.Transcode(ctx, Request{VideoID: 3, SourcePath: source})
	if err != nil {
		t.Fatalf("second transcode: %v", err)
	}
	if len(report.Skipped) != 3 || len(report.Generated) != 0 {
		t.Fatalf("expected all renditions skipped: %+v", report)
	}
	if got := enc.calls.Load(); got != 3 {
		t.Fatalf("expected encoder to run 3 times in total, got %d", got)
	}

	after := snapshot(t, tr.Layout.VideoDir(3))
	if len(before) != len(after) {
		t.Fatalf("artifact set changed: %v vs %v", before, after)
	}
	for path, mod := range before {
		if !after[path].Equal(mod) {
			t.Fatalf("artifact %s rewritten", path)
		}
	}
}

func TestTranscodeOverwritePurges(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)
	ctx := context.Background()

	if _, err := tr.Transcode(ctx, Request{VideoID: 4, SourcePath: source}); err != nil {
		t.Fatalf("first transcode: %v", err)
	}
	stale := filepath.Join(tr.Layout.RenditionDir(4, Resolutions[0]), "099.ts")
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatalf("write stale: %v", err)
	}

	report, err := tr.Transcode(ctx, Request{VideoID: 4, SourcePath: source, Overwrite: true})
	if err != nil {
		t.Fatalf("overwrite transcode: %v", err)
	}
	if len(report.Generated) != 3 {
		t.Fatalf("expected all renditions regenerated: %+v", report)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale segment purged, got %v", err)
	}
	if got := enc.calls.Load(); got != 6 {
		t.Fatalf("expected 6 encoder runs, got %d", got)
	}
}

func TestTranscodeFailureAbortsAndResumes(t *testing.T) {
	enc := &fakeEncoder{failOn: "720p"}
	tr, source := newTestTranscoder(t, enc)
	ctx := context.Background()

	report, err := tr.Transcode(ctx, Request{VideoID: 9, SourcePath: source})
	if err == nil {
		t.Fatal("expected encoder failure")
	}

	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodeError, got %T %v", err, err)
	}
	if encErr.VideoID != 9 || encErr.Resolution != "720p" {
		t.Fatalf("unexpected error identity: %+v", encErr)
	}
	if !errors.Is(err, ErrEncoderFailed) || errors.Is(err, ErrEncodeTimeout) {
		t.Fatalf("expected ErrEncoderFailed, got %v", err)
	}
	if !strings.Contains(encErr.Output, "Conversion failed") {
		t.Fatalf("expected encoder output captured, got %q", encErr.Output)
	}
	if len(report.Generated) != 1 || report.Generated[0] != "480p" {
		t.Fatalf("unexpected report: %+v", report)
	}

	res720, _ := ParseResolution("720p")
	res1080, _ := ParseResolution("1080p")
	if tr.Layout.IsComplete(9, res720) {
		t.Fatal("failed rendition must not expose a playlist")
	}
	if _, err := os.Stat(filepath.Join(tr.Layout.RenditionDir(9, res720), "000.ts")); err != nil {
		t.Fatalf("expected partial output left on disk: %v", err)
	}
	if _, err := os.Stat(tr.Layout.RenditionDir(9, res1080)); !os.IsNotExist(err) {
		t.Fatalf("expected 1080p not attempted, got %v", err)
	}

	enc.failOn = ""
	report, err = tr.Transcode(ctx, Request{VideoID: 9, SourcePath: source})
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if len(report.Skipped) != 1 || len(report.Generated) != 2 {
		t.Fatalf("expected rerun to finish remaining renditions: %+v", report)
	}
}

func TestTranscodeTimeout(t *testing.T) {
	tr, source := newTestTranscoder(t, &fakeEncoder{})
	tr.Timeout = 20 * time.Millisecond
	tr.Run = func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := tr.Transcode(context.Background(), Request{VideoID: 1, SourcePath: source})
	if !errors.Is(err, ErrEncodeTimeout) {
		t.Fatalf("expected ErrEncodeTimeout, got %v", err)
	}
	if errors.Is(err, ErrEncoderFailed) {
		t.Fatal("timeout must be distinct from encoder failure")
	}
	var encErr *EncodeError
	if !errors.As(err, &encErr) || encErr.Resolution != "480p" {
		t.Fatalf("expected EncodeError for 480p, got %v", err)
	}
}

func TestTranscodeMissingPlaylist(t *testing.T) {
	tr, source := newTestTranscoder(t, &fakeEncoder{})
	tr.Run = func(context.Context, string, ...string) ([]byte, error) { return nil, nil }

	if _, err := tr.Transcode(context.Background(), Request{VideoID: 2, SourcePath: source}); !errors.Is(err, ErrEncoderFailed) {
		t.Fatalf("expected ErrEncoderFailed, got %v", err)
	}
}

func TestTranscodeSourceMissing(t *testing.T) {
	enc := &fakeEncoder{}
	tr, _ := newTestTranscoder(t, enc)

	_, err := tr.Transcode(context.Background(), Request{VideoID: 5, SourcePath: filepath.Join(t.TempDir(), "missing.mp4")})
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
	if _, err := tr.Transcode(context.Background(), Request{VideoID: 5, SourcePath: t.TempDir()}); !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected directory source to be rejected, got %v", err)
	}
	if enc.calls.Load() != 0 {
		t.Fatal("encoder must not run without a source")
	}
}

func TestTranscodeConcurrentRunsDoNotDuplicateWork(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Transcode(context.Background(), Request{VideoID: 11, SourcePath: source})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("transcode: %v", err)
		}
	}
	if got := enc.calls.Load(); got != 3 {
		t.Fatalf("expected one encoder run per resolution, got %d", got)
	}
}

type recordingMirror struct {
	mu       sync.Mutex
	uploaded []string
	err      error
}

func (m *recordingMirror) UploadDir(_ context.Context, _ string, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded = append(m.uploaded, prefix)
	return m.err
}

func (m *recordingMirror) DeletePrefix(context.Context, string) error { return nil }

func TestTranscodeMirrorsRenditions(t *testing.T) {
	tr, source := newTestTranscoder(t, &fakeEncoder{})
	mirror := &recordingMirror{err: errors.New("bucket unavailable")}
	tr.Mirror = mirror

	if _, err := tr.Transcode(context.Background(), Request{VideoID: 12, SourcePath: source}); err != nil {
		t.Fatalf("mirror failures must not fail the job: %v", err)
	}
	want := []string{"12/480p", "12/720p", "12/1080p"}
	if strings.Join(mirror.uploaded, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected mirror prefixes: %v", mirror.uploaded)
	}
}

func snapshot(t *testing.T, root string) map[string]time.Time {
	t.Helper()
	files := make(map[string]time.Time)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() == lockFileName {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		files[path] = info.ModTime()
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return files
}

func TestTranscodeDiscardsTreeWhenVideoDeletedDuringEncode(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)
	cleaner := Cleaner{Layout: tr.Layout}
	enc.before = func(call int32) {
		if call == 1 {
			if _, err := cleaner.Remove(3, source); err != nil {
				t.Errorf("remove: %v", err)
			}
		}
	}

	_, err := tr.Transcode(context.Background(), Request{VideoID: 3, SourcePath: source})
	if !errors.Is(err, ErrEncoderFailed) {
		t.Fatalf("expected encoder failure, got %v", err)
	}
	if _, err := os.Stat(tr.Layout.VideoDir(3)); !os.IsNotExist(err) {
		t.Fatalf("expected no rendition tree left behind, got %v", err)
	}
	if enc.calls.Load() != 1 {
		t.Fatalf("expected remaining renditions to be abandoned, got %d encoder runs", enc.calls.Load())
	}
}

func TestTranscodeStopsWhenSourceRemovedBetweenRenditions(t *testing.T) {
	enc := &fakeEncoder{}
	tr, source := newTestTranscoder(t, enc)
	enc.before = func(call int32) {
		if call == 1 {
			if err := os.Remove(source); err != nil {
				t.Errorf("remove source: %v", err)
			}
		}
	}

	report, err := tr.Transcode(context.Background(), Request{VideoID: 4, SourcePath: source})
	if !errors.Is(err, ErrSourceMissing) {
		t.Fatalf("expected ErrSourceMissing, got %v", err)
	}
	if len(report.Generated) != 1 || enc.calls.Load() != 1 {
		t.Fatalf("expected one rendition before stopping, got %+v after %d runs", report, enc.calls.Load())
	}
	if _, err := os.Stat(tr.Layout.VideoDir(4)); !os.IsNotExist(err) {
		t.Fatalf("expected rendition tree discarded, got %v", err)
	}
}

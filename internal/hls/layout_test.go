package hls

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseResolution(t *testing.T) {
	for _, label := range []string{"480p", "720p", "1080p"} {
		if res, ok := ParseResolution(label); !ok || res.Label != label {
			t.Fatalf("expected %s to parse, got %+v %v", label, res, ok)
		}
	}
	for _, label := range []string{"4k", "720P", "", " 720p", "360p"} {
		if _, ok := ParseResolution(label); ok {
			t.Fatalf("expected %q to be rejected", label)
		}
	}
}

func TestValidSegmentName(t *testing.T) {
	tests := map[string]bool{
		"000.ts":              true,
		"index.m3u8":          true,
		"":                    false,
		"../secret.ts":        false,
		"..":                  false,
		"a/b.ts":              false,
		`a\b.ts`:              false,
		"..%2f":               false,
		".index.m3u8.partial": false,
		".lock":               false,
	}
	for name, want := range tests {
		if got := ValidSegmentName(name); got != want {
			t.Fatalf("ValidSegmentName(%q) = %v want %v", name, got, want)
		}
	}
}

func TestLayoutPaths(t *testing.T) {
	layout := Layout{Root: "/srv/hls"}
	res, _ := ParseResolution("720p")

	if got := layout.PlaylistPath(7, res); got != filepath.Join("/srv/hls", "7", "720p", "index.m3u8") {
		t.Fatalf("unexpected playlist path %s", got)
	}
	if got, ok := layout.SegmentPath(7, res, "003.ts"); !ok || got != filepath.Join("/srv/hls", "7", "720p", "003.ts") {
		t.Fatalf("unexpected segment path %s %v", got, ok)
	}
	if _, ok := layout.SegmentPath(7, res, "../../8/720p/000.ts"); ok {
		t.Fatal("expected traversal to be rejected")
	}
	if got := layout.MirrorPrefix(7, res); got != "7/720p" {
		t.Fatalf("unexpected mirror prefix %s", got)
	}
}

func TestLayoutIsComplete(t *testing.T) {
	layout := Layout{Root: t.TempDir()}
	res, _ := ParseResolution("480p")

	if layout.IsComplete(1, res) {
		t.Fatal("expected incomplete without directory")
	}
	dir := layout.RenditionDir(1, res)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, partialPlaylistName), []byte("#EXTM3U"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	if layout.IsComplete(1, res) {
		t.Fatal("partial playlist must not count as complete")
	}
	if err := os.WriteFile(filepath.Join(dir, PlaylistName), []byte("#EXTM3U"), 0o644); err != nil {
		t.Fatalf("write playlist: %v", err)
	}
	if !layout.IsComplete(1, res) {
		t.Fatal("expected complete rendition")
	}
}

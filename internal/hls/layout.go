package hls

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// PlaylistName is the file every completed rendition directory contains.
	PlaylistName = "index.m3u8"
	// SegmentDuration is the target length of each media segment in seconds.
	SegmentDuration = 10

	partialPlaylistName = ".index.m3u8.partial"
	segmentPattern      = "%03d.ts"
	lockFileName        = ".lock"
)

// Resolution is one fixed rendition tier.
type Resolution struct {
	Label  string
	Height int
}

// Resolutions lists the rendition tiers in the order they are generated.
var Resolutions = []Resolution{
	{Label: "480p", Height: 480},
	{Label: "720p", Height: 720},
	{Label: "1080p", Height: 1080},
}

// ParseResolution looks up a tier by its exact, case-sensitive label.
func ParseResolution(label string) (Resolution, bool) {
	for _, res := range Resolutions {
		if res.Label == label {
			return res, true
		}
	}
	return Resolution{}, false
}

// Layout maps videos and resolutions onto the rendition tree:
// <root>/<video-id>/<label>/index.m3u8 plus 000.ts, 001.ts, ...
type Layout struct {
	Root string
}

// VideoDir is the directory holding every rendition of a video.
func (l Layout) VideoDir(videoID int64) string {
	return filepath.Join(l.Root, strconv.FormatInt(videoID, 10))
}

// RenditionDir is the directory of a single rendition.
func (l Layout) RenditionDir(videoID int64, res Resolution) string {
	return filepath.Join(l.VideoDir(videoID), res.Label)
}

// PlaylistPath is the completed playlist of a rendition.
func (l Layout) PlaylistPath(videoID int64, res Resolution) string {
	return filepath.Join(l.RenditionDir(videoID, res), PlaylistName)
}

// SegmentPath resolves a segment file name inside a rendition directory. It returns
// false for names that could escape the directory or address internal files.
func (l Layout) SegmentPath(videoID int64, res Resolution, name string) (string, bool) {
	if !ValidSegmentName(name) {
		return "", false
	}
	return filepath.Join(l.RenditionDir(videoID, res), name), true
}

// IsComplete reports whether the rendition's playlist is in place.
func (l Layout) IsComplete(videoID int64, res Resolution) bool {
	info, err := os.Stat(l.PlaylistPath(videoID, res))
	return err == nil && info.Mode().IsRegular()
}

// MirrorPrefix is the object key prefix of a rendition in a remote mirror.
func (l Layout) MirrorPrefix(videoID int64, res Resolution) string {
	return strconv.FormatInt(videoID, 10) + "/" + res.Label
}

// ValidSegmentName rejects empty names, path separators, parent references and
// dot files.
func ValidSegmentName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

package hls

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Cleaner removes a video's source file and everything derived from it.
type Cleaner struct {
	Layout Layout
}

// Remove deletes the source file, any legacy variant files next to it
// (<stem>_480p<ext> and so on) and the video's rendition tree. Paths that do not
// exist are not errors. It returns the paths that were actually removed.
func (c Cleaner) Remove(videoID int64, sourcePath string) ([]string, error) {
	var (
		removed []string
		errs    []error
	)

	for _, path := range variantPaths(sourcePath) {
		err := os.Remove(path)
		switch {
		case err == nil:
			removed = append(removed, path)
		case errors.Is(err, os.ErrNotExist):
		default:
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}

	if videoID > 0 {
		dir := c.Layout.VideoDir(videoID)
		if _, err := os.Stat(dir); err == nil {
			if err := os.RemoveAll(dir); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
			} else {
				removed = append(removed, dir)
			}
		}
	}

	return removed, errors.Join(errs...)
}

func variantPaths(sourcePath string) []string {
	if strings.TrimSpace(sourcePath) == "" {
		return nil
	}
	ext := filepath.Ext(sourcePath)
	stem := strings.TrimSuffix(sourcePath, ext)

	paths := []string{sourcePath}
	for _, res := range Resolutions {
		paths = append(paths, stem+"_"+res.Label+ext)
	}
	return paths
}

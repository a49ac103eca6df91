package handlers

import (
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gorilla/mux"

	"github.com/leo-rullani/backend-video-flix/internal/storage"
)

// ThumbnailHandler serves uploaded thumbnails publicly.
type ThumbnailHandler struct {
	Media MediaFiles
}

// Serve handles GET /media/thumbnails/{name}.
func (h ThumbnailHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if name == "" || strings.HasPrefix(name, ".") {
		notFound(w, r)
		return
	}

	p, ok := h.Media.Path(path.Join(storage.ThumbnailsDir, name))
	if !ok {
		notFound(w, r)
		return
	}

	f, err := os.Open(p)
	if err != nil {
		notFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		notFound(w, r)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

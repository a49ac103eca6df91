package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/leo-rullani/backend-video-flix/internal/logging"
	"github.com/leo-rullani/backend-video-flix/internal/models"
	"github.com/leo-rullani/backend-video-flix/internal/repositories"
	"github.com/leo-rullani/backend-video-flix/internal/storage"
)

const (
	maxTitleLength    = 255
	maxCategoryLength = 100
	multipartMemory   = 32 << 20
	multipartOverhead = 1 << 20
)

// AdminVideoHandler is the write path for video records. It is limited to staff users.
type AdminVideoHandler struct {
	Gate           Authenticator
	Videos         VideoStore
	Media          MediaFiles
	Lifecycle      VideoLifecycle
	MediaURL       string
	MaxUploadBytes int64
}

// Create handles POST /api/admin/videos/ with a multipart upload.
func (h AdminVideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.requireStaff(w, r) {
		return
	}

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, detail("Upload is too large."))
			return
		}
		logger.Warn("invalid video upload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}
	defer r.MultipartForm.RemoveAll()

	meta := models.VideoMetadata{
		Title:       formValue(r, "title"),
		Description: formValue(r, "description"),
		Category:    formValue(r, "category"),
	}
	if meta.Title == nil || !validMetadata(meta) {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	video := models.Video{Title: *meta.Title}
	if meta.Description != nil {
		video.Description = *meta.Description
	}
	if meta.Category != nil {
		video.Category = *meta.Category
	}

	sourceName, ok := h.saveUpload(w, r, "video_file", storage.VideosDir, true)
	if !ok {
		return
	}
	thumbName, ok := h.saveUpload(w, r, "thumbnail", storage.ThumbnailsDir, false)
	if !ok {
		h.discard(r, sourceName)
		return
	}

	sourcePath, _ := h.Media.Path(sourceName)
	video.SourcePath = sourcePath
	video.Thumbnail = thumbName

	created, err := h.Videos.Create(ctx, video)
	if err != nil {
		logger.Error("create video record failed", "error", err)
		h.discard(r, sourceName, thumbName)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to store video."))
		return
	}
	logger.Info("video created", "videoId", created.ID, "source", created.SourcePath)

	if err := h.Lifecycle.VideoCreated(ctx, created); err != nil {
		logger.Error("schedule renditions failed", "error", err, "videoId", created.ID)
	}

	respondJSON(ctx, w, http.StatusCreated, publicVideo(r, h.MediaURL, created))
}

// Update handles PATCH /api/admin/videos/{id}/. Only metadata changes; renditions are
// untouched.
func (h AdminVideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.requireStaff(w, r) {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondJSON(ctx, w, http.StatusNotFound, detail("Video not found."))
		return
	}

	var meta models.VideoMetadata
	if err := decodeJSON(w, r, &meta); err != nil || !validMetadata(meta) {
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return
	}

	updated, err := h.Videos.UpdateMetadata(ctx, id, meta)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, detail("Video not found."))
			return
		}
		logger.Error("update video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to update video."))
		return
	}

	respondJSON(ctx, w, http.StatusOK, publicVideo(r, h.MediaURL, updated))
}

// Delete handles DELETE /api/admin/videos/{id}/ and removes the record's files.
func (h AdminVideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !h.requireStaff(w, r) {
		return
	}

	id, ok := pathID(r)
	if !ok {
		respondJSON(ctx, w, http.StatusNotFound, detail("Video not found."))
		return
	}

	deleted, err := h.Videos.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, detail("Video not found."))
			return
		}
		logger.Error("delete video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to delete video."))
		return
	}

	if err := h.Lifecycle.VideoDeleted(ctx, deleted); err != nil {
		logger.Error("cleanup after delete failed", "error", err, "videoId", id)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h AdminVideoHandler) requireStaff(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	result := h.Gate.Resolve(r)
	if !result.OK() {
		respondJSON(ctx, w, http.StatusUnauthorized, detail(msgUnauthenticated))
		return false
	}
	if user := result.Identity.User; user == nil || !user.IsStaff {
		respondJSON(ctx, w, http.StatusForbidden, detail("You do not have permission to perform this action."))
		return false
	}
	return true
}

// saveUpload stores the named multipart file. A missing optional file yields "".
func (h AdminVideoHandler) saveUpload(w http.ResponseWriter, r *http.Request, field, dir string, required bool) (string, bool) {
	ctx := r.Context()

	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) && !required {
			return "", true
		}
		respondJSON(ctx, w, http.StatusBadRequest, detail(msgGenericInput))
		return "", false
	}
	defer file.Close()

	name, err := h.Media.Save(ctx, dir, uploadName(header), file)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, detail("Upload is too large."))
			return "", false
		}
		logging.FromContext(ctx).Error("store upload failed", "error", err, "field", field)
		respondJSON(ctx, w, http.StatusInternalServerError, detail("Unable to store upload."))
		return "", false
	}
	return name, true
}

func (h AdminVideoHandler) discard(r *http.Request, names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := h.Media.Remove(name); err != nil {
			logging.FromContext(r.Context()).Warn("discard upload failed", "error", err, "name", name)
		}
	}
}

func uploadName(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Filename
}

func formValue(r *http.Request, key string) *string {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func validMetadata(meta models.VideoMetadata) bool {
	if meta.Title != nil && (*meta.Title == "" || utf8.RuneCountInString(*meta.Title) > maxTitleLength) {
		return false
	}
	if meta.Category != nil && utf8.RuneCountInString(*meta.Category) > maxCategoryLength {
		return false
	}
	return true
}

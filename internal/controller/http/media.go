package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DinhCNTT/unimarket-chat/internal/httpx/response"
	"github.com/DinhCNTT/unimarket-chat/internal/storage"
)

// MaxUploadSize is the maximum allowed upload size (50MB)
const MaxUploadSize = 50 << 20

// MediaStorage defines the interface for the chat media store
type MediaStorage interface {
	Upload(ctx context.Context, in storage.UploadInput) (*storage.UploadOutput, error)
	Promote(ctx context.Context, key string) (string, error)
	URLFor(key string) string
}

// MediaHandler handles chat media upload HTTP requests
type MediaHandler struct {
	store MediaStorage
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(store MediaStorage) *MediaHandler {
	return &MediaHandler{store: store}
}

// RegisterRoutes registers media routes
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/media", h.Upload())
	r.Post("/chat/media/promote", h.Promote())
}

// UploadResponse represents the response from upload endpoint. The key points
// into temporary storage until the client promotes it.
type UploadResponse struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}

// Upload handles POST /chat/media
func (h *MediaHandler) Upload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

		if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
			response.BadRequest(w, "file too large or invalid multipart form")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			response.BadRequest(w, "missing file in request")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !isAllowedMediaType(contentType) {
			response.BadRequest(w, fmt.Sprintf("unsupported media type: %s", contentType))
			return
		}

		result, err := h.store.Upload(r.Context(), storage.UploadInput{
			Reader:      file,
			ContentType: contentType,
			Size:        header.Size,
			Filename:    header.Filename,
		})
		if err != nil {
			response.InternalError(w, "failed to upload file")
			return
		}

		response.Created(w, UploadResponse{
			URL:  result.URL,
			Key:  result.Key,
			Size: result.Size,
		})
	}
}

// PromoteRequest identifies a temporary object to move to permanent storage
type PromoteRequest struct {
	Key string `json:"key"`
}

// Promote handles POST /chat/media/promote
func (h *MediaHandler) Promote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PromoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
			response.BadRequest(w, "key is required")
			return
		}

		key, err := h.store.Promote(r.Context(), req.Key)
		if err != nil {
			response.InternalError(w, "failed to promote object")
			return
		}

		response.OK(w, UploadResponse{Key: key, URL: h.store.URLFor(key)})
	}
}

// isAllowedMediaType checks if the content type is allowed for upload
func isAllowedMediaType(contentType string) bool {
	allowed := []string{
		"image/jpeg",
		"image/png",
		"image/gif",
		"image/webp",
		"video/mp4",
		"video/quicktime",
	}

	for _, a := range allowed {
		if strings.EqualFold(contentType, a) {
			return true
		}
	}
	return false
}

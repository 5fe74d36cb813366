package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
)

const maxJSONBody = 1 << 20

// flexString accepts ids sent either as JSON strings or numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s, err := scalarString(b)
	*f = flexString(strings.TrimSpace(s))
	return err
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

type shortsResponse struct {
	Success bool          `json:"success"`
	Shorts  []VideoRecord `json:"shorts"`
	Skipped int           `json:"skipped"`
}

// handleShorts handles GET /api/shorts[?userId=] - list shorts newest first
func (s *server) handleShorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		slog.Info("invalid method", "route", "shorts", "method", r.Method)
		sendJSONError(w, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.ShortsTimeout)
	defer cancel()

	ownerID := r.URL.Query().Get("userId")
	res, err := s.Aggregator.Aggregate(ctx, ownerID)
	if err != nil {
		slog.Error("failed to fetch shorts", "owner_id", ownerID, "error", err)
		sendJSONError(w, "Failed to fetch shorts", err.Error(), http.StatusInternalServerError)
		return
	}

	shorts := res.Shorts
	if shorts == nil {
		shorts = []VideoRecord{}
	}
	if res.Skipped > 0 {
		slog.Warn("some metadata objects were skipped", "skipped", res.Skipped)
	}
	sendJSON(w, shortsResponse{Success: true, Shorts: shorts, Skipped: res.Skipped}, http.StatusOK)
}

type uploadURLResponse struct {
	UploadURL   string `json:"uploadUrl"`
	UploadToken string `json:"uploadToken"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
}

// handleUpload handles POST /api/upload - hand out a B2 upload URL for a new video
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Filename    string     `json:"filename"`
		ContentType string     `json:"contentType"`
		UserID      flexString `json:"userId"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		sendJSONError(w, "Missing parameters", err.Error(), http.StatusBadRequest)
		return
	}
	filename := path.Base(strings.TrimSpace(body.Filename))
	if filename == "." || filename == "/" || body.ContentType == "" || body.UserID == "" {
		sendJSONError(w, "Missing parameters", "", http.StatusBadRequest)
		return
	}

	target, err := s.Uploader.GetUploadURL(r.Context())
	if err != nil {
		slog.Error("failed to get upload url", "owner_id", body.UserID, "error", err)
		sendJSONError(w, "Failed to get upload URL", err.Error(), http.StatusInternalServerError)
		return
	}

	key := UploadKey(string(body.UserID), s.Now().UnixMilli(), filename)
	sendJSON(w, uploadURLResponse{
		UploadURL:   target.UploadURL,
		UploadToken: target.AuthorizationToken,
		Key:         key,
		ContentType: body.ContentType,
	}, http.StatusOK)
}

type missingParamsResponse struct {
	Error   string          `json:"error"`
	Missing map[string]bool `json:"missing"`
}

// handleUploadProxy handles POST /api/uploadProxy - relay a raw video body to B2
func (s *server) handleUploadProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	uploadURL := r.Header.Get("X-Upload-Url")
	token := r.Header.Get("X-Upload-Token")
	key := r.Header.Get("X-File-Key")
	contentType := r.Header.Get("X-Content-Type")

	if uploadURL == "" || token == "" || key == "" || contentType == "" {
		slog.Warn("upload proxy missing parameters", "key", key)
		sendJSON(w, missingParamsResponse{
			Error: "Missing parameters",
			Missing: map[string]bool{
				"uploadUrl":   uploadURL == "",
				"uploadToken": token == "",
				"key":         key == "",
				"contentType": contentType == "",
			},
		}, http.StatusBadRequest)
		return
	}

	if !s.allowedUploadURL(uploadURL) {
		slog.Warn("rejected upload url", "upload_url", uploadURL)
		sendJSONError(w, "Invalid upload URL", "", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendJSONError(w, "Upload failed", "file exceeds upload limit", http.StatusRequestEntityTooLarge)
			return
		}
		sendJSONError(w, "Upload failed", err.Error(), http.StatusBadRequest)
		return
	}

	log := slog.With("key", key, "bytes", len(data))
	file, err := s.Uploader.UploadFile(r.Context(), uploadURL, token, key, contentType, data)
	if err != nil {
		log.Error("b2 upload failed", "error", err)
		sendJSONError(w, "Upload failed", err.Error(), http.StatusInternalServerError)
		return
	}

	log.Info("upload successful", "file_id", file.FileID)
	sendJSON(w, map[string]any{
		"success":  true,
		"fileName": file.FileName,
		"fileId":   file.FileID,
	}, http.StatusOK)
}

func (s *server) allowedUploadURL(raw string) bool {
	if !IsAbsoluteURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	suffix := strings.TrimPrefix(s.UploadHostSuffix, ".")
	if suffix == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}

// handleSaveMetadata handles POST /api/saveMetadata - thumbnail and metadata for an uploaded video
func (s *server) handleSaveMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendJSONError(w, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		Key         string     `json:"key"`
		UserID      flexString `json:"userId"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		sendJSONError(w, "Missing parameters", err.Error(), http.StatusBadRequest)
		return
	}
	if body.Key == "" || body.UserID == "" {
		sendJSONError(w, "Missing parameters", "", http.StatusBadRequest)
		return
	}

	job := NewSaveJob(string(body.UserID), body.Key, body.Title, body.Description, s.Now())

	if s.Jobs != nil {
		err := s.Jobs.Enqueue(r.Context(), job)
		if err == nil {
			slog.Info("job enqueued", "id", job.ID, "video_key", job.VideoKey)
			sendJSON(w, map[string]any{
				"success": true,
				"queued":  true,
				"id":      job.ID,
			}, http.StatusAccepted)
			return
		}
		// Fall back to publishing in-process.
		slog.Error("failed to enqueue job", "id", job.ID, "error", err)
	}

	rec, err := s.Publisher.Publish(r.Context(), job)
	if err != nil {
		slog.Error("error in saveMetadata", "id", job.ID, "error", err)
		if errors.Is(err, ErrObjectNotFound) {
			sendJSONError(w, "Video not found", err.Error(), http.StatusNotFound)
			return
		}
		sendJSONError(w, "Failed in metadata", err.Error(), http.StatusInternalServerError)
		return
	}

	sendJSON(w, map[string]any{"success": true, "short": rec}, http.StatusOK)
}

// handleDelete handles DELETE /api/delete - remove a short owned by the caller
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		sendJSONError(w, "Method not allowed", "", http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		ID       flexString `json:"id"`
		UserID   flexString `json:"userId"`
		Username flexString `json:"username"`
	}
	if err := decodeBody(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
		sendJSONError(w, "ID and username required", err.Error(), http.StatusBadRequest)
		return
	}
	owner := body.UserID
	if owner == "" {
		owner = body.Username
	}
	if body.ID == "" || owner == "" {
		sendJSONError(w, "ID and username required", "", http.StatusBadRequest)
		return
	}

	err := s.Deleter.Delete(r.Context(), string(body.ID), string(owner))
	switch {
	case err == nil:
		sendJSON(w, map[string]any{"success": true}, http.StatusOK)
	case errors.Is(err, ErrNotAuthorized):
		sendJSONError(w, "Not authorized", "", http.StatusForbidden)
	case errors.Is(err, ErrObjectNotFound):
		sendJSONError(w, "Not found", "", http.StatusNotFound)
	default:
		slog.Error("delete failed", "id", body.ID, "error", err)
		sendJSONError(w, "Delete failed", err.Error(), http.StatusInternalServerError)
	}
}

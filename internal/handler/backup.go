package handler

import (
	"io"
	"log"
	"net/http"

	"famly/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
}

func NewBackupHandler(m *backup.Manager) *BackupHandler {
	return &BackupHandler{manager: m}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeErrorMsg(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	key, err := h.manager.RunNow(r.Context())
	if err != nil {
		log.Printf("manual backup failed: %v", err)
		writeErrorMsg(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeErrorMsg(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	keys, err := h.manager.List(r.Context())
	if err != nil {
		log.Printf("list backups failed: %v", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to list backups")
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"backups": keys})
}

// Download streams the encrypted backup object named by the key query
// parameter.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeErrorMsg(w, http.StatusBadRequest, "key is required")
		return
	}

	body, err := h.manager.Download(r.Context(), key)
	if err != nil {
		log.Printf("download backup failed: %v", err)
		writeErrorMsg(w, http.StatusInternalServerError, "failed to download backup")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="famly-backup.db.enc"`)
	io.Copy(w, body)
}

type restoreRequest struct {
	Key string `json:"key"`
}

// Restore replaces the live database with a stored backup. On success
// the process exits for a supervised restart, so no response is
// written.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Key == "" {
		writeErrorMsg(w, http.StatusBadRequest, "key is required")
		return
	}

	if err := h.manager.Restore(r.Context(), req.Key); err != nil {
		log.Printf("restore failed: %v", err)
		writeErrorMsg(w, http.StatusInternalServerError, "restore failed")
		return
	}
}

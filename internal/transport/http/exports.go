package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/job"
	"github.com/fedutinova/minedash/internal/report"
	"github.com/fedutinova/minedash/internal/storage"
)

const enqueueTimeout = 2 * time.Second

func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	kind, ok := report.ParseKind(chi.URLParam(r, "report"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s := session(r)
	search := searchQuery(r)

	data, err := report.Render(kind, h.Store, search)
	if err != nil {
		slog.Error("render export", "report", kind, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if id, ok := h.archive(r.Context(), kind, search, s.Username); ok {
		w.Header().Set("X-Archive-Job", id.String())
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", kind.Filename()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("write export", "report", kind, "err", err)
	}
	slog.Info("export downloaded", "user", s.Username, "report", kind, "size", len(data))
}

// archive queues a copy of the export for the archive sink. Archiving is
// best effort; the download never waits on it.
func (h *Handlers) archive(ctx context.Context, kind report.Kind, search, username string) (uuid.UUID, bool) {
	if h.Storage == nil || h.Q == nil {
		return uuid.Nil, false
	}
	payload, err := json.Marshal(job.ExportArchivePayload{Report: string(kind), Query: search, RequestedBy: username})
	if err != nil {
		slog.Error("marshal archive payload", "err", err)
		return uuid.Nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()
	id, err := h.Q.Enqueue(ctx, &job.Job{Type: job.TypeExportArchive, Payload: payload})
	if err != nil {
		slog.Warn("export archive not queued", "report", kind, "err", err)
		return uuid.Nil, false
	}
	return id, true
}

// getJob reports an archive job. Only the requester and administrators can
// see it.
func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return
	}
	if h.Q == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	j, ok := h.Q.Status(r.Context(), id)
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s := session(r)
	var payload job.ExportArchivePayload
	_ = json.Unmarshal(j.Payload, &payload)
	if payload.RequestedBy != s.Username && !h.Gate.Authorize(s.Role, access.All) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) serveArchive(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	rc, contentType, err := h.Storage.GetFile(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) || errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		slog.Error("read archived export", "key", key, "err", err)
		http.Error(w, "archive unavailable", http.StatusBadGateway)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("stream archived export", "key", key, "err", err)
	}
}

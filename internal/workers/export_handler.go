package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"

	"github.com/fedutinova/minedash/internal/job"
	"github.com/fedutinova/minedash/internal/memq"
	"github.com/fedutinova/minedash/internal/report"
	"github.com/fedutinova/minedash/internal/storage"
)

// ExportHandler renders a report off the request path and archives it.
type ExportHandler struct {
	source  report.Source
	storage storage.Storage
}

func NewExportHandler(source report.Source, storageService storage.Storage) *ExportHandler {
	return &ExportHandler{
		source:  source,
		storage: storageService,
	}
}

func (h *ExportHandler) HandleExportJob(ctx context.Context, j *job.Job) error {
	if j.Type != job.TypeExportArchive {
		return fmt.Errorf("unexpected job type: %s", j.Type)
	}
	if h.storage == nil {
		return fmt.Errorf("export archive is not configured")
	}

	var payload job.ExportArchivePayload
	if err := json.Unmarshal(j.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal export job payload: %w", err)
	}
	kind, ok := report.ParseKind(payload.Report)
	if !ok {
		return fmt.Errorf("unknown report %q", payload.Report)
	}

	data, err := report.Render(kind, h.source, payload.Query)
	if err != nil {
		return err
	}
	contentType := mimetype.Detect(data).String()

	res, err := h.storage.UploadFile(ctx, kind.Filename(), bytes.NewReader(data), contentType)
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", kind.Filename(), err)
	}
	j.Result = res.URL

	slog.Info("export archived",
		"job_id", j.ID,
		"report", kind,
		"requested_by", payload.RequestedBy,
		"key", res.Key,
		"size", len(data),
		"content_type", contentType)
	return nil
}

// Register starts n consumers on q that dispatch archive jobs to h.
func (h *ExportHandler) Register(ctx context.Context, q memq.JobQueue, n int) {
	q.StartConsumers(ctx, n, h.HandleExportJob)
}

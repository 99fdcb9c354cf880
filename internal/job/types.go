package job

import (
	"time"

	uuid "github.com/google/uuid"
)

type Type string

const (
	// TypeExportArchive renders a report and stores a copy in the archive.
	TypeExportArchive Type = "export_archive"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type Job struct {
	ID       uuid.UUID  `json:"id"`
	Type     Type       `json:"type"`
	Payload  []byte     `json:"payload"`
	Status   Status     `json:"status"`
	Error    string     `json:"error,omitempty"`
	Result   string     `json:"result,omitempty"`
	Enqueued time.Time  `json:"enqueued_at"`
	Started  *time.Time `json:"started_at,omitempty"`
	Finished *time.Time `json:"finished_at,omitempty"`
}

// ExportArchivePayload is the payload of a TypeExportArchive job.
type ExportArchivePayload struct {
	Report      string `json:"report"`
	Query       string `json:"query,omitempty"`
	RequestedBy string `json:"requested_by"`
}

// Clone returns a copy that shares no pointers with j.
func (j *Job) Clone() *Job {
	c := *j
	c.Payload = append([]byte(nil), j.Payload...)
	if j.Started != nil {
		t := *j.Started
		c.Started = &t
	}
	if j.Finished != nil {
		t := *j.Finished
		c.Finished = &t
	}
	return &c
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConversionMode selects the conversion direction on the service.
type ConversionMode string

const (
	ModePDFToMarkdown ConversionMode = "pdf-to-md"
	ModeMarkdownToPDF ConversionMode = "md-to-pdf"
)

// AcceptedFormats lists, per mode, the MIME types and extensions (leading
// dot) the service accepts.
var AcceptedFormats = map[ConversionMode][]string{
	ModePDFToMarkdown: {"application/pdf", ".pdf"},
	ModeMarkdownToPDF: {"text/markdown", "text/plain", ".md"},
}

// TaskStatus is the server-side state of a conversion task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ConvertResponse is returned by POST /convert.
type ConvertResponse struct {
	TaskID  string         `json:"task_id"`
	Mode    ConversionMode `json:"mode"`
	Status  TaskStatus     `json:"status"`
	Message string         `json:"message"`
}

// TaskStatusResponse is returned by GET /status/{task_id}.
type TaskStatusResponse struct {
	TaskID      string         `json:"task_id"`
	Mode        ConversionMode `json:"mode"`
	Status      TaskStatus     `json:"status"`
	Progress    int            `json:"progress"`
	DownloadURL *string        `json:"download_url"`
	Error       *string        `json:"error"`
	Filename    string         `json:"filename"`
}

// ContentResponse is returned by GET /content/{task_id}.
type ContentResponse struct {
	TaskID           string  `json:"task_id"`
	Content          string  `json:"content"`
	Format           string  `json:"format"`
	OriginalFilename string  `json:"original_filename"`
	SizeBytes        int64   `json:"size_bytes"`
	SizeKB           float64 `json:"size_kb"`
}

// BatchDownloadRequest is the body of POST /download/batch.
type BatchDownloadRequest struct {
	TaskIDs []string `json:"task_ids"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Healthy reports whether the service declared itself healthy.
func (h HealthResponse) Healthy() bool {
	return h.Status == "healthy"
}

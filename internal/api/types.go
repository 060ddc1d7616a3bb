package api

import (
	"time"

	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/repository"
)

// ============================================================================
// Common Types
// ============================================================================

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error" description:"Error message"`
	Details string `json:"details,omitempty" description:"Additional error details"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
}

// ============================================================================
// Recipients Types
// ============================================================================

// RecipientsParseRequest carries an uploaded recipient table.
type RecipientsParseRequest struct {
	Filename string `json:"filename" example:"attendees.xlsx" description:"Upload file name; the extension selects CSV or XLSX parsing"`
	Data     string `json:"data" description:"Base64-encoded file content"`
	Sheet    string `json:"sheet,omitempty" description:"Worksheet name for XLSX uploads (default: first sheet)"`
}

// RecipientsParseResponse is the parsed table returned to the wizard.
type RecipientsParseResponse struct {
	Columns  []string            `json:"columns" description:"Column names in file order"`
	RowCount int                 `json:"row_count" description:"Number of data rows"`
	Rows     []map[string]string `json:"rows" description:"All data rows as column-to-cell maps"`
}

// ============================================================================
// Templates Types
// ============================================================================

// TemplatesListResponse contains the available certificate templates.
type TemplatesListResponse struct {
	Templates []*models.CertificateTemplate `json:"templates" description:"Available certificate templates"`
	Total     int                           `json:"total" description:"Number of templates"`
}

// ============================================================================
// Mapping Types
// ============================================================================

// MappingValidateRequest checks a field mapping against a table schema.
type MappingValidateRequest struct {
	TemplateID           string                 `json:"template_id,omitempty" description:"Catalog template id; empty when custom field positions are used"`
	CustomFieldPositions []models.FieldPosition `json:"custom_field_positions,omitempty" description:"Field positions for a custom template"`
	Mapping              models.FieldMapping    `json:"mapping" description:"Field-to-column bindings to validate"`
	Columns              []string               `json:"columns" description:"Column names of the uploaded table"`
}

// MappingValidateResponse reports whether the mapping is usable.
type MappingValidateResponse struct {
	Valid     bool   `json:"valid" description:"True when every binding resolves"`
	ErrorKind string `json:"error_kind,omitempty" description:"Machine-readable failure category"`
	Error     string `json:"error,omitempty" description:"Human-readable failure detail"`
}

// ============================================================================
// SMTP Types
// ============================================================================

// SMTPVerifyRequest carries credentials for a pre-flight check. They are
// used for the handshake only and never stored.
type SMTPVerifyRequest struct {
	Host     string `json:"host" example:"smtp.gmail.com" description:"SMTP server host"`
	Port     int    `json:"port" example:"587" description:"SMTP server port"`
	Email    string `json:"email" description:"Sender address used as the auth user"`
	Password string `json:"password" description:"Auth password or app password"`
	Secure   *bool  `json:"secure,omitempty" description:"Force implicit TLS; default derives from port 465"`
}

// SMTPVerifyResponse reports the handshake outcome.
type SMTPVerifyResponse struct {
	Verified bool   `json:"verified" description:"True when connect and auth succeeded"`
	Error    string `json:"error,omitempty" description:"Failure detail when not verified"`
}

// ============================================================================
// Batch Types
// ============================================================================

// RecipientsPayload is the parsed table echoed back when creating a batch.
type RecipientsPayload struct {
	Columns []string            `json:"columns" description:"Column names in file order"`
	Rows    []map[string]string `json:"rows" description:"Data rows as column-to-cell maps"`
}

// BatchCreateRequest starts a send batch.
type BatchCreateRequest struct {
	Recipients     RecipientsPayload        `json:"recipients" description:"Recipient table"`
	Certificate    models.CertificateConfig `json:"certificate" description:"Template choice, mapping and style"`
	Message        models.MessageTemplate   `json:"message" description:"Email template with {{placeholder}} references"`
	Credentials    SMTPVerifyRequest        `json:"credentials" description:"SMTP credentials; used for this batch only, never stored"`
	AttachmentName string                   `json:"attachment_name,omitempty" example:"certificate.pdf" description:"Certificate attachment file name"`
}

// BatchCreateResponse returns the id of the started batch.
type BatchCreateResponse struct {
	BatchID string `json:"batch_id" description:"Batch unique identifier"`
	State   string `json:"state" description:"Batch state: RUNNING"`
}

// BatchStatusResponse is the live view of a batch.
type BatchStatusResponse struct {
	BatchID    string                  `json:"batch_id" description:"Batch unique identifier"`
	State      string                  `json:"state" description:"RUNNING, COMPLETED, FAILED or CANCELLED"`
	Stats      dispatcher.Stats        `json:"stats" description:"Per-status counts; zero while still running"`
	Results    []models.DeliveryResult `json:"results,omitempty" description:"Per-recipient outcomes in row order once finished"`
	Error      string                  `json:"error,omitempty" description:"Batch-fatal failure detail"`
	StartedAt  time.Time               `json:"started_at" description:"When the batch was accepted"`
	FinishedAt *time.Time              `json:"finished_at,omitempty" description:"When the batch reached a terminal state"`
}

// BatchCancelResponse acknowledges a cancellation request.
type BatchCancelResponse struct {
	BatchID string `json:"batch_id" description:"Batch unique identifier"`
	State   string `json:"state" description:"State after the cancellation request"`
}

// ============================================================================
// History Types
// ============================================================================

// HistoryBatch is a persisted batch summary.
type HistoryBatch struct {
	ID         string    `json:"id" description:"Batch unique identifier"`
	TemplateID string    `json:"template_id" description:"Certificate template used"`
	SMTPHost   string    `json:"smtp_host" description:"SMTP server the batch was sent through"`
	SMTPEmail  string    `json:"smtp_email" description:"Sender address"`
	Total      int       `json:"total" description:"Number of recipients"`
	Sent       int       `json:"sent" description:"Successfully delivered"`
	Failed     int       `json:"failed" description:"Terminal failures"`
	Cancelled  int       `json:"cancelled" description:"Cancelled before dispatch"`
	CreatedAt  time.Time `json:"created_at" description:"When the batch started"`
	FinishedAt time.Time `json:"finished_at" description:"When the batch finished"`
}

// HistoryListResponse contains persisted batch summaries, newest first.
type HistoryListResponse struct {
	Batches []HistoryBatch `json:"batches" description:"Persisted batches"`
	Total   int            `json:"total" description:"Number of batches returned"`
}

// HistoryBatchResponse is one persisted batch with its per-recipient
// results.
type HistoryBatchResponse struct {
	HistoryBatch
	Results []HistoryResult `json:"results" description:"Per-recipient outcomes in row order"`
}

// HistoryResult is one persisted recipient outcome.
type HistoryResult struct {
	RowIndex  int        `json:"row_index" description:"Zero-based source row index"`
	Recipient string     `json:"recipient" description:"Recipient email address"`
	Status    string     `json:"status" description:"Terminal status: SENT, FAILED or CANCELLED"`
	Attempts  int        `json:"attempts" description:"Transport attempts made"`
	ErrorKind string     `json:"error_kind,omitempty" description:"Failure category"`
	Error     string     `json:"error,omitempty" description:"Failure detail"`
	SentAt    *time.Time `json:"sent_at,omitempty" description:"Delivery timestamp"`
}

func historyBatchFromRepo(b *repository.Batch) HistoryBatch {
	return HistoryBatch{
		ID:         b.ID.String(),
		TemplateID: b.TemplateID,
		SMTPHost:   b.SMTPHost,
		SMTPEmail:  b.SMTPEmail,
		Total:      b.Total,
		Sent:       b.Sent,
		Failed:     b.Failed,
		Cancelled:  b.Cancelled,
		CreatedAt:  b.CreatedAt,
		FinishedAt: b.FinishedAt,
	}
}

func historyResultsFromRepo(results []repository.BatchResult) []HistoryResult {
	out := make([]HistoryResult, 0, len(results))
	for _, r := range results {
		out = append(out, HistoryResult{
			RowIndex:  r.RowIndex,
			Recipient: r.Recipient,
			Status:    r.Status,
			Attempts:  r.Attempts,
			ErrorKind: r.ErrorKind,
			Error:     r.Error,
			SentAt:    r.SentAt,
		})
	}
	return out
}

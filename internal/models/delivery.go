package models

import "time"

// TaskStatus is the delivery state of one recipient's task.
type TaskStatus string

// TaskStatus constants define the per-task state machine:
// QUEUED → SENDING → {SENT | FAILED}, with FAILED → RETRYING → SENDING up
// to the retry limit. CANCELLED is assigned to tasks still queued when the
// batch is cancelled.
const (
	TaskStatusQueued    TaskStatus = "QUEUED"
	TaskStatusSending   TaskStatus = "SENDING"
	TaskStatusRetrying  TaskStatus = "RETRYING"
	TaskStatusSent      TaskStatus = "SENT"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusSent, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// SMTPCredentials configures the outbound transport. Held in memory only
// for the duration of a send session; never persisted.
type SMTPCredentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Secure forces implicit TLS; nil derives it from port 465.
	Secure *bool `json:"secure,omitempty"`
}

// UseSSL reports whether the connection uses implicit TLS.
func (c SMTPCredentials) UseSSL() bool {
	if c.Secure != nil {
		return *c.Secure
	}
	return c.Port == 465
}

// Attachment is one file attached to an outbound message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Message is a fully composed outbound email for one recipient.
type Message struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// MessageTemplate is the email template merged per recipient. To, Subject
// and bodies may contain {{placeholder}} references to resolved fields or
// raw columns.
type MessageTemplate struct {
	To       string `json:"to" yaml:"to"`
	Subject  string `json:"subject" yaml:"subject"`
	Body     string `json:"body" yaml:"body"`
	HTMLBody string `json:"html_body,omitempty" yaml:"html_body,omitempty"`
}

// DeliveryTask is one (row, rendered certificate, composed message) triple
// awaiting transmission. Created by the pipeline, consumed exactly once by
// the dispatcher. A non-nil BuildErr marks a task that failed during
// rendering or composition; it is recorded as failed without touching the
// transport.
type DeliveryTask struct {
	RowIndex int
	Row      RecipientRow
	Message  Message
	Warnings []string
	BuildErr error
}

// DeliveryResult is the outcome of one DeliveryTask.
type DeliveryResult struct {
	RowIndex  int        `json:"row_index"`
	Recipient string     `json:"recipient"`
	Status    TaskStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	ErrorKind Kind       `json:"error_kind,omitempty"`
	Error     string     `json:"error,omitempty"`
	Warnings  []string   `json:"warnings,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

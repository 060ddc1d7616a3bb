// Package pipeline runs the wizard stages for one batch: resolve the
// mapping, render certificates, compose messages and hand the tasks to the
// dispatcher.
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sendora/sendora/internal/composer"
	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/mapper"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/renderer"
	"github.com/sendora/sendora/internal/templates"
	"github.com/sendora/sendora/internal/transport"
)

// defaultAttachmentName is used when the session does not name the
// certificate attachment.
const defaultAttachmentName = "certificate.pdf"

// BatchSession is the explicit session object passed through every
// pipeline stage. It is owned by the orchestrating caller; stages never
// mutate it.
type BatchSession struct {
	ID             uuid.UUID                `json:"id"`
	Table          *models.RecipientTable   `json:"table"`
	Certificate    models.CertificateConfig `json:"certificate"`
	Message        models.MessageTemplate   `json:"message"`
	Credentials    models.SMTPCredentials   `json:"credentials"`
	AttachmentName string                   `json:"attachment_name,omitempty"`
}

// Service wires the pipeline stages.
type Service struct {
	catalog    *templates.Catalog
	renderer   *renderer.Renderer
	dispatcher *dispatcher.Service
	transports transport.Factory
	log        *logger.Logger
}

// NewService creates the pipeline service.
func NewService(
	catalog *templates.Catalog,
	rend *renderer.Renderer,
	disp *dispatcher.Service,
	transports transport.Factory,
	log *logger.Logger,
) *Service {
	return &Service{
		catalog:    catalog,
		renderer:   rend,
		dispatcher: disp,
		transports: transports,
		log:        log,
	}
}

// Build validates the session and produces one DeliveryTask per row.
// Mapping problems are batch-fatal; per-row render or compose failures
// poison only that row's task.
func (s *Service) Build(ctx context.Context, session *BatchSession) ([]models.DeliveryTask, error) {
	if session.Table == nil || len(session.Table.Rows) == 0 {
		return nil, models.Errorf(models.KindValidation, "session has no recipient rows")
	}

	fields, err := s.templateFields(&session.Certificate)
	if err != nil {
		return nil, err
	}

	if err := mapper.Validate(session.Certificate.Mapping, session.Table.Columns, fields); err != nil {
		return nil, err
	}

	attachmentName := session.AttachmentName
	if attachmentName == "" {
		attachmentName = defaultAttachmentName
	}

	tasks := make([]models.DeliveryTask, 0, len(session.Table.Rows))
	for _, row := range session.Table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, models.NewError(models.KindCancelled, err)
		}
		tasks = append(tasks, s.buildTask(session, fields, row, attachmentName))
	}

	s.log.Info().
		Str("batch_id", session.ID.String()).
		Int("tasks", len(tasks)).
		Msg("batch built")

	return tasks, nil
}

// buildTask runs resolve, render and compose for one row. Failures are
// recorded on the task so the recipient still appears in the ledger.
func (s *Service) buildTask(session *BatchSession, fields []models.FieldPosition, row models.RecipientRow, attachmentName string) models.DeliveryTask {
	task := models.DeliveryTask{RowIndex: row.Index, Row: row}

	resolved, err := mapper.Resolve(session.Certificate.Mapping, fields, row)
	if err != nil {
		task.BuildErr = err
		return task
	}

	certificate, err := s.renderer.Render(&session.Certificate, resolved)

	var attachment *models.Attachment
	if err == nil {
		attachment = &models.Attachment{
			Filename:    attachmentName,
			ContentType: "application/pdf",
			Data:        certificate,
		}
	}

	// compose even when rendering failed so the ledger knows the
	// recipient address
	msg, warnings, composeErr := composer.Compose(session.Message, resolved, row, attachment)
	task.Message = msg
	task.Warnings = warnings

	switch {
	case err != nil:
		task.BuildErr = err
	case composeErr != nil:
		task.BuildErr = composeErr
	}
	return task
}

// Run builds the batch and dispatches it. The transport is created from
// the session credentials and lives only for this call.
func (s *Service) Run(ctx context.Context, session *BatchSession) (*dispatcher.Ledger, error) {
	tasks, err := s.Build(ctx, session)
	if err != nil {
		return nil, err
	}

	tr := s.transports(session.Credentials)
	return s.dispatcher.Dispatch(ctx, session.ID, tasks, tr)
}

// templateFields returns the effective field positions for validation:
// the custom positions when a custom background is used, otherwise the
// referenced catalog template's fields.
func (s *Service) templateFields(cfg *models.CertificateConfig) ([]models.FieldPosition, error) {
	if cfg.UsesCustomTemplate() {
		if len(cfg.CustomFieldPositions) == 0 {
			return nil, models.Errorf(models.KindValidation, "custom template requires custom field positions")
		}
		return cfg.CustomFieldPositions, nil
	}

	tmpl, err := s.catalog.Get(cfg.TemplateID)
	if err != nil {
		return nil, models.NewError(models.KindValidation, fmt.Errorf("certificate template: %w", err))
	}
	return tmpl.Fields, nil
}

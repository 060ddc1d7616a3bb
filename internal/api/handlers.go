// Package api provides the REST surface of the send wizard.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/go-fuego/fuego"
	"github.com/google/uuid"

	"github.com/sendora/sendora/internal/loader"
	"github.com/sendora/sendora/internal/mapper"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/repository"
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	return HealthResponse{
		Status:  "ok",
		Version: "dev",
	}, nil
}

// ============================================================================
// Recipients Handlers
// ============================================================================

func (s *Server) parseRecipients(c fuego.ContextWithBody[RecipientsParseRequest]) (RecipientsParseResponse, error) {
	body, err := c.Body()
	if err != nil {
		return RecipientsParseResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	data, err := base64.StdEncoding.DecodeString(body.Data)
	if err != nil {
		return RecipientsParseResponse{}, fuego.BadRequestError{Detail: "Data must be base64-encoded"}
	}

	table, err := loader.Parse(data, loader.Options{Filename: body.Filename, Sheet: body.Sheet})
	if err != nil {
		return RecipientsParseResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	rows := make([]map[string]string, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, r.Cells)
	}

	return RecipientsParseResponse{
		Columns:  table.Columns,
		RowCount: len(table.Rows),
		Rows:     rows,
	}, nil
}

// ============================================================================
// Templates Handlers
// ============================================================================

func (s *Server) listTemplates(c fuego.ContextNoBody) (TemplatesListResponse, error) {
	templates := s.deps.Catalog.List()
	return TemplatesListResponse{
		Templates: templates,
		Total:     len(templates),
	}, nil
}

func (s *Server) getTemplate(c fuego.ContextNoBody) (*models.CertificateTemplate, error) {
	tmpl, err := s.deps.Catalog.Get(c.PathParam("id"))
	if err != nil {
		return nil, fuego.NotFoundError{Detail: "Template not found"}
	}
	return tmpl, nil
}

// ============================================================================
// Mappings Handlers
// ============================================================================

func (s *Server) validateMapping(c fuego.ContextWithBody[MappingValidateRequest]) (MappingValidateResponse, error) {
	body, err := c.Body()
	if err != nil {
		return MappingValidateResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	var fields []models.FieldPosition
	switch {
	case len(body.CustomFieldPositions) > 0:
		fields = body.CustomFieldPositions
	case body.TemplateID != "":
		tmpl, err := s.deps.Catalog.Get(body.TemplateID)
		if err != nil {
			return MappingValidateResponse{}, fuego.NotFoundError{Detail: "Template not found"}
		}
		fields = tmpl.Fields
	default:
		return MappingValidateResponse{}, fuego.BadRequestError{Detail: "Either template_id or custom_field_positions is required"}
	}

	if err := mapper.Validate(body.Mapping, body.Columns, fields); err != nil {
		return MappingValidateResponse{
			Valid:     false,
			ErrorKind: string(models.KindOf(err)),
			Error:     err.Error(),
		}, nil
	}

	return MappingValidateResponse{Valid: true}, nil
}

// ============================================================================
// SMTP Handlers
// ============================================================================

func (s *Server) verifySMTP(c fuego.ContextWithBody[SMTPVerifyRequest]) (SMTPVerifyResponse, error) {
	body, err := c.Body()
	if err != nil {
		return SMTPVerifyResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	if body.Host == "" || body.Email == "" {
		return SMTPVerifyResponse{}, fuego.BadRequestError{Detail: "host and email are required"}
	}

	tr := s.deps.Transports(credentialsFromRequest(body))

	ctx, cancel := context.WithTimeout(c.Context(), 20*time.Second)
	defer cancel()

	if err := tr.Verify(ctx); err != nil {
		return SMTPVerifyResponse{Verified: false, Error: err.Error()}, nil
	}
	return SMTPVerifyResponse{Verified: true}, nil
}

func credentialsFromRequest(req SMTPVerifyRequest) models.SMTPCredentials {
	return models.SMTPCredentials{
		Host:     req.Host,
		Port:     req.Port,
		Email:    req.Email,
		Password: req.Password,
		Secure:   req.Secure,
	}
}

// ============================================================================
// Batches Handlers
// ============================================================================

func (s *Server) createBatch(c fuego.ContextWithBody[BatchCreateRequest]) (BatchCreateResponse, error) {
	body, err := c.Body()
	if err != nil {
		return BatchCreateResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	if len(body.Recipients.Rows) == 0 {
		return BatchCreateResponse{}, fuego.BadRequestError{Detail: "No recipient rows provided"}
	}

	table := &models.RecipientTable{Columns: body.Recipients.Columns}
	for i, cells := range body.Recipients.Rows {
		table.Rows = append(table.Rows, models.RecipientRow{Index: i, Cells: cells})
	}

	session := &pipeline.BatchSession{
		ID:             uuid.New(),
		Table:          table,
		Certificate:    body.Certificate,
		Message:        body.Message,
		Credentials:    credentialsFromRequest(body.Credentials),
		AttachmentName: body.AttachmentName,
	}

	// fail fast on mapping and template problems before accepting the
	// batch
	fields, err := s.sessionFields(&session.Certificate)
	if err != nil {
		return BatchCreateResponse{}, err
	}
	if err := mapper.Validate(session.Certificate.Mapping, table.Columns, fields); err != nil {
		return BatchCreateResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	run := s.registry.Start(session)

	// notify WebSocket clients
	if s.deps.Hub != nil {
		s.deps.Hub.Broadcast(map[string]interface{}{
			"type":     "batch.accepted",
			"batch_id": run.ID.String(),
			"total":    len(table.Rows),
		})
	}

	return BatchCreateResponse{
		BatchID: run.ID.String(),
		State:   run.State,
	}, nil
}

// sessionFields returns the effective field positions of a batch request.
func (s *Server) sessionFields(cfg *models.CertificateConfig) ([]models.FieldPosition, error) {
	if cfg.UsesCustomTemplate() {
		if len(cfg.CustomFieldPositions) == 0 {
			return nil, fuego.BadRequestError{Detail: "Custom template requires custom field positions"}
		}
		return cfg.CustomFieldPositions, nil
	}

	tmpl, err := s.deps.Catalog.Get(cfg.TemplateID)
	if err != nil {
		return nil, fuego.NotFoundError{Detail: "Template not found"}
	}
	return tmpl.Fields, nil
}

func (s *Server) getBatch(c fuego.ContextNoBody) (BatchStatusResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return BatchStatusResponse{}, fuego.BadRequestError{Detail: "Invalid batch ID"}
	}

	status, ok := s.registry.Status(id)
	if !ok {
		return BatchStatusResponse{}, fuego.NotFoundError{Detail: "Batch not found"}
	}
	return status, nil
}

func (s *Server) cancelBatch(c fuego.ContextNoBody) (BatchCancelResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return BatchCancelResponse{}, fuego.BadRequestError{Detail: "Invalid batch ID"}
	}

	if !s.registry.Cancel(id) {
		status, ok := s.registry.Status(id)
		if !ok {
			return BatchCancelResponse{}, fuego.NotFoundError{Detail: "Batch not found"}
		}
		// already finished; report the terminal state
		return BatchCancelResponse{BatchID: id.String(), State: status.State}, nil
	}

	return BatchCancelResponse{BatchID: id.String(), State: BatchStateRunning}, nil
}

// ============================================================================
// History Handlers
// ============================================================================

func (s *Server) listHistory(c fuego.ContextNoBody) (HistoryListResponse, error) {
	if s.deps.History == nil {
		return HistoryListResponse{Batches: []HistoryBatch{}}, nil
	}

	limit := parseIntWithDefault(c.QueryParam("limit"), 50)

	batches, err := s.deps.History.List(c.Context(), limit)
	if err != nil {
		return HistoryListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	out := make([]HistoryBatch, 0, len(batches))
	for i := range batches {
		out = append(out, historyBatchFromRepo(&batches[i]))
	}

	return HistoryListResponse{Batches: out, Total: len(out)}, nil
}

func (s *Server) getHistoryBatch(c fuego.ContextNoBody) (HistoryBatchResponse, error) {
	if s.deps.History == nil {
		return HistoryBatchResponse{}, fuego.NotFoundError{Detail: "History is disabled"}
	}

	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return HistoryBatchResponse{}, fuego.BadRequestError{Detail: "Invalid batch ID"}
	}

	batch, err := s.deps.History.Get(c.Context(), id)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return HistoryBatchResponse{}, fuego.NotFoundError{Detail: "Batch not found"}
	}
	if err != nil {
		return HistoryBatchResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return HistoryBatchResponse{
		HistoryBatch: historyBatchFromRepo(batch),
		Results:      historyResultsFromRepo(batch.Results),
	}, nil
}

func (s *Server) deleteHistoryBatch(c fuego.ContextNoBody) (any, error) {
	if s.deps.History == nil {
		return nil, fuego.NotFoundError{Detail: "History is disabled"}
	}

	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return nil, fuego.BadRequestError{Detail: "Invalid batch ID"}
	}

	err = s.deps.History.Delete(c.Context(), id)
	if errors.Is(err, repository.ErrBatchNotFound) {
		return nil, fuego.NotFoundError{Detail: "Batch not found"}
	}
	if err != nil {
		return nil, fuego.InternalServerError{Detail: err.Error()}
	}

	return map[string]string{"status": "deleted"}, nil
}

func parseIntWithDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

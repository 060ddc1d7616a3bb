package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sendora/sendora/internal/dispatcher"
	"github.com/sendora/sendora/internal/logger"
	"github.com/sendora/sendora/internal/models"
	"github.com/sendora/sendora/internal/pipeline"
	"github.com/sendora/sendora/internal/repository"
	"github.com/sendora/sendora/internal/templates"
	"github.com/sendora/sendora/internal/transport"
)

// Mock implementations for testing

type mockPipeline struct {
	runErr error
}

func (m *mockPipeline) Run(ctx context.Context, session *pipeline.BatchSession) (*dispatcher.Ledger, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}

	tasks := make([]models.DeliveryTask, 0, len(session.Table.Rows))
	for _, row := range session.Table.Rows {
		tasks = append(tasks, models.DeliveryTask{
			RowIndex: row.Index,
			Row:      row,
			Message:  models.Message{To: row.Cells["Email"]},
		})
	}

	ledger := dispatcher.NewLedger(tasks)
	for _, t := range tasks {
		ledger.MarkSending(t.RowIndex, 1)
		ledger.MarkSent(t.RowIndex)
	}
	return ledger, nil
}

type mockHistory struct {
	batches map[uuid.UUID]*repository.Batch
}

func newMockHistory() *mockHistory {
	return &mockHistory{batches: make(map[uuid.UUID]*repository.Batch)}
}

func (m *mockHistory) Save(ctx context.Context, batch *repository.Batch, results []models.DeliveryResult) error {
	m.batches[batch.ID] = batch
	return nil
}

func (m *mockHistory) Get(ctx context.Context, id uuid.UUID) (*repository.Batch, error) {
	b, ok := m.batches[id]
	if !ok {
		return nil, repository.ErrBatchNotFound
	}
	return b, nil
}

func (m *mockHistory) List(ctx context.Context, limit int) ([]repository.Batch, error) {
	out := make([]repository.Batch, 0, len(m.batches))
	for _, b := range m.batches {
		out = append(out, *b)
	}
	return out, nil
}

func (m *mockHistory) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.batches[id]; !ok {
		return repository.ErrBatchNotFound
	}
	delete(m.batches, id)
	return nil
}

type stubTransport struct {
	verifyErr error
}

func (s *stubTransport) Verify(ctx context.Context) error { return s.verifyErr }

func (s *stubTransport) Send(ctx context.Context, msg models.Message) error { return nil }

func newTestServer(t *testing.T, verifyErr error) (*Server, *mockHistory) {
	t.Helper()

	catalog, err := templates.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	history := newMockHistory()
	registry := NewBatchRegistry(&mockPipeline{}, history, logger.Get())

	cfg := &Config{
		Port:        8080,
		Title:       "Test API",
		Description: "Test",
		Version:     "1.0.0",
	}

	deps := &Dependencies{
		Catalog:    catalog,
		History:    history,
		Transports: func(models.SMTPCredentials) transport.Transport { return &stubTransport{verifyErr: verifyErr} },
		Registry:   registry,
	}

	return NewServer(cfg, deps), history
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.fuego.Mux.ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if srv == nil {
		t.Fatal("expected server to be created")
	}
	if srv.fuego == nil {
		t.Fatal("expected fuego server to be initialized")
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", resp.Status)
	}
}

func TestParseRecipientsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	csv := "Name,Email\nAda,ada@example.com\nGrace,grace@example.com\n"
	w := doJSON(t, srv, http.MethodPost, "/api/v1/recipients/parse", RecipientsParseRequest{
		Filename: "attendees.csv",
		Data:     base64.StdEncoding.EncodeToString([]byte(csv)),
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp RecipientsParseResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.RowCount != 2 {
		t.Errorf("expected 2 rows, got %d", resp.RowCount)
	}
	if len(resp.Columns) != 2 || resp.Columns[0] != "Name" {
		t.Errorf("unexpected columns: %v", resp.Columns)
	}
	if resp.Rows[1]["Email"] != "grace@example.com" {
		t.Errorf("unexpected row content: %v", resp.Rows[1])
	}
}

func TestParseRecipientsEndpoint_BadData(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/recipients/parse", RecipientsParseRequest{
		Filename: "attendees.csv",
		Data:     "not base64!!!",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestListTemplatesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/templates/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp TemplatesListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Total == 0 {
		t.Error("expected at least one built-in template")
	}
	found := false
	for _, tmpl := range resp.Templates {
		if tmpl.ID == "classic" {
			found = true
		}
	}
	if !found {
		t.Error("expected 'classic' template in list")
	}
}

func TestValidateMappingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := MappingValidateRequest{
		TemplateID: "classic",
		Columns:    []string{"Name", "Email", "Course"},
		Mapping: models.FieldMapping{Bindings: map[string]models.FieldBinding{
			"recipientName": {Column: "Name"},
			"courseTitle":   {Column: "Course"},
		}},
	}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/mappings/validate", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp MappingValidateResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Valid {
		t.Errorf("expected valid mapping, got error: %s", resp.Error)
	}

	// unknown column is reported, not a 500
	req.Mapping.Bindings["recipientName"] = models.FieldBinding{Column: "FullName"}
	w = doJSON(t, srv, http.MethodPost, "/api/v1/mappings/validate", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Valid {
		t.Error("expected invalid mapping")
	}
	if resp.ErrorKind != string(models.KindUnknownColumn) {
		t.Errorf("expected UNKNOWN_COLUMN, got %s", resp.ErrorKind)
	}
}

func TestVerifySMTPEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/smtp/verify", SMTPVerifyRequest{
		Host:     "smtp.example.com",
		Port:     587,
		Email:    "sender@example.com",
		Password: "secret",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SMTPVerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Verified {
		t.Errorf("expected verified, got error: %s", resp.Error)
	}
}

func TestVerifySMTPEndpoint_BadCredentials(t *testing.T) {
	srv, _ := newTestServer(t, models.Errorf(models.KindCredential, "535 authentication failed"))

	w := doJSON(t, srv, http.MethodPost, "/api/v1/smtp/verify", SMTPVerifyRequest{
		Host:     "smtp.example.com",
		Port:     587,
		Email:    "sender@example.com",
		Password: "wrong",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SMTPVerifyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Verified {
		t.Error("expected verification failure")
	}
	if resp.Error == "" {
		t.Error("expected error detail")
	}
}

func batchRequest() BatchCreateRequest {
	return BatchCreateRequest{
		Recipients: RecipientsPayload{
			Columns: []string{"Name", "Email", "Course"},
			Rows: []map[string]string{
				{"Name": "Ada", "Email": "ada@example.com", "Course": "Go"},
				{"Name": "Grace", "Email": "grace@example.com", "Course": "Go"},
			},
		},
		Certificate: models.CertificateConfig{
			TemplateID: "classic",
			Mapping: models.FieldMapping{Bindings: map[string]models.FieldBinding{
				"recipientName": {Column: "Name"},
				"courseTitle":   {Column: "Course"},
			}},
		},
		Message: models.MessageTemplate{
			To:      "{{Email}}",
			Subject: "Your certificate",
			Body:    "Hi {{recipientName}}",
		},
		Credentials: SMTPVerifyRequest{
			Host:     "smtp.example.com",
			Port:     587,
			Email:    "sender@example.com",
			Password: "secret",
		},
	}
}

func TestCreateAndGetBatch(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/batches/", batchRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var created BatchCreateResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.BatchID == "" {
		t.Fatal("expected batch id")
	}

	// the mock pipeline finishes almost immediately
	deadline := time.Now().Add(2 * time.Second)
	var status BatchStatusResponse
	for {
		w = doJSON(t, srv, http.MethodGet, "/api/v1/batches/"+created.BatchID, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if status.State != BatchStateRunning || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if status.State != BatchStateCompleted {
		t.Fatalf("expected COMPLETED, got %s", status.State)
	}
	if status.Stats.Sent != 2 {
		t.Errorf("expected 2 sent, got %d", status.Stats.Sent)
	}
	if len(status.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(status.Results))
	}
}

func TestCreateBatch_UnknownColumn(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := batchRequest()
	req.Certificate.Mapping.Bindings["recipientName"] = models.FieldBinding{Column: "FullName"}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/batches/", req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetBatch_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := doJSON(t, srv, http.MethodGet, "/api/v1/batches/"+uuid.New().String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	srv, history := newTestServer(t, nil)

	id := uuid.New()
	history.batches[id] = &repository.Batch{
		ID:         id,
		TemplateID: "classic",
		Total:      3,
		Sent:       3,
		FinishedAt: time.Now(),
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/history/", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var list HistoryListResponse
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if list.Total != 1 {
		t.Fatalf("expected 1 batch, got %d", list.Total)
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/history/"+id.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/history/"+id.String(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/history/"+id.String(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d", w.Code)
	}
}

func TestRegistry_CancelMissing(t *testing.T) {
	registry := NewBatchRegistry(&mockPipeline{}, nil, logger.Get())
	if registry.Cancel(uuid.New()) {
		t.Error("expected cancel of unknown batch to fail")
	}
}

func TestRegistry_FailedRun(t *testing.T) {
	runErr := errors.New("535 authentication failed")
	registry := NewBatchRegistry(&mockPipeline{runErr: models.NewError(models.KindCredential, runErr)}, nil, logger.Get())

	session := &pipeline.BatchSession{
		ID: uuid.New(),
		Table: &models.RecipientTable{
			Columns: []string{"Email"},
			Rows:    []models.RecipientRow{{Index: 0, Cells: map[string]string{"Email": "a@b.c"}}},
		},
	}
	registry.Start(session)

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, ok := registry.Status(session.ID)
		if !ok {
			t.Fatal("expected run to be registered")
		}
		if status.State != BatchStateRunning {
			if status.State != BatchStateFailed {
				t.Fatalf("expected FAILED, got %s", status.State)
			}
			if status.Error == "" {
				t.Error("expected error detail")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("run did not finish")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

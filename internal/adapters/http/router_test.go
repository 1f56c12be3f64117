package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkravets/fin-advisor-agent/internal/core/domain"
)

var errAny = errors.New("downstream failure")

type fakeQueryService struct {
	answer *domain.QueryAnswer
	err    error

	lastRequest domain.QueryRequest
}

func (f *fakeQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.QueryAnswer, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

type fakeUpdater struct {
	filesBatch *domain.IngestionBatch
	filesErr   error
	webBatch   *domain.IngestionBatch
	webErr     error
}

func (f *fakeUpdater) IngestFiles(context.Context) (*domain.IngestionBatch, error) {
	return f.filesBatch, f.filesErr
}

func (f *fakeUpdater) IngestWeb(context.Context) (*domain.IngestionBatch, error) {
	return f.webBatch, f.webErr
}

type fakeJobQueue struct {
	published []string
	err       error
}

func (f *fakeJobQueue) PublishKnowledgeBaseUpdate(_ context.Context, batchID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, batchID)
	return nil
}

func (f *fakeJobQueue) SubscribeKnowledgeBaseUpdate(context.Context, func(context.Context, string) error) error {
	return nil
}

func postJSONRequest(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(recorder.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	router := NewRouter(&fakeQueryService{}, &fakeUpdater{}, nil, nil, "api", nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	router.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected a request id on every response")
	}
}

func TestAnswerQueryReturnsAnswer(t *testing.T) {
	service := &fakeQueryService{answer: &domain.QueryAnswer{
		Answer:    "AAPL trades at 190.12 USD.",
		Citations: []domain.Citation{{SourceName: "aapl_profile.pdf", PageNumber: 2}},
		Strategy:  domain.StrategyStandard,
		Route:     domain.RouteBoth,
		State:     domain.StateAnswered,
	}}
	router := NewRouter(service, &fakeUpdater{}, nil, nil, "api", nil)

	recorder := postJSONRequest(t, router.Handler(), "/v1/query",
		`{"session_id":"s-1","user_id":"u-1","chat_id":"c-1","question":"What is AAPL trading at?"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var got domain.QueryAnswer
	decodeBody(t, recorder, &got)
	if got.Answer != service.answer.Answer {
		t.Fatalf("unexpected answer %q", got.Answer)
	}
	if len(got.Citations) != 1 || got.Citations[0].SourceName != "aapl_profile.pdf" {
		t.Fatalf("unexpected citations %+v", got.Citations)
	}
	if service.lastRequest.SessionID != "s-1" || service.lastRequest.UserID != "u-1" {
		t.Fatalf("request fields not forwarded: %+v", service.lastRequest)
	}
}

func TestAnswerQueryRejectsMissingFields(t *testing.T) {
	router := NewRouter(&fakeQueryService{}, &fakeUpdater{}, nil, nil, "api", nil)
	handler := router.Handler()

	cases := []struct {
		name string
		body string
	}{
		{"missing session", `{"question":"What is a bond?"}`},
		{"missing question", `{"session_id":"s-1"}`},
		{"blank question", `{"session_id":"s-1","question":"   "}`},
		{"invalid json", `{"session_id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := postJSONRequest(t, handler, "/v1/query", tc.body)
			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", recorder.Code)
			}
		})
	}
}

func TestAnswerQueryMapsErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"store unavailable", domain.WrapError(domain.ErrStoreUnavailable, "search", errAny), http.StatusServiceUnavailable},
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "answer", errAny), http.StatusBadRequest},
		{"timeout", domain.WrapError(domain.ErrTimeout, "synthesize", errAny), http.StatusServiceUnavailable},
		{"unknown", errAny, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := NewRouter(&fakeQueryService{err: tc.err}, &fakeUpdater{}, nil, nil, "api", nil)
			recorder := postJSONRequest(t, router.Handler(), "/v1/query",
				`{"session_id":"s-1","question":"anything"}`)
			if recorder.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, recorder.Code)
			}
		})
	}
}

func TestUpdateFromWebSyncReturnsBatch(t *testing.T) {
	updater := &fakeUpdater{webBatch: &domain.IngestionBatch{
		ID:             "b-1",
		Source:         domain.SourceWeb,
		Items:          3,
		ChunksInserted: 12,
		ChunksSkipped:  4,
	}}
	router := NewRouter(&fakeQueryService{}, updater, nil, nil, "api", nil)

	recorder := postJSONRequest(t, router.Handler(), "/v1/kb/update", "")

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var got domain.IngestionBatch
	decodeBody(t, recorder, &got)
	if got.ChunksInserted != 12 || got.Source != domain.SourceWeb {
		t.Fatalf("unexpected batch %+v", got)
	}
}

func TestUpdateFromWebAsyncQueuesJob(t *testing.T) {
	queue := &fakeJobQueue{}
	router := NewRouter(&fakeQueryService{}, &fakeUpdater{}, queue, nil, "api", nil)

	recorder := postJSONRequest(t, router.Handler(), "/v1/kb/update?mode=async", "")

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", recorder.Code)
	}
	var got map[string]string
	decodeBody(t, recorder, &got)
	if got["status"] != "queued" || got["batch_id"] == "" {
		t.Fatalf("unexpected response %+v", got)
	}
	if len(queue.published) != 1 || queue.published[0] != got["batch_id"] {
		t.Fatalf("expected the returned batch id to be published, got %+v", queue.published)
	}
}

func TestUpdateFromWebAsyncWithoutQueue(t *testing.T) {
	router := NewRouter(&fakeQueryService{}, &fakeUpdater{}, nil, nil, "api", nil)

	recorder := postJSONRequest(t, router.Handler(), "/v1/kb/update?mode=async", "")

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no queue is configured, got %d", recorder.Code)
	}
}

func TestIngestFilesReportsPartialFailure(t *testing.T) {
	batch := &domain.IngestionBatch{ID: "b-2", Source: domain.SourceFiles, ChunksInserted: 7}
	updater := &fakeUpdater{
		filesBatch: batch,
		filesErr: &domain.IngestionPartialError{
			StoredChunks: 7,
			Cause:        errAny,
		},
	}
	router := NewRouter(&fakeQueryService{}, updater, nil, nil, "api", nil)

	recorder := postJSONRequest(t, router.Handler(), "/v1/kb/ingest-files", "")

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for partial ingestion, got %d", recorder.Code)
	}
	var got struct {
		Error        string                `json:"error"`
		Batch        domain.IngestionBatch `json:"batch"`
		StoredChunks int                   `json:"stored_chunks"`
	}
	decodeBody(t, recorder, &got)
	if got.StoredChunks != 7 {
		t.Fatalf("expected durable chunk count in the response, got %d", got.StoredChunks)
	}
	if got.Batch.ID != "b-2" {
		t.Fatalf("expected the batch to accompany the error, got %+v", got.Batch)
	}
}

func TestQueryRejectsNonPost(t *testing.T) {
	router := NewRouter(&fakeQueryService{}, &fakeUpdater{}, nil, nil, "api", nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/query", nil)
	recorder := httptest.NewRecorder()
	router.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

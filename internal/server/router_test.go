package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docquery-ai/docquery/internal/api/handlers"
	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) SubmitDocument(ctx context.Context, filename, contentType string, data []byte) (*domain.Document, error) {
	args := m.Called(ctx, filename, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocumentStatus(ctx context.Context, id string) (*service.DocumentStatusResult, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentStatusResult), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Document), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) ReindexDocument(ctx context.Context, id string) (*domain.IngestionJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestionJob), args.Error(1)
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) Search(ctx context.Context, query string, topK int, documentIDs []string) ([]domain.RetrievalResult, error) {
	args := m.Called(ctx, query, topK, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalResult), args.Error(1)
}

func (m *MockQueryService) Answer(ctx context.Context, query string, topK int, documentIDs []string) (*domain.Answer, error) {
	args := m.Called(ctx, query, topK, documentIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Answer), args.Error(1)
}

func setupRouter() (http.Handler, *MockDocumentService, *MockQueryService) {
	docSvc := new(MockDocumentService)
	querySvc := new(MockQueryService)

	router := NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
	})
	return router, docSvc, querySvc
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_DocumentRoutes(t *testing.T) {
	router, docSvc, _ := setupRouter()

	doc := domain.NewDocument("d-1", "a.txt", "text/plain", 3, time.Now().UTC())
	docSvc.On("GetDocumentStatus", mock.Anything, "d-1").
		Return(&service.DocumentStatusResult{Document: doc}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/d-1", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	docSvc.AssertExpectations(t)
}

func TestRouter_SearchRoute(t *testing.T) {
	router, _, querySvc := setupRouter()

	querySvc.On("Search", mock.Anything, "질문", 0, []string(nil)).
		Return([]domain.RetrievalResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(`{"query":"질문"}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	querySvc.AssertExpectations(t)
}

func TestRouter_BodyLimitRejectsOversizedRequests(t *testing.T) {
	docSvc := new(MockDocumentService)
	querySvc := new(MockQueryService)
	router := NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docSvc),
		QueryHandler:    handlers.NewQueryHandler(querySvc),
		MaxBodyBytes:    16,
	})

	body := bytes.Repeat([]byte("a"), 64)
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

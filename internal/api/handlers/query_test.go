package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/docquery-ai/docquery/internal/domain"
)

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

func jsonRequest(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestQueryHandler_Search_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	results := []domain.RetrievalResult{
		{ChunkID: "c-1", DocumentID: "d-1", Sequence: 0, Score: 0.92, Text: "환불 규정"},
	}
	mockSvc.On("Search", mock.Anything, "환불 정책", 5, []string(nil)).Return(results, nil)

	req := jsonRequest(http.MethodPost, "/search", `{"query":"환불 정책","top_k":5}`)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	items := data["results"].([]interface{})
	require.Len(t, items, 1)
	hit := items[0].(map[string]interface{})
	assert.Equal(t, "c-1", hit["chunk_id"])
	assert.InDelta(t, 0.92, hit["score"].(float64), 0.001)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Search_EmptyResults(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, "무관한 질문", 0, []string(nil)).
		Return([]domain.RetrievalResult{}, nil)

	req := jsonRequest(http.MethodPost, "/search", `{"query":"무관한 질문"}`)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestQueryHandler_Search_EmptyQuery(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	req := jsonRequest(http.MethodPost, "/search", `{"query":"   "}`)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "query is required")
}

func TestQueryHandler_Search_TopKOutOfRange(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	req := jsonRequest(http.MethodPost, "/search", `{"query":"q","top_k":500}`)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryHandler_Search_DocumentFilter(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Search", mock.Anything, "질문", 3, []string{"d-1", "d-2"}).
		Return([]domain.RetrievalResult{}, nil)

	req := jsonRequest(http.MethodPost, "/search", `{"query":"질문","top_k":3,"document_ids":["d-1","d-2"]}`)
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Answer_Success(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	answer := &domain.Answer{
		Text:      "환불은 구매 후 7일 이내에 가능합니다. [1]",
		Sources:   []domain.RetrievalResult{{ChunkID: "c-1", DocumentID: "d-1", Score: 0.9, Text: "환불 규정"}},
		Model:     "gpt-4o-mini",
		LatencyMS: 420,
	}
	mockSvc.On("Answer", mock.Anything, "환불 정책은?", 5, []string(nil)).Return(answer, nil)

	req := jsonRequest(http.MethodPost, "/answer", `{"query":"환불 정책은?","top_k":5}`)
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Contains(t, data["answer"], "[1]")
	sources := data["sources"].([]interface{})
	require.Len(t, sources, 1)
	assert.Equal(t, "gpt-4o-mini", data["model"])
	mockSvc.AssertExpectations(t)
}

func TestQueryHandler_Answer_NoRelevantContext(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, "무관한 질문", 0, []string(nil)).
		Return(nil, domain.ErrNoRelevantContext)

	req := jsonRequest(http.MethodPost, "/answer", `{"query":"무관한 질문"}`)
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeNoContext)
}

func TestQueryHandler_Answer_GenerationUnavailable(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	mockSvc.On("Answer", mock.Anything, "질문", 0, []string(nil)).
		Return(nil, domain.ErrGenerationUnavailable)

	req := jsonRequest(http.MethodPost, "/answer", `{"query":"질문"}`)
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeGenerationUnavailable)
}

func TestQueryHandler_Answer_InvalidJSON(t *testing.T) {
	mockSvc := new(MockQueryService)
	handler := NewQueryHandler(mockSvc)

	req := jsonRequest(http.MethodPost, "/answer", `{invalid`)
	w := httptest.NewRecorder()

	handler.Answer(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/docquery-ai/docquery/internal/api"
	"github.com/docquery-ai/docquery/internal/domain"
)

const maxTopK = 50

type QueryService interface {
	Search(ctx context.Context, query string, topK int, documentIDs []string) ([]domain.RetrievalResult, error)
	Answer(ctx context.Context, query string, topK int, documentIDs []string) (*domain.Answer, error)
}

type QueryHandler struct {
	svc QueryService
}

func NewQueryHandler(svc QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query       string   `json:"query"`
	TopK        int      `json:"top_k"`
	DocumentIDs []string `json:"document_ids"`
}

type SearchResultResponse struct {
	ChunkID    string   `json:"chunk_id"`
	DocumentID string   `json:"document_id"`
	Sequence   int      `json:"sequence"`
	Score      float32  `json:"score"`
	Text       string   `json:"text"`
	Keywords   []string `json:"keywords,omitempty"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

type AnswerResponse struct {
	Answer    string                 `json:"answer"`
	Sources   []SearchResultResponse `json:"sources"`
	Model     string                 `json:"model"`
	LatencyMS int64                  `json:"latency_ms"`
}

func resultToResponse(r domain.RetrievalResult) SearchResultResponse {
	return SearchResultResponse{
		ChunkID:    r.ChunkID,
		DocumentID: r.DocumentID,
		Sequence:   r.Sequence,
		Score:      r.Score,
		Text:       r.Text,
		Keywords:   r.Keywords,
	}
}

func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (*QueryRequest, bool) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}

	if strings.TrimSpace(req.Query) == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return nil, false
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		api.Error(w, http.StatusBadRequest, "top_k must be between 0 and 50")
		return nil, false
	}
	return &req, true
}

func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	results, err := h.svc.Search(r.Context(), req.Query, req.TopK, req.DocumentIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, resultToResponse(res))
	}
	api.Success(w, http.StatusOK, resp)
}

func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Query, req.TopK, req.DocumentIDs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := AnswerResponse{
		Answer:    answer.Text,
		Sources:   make([]SearchResultResponse, 0, len(answer.Sources)),
		Model:     answer.Model,
		LatencyMS: answer.LatencyMS,
	}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, resultToResponse(src))
	}
	api.Success(w, http.StatusOK, resp)
}

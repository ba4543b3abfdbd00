package handlers

import (
	"context"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docquery-ai/docquery/internal/api"
	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/service"
)

const defaultListLimit = 50

type DocumentService interface {
	SubmitDocument(ctx context.Context, filename, contentType string, data []byte) (*domain.Document, error)
	GetDocumentStatus(ctx context.Context, id string) (*service.DocumentStatusResult, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	ReindexDocument(ctx context.Context, id string) (*domain.IngestionJob, error)
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	ErrorReason string `json:"error_reason,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	UploadedAt  string `json:"uploaded_at"`
	UpdatedAt   string `json:"updated_at"`
}

type JobResponse struct {
	ID            string `json:"id"`
	Stage         string `json:"stage"`
	Status        string `json:"status"`
	Attempts      int32  `json:"attempts"`
	LastError     string `json:"last_error,omitempty"`
	NextAttemptAt string `json:"next_attempt_at"`
}

type DocumentStatusResponse struct {
	Document *DocumentResponse `json:"document"`
	Job      *JobResponse      `json:"job,omitempty"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:          d.ID,
		Filename:    d.Filename,
		MimeType:    d.MimeType,
		SizeBytes:   d.SizeBytes,
		Status:      string(d.Status),
		ErrorReason: d.ErrorReason,
		ChunkCount:  d.ChunkCount,
		UploadedAt:  d.UploadedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func jobToResponse(j *domain.IngestionJob) *JobResponse {
	return &JobResponse{
		ID:            j.ID,
		Stage:         string(j.Stage),
		Status:        string(j.Status),
		Attempts:      j.Attempts,
		LastError:     j.LastError,
		NextAttemptAt: j.NextAttemptAt.UTC().Format(time.RFC3339),
	}
}

// Upload accepts a multipart form with a single "file" field and enqueues
// it for ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}

	doc, err := h.svc.SubmitDocument(r.Context(), header.Filename, contentType, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	res, err := h.svc.GetDocumentStatus(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := &DocumentStatusResponse{Document: documentToResponse(res.Document)}
	if res.Job != nil {
		resp.Job = jobToResponse(res.Job)
	}
	api.Success(w, http.StatusOK, resp)
}

type DocumentListResponse struct {
	Items []*DocumentResponse `json:"items"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	docs, err := h.svc.ListDocuments(r.Context(), limit, offset)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*DocumentResponse, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentToResponse(d))
	}
	api.Success(w, http.StatusOK, DocumentListResponse{Items: items})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *DocumentHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.ReindexDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

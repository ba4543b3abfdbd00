package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/storage"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

type seqUUIDGen struct {
	n int
}

func (g *seqUUIDGen) NewString() string {
	g.n++
	return map[int]string{
		1: "00000000-0000-0000-0000-000000000001",
		2: "00000000-0000-0000-0000-000000000002",
		3: "00000000-0000-0000-0000-000000000003",
	}[g.n]
}

type fakeDocs struct {
	docs      map[string]*domain.Document
	createErr error
}

func newFakeDocs() *fakeDocs { return &fakeDocs{docs: map[string]*domain.Document{}} }

func (f *fakeDocs) Create(_ context.Context, d *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.docs[d.ID] = d
	return nil
}

func (f *fakeDocs) GetByID(_ context.Context, id string) (*domain.Document, error) {
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return d, nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, reason string) error {
	d, ok := f.docs[id]
	if !ok {
		return domain.ErrDocumentNotFound
	}
	d.Status = status
	d.ErrorReason = reason
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocs) List(_ context.Context, _, _ int) ([]*domain.Document, error) {
	out := make([]*domain.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

type fakeJobs struct {
	jobs      map[string]*domain.IngestionJob
	cancelled []string
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[string]*domain.IngestionJob{}} }

func (f *fakeJobs) Create(_ context.Context, job *domain.IngestionJob) error {
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) GetActiveByDocument(_ context.Context, documentID string) (*domain.IngestionJob, error) {
	for _, j := range f.jobs {
		if j.DocumentID == documentID &&
			(j.Status == domain.JobStatusPending || j.Status == domain.JobStatusRunning) {
			return j, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (f *fakeJobs) CancelByDocument(_ context.Context, documentID string) error {
	f.cancelled = append(f.cancelled, documentID)
	for _, j := range f.jobs {
		if j.DocumentID == documentID && !isTerminalJob(j.Status) {
			j.Status = domain.JobStatusCancelled
		}
	}
	return nil
}

func isTerminalJob(s domain.IngestionJobStatus) bool {
	return s == domain.JobStatusCompleted || s == domain.JobStatusFailed || s == domain.JobStatusCancelled
}

type fakeBlobs struct {
	objects map[string][]byte
	deleted []string
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{objects: map[string][]byte{}} }

func (f *fakeBlobs) PutObject(_ context.Context, key, _ string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeBlobs) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) HeadObject(_ context.Context, key string) (*storage.ObjectMetadata, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return &storage.ObjectMetadata{ContentLength: int64(len(data))}, nil
}

type fakeIndex struct {
	deleted []string
}

func (f *fakeIndex) Upsert(context.Context, []vectorindex.Entry) error { return nil }
func (f *fakeIndex) Search(context.Context, []float32, int, vectorindex.Filter) ([]vectorindex.Hit, error) {
	return nil, nil
}
func (f *fakeIndex) DeleteDocument(_ context.Context, documentID string) error {
	f.deleted = append(f.deleted, documentID)
	return nil
}
func (f *fakeIndex) CountDocument(context.Context, string) (int, error) { return 0, nil }

func newIngestFixture() (*IngestService, *fakeDocs, *fakeJobs, *fakeBlobs, *fakeIndex) {
	docs := newFakeDocs()
	jobs := newFakeJobs()
	blobs := newFakeBlobs()
	index := &fakeIndex{}
	svc := NewIngestServiceWithUUIDGen(docs, jobs, blobs, index, 1024, &seqUUIDGen{})
	return svc, docs, jobs, blobs, index
}

func TestIngestService_SubmitDocument(t *testing.T) {
	svc, docs, jobs, blobs, _ := newIngestFixture()

	doc, err := svc.SubmitDocument(context.Background(), "약관.pdf", "application/pdf", []byte("%PDF-1.4 data"))
	require.NoError(t, err)

	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Equal(t, int64(13), doc.SizeBytes)
	assert.Contains(t, docs.docs, doc.ID)
	assert.Contains(t, blobs.objects, doc.ID)

	job, err := jobs.GetActiveByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageParse, job.Stage)
	assert.Equal(t, domain.JobStatusPending, job.Status)
}

func TestIngestService_SubmitValidation(t *testing.T) {
	svc, _, _, _, _ := newIngestFixture()

	_, err := svc.SubmitDocument(context.Background(), "", "text/plain", []byte("x"))
	assert.Error(t, err)

	_, err = svc.SubmitDocument(context.Background(), "a.txt", "text/plain", nil)
	assert.True(t, errors.Is(err, domain.ErrEmptyDocument))

	_, err = svc.SubmitDocument(context.Background(), "big.txt", "text/plain", make([]byte, 2048))
	assert.True(t, errors.Is(err, domain.ErrFileTooLarge))
}

func TestIngestService_SubmitCleansBlobOnCreateFailure(t *testing.T) {
	svc, docs, _, blobs, _ := newIngestFixture()
	docs.createErr = errors.New("db down")

	_, err := svc.SubmitDocument(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Empty(t, blobs.objects)
	assert.Len(t, blobs.deleted, 1)
}

func TestIngestService_GetDocumentStatus(t *testing.T) {
	svc, _, jobs, _, _ := newIngestFixture()

	doc, err := svc.SubmitDocument(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	res, err := svc.GetDocumentStatus(context.Background(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Job)
	assert.Equal(t, doc.ID, res.Job.DocumentID)

	// Once the job completes, status carries no job.
	for _, j := range jobs.jobs {
		j.Status = domain.JobStatusCompleted
	}
	res, err = svc.GetDocumentStatus(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Nil(t, res.Job)

	_, err = svc.GetDocumentStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrDocumentNotFound))
}

func TestIngestService_DeleteDocument(t *testing.T) {
	svc, docs, jobs, blobs, index := newIngestFixture()

	doc, err := svc.SubmitDocument(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(context.Background(), doc.ID))

	assert.NotContains(t, docs.docs, doc.ID)
	assert.Contains(t, jobs.cancelled, doc.ID)
	assert.Contains(t, index.deleted, doc.ID)
	assert.Contains(t, blobs.deleted, doc.ID)

	assert.True(t, errors.Is(svc.DeleteDocument(context.Background(), doc.ID), domain.ErrDocumentNotFound))
}

func TestIngestService_Reindex(t *testing.T) {
	svc, _, jobs, _, _ := newIngestFixture()

	doc, err := svc.SubmitDocument(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	// Rejected while the original ingestion is still live.
	_, err = svc.ReindexDocument(context.Background(), doc.ID)
	assert.Error(t, err)

	for _, j := range jobs.jobs {
		j.Status = domain.JobStatusCompleted
	}

	job, err := svc.ReindexDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageParse, job.Stage)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, domain.DocumentStatusPending, docStatus(t, svc, doc.ID))
}

func TestIngestService_ReindexRequiresStoredBlob(t *testing.T) {
	svc, _, jobs, blobs, _ := newIngestFixture()

	doc, err := svc.SubmitDocument(context.Background(), "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)
	for _, j := range jobs.jobs {
		j.Status = domain.JobStatusCompleted
	}
	delete(blobs.objects, doc.ID)

	_, err = svc.ReindexDocument(context.Background(), doc.ID)
	assert.True(t, errors.Is(err, domain.ErrCorruptFile))
}

func docStatus(t *testing.T, svc *IngestService, id string) domain.DocumentStatus {
	t.Helper()
	res, err := svc.GetDocumentStatus(context.Background(), id)
	require.NoError(t, err)
	return res.Document.Status
}

type scriptedRetriever struct {
	results []domain.RetrievalResult
	err     error
}

func (s *scriptedRetriever) Retrieve(context.Context, string, int, []string) ([]domain.RetrievalResult, error) {
	return s.results, s.err
}

type scriptedGenerator struct {
	answer *domain.Answer
	err    error
	called bool
}

func (s *scriptedGenerator) Generate(context.Context, string, []domain.RetrievalResult) (*domain.Answer, error) {
	s.called = true
	return s.answer, s.err
}

func TestQueryService_SearchPassesThrough(t *testing.T) {
	results := []domain.RetrievalResult{{ChunkID: "c1", Score: 0.8}}
	svc := NewQueryService(&scriptedRetriever{results: results}, &scriptedGenerator{})

	got, err := svc.Search(context.Background(), "질문", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, results, got)
}

func TestQueryService_AnswerNoContext(t *testing.T) {
	gen := &scriptedGenerator{}
	svc := NewQueryService(&scriptedRetriever{}, gen)

	_, err := svc.Answer(context.Background(), "질문", 5, nil)
	assert.True(t, errors.Is(err, domain.ErrNoRelevantContext))
	assert.False(t, gen.called)
}

func TestQueryService_AnswerHappyPath(t *testing.T) {
	want := &domain.Answer{Text: "답변 [1]", Model: "m", LatencyMS: 12}
	svc := NewQueryService(
		&scriptedRetriever{results: []domain.RetrievalResult{{ChunkID: "c1", Score: 0.9}}},
		&scriptedGenerator{answer: want},
	)

	got, err := svc.Answer(context.Background(), "질문", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQueryService_GenerationFailureIsNotNoContext(t *testing.T) {
	svc := NewQueryService(
		&scriptedRetriever{results: []domain.RetrievalResult{{ChunkID: "c1", Score: 0.9}}},
		&scriptedGenerator{err: domain.ErrGenerationUnavailable},
	)

	_, err := svc.Answer(context.Background(), "질문", 5, nil)
	assert.True(t, errors.Is(err, domain.ErrGenerationUnavailable))
	assert.False(t, errors.Is(err, domain.ErrNoRelevantContext))
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/ingest"
	"github.com/docquery-ai/docquery/internal/keyword"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

// DocumentStore is the slice of the document repository the pipeline needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errorReason string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// JobStore is the slice of the job repository the pipeline needs.
type JobStore interface {
	ClaimNext(ctx context.Context) (*domain.IngestionJob, error)
	SetStage(ctx context.Context, id string, stage domain.IngestionStage) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, reason string) error
	Reschedule(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error
	IsCancelled(ctx context.Context, id string) (bool, error)
}

// BlobStore fetches the raw uploaded bytes.
type BlobStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// PassageEmbedder embeds chunk texts.
type PassageEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// KeywordExtractor produces best-effort keywords per chunk.
type KeywordExtractor interface {
	Extract(ctx context.Context, text string) keyword.Result
}

// Config bounds the orchestrator's retry and timeout behavior.
type Config struct {
	MaxAttempts  int
	BackoffBase  time.Duration
	ParseTimeout time.Duration
}

// Orchestrator drives one claimed ingestion job through the stage chain:
// parse, chunk, embed, extract, index. Each stage boundary persists the
// stage pointer and checks for cancellation, so a crashed or retried job
// resumes where it stopped and a deleted document stops its own ingestion.
type Orchestrator struct {
	docs     DocumentStore
	jobs     JobStore
	blobs    BlobStore
	parser   *ingest.Parser
	params   ingest.ChunkParams
	embedder PassageEmbedder
	keywords KeywordExtractor
	index    vectorindex.Index
	cfg      Config
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(
	docs DocumentStore,
	jobs JobStore,
	blobs BlobStore,
	parser *ingest.Parser,
	params ingest.ChunkParams,
	embedder PassageEmbedder,
	keywords KeywordExtractor,
	index vectorindex.Index,
	cfg Config,
) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		docs:     docs,
		jobs:     jobs,
		blobs:    blobs,
		parser:   parser,
		params:   params,
		embedder: embedder,
		keywords: keywords,
		index:    index,
		cfg:      cfg,
	}
}

// ProcessNext claims and runs one due job. Returns false when no job was
// due. Job-level failures are absorbed into the job's own state; only
// claiming errors surface to the caller.
func (o *Orchestrator) ProcessNext(ctx context.Context) (bool, error) {
	job, err := o.jobs.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("claiming job: %w", err)
	}

	o.run(ctx, job)
	return true, nil
}

func (o *Orchestrator) run(ctx context.Context, job *domain.IngestionJob) {
	err := o.runStages(ctx, job)
	if err == nil {
		return
	}
	if errors.Is(err, errJobCancelled) {
		log.Printf("pipeline: job %s cancelled, stopping", job.ID)
		return
	}

	reason := err.Error()
	if domain.IsRetryable(err) && int(job.Attempts)+1 < o.cfg.MaxAttempts {
		// Exponential backoff keyed on the attempt counter before this
		// failure: 1x, 2x, 4x the base.
		delay := o.cfg.BackoffBase << uint(job.Attempts)
		next := time.Now().UTC().Add(delay)
		log.Printf("pipeline: job %s stage %s failed (attempt %d), retrying in %v: %v",
			job.ID, job.Stage, job.Attempts+1, delay, err)
		if rerr := o.jobs.Reschedule(ctx, job.ID, reason, next); rerr != nil {
			log.Printf("pipeline: rescheduling job %s: %v", job.ID, rerr)
		}
		return
	}

	log.Printf("pipeline: job %s failed permanently at stage %s: %v", job.ID, job.Stage, err)
	if ferr := o.jobs.Fail(ctx, job.ID, reason); ferr != nil {
		log.Printf("pipeline: marking job %s failed: %v", job.ID, ferr)
	}
	if derr := o.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusFailed, reason); derr != nil {
		log.Printf("pipeline: marking document %s failed: %v", job.DocumentID, derr)
	}
}

var errJobCancelled = errors.New("job cancelled")

// runStages recomputes the pure stages every run and resumes side effects
// from the persisted stage pointer. Parse and chunk outputs feed later
// stages, so a job resuming at embed still re-derives them from the stored
// blob; only the stage at or past the pointer updates job and document
// state.
func (o *Orchestrator) runStages(ctx context.Context, job *domain.IngestionJob) error {
	doc, err := o.docs.GetByID(ctx, job.DocumentID)
	if err != nil {
		return err
	}

	data, err := o.blobs.GetObject(ctx, doc.ID)
	if err != nil {
		return err
	}

	// Parse.
	if err := o.enterStage(ctx, job, domain.StageParse); err != nil {
		return err
	}
	text, err := o.parse(ctx, data, doc)
	if err != nil {
		return err
	}

	// Chunk.
	if err := o.enterStage(ctx, job, domain.StageChunk); err != nil {
		return err
	}
	spans, err := ingest.SplitText(text, o.params)
	if err != nil {
		return err
	}
	if len(spans) == 0 {
		return domain.ErrEmptyDocument
	}

	// Embed.
	if err := o.enterStage(ctx, job, domain.StageEmbed); err != nil {
		return err
	}
	texts := make([]string, len(spans))
	for i, s := range spans {
		texts[i] = s.Text
	}
	vectors, err := o.embedder.EmbedPassages(ctx, texts)
	if err != nil {
		return err
	}

	// Extract. Keyword failures degrade instead of failing the document.
	if err := o.enterStage(ctx, job, domain.StageExtract); err != nil {
		return err
	}
	keywords := make([][]string, len(spans))
	for i, s := range spans {
		res := o.keywords.Extract(ctx, s.Text)
		if res.Degraded {
			log.Printf("pipeline: document %s chunk %d keywords degraded: %s", doc.ID, i, res.Reason)
		}
		keywords[i] = res.Keywords
	}

	// Index.
	if err := o.enterStage(ctx, job, domain.StageIndex); err != nil {
		return err
	}
	entries := make([]vectorindex.Entry, len(spans))
	for i, s := range spans {
		entries[i] = vectorindex.Entry{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Sequence:   i,
			Text:       s.Text,
			Keywords:   keywords[i],
			Vector:     vectors[i],
		}
	}
	// Drop entries from any previous run first: if the chunking config
	// shrank the chunk count, the old higher-sequence entries must not stay
	// searchable with stale text.
	if err := o.index.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	if err := o.index.Upsert(ctx, entries); err != nil {
		return err
	}

	if err := o.docs.SetChunkCount(ctx, doc.ID, len(entries)); err != nil {
		return err
	}
	if err := o.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusIndexed, ""); err != nil {
		return err
	}
	return o.jobs.Complete(ctx, job.ID)
}

// enterStage checks cancellation and, when the pipeline has caught up to
// the job's persisted stage, advances the pointer and the document status.
func (o *Orchestrator) enterStage(ctx context.Context, job *domain.IngestionJob, stage domain.IngestionStage) error {
	cancelled, err := o.jobs.IsCancelled(ctx, job.ID)
	if err != nil {
		return err
	}
	if cancelled {
		return errJobCancelled
	}

	if domain.StageOrder(stage) < domain.StageOrder(job.Stage) {
		return nil
	}
	if stage != job.Stage {
		if err := o.jobs.SetStage(ctx, job.ID, stage); err != nil {
			return err
		}
		job.Stage = stage
	}
	return o.docs.UpdateStatus(ctx, job.DocumentID, domain.DocumentStatusForStage(stage), "")
}

func (o *Orchestrator) parse(ctx context.Context, data []byte, doc *domain.Document) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.ParseTimeout)
	defer cancel()
	return o.parser.Parse(pctx, data, doc.MimeType, doc.Filename)
}

// chunkNamespace scopes deterministic chunk IDs to this service.
var chunkNamespace = uuid.MustParse("9f2c1b34-7a6e-4e0d-9c3a-5b8d2f1e4a07")

// ChunkID derives a stable UUID from document ID and sequence, so
// re-indexing a document overwrites its chunks instead of duplicating
// them.
func ChunkID(documentID string, seq int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d", documentID, seq))).String()
}

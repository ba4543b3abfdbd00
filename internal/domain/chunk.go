package domain

// Chunk is a bounded, overlapping slice of a document's extracted text,
// the unit of embedding and retrieval. Immutable once created; owned by
// its parent document and deleted with it.
type Chunk struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	CharStart  int
	CharEnd    int
	Keywords   []string
	Embedding  []float32
}

// RetrievalResult is one scored hit from a similarity search. Ephemeral,
// never persisted.
type RetrievalResult struct {
	ChunkID    string
	DocumentID string
	Sequence   int
	Score      float32
	Text       string
	Keywords   []string
}

// Answer is a generated response grounded in retrieved chunks. Sources
// holds exactly the results whose text made it into the prompt.
type Answer struct {
	Text      string
	Sources   []RetrievalResult
	Model     string
	LatencyMS int64
}

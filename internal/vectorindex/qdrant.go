package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// QdrantIndex talks to Qdrant over its REST API. The surface this service
// needs is small enough that a thin HTTP client beats carrying the grpc
// stack.
type QdrantIndex struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig configures the Qdrant-backed index.
type QdrantConfig struct {
	BaseURL    string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewQdrantIndex builds the client. Call Init before first use.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "chunks"
	}
	return &QdrantIndex{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection with cosine distance if it does not exist.
// Qdrant answers 200 for an existing collection with the same schema.
func (x *QdrantIndex) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return x.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", x.collection), body, nil)
}

// Upsert writes points keyed by chunk ID, so repeating an indexing stage
// replaces points instead of duplicating them.
func (x *QdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]map[string]any, len(entries))
	for i, e := range entries {
		points[i] = map[string]any{
			"id":     e.ID,
			"vector": e.Vector,
			"payload": map[string]any{
				"document_id": e.DocumentID,
				"seq":         e.Sequence,
				"text":        e.Text,
				"keywords":    e.Keywords,
			},
		}
	}
	body := map[string]any{"points": points}
	return x.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", x.collection), body, nil)
}

type qdrantHit struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Payload struct {
		DocumentID string   `json:"document_id"`
		Seq        int      `json:"seq"`
		Text       string   `json:"text"`
		Keywords   []string `json:"keywords"`
	} `json:"payload"`
}

// Search returns the topK nearest points. Qdrant only guarantees score
// order, so equal scores are re-sorted by document ID then sequence here to
// keep result order total.
func (x *QdrantIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if len(filter.DocumentIDs) > 0 {
		req["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"any": filter.DocumentIDs}},
			},
		}
	}

	var resp struct {
		Result []qdrantHit `json:"result"`
	}
	err := x.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", x.collection), req, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			ID:         r.ID,
			DocumentID: r.Payload.DocumentID,
			Sequence:   r.Payload.Seq,
			Text:       r.Payload.Text,
			Keywords:   r.Payload.Keywords,
			Score:      r.Score,
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		if hits[a].DocumentID != hits[b].DocumentID {
			return hits[a].DocumentID < hits[b].DocumentID
		}
		return hits[a].Sequence < hits[b].Sequence
	})
	return hits, nil
}

// DeleteDocument removes every point whose payload references the document.
func (x *QdrantIndex) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	return x.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/delete?wait=true", x.collection), body, nil)
}

// CountDocument reports how many points a document has in the collection.
func (x *QdrantIndex) CountDocument(ctx context.Context, documentID string) (int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
		"exact": true,
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := x.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", x.collection), body, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (x *QdrantIndex) do(ctx context.Context, method, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return storeErr(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return storeErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return storeErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return storeErr(fmt.Errorf("qdrant %s %s: %s", method, path, resp.Status))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

var _ Index = (*QdrantIndex)(nil)

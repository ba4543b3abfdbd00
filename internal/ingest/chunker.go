package ingest

import (
	"fmt"
)

// ChunkParams controls how extracted text is windowed. Units are runes.
type ChunkParams struct {
	Size    int
	Overlap int
}

// DefaultChunkParams matches the embedding model's comfortable input size.
func DefaultChunkParams() ChunkParams {
	return ChunkParams{Size: 500, Overlap: 50}
}

func (p ChunkParams) validate() error {
	if p.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", p.Size)
	}
	if p.Overlap < 0 {
		return fmt.Errorf("chunk overlap cannot be negative, got %d", p.Overlap)
	}
	if p.Overlap >= p.Size {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", p.Overlap, p.Size)
	}
	return nil
}

// Span is one chunk window over the source text. Start and End are rune
// offsets; Text is exactly the runes in [Start, End).
type Span struct {
	Text  string
	Start int
	End   int
}

// SplitText slices text into overlapping windows of exactly p.Size runes
// (the final window may be shorter), each starting p.Size-p.Overlap runes
// after the previous one. The windows cover the input with no gaps and the
// overlap between neighbors is exactly p.Overlap, so the number of chunks
// is ceil((len-overlap)/(size-overlap)). Pure: same input and params,
// same output. Empty input yields zero spans.
func SplitText(text string, p ChunkParams) ([]Span, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= p.Size {
		return []Span{{Text: text, Start: 0, End: len(runes)}}, nil
	}

	step := p.Size - p.Overlap
	spans := make([]Span, 0, (len(runes)-p.Overlap+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + p.Size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, Span{
			Text:  string(runes[start:end]),
			Start: start,
			End:   end,
		})
		if end == len(runes) {
			break
		}
	}

	return spans, nil
}

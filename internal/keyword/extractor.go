package keyword

import (
	"context"
	"log"
	"sort"
	"strings"
)

// Extractor produces keywords for a piece of text using one method.
type Extractor interface {
	// Name identifies the method in logs and degradation reasons.
	Name() string
	Extract(ctx context.Context, text string) ([]string, error)
}

// Result is the merged output of all configured extractors. Extraction is
// best-effort: a failing method degrades the result instead of failing the
// document.
type Result struct {
	Keywords []string
	Degraded bool
	Reason   string
}

// Set runs a group of extractors and merges their output.
type Set struct {
	extractors []Extractor
	perText    int
}

// NewSet builds a Set. perText caps the merged keyword count per text.
func NewSet(perText int, extractors ...Extractor) *Set {
	if perText <= 0 {
		perText = 10
	}
	return &Set{extractors: extractors, perText: perText}
}

// Extract runs every configured method and merges the keywords, deduplicated
// case-insensitively, preserving first-seen order. Methods that fail are
// skipped and reported through Degraded; Extract itself never returns an
// error.
func (s *Set) Extract(ctx context.Context, text string) Result {
	var (
		merged  []string
		seen    = map[string]struct{}{}
		failed  []string
		anyDone bool
	)

	for _, ex := range s.extractors {
		kws, err := ex.Extract(ctx, text)
		if err != nil {
			log.Printf("keyword: %s extraction failed: %v", ex.Name(), err)
			failed = append(failed, ex.Name())
			continue
		}
		anyDone = true
		for _, kw := range kws {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			key := strings.ToLower(kw)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, kw)
		}
	}

	if len(merged) > s.perText {
		merged = merged[:s.perText]
	}

	res := Result{Keywords: merged}
	if len(failed) > 0 {
		res.Degraded = true
		sort.Strings(failed)
		res.Reason = "extraction methods failed: " + strings.Join(failed, ", ")
		if !anyDone {
			res.Reason = "all " + res.Reason
		}
	}
	return res
}

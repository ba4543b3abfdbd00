package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docquery-ai/docquery/internal/domain"
)

const systemPrompt = "You answer questions using only the numbered context passages provided. " +
	"Cite passages with bracketed numbers like [1]. " +
	"If the context does not contain the answer, say you cannot answer from the available documents. " +
	"Answer in the language of the question."

// buildPrompt formats retrieval results into a numbered context block
// followed by the question. Results are included highest score first until
// the rune budget is spent; the returned slice holds exactly the results
// whose text made it into the prompt, in citation order.
func buildPrompt(query string, results []domain.RetrievalResult, contextBudget int) (string, []domain.RetrievalResult) {
	ordered := make([]domain.RetrievalResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(a, b int) bool {
		return ordered[a].Score > ordered[b].Score
	})

	var (
		sb       strings.Builder
		included []domain.RetrievalResult
		used     int
	)
	sb.WriteString("Context passages:\n\n")
	for _, r := range ordered {
		cost := len([]rune(r.Text))
		if contextBudget > 0 && used+cost > contextBudget && len(included) > 0 {
			// Stop at the first over-budget result: anything after it scores
			// lower and must not be cited ahead of it.
			break
		}
		included = append(included, r)
		used += cost
		fmt.Fprintf(&sb, "[%d] %s\n\n", len(included), r.Text)
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)
	return sb.String(), included
}

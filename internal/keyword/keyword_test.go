package keyword

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedExtractor struct {
	name string
	kws  []string
	err  error
}

func (f *fixedExtractor) Name() string { return f.name }
func (f *fixedExtractor) Extract(context.Context, string) ([]string, error) {
	return f.kws, f.err
}

func TestStatistical_FrequencyRanking(t *testing.T) {
	e := NewStatisticalExtractor(3)

	text := "결제 시스템 점검 안내. 결제 서비스가 중단됩니다. 결제 오류 발생 시 시스템 관리자에게 문의하세요. 시스템 복구 예정."
	kws, err := e.Extract(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, kws, 3)
	assert.Equal(t, "결제", kws[0])
	assert.Equal(t, "시스템", kws[1])
}

func TestStatistical_Deterministic(t *testing.T) {
	e := NewStatisticalExtractor(10)
	text := "gateway timeout gateway retry limit retry backoff gateway"

	a, err := e.Extract(context.Background(), text)
	require.NoError(t, err)
	b, err := e.Extract(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "gateway", a[0])
	assert.Equal(t, "retry", a[1])
}

func TestStatistical_DropsStopwordsAndNumbers(t *testing.T) {
	e := NewStatisticalExtractor(10)

	kws, err := e.Extract(context.Background(), "the invoice and the 2024 invoice for 12345 billing")
	require.NoError(t, err)
	assert.Contains(t, kws, "invoice")
	assert.Contains(t, kws, "billing")
	assert.NotContains(t, kws, "the")
	assert.NotContains(t, kws, "and")
	assert.NotContains(t, kws, "2024")
	assert.NotContains(t, kws, "12345")
}

func TestStatistical_StripsKoreanParticles(t *testing.T) {
	e := NewStatisticalExtractor(5)

	// Same stem with different particles should fold together.
	kws, err := e.Extract(context.Background(), "문서는 문서를 문서의 검토 대상입니다")
	require.NoError(t, err)
	assert.Equal(t, "문서", kws[0])
}

func TestQueryTerms(t *testing.T) {
	// Particles stripped, stopwords dropped, duplicates folded.
	assert.Equal(t, []string{"환불", "정책"}, QueryTerms("환불은 그리고 환불 정책의"))
	assert.Equal(t, []string{"refund", "Policy"}, QueryTerms("refund the Policy refund"))
	assert.Empty(t, QueryTerms("  "))
}

func TestStatistical_EmptyText(t *testing.T) {
	e := NewStatisticalExtractor(5)

	kws, err := e.Extract(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, kws)
}

func TestSet_MergesAndDeduplicates(t *testing.T) {
	s := NewSet(10,
		&fixedExtractor{name: "a", kws: []string{"결제", "시스템", "Billing"}},
		&fixedExtractor{name: "b", kws: []string{"billing", "환불", "결제"}},
	)

	res := s.Extract(context.Background(), "text")
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"결제", "시스템", "Billing", "환불"}, res.Keywords)
}

func TestSet_CapsPerText(t *testing.T) {
	s := NewSet(2, &fixedExtractor{name: "a", kws: []string{"one", "two", "three"}})

	res := s.Extract(context.Background(), "text")
	assert.Equal(t, []string{"one", "two"}, res.Keywords)
}

func TestSet_DegradesOnMethodFailure(t *testing.T) {
	s := NewSet(10,
		&fixedExtractor{name: "statistical", kws: []string{"결제"}},
		&fixedExtractor{name: "llm", err: errors.New("backend down")},
	)

	res := s.Extract(context.Background(), "text")
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Reason, "llm")
	assert.Equal(t, []string{"결제"}, res.Keywords)
}

func TestSet_AllMethodsFail(t *testing.T) {
	s := NewSet(10, &fixedExtractor{name: "llm", err: errors.New("down")})

	res := s.Extract(context.Background(), "text")
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Keywords)
}

type echoEmbedder struct{}

// EmbedPassages gives the first input (the full text) a vector aligned with
// candidates that share its first token, so ranking is predictable.
func (echoEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 4)
		if len(t) > 0 {
			v[int(t[0])%4] = 1
		}
		out[i] = v
	}
	return out, nil
}

func TestEmbedRank_RanksBySimilarity(t *testing.T) {
	e := NewEmbedRankExtractor(echoEmbedder{}, 3)

	kws, err := e.Extract(context.Background(), "alpha beta gamma alpha delta")
	require.NoError(t, err)
	require.NotEmpty(t, kws)
	// Candidates starting with the same byte as the text score 1.0.
	assert.Equal(t, "alpha", kws[0])
}

func TestEmbedRank_EmptyText(t *testing.T) {
	e := NewEmbedRankExtractor(echoEmbedder{}, 3)

	kws, err := e.Extract(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, kws)
}

type scriptedChat struct {
	reply string
	err   error
}

func (s *scriptedChat) Complete(context.Context, string, string) (string, error) {
	return s.reply, s.err
}

func TestLLM_ParsesJSONArray(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{reply: `["결제", "환불 정책", "수수료"]`}, 10)

	kws, err := e.Extract(context.Background(), "환불 정책 문서")
	require.NoError(t, err)
	assert.Equal(t, []string{"결제", "환불 정책", "수수료"}, kws)
}

func TestLLM_ToleratesCodeFences(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{reply: "```json\n[\"billing\", \"refund\"]\n```"}, 10)

	kws, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "refund"}, kws)
}

func TestLLM_RejectsNonArrayOutput(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{reply: "Sure! The keywords are billing and refund."}, 10)

	_, err := e.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestLLM_PropagatesBackendError(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{err: errors.New("timeout")}, 10)

	_, err := e.Extract(context.Background(), "text")
	assert.Error(t, err)
}

func TestLLM_CapsKeywordCount(t *testing.T) {
	e := NewLLMExtractor(&scriptedChat{reply: `["a1","b2","c3","d4"]`}, 2)

	kws, err := e.Extract(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, kws, 2)
}

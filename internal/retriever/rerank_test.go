package retriever

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(id, content string, score float64, meta map[string]any) *schema.Document {
	d := &schema.Document{ID: id, Content: content, MetaData: meta}
	return d.WithScore(score)
}

func TestNewRerankerValidatesWeights(t *testing.T) {
	_, err := NewReranker([]float64{0.5}, 5)
	require.Error(t, err)

	_, err = NewReranker([]float64{-0.1, 1.1}, 5)
	require.Error(t, err)

	r, err := NewReranker(nil, 5)
	require.NoError(t, err)
	assert.Equal(t, defaultRankerWeights, r.weights)
}

func TestRerankOrdersByCombinedScore(t *testing.T) {
	// 词项全部命中的低分文档应超过高分但零重合的文档：
	// 0.6*0.5 + 0.4*1.0 = 0.70 > 0.6*0.9 + 0.4*0 = 0.54
	r, err := NewReranker([]float64{0.6, 0.4}, 10)
	require.NoError(t, err)

	docs := []*schema.Document{
		doc("a", "completely unrelated text", 0.9, nil),
		doc("b", "redis vector index tuning guide", 0.5, nil),
	}
	out := r.Rerank("redis vector index", docs)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.InDelta(t, 0.70, out[0].Score(), 1e-9)
}

func TestRerankTruncatesToTopK(t *testing.T) {
	r, err := NewReranker(nil, 2)
	require.NoError(t, err)

	docs := []*schema.Document{
		doc("a", "alpha", 0.9, nil),
		doc("b", "beta", 0.8, nil),
		doc("c", "gamma", 0.7, nil),
	}
	out := r.Rerank("delta", docs)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "b", out[1].ID)
}

func TestRerankEmptyInput(t *testing.T) {
	r, err := NewReranker(nil, 3)
	require.NoError(t, err)
	assert.Empty(t, r.Rerank("anything", nil))
}

func TestFilterByNamespace(t *testing.T) {
	docs := []*schema.Document{
		doc("a", "alpha", 0.9, map[string]any{"namespace": "kb1"}),
		doc("b", "beta", 0.8, map[string]any{"namespace": "kb2"}),
		doc("c", "gamma", 0.7, nil),
	}

	out := filterByNamespace(docs, "kb1")
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	// 无命名空间元数据的文档保留
	assert.Equal(t, "c", out[1].ID)

	assert.Len(t, filterByNamespace(docs, ""), 3)
}

func TestTermOverlap(t *testing.T) {
	terms := queryTerms("Redis Vector redis")
	assert.Len(t, terms, 2)

	assert.Equal(t, 1.0, termOverlap(terms, "REDIS vector search"))
	assert.Equal(t, 0.5, termOverlap(terms, "vector only"))
	assert.Equal(t, 0.0, termOverlap(terms, "nothing here"))
	assert.Equal(t, 0.0, termOverlap(nil, "anything"))
}

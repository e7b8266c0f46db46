package retriever

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// 默认组合权重：向量相似度为主，词项重合度为辅。
var defaultRankerWeights = []float64{0.6, 0.4}

// Reranker 对召回结果做加权重排：
//
//	combined = w0 * 向量相似度 + w1 * 词项重合度
//
// 词项重合度为查询词在文档中出现的比例，用来补偿纯向量召回
// 对关键词精确匹配不敏感的问题。
type Reranker struct {
	weights []float64
	topK    int
}

func NewReranker(weights []float64, topK int) (*Reranker, error) {
	if len(weights) == 0 {
		weights = defaultRankerWeights
	}
	if len(weights) != 2 {
		return nil, fmt.Errorf("ranker weights must have exactly 2 elements, got %d", len(weights))
	}
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("ranker weights must be non-negative, got %v", weights)
		}
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Reranker{weights: weights, topK: topK}, nil
}

// Rerank 按组合分降序排列并截断到 topK，文档分数被改写为组合分。
func (r *Reranker) Rerank(query string, docs []*schema.Document) []*schema.Document {
	if len(docs) == 0 {
		return nil
	}

	type scored struct {
		doc   *schema.Document
		score float64
	}
	pairs := make([]scored, 0, len(docs))
	terms := queryTerms(query)
	for _, d := range docs {
		if d == nil {
			continue
		}
		combined := r.weights[0]*d.Score() + r.weights[1]*termOverlap(terms, d.Content)
		pairs = append(pairs, scored{doc: d, score: combined})
	}

	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].score > pairs[j].score })

	limit := r.topK
	if limit > len(pairs) {
		limit = len(pairs)
	}
	out := make([]*schema.Document, 0, limit)
	for _, p := range pairs[:limit] {
		out = append(out, p.doc.WithScore(p.score))
	}
	return out
}

// filterByNamespace 只保留元数据 namespace 匹配的文档；
// namespace 为空表示不过滤，没有该元数据的文档一律保留。
func filterByNamespace(docs []*schema.Document, namespace string) []*schema.Document {
	if namespace == "" {
		return docs
	}
	out := make([]*schema.Document, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		ns, ok := d.MetaData["namespace"]
		if !ok {
			out = append(out, d)
			continue
		}
		if s, isStr := ns.(string); isStr && s == namespace {
			out = append(out, d)
		}
	}
	return out
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// termOverlap 返回查询词出现在文档中的比例，范围 [0, 1]。
func termOverlap(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	hit := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hit++
		}
	}
	return float64(hit) / float64(len(terms))
}

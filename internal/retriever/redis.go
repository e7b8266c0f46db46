package retriever

import (
	"context"
	"fmt"
	"strings"

	arkembed "github.com/cloudwego/eino-ext/components/embedding/ark"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTopK = 5
	// 先召回再重排：召回量取 topK 的放大倍数，给重排留余量
	recallMultiplier = 3
)

// Config 是一个向量库的连接与检索配置。
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Index 为 RediSearch 向量索引名。
	Index string `mapstructure:"index"`
	// Namespace 非空时按文档元数据过滤，允许多个逻辑库共用一个索引。
	Namespace string `mapstructure:"namespace"`
	// TopK 为重排后返回的段落数；<=0 使用默认值。
	TopK int `mapstructure:"top_k"`
	// RankerWeights 为 [向量相似度, 词项重合度] 的组合权重。
	RankerWeights []float64 `mapstructure:"ranker_weights"`
}

// EmbeddingConfig 是查询向量化所用的 Ark embedding 模型配置。
type EmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

// VectorSearcher 封装一个向量库的完整检索链路：
// 向量召回 -> 命名空间过滤 -> 加权重排 -> 拼接段落文本。
// 它的 Search 方法即 Agent 检索工具的执行体。
type VectorSearcher struct {
	client    *redis.Client
	retriever einoretriever.Retriever
	reranker  *Reranker
	namespace string
	topK      int
}

func NewVectorSearcher(ctx context.Context, cfg Config, embed EmbeddingConfig) (*VectorSearcher, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("vector index name is required")
	}
	if embed.APIKey == "" || embed.ModelID == "" {
		return nil, fmt.Errorf("embedding api key and model id are required")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	embedder, err := arkembed.NewEmbedder(ctx, &arkembed.EmbeddingConfig{
		APIKey:  embed.APIKey,
		Model:   embed.ModelID,
		BaseURL: embed.BaseURL,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("init ark embedder: %w", err)
	}

	ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
		Client:    client,
		Index:     cfg.Index,
		TopK:      topK * recallMultiplier,
		Embedding: embedder,
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("init redis retriever: %w", err)
	}

	reranker, err := NewReranker(cfg.RankerWeights, topK)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &VectorSearcher{
		client:    client,
		retriever: ret,
		reranker:  reranker,
		namespace: cfg.Namespace,
		topK:      topK,
	}, nil
}

// Search 检索与 query 相关的段落，返回以空行分隔的文本；
// 没有命中时返回空串，由上层决定如何呈现。
func (v *VectorSearcher) Search(ctx context.Context, query string) (string, error) {
	docs, err := v.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", fmt.Errorf("vector retrieve: %w", err)
	}

	docs = filterByNamespace(docs, v.namespace)
	docs = v.reranker.Rerank(query, docs)

	passages := make([]string, 0, len(docs))
	for _, d := range docs {
		if d == nil || strings.TrimSpace(d.Content) == "" {
			continue
		}
		passages = append(passages, strings.TrimSpace(d.Content))
	}
	return strings.Join(passages, "\n\n"), nil
}

func (v *VectorSearcher) Close() error {
	if v == nil || v.client == nil {
		return nil
	}
	return v.client.Close()
}

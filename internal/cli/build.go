package cli

import (
	"context"
	"fmt"

	"github.com/wwwzy/RagAgent/internal/agent"
	"github.com/wwwzy/RagAgent/internal/retriever"
	"github.com/wwwzy/RagAgent/internal/storage"
)

// buildAgent 按配置组装完整的 Agent：
// 每个向量库一个检索器，共享一个审计存储。
// 返回的 cleanup 负责释放所有连接，失败时内部已清理。
func buildAgent(ctx context.Context) (*agent.AgenticRAG, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("config not loaded")
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("打开存储失败: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	stores := make([]agent.VectorStoreConfig, 0, len(cfg.VectorStores))
	for _, def := range cfg.VectorStores {
		searcher, err := retriever.NewVectorSearcher(ctx, cfg.SearcherConfig(def), cfg.EmbeddingConfig())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("初始化向量库 %s 失败: %w", def.Name, err)
		}
		closers = append(closers, func() { _ = searcher.Close() })

		stores = append(stores, agent.VectorStoreConfig{
			Name:          def.Name,
			Description:   def.Description,
			Retrieve:      searcher.Search,
			K:             def.TopK,
			RankerWeights: def.RankerWeights,
		})
	}

	a, err := agent.New(ctx, agent.Config{
		Ark:              cfg.Ark,
		MaxSearches:      cfg.Agent.MaxSearches,
		MaxRewrites:      cfg.Agent.MaxRewrites,
		RequireRetrieval: cfg.Agent.RequireRetrieval,
	}, stores, agent.WithStorage(store))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("构建 Agent 失败: %w", err)
	}

	return a, cleanup, nil
}

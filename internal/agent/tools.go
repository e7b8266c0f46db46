package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// RetrieveFunc 是一个文档集合的检索能力：输入查询文本，
// 返回拼接好的 top-k 命中段落（段落之间以空行分隔）。
// 租户过滤与加权重排都在实现方完成，Agent 只关心文本。
type RetrieveFunc func(ctx context.Context, query string) (string, error)

// VectorStoreConfig 描述一个具名检索工具。
// 在 Agent 构造时一次性提供，生命周期内不可变。
type VectorStoreConfig struct {
	// Name 是工具名，模型在发起工具调用时使用。必填且全局唯一。
	Name string
	// Description 告诉模型这个集合里有什么，何时应该选它。必填。
	Description string
	// Retrieve 是被包装的检索能力。必填。
	Retrieve RetrieveFunc
	// K 是期望返回的文档数，仅作为状态信息暴露，具体截断在检索实现里。
	K int
	// RankerWeights 是加权重排权重（向量分值 / 词项重叠），缺省 [0.6, 0.4]。
	RankerWeights []float64
}

func (c VectorStoreConfig) validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("vector store config missing required key: name")
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("vector store %q missing required key: description", c.Name)
	}
	if c.Retrieve == nil {
		return fmt.Errorf("vector store %q missing required key: retrieve", c.Name)
	}
	return nil
}

// RetrieverTool 把一个 VectorStoreConfig 暴露为 eino 可调用工具。
// 参数约定与检索型工具一致：{"query": "..."}。
type RetrieverTool struct {
	cfg VectorStoreConfig
}

var _ tool.InvokableTool = (*RetrieverTool)(nil)

func NewRetrieverTool(cfg VectorStoreConfig) (*RetrieverTool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.K <= 0 {
		cfg.K = 5
	}
	if len(cfg.RankerWeights) == 0 {
		cfg.RankerWeights = []float64{0.6, 0.4}
	}
	return &RetrieverTool{cfg: cfg}, nil
}

func (t *RetrieverTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.cfg.Name,
		Desc: t.cfg.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "The search query to run against this document collection",
				Type:     schema.String,
				Required: true,
			},
		}),
	}, nil
}

type retrieverArgs struct {
	Query string `json:"query"`
}

func (t *RetrieverTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	// 容错：模型偶尔会产出不完整的参数 JSON
	args := strings.TrimSpace(argumentsInJSON)
	if args == "" || args == "{" {
		args = "{}"
	}

	var parsed retrieverArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(parsed.Query) == "" {
		return "", fmt.Errorf("invalid arguments: query is required")
	}

	return t.cfg.Retrieve(ctx, parsed.Query)
}

// Config 返回工具的只读配置，供状态查询使用。
func (t *RetrieverTool) Config() VectorStoreConfig {
	return t.cfg
}

// buildRetrieverTools 构造全部检索工具，并拒绝重名。
func buildRetrieverTools(configs []VectorStoreConfig) (map[string]*RetrieverTool, []*RetrieverTool, error) {
	byName := make(map[string]*RetrieverTool, len(configs))
	ordered := make([]*RetrieverTool, 0, len(configs))
	for _, cfg := range configs {
		rt, err := NewRetrieverTool(cfg)
		if err != nil {
			return nil, nil, err
		}
		if _, exists := byName[cfg.Name]; exists {
			return nil, nil, fmt.Errorf("duplicate vector store name: %s", cfg.Name)
		}
		byName[cfg.Name] = rt
		ordered = append(ordered, rt)
	}
	return byName, ordered, nil
}

// toolInfos 收集所有工具的 ToolInfo，用于绑定到 ChatModel。
func toolInfos(ctx context.Context, tools []*RetrieverTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

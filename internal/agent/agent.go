package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/wwwzy/RagAgent/internal/storage"
)

// Config 是 Agent 的运行参数。
type Config struct {
	Ark ArkConfig

	// 单轮对话内的预算；零值取默认
	MaxSearches int
	MaxRewrites int

	// 为 true 时强制模型先检索再回答（预算内）
	RequireRetrieval bool
}

// ChatMessage 是对外的历史消息格式，只认 user / assistant 两种角色。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskRequest 是一次提问。ChatHistory 按时间顺序排列，不含本次提问。
type AskRequest struct {
	Prompt      string        `json:"prompt"`
	ChatHistory []ChatMessage `json:"chat_history,omitempty"`
}

// AskResponse 是一轮执行的完整结果。
type AskResponse struct {
	Answer             string              `json:"answer"`
	RetrievedDocuments []RetrievedDocument `json:"retrieved_documents"`
	ProcessingSteps    []ProcessingStep    `json:"processing_steps"`
	SearchCount        int                 `json:"search_count"`
	RewriteCount       int                 `json:"rewrite_count"`
}

// ToolStatus 描述一个已注册的检索工具。
type ToolStatus struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	TopK        int    `json:"top_k"`
}

// AgentStatus 用于 status 命令展示 Agent 的静态配置。
type AgentStatus struct {
	ModelID      string       `json:"model_id"`
	SystemPrompt string       `json:"system_prompt"`
	MaxSearches  int          `json:"max_searches"`
	MaxRewrites  int          `json:"max_rewrites"`
	Tools        []ToolStatus `json:"tools"`
}

// AgenticRAG 是检索增强问答 Agent 的对外入口：
// 持有模型、检索工具和状态机，按轮次执行并落审计。
type AgenticRAG struct {
	config  Config
	prompts *Prompts
	tools   []*RetrieverTool
	machine *StateMachine
	store   *storage.Storage
}

// Option 用于注入可选依赖。
type Option func(*options)

type options struct {
	store *storage.Storage

	// 测试用：直接注入模型，跳过 Ark 初始化
	responseModel model.ToolCallingChatModel
	plainModel    model.BaseChatModel
}

// WithStorage 启用回合与工具调用的审计落库。
func WithStorage(store *storage.Storage) Option {
	return func(o *options) { o.store = store }
}

// WithModels 注入已构造好的模型实现，主要供测试使用。
func WithModels(responseModel model.ToolCallingChatModel, plainModel model.BaseChatModel) Option {
	return func(o *options) {
		o.responseModel = responseModel
		o.plainModel = plainModel
	}
}

// New 构造 Agent：初始化模型、把向量库配置包装成检索工具、
// 绑定工具信息，并组装状态机。
func New(ctx context.Context, config Config, stores []VectorStoreConfig, opts ...Option) (*AgenticRAG, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if config.MaxSearches <= 0 {
		config.MaxSearches = DefaultMaxSearches
	}
	if config.MaxRewrites < 0 {
		config.MaxRewrites = DefaultMaxRewrites
	}
	if len(stores) == 0 {
		return nil, fmt.Errorf("at least one vector store must be configured")
	}

	toolsByName, toolList, err := buildRetrieverTools(stores)
	if err != nil {
		return nil, err
	}
	infos, err := toolInfos(ctx, toolList)
	if err != nil {
		return nil, err
	}

	responseModel := o.responseModel
	plainModel := o.plainModel
	if responseModel == nil {
		cm, err := NewChatModel(ctx, config.Ark, nil)
		if err != nil {
			return nil, fmt.Errorf("init chat model failed: %w", err)
		}
		responseModel = cm
	}
	if plainModel == nil {
		// 评审/改写/回答用零温模型，保证判定稳定
		cm, err := NewChatModel(ctx, config.Ark, float32Ptr(0))
		if err != nil {
			return nil, fmt.Errorf("init grading model failed: %w", err)
		}
		plainModel = cm
	}

	// 工具只绑定到路由模型；评审与回答不需要发起工具调用
	boundModel, err := responseModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("bind tools to chat model failed: %w", err)
	}

	prompts := NewPrompts()
	nodes := NewNodes(prompts, boundModel, plainModel)
	executor := &toolExecutor{tools: toolsByName, store: o.store}
	machine, err := NewStateMachine(nodes, executor, config.RequireRetrieval)
	if err != nil {
		return nil, err
	}

	return &AgenticRAG{
		config:  config,
		prompts: prompts,
		tools:   toolList,
		machine: machine,
		store:   o.store,
	}, nil
}

// Run 执行一轮问答：构造初始消息、驱动状态机到终态、
// 校验最终回答并持久化回合记录。
func (a *AgenticRAG) Run(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if req.Prompt == "" {
		return nil, &InvalidRequestError{Reason: "prompt must not be empty"}
	}

	traceID := uuid.NewString()
	ctx = WithTraceID(ctx, traceID)
	startedAt := time.Now()

	messages := make([]*schema.Message, 0, len(req.ChatHistory)+2)
	messages = append(messages, schema.SystemMessage(a.prompts.System))
	for _, m := range req.ChatHistory {
		switch m.Role {
		case "user":
			messages = append(messages, schema.UserMessage(m.Content))
		case "assistant":
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		default:
			fmt.Printf("[WARN] Skipping chat history message with unknown role: %s\n", m.Role)
		}
	}
	messages = append(messages, schema.UserMessage(req.Prompt))

	state := AgentState{
		Messages:    messages,
		MaxSearches: a.config.MaxSearches,
		MaxRewrites: a.config.MaxRewrites,
	}

	final, err := a.machine.Run(ctx, state)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("agent turn timed out: %w", err)
		}
		a.recordTurn(ctx, traceID, req.Prompt, "", final, startedAt, err)
		return nil, err
	}

	answer, err := finalAnswer(final.Messages)
	if err != nil {
		a.recordTurn(ctx, traceID, req.Prompt, "", final, startedAt, err)
		return nil, err
	}

	a.recordTurn(ctx, traceID, req.Prompt, answer, final, startedAt, nil)

	return &AskResponse{
		Answer:             answer,
		RetrievedDocuments: final.RetrievedDocuments,
		ProcessingSteps:    final.ProcessingSteps,
		SearchCount:        final.SearchCount,
		RewriteCount:       final.RewriteCount,
	}, nil
}

// Status 返回 Agent 的静态配置快照。
func (a *AgenticRAG) Status() AgentStatus {
	tools := make([]ToolStatus, 0, len(a.tools))
	for _, t := range a.tools {
		cfg := t.Config()
		tools = append(tools, ToolStatus{Name: cfg.Name, Description: cfg.Description, TopK: cfg.K})
	}
	return AgentStatus{
		ModelID:      a.config.Ark.ModelID,
		SystemPrompt: a.prompts.System,
		MaxSearches:  a.config.MaxSearches,
		MaxRewrites:  a.config.MaxRewrites,
		Tools:        tools,
	}
}

// finalAnswer 取终态里最后一条助手消息作为回答；空回答视为错误。
func finalAnswer(messages []*schema.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m == nil || m.Role != schema.Assistant {
			continue
		}
		if m.Content == "" {
			return "", &EmptyAnswerError{Reason: "model returned an empty final message"}
		}
		return m.Content, nil
	}
	return "", &EmptyAnswerError{Reason: "no assistant message produced"}
}

// recordTurn 持久化一轮执行的记录；存储未启用或写入失败只告警不阻断。
func (a *AgenticRAG) recordTurn(ctx context.Context, traceID, question, answer string, state AgentState, startedAt time.Time, runErr error) {
	if a.store == nil {
		return
	}
	record := &storage.TurnRecord{
		TraceID:      traceID,
		Question:     question,
		Answer:       answer,
		SearchCount:  state.SearchCount,
		RewriteCount: state.RewriteCount,
		Status:       "success",
		StartedAt:    startedAt,
		FinishedAt:   time.Now(),
	}
	if runErr != nil {
		record.Status = "failed"
		record.ErrorMessage = runErr.Error()
	}
	if err := a.store.InsertTurnRecord(ctx, record); err != nil {
		fmt.Printf("[WARN] Failed to persist turn record: %v\n", err)
	}
}

package agent

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// 步骤状态常量，贯穿整个审计轨迹
const (
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// 默认的回路上限：搜索次数与改写次数
const (
	DefaultMaxSearches = 3
	DefaultMaxRewrites = 1
)

// ProcessingStep 是一条审计轨迹记录，描述一个回合中的一个处理阶段。
// 每个节点在执行时追加记录，失败路径同样追加，保证审计轨迹完整。
type ProcessingStep struct {
	StepName  string    `json:"step_name"`
	Status    string    `json:"status"` // in_progress / completed / failed
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// RetrievedDocument 是工具执行包装器从检索结果中切出的一个段落。
// Score 在基础检索器不返回分值时为 nil。
type RetrievedDocument struct {
	Content string   `json:"content"`
	Source  string   `json:"source,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// AgentState 是在状态机中流转的状态。
// 状态是值类型：节点不得原地修改，只能通过返回 Update 由驱动器合并生成新状态，
// 这样各节点可以独立测试。
type AgentState struct {
	// 历史对话消息 (包含 System, User, AI, Tool 消息)。
	// 一个回合内只追加；改写节点会整体替换。
	Messages []*schema.Message `json:"messages"`

	// 搜索计数与上限。不变量: 0 <= SearchCount <= MaxSearches。
	SearchCount int `json:"search_count"`
	MaxSearches int `json:"max_searches"`

	// 改写计数与上限。不变量: 0 <= RewriteCount <= MaxRewrites。
	RewriteCount int `json:"rewrite_count"`
	MaxRewrites  int `json:"max_rewrites"`

	// 审计轨迹，按发生顺序追加。
	ProcessingSteps []ProcessingStep `json:"processing_steps"`

	// 本回合所有工具调用累计检索到的段落，保持发现顺序。
	RetrievedDocuments []RetrievedDocument `json:"retrieved_documents"`
}

// Update 是节点返回的部分更新。字段为 nil 表示该字段不变；
// 非 nil 时整体替换（浅替换，不做深度合并）。
// 切片字段由节点自行 "拷贝后追加" 出完整的新切片再交回。
type Update struct {
	Messages           []*schema.Message
	SearchCount        *int
	RewriteCount       *int
	ProcessingSteps    []ProcessingStep
	RetrievedDocuments []RetrievedDocument
}

// applyUpdate 把节点的部分更新合并到状态，产生新状态值。
func applyUpdate(s AgentState, u Update) AgentState {
	next := s
	if u.Messages != nil {
		next.Messages = u.Messages
	}
	if u.SearchCount != nil {
		next.SearchCount = *u.SearchCount
	}
	if u.RewriteCount != nil {
		next.RewriteCount = *u.RewriteCount
	}
	if u.ProcessingSteps != nil {
		next.ProcessingSteps = u.ProcessingSteps
	}
	if u.RetrievedDocuments != nil {
		next.RetrievedDocuments = u.RetrievedDocuments
	}
	return next
}

// cloneMessages 拷贝消息切片，保证节点之间不共享底层数组。
func cloneMessages(msgs []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, len(msgs), len(msgs)+2)
	copy(out, msgs)
	return out
}

func cloneSteps(steps []ProcessingStep) []ProcessingStep {
	out := make([]ProcessingStep, len(steps), len(steps)+2)
	copy(out, steps)
	return out
}

func cloneDocuments(docs []RetrievedDocument) []RetrievedDocument {
	out := make([]RetrievedDocument, len(docs), len(docs)+5)
	copy(out, docs)
	return out
}

// newStep 构造一条审计记录，时间戳取 UTC。
func newStep(name, status, details string) ProcessingStep {
	return ProcessingStep{
		StepName:  name,
		Status:    status,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}

func intPtr(v int) *int { return &v }

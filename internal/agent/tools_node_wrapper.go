package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/RagAgent/internal/storage"
)

const (
	// 每次工具调用最多提取的段落数
	maxPassagesPerTool = 5
	// 审计记录里入参/结果的截断上限
	auditTruncateLimit = 2048
)

// toolExecutor 包装检索工具的执行：错误兜底、审计落库、
// 进度步骤记录，以及把返回文本切分成结构化的检索结果。
// 每个配置的工具共用一个 executor，按名字分发。
type toolExecutor struct {
	tools map[string]*RetrieverTool
	store *storage.Storage // 可为 nil，审计失败不阻断工具执行
}

// Execute 执行最后一条 AI 消息中指向 toolName 的工具调用。
// 无论成败，返回的 Update 都带上新的审计步骤，供驱动器先合并再判错。
func (e *toolExecutor) Execute(ctx context.Context, toolName string, state AgentState) (Update, error) {
	steps := cloneSteps(state.ProcessingSteps)
	steps = append(steps, newStep("search_documents", StepInProgress,
		fmt.Sprintf("Searching %s for relevant documents", toolName)))

	rt, ok := e.tools[toolName]
	if !ok {
		steps = append(steps, newStep("search_documents", StepFailed,
			fmt.Sprintf("Unknown tool: %s", toolName)))
		return Update{ProcessingSteps: steps}, &ToolError{Tool: toolName, Err: fmt.Errorf("tool not configured")}
	}

	tc, ok := findToolCall(state.Messages, toolName)
	if !ok {
		steps = append(steps, newStep("search_documents", StepFailed,
			fmt.Sprintf("No pending tool call for %s", toolName)))
		return Update{ProcessingSteps: steps}, &ToolError{Tool: toolName, Err: fmt.Errorf("no tool call found in last message")}
	}

	// 审计：先插入 running 记录，失败只告警不阻断
	record := &storage.AuditRecord{
		TraceID:    GetTraceID(ctx),
		Action:     toolName,
		ParamsJSON: truncate(tc.Function.Arguments, auditTruncateLimit),
		Status:     "running",
		StartedAt:  time.Now().UTC(),
	}
	if e.store != nil {
		if err := e.store.InsertAuditRecord(ctx, record); err != nil {
			fmt.Printf("[WARN] Failed to insert audit record: %v\n", err)
		}
	}

	content, runErr := rt.InvokableRun(ctx, tc.Function.Arguments)
	e.finishAudit(ctx, record, content, runErr)

	if runErr != nil {
		steps = append(steps, newStep("search_documents", StepFailed,
			fmt.Sprintf("Retrieval from %s failed: %v", toolName, runErr)))
		return Update{ProcessingSteps: steps}, &ToolError{Tool: toolName, Err: runErr}
	}

	// 工具响应消息，挂回原 ToolCallID
	toolMsg := &schema.Message{
		Role:       schema.Tool,
		Content:    content,
		ToolCallID: tc.ID,
		ToolName:   toolName,
	}
	messages := append(cloneMessages(state.Messages), toolMsg)

	// 返回文本按空行切段，最多保留 maxPassagesPerTool 段
	docs := cloneDocuments(state.RetrievedDocuments)
	passages := splitPassages(content, maxPassagesPerTool)
	for _, p := range passages {
		docs = append(docs, RetrievedDocument{
			Content: p,
			Source:  toolName,
			Score:   nil, // 基础检索器不暴露分值
		})
	}

	if len(passages) > 0 {
		steps = append(steps, newStep("search_documents", StepCompleted,
			fmt.Sprintf("Found %d relevant passages from %s", len(passages), toolName)))
	} else {
		steps = append(steps, newStep("search_documents", StepCompleted,
			fmt.Sprintf("No documents found in %s", toolName)))
	}

	return Update{
		Messages:           messages,
		ProcessingSteps:    steps,
		RetrievedDocuments: docs,
	}, nil
}

func (e *toolExecutor) finishAudit(ctx context.Context, record *storage.AuditRecord, result string, runErr error) {
	if e.store == nil || record.ID == 0 {
		return
	}

	finishedAt := time.Now().UTC()
	status := "success"
	var errMsg *string
	var resultJSON *string
	if runErr != nil {
		status = "failed"
		msg := truncate(runErr.Error(), auditTruncateLimit)
		errMsg = &msg
	} else {
		r := truncate(result, auditTruncateLimit)
		resultJSON = &r
	}

	update := storage.AuditUpdate{
		Status:       &status,
		ResultJSON:   resultJSON,
		ErrorMessage: errMsg,
		FinishedAt:   &finishedAt,
	}
	if err := e.store.UpdateAuditRecord(ctx, record.ID, update); err != nil {
		fmt.Printf("[WARN] Failed to update audit record: %v\n", err)
	}
}

// findToolCall 在最后一条 AI 消息里找指向 name 的工具调用。
func findToolCall(messages []*schema.Message, name string) (schema.ToolCall, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg == nil || msg.Role != schema.Assistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name == name {
				return tc, true
			}
		}
		return schema.ToolCall{}, false
	}
	return schema.ToolCall{}, false
}

// splitPassages 把检索返回的文本按空行切成段落，保序，最多 limit 段。
func splitPassages(content string, limit int) []string {
	chunks := strings.Split(content, "\n\n")
	out := make([]string, 0, limit)
	for _, c := range chunks {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}

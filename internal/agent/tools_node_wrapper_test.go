package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wwwzy/RagAgent/internal/storage"
)

func TestSplitPassages(t *testing.T) {
	content := "one\n\ntwo\n\n  \n\nthree\n\nfour\n\nfive\n\nsix"
	got := splitPassages(content, 5)
	// 空段落被跳过，保序，最多 5 段
	assert.Equal(t, []string{"one", "two", "three", "four", "five"}, got)

	assert.Empty(t, splitPassages("", 5))
	assert.Empty(t, splitPassages("  \n\n  ", 5))
	assert.Equal(t, []string{"single passage"}, splitPassages("single passage", 5))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate(strings.Repeat("x", 100), 10)
	assert.Equal(t, "xxxxxxxxxx...(truncated)", got)
}

func TestRetrieverToolArgumentHandling(t *testing.T) {
	var lastQuery string
	rt, err := NewRetrieverTool(VectorStoreConfig{
		Name:        "product_docs",
		Description: "docs",
		Retrieve: func(_ context.Context, query string) (string, error) {
			lastQuery = query
			return "result", nil
		},
	})
	require.NoError(t, err)

	_, err = rt.InvokableRun(context.Background(), `{"query": "redis index"}`)
	require.NoError(t, err)
	assert.Equal(t, "redis index", lastQuery)

	// 空 query 拒绝执行
	_, err = rt.InvokableRun(context.Background(), `{"query": ""}`)
	require.Error(t, err)

	_, err = rt.InvokableRun(context.Background(), `{}`)
	require.Error(t, err)

	// 非 JSON 参数按空参数处理
	_, err = rt.InvokableRun(context.Background(), "")
	require.Error(t, err)
}

func newTestExecutor(t *testing.T, retrieve RetrieveFunc, store *storage.Storage) *toolExecutor {
	t.Helper()
	rt, err := NewRetrieverTool(VectorStoreConfig{
		Name:        "product_docs",
		Description: "docs",
		Retrieve:    retrieve,
	})
	require.NoError(t, err)
	return &toolExecutor{tools: map[string]*RetrieverTool{"product_docs": rt}, store: store}
}

func executorState() AgentState {
	return AgentState{
		Messages: []*schema.Message{
			schema.UserMessage("q"),
			toolCallMsg("product_docs", "redis index"),
		},
	}
}

func TestToolExecutorRecordsAudit(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-test")
	store, err := storage.Open(ctx, storage.Config{
		Path: filepath.Join(t.TempDir(), "audit.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exec := newTestExecutor(t, func(_ context.Context, _ string) (string, error) {
		return "passage one\n\npassage two", nil
	}, store)

	update, err := exec.Execute(ctx, "product_docs", executorState())
	require.NoError(t, err)

	// 工具响应消息挂回原 ToolCallID
	last := update.Messages[len(update.Messages)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call-1", last.ToolCallID)

	require.Len(t, update.RetrievedDocuments, 2)
	assert.Equal(t, "passage one", update.RetrievedDocuments[0].Content)

	records, err := store.QueryAuditRecords(ctx, storage.AuditQuery{TraceID: "trace-test"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "product_docs", records[0].Action)
	assert.Equal(t, "success", records[0].Status)
	assert.Contains(t, records[0].ParamsJSON, "redis index")
	assert.Contains(t, records[0].ResultJSON, "passage one")
}

func TestToolExecutorFailureAudited(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-fail")
	store, err := storage.Open(ctx, storage.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exec := newTestExecutor(t, func(_ context.Context, _ string) (string, error) {
		return "", errors.New("redis connection refused")
	}, store)

	update, execErr := exec.Execute(ctx, "product_docs", executorState())
	require.Error(t, execErr)

	// 失败路径也记录步骤
	last := update.ProcessingSteps[len(update.ProcessingSteps)-1]
	assert.Equal(t, StepFailed, last.Status)

	records, err := store.QueryAuditRecords(ctx, storage.AuditQuery{TraceID: "trace-fail"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "failed", records[0].Status)
	assert.Contains(t, records[0].ErrorMessage, "connection refused")
}

func TestToolExecutorWithoutStorage(t *testing.T) {
	// 未启用存储时工具执行不受影响
	exec := newTestExecutor(t, func(_ context.Context, _ string) (string, error) {
		return "passage", nil
	}, nil)

	update, err := exec.Execute(context.Background(), "product_docs", executorState())
	require.NoError(t, err)
	assert.Len(t, update.RetrievedDocuments, 1)
}

func TestToolExecutorNoPendingToolCall(t *testing.T) {
	exec := newTestExecutor(t, func(_ context.Context, _ string) (string, error) {
		return "passage", nil
	}, nil)

	state := AgentState{Messages: []*schema.Message{schema.UserMessage("q")}}
	_, err := exec.Execute(context.Background(), "product_docs", state)
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
}

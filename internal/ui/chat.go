package ui

import (
	"context"

	"github.com/wwwzy/RagAgent/internal/agent"
)

// ChatBackend 是界面层看到的 Agent 能力，*agent.AgenticRAG 天然满足。
type ChatBackend interface {
	Run(ctx context.Context, req agent.AskRequest) (*agent.AskResponse, error)
}

type ChatUI interface {
	Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error
}

type ChatOptions struct {
	// ShowSteps 为 true 时在回答前打印处理步骤轨迹。
	ShowSteps bool
	// HistoryLimit 限制带入下一轮的历史消息条数（按条计，0 表示不限制）。
	HistoryLimit int
}

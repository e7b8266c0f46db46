package agent

import (
	"fmt"
)

// 错误分类：生成失败与工具失败都会终止本回合，但调用方需要能区分
// 基础设施故障（工具）与模型侧故障（生成），所以用带类型的错误值承载。
// 评审失败不在此列——评审是 fail-open 的，永远不会终止回合。

// GenerationError 表示补全能力在查询生成、改写或回答阶段抛错。
type GenerationError struct {
	Stage string // analyze_question / rewrite_question / generate_answer
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate response at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ToolError 表示某个检索工具执行失败。不重试，直接终止回合。
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("failed to retrieve documents using %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// EmptyAnswerError 表示状态机正常结束但终止消息为空或形状不认识。
// 顶层 Run 遇到它必须报错，而不是返回一个空壳成功。
type EmptyAnswerError struct {
	Reason string
}

func (e *EmptyAnswerError) Error() string {
	return fmt.Sprintf("agent returned empty answer: %s", e.Reason)
}

// InvalidRequestError 表示入参或配置不合法，属于调用方错误。
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

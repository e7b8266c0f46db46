package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Nodes 持有状态机各节点的依赖：
//   - responseModel: 绑定了检索工具的模型，负责 "生成查询或直接回答"
//   - plainModel: 未绑定工具的模型（temperature 0），负责改写与最终回答
//
// 两个模型客户端都必须是并发安全的，节点自身无共享可变状态。
type Nodes struct {
	prompts       *Prompts
	responseModel model.BaseChatModel
	plainModel    model.BaseChatModel
}

func NewNodes(prompts *Prompts, responseModel, plainModel model.BaseChatModel) *Nodes {
	return &Nodes{
		prompts:       prompts,
		responseModel: responseModel,
		plainModel:    plainModel,
	}
}

// GenerateQueryOrRespond 是 route 节点：决定发起检索还是直接回答。
//  1. 记录 "analyze_question" 步骤
//  2. 搜索次数耗尽时直接返回固定的终止消息（不再递增计数，绕过评审/回答）
//  3. 否则带着全部工具调用模型，递增 SearchCount
func (n *Nodes) GenerateQueryOrRespond(ctx context.Context, state AgentState) (Update, error) {
	steps := cloneSteps(state.ProcessingSteps)
	steps = append(steps, newStep("analyze_question", StepCompleted,
		"Analyzing your question and determining search strategy"))

	if state.SearchCount >= state.MaxSearches {
		steps = append(steps, newStep("max_searches_reached", StepCompleted,
			fmt.Sprintf("Maximum search attempts (%d) reached", state.MaxSearches)))
		messages := append(cloneMessages(state.Messages), schema.AssistantMessage(MaxSearchesFallback, nil))
		return Update{
			Messages:        messages,
			ProcessingSteps: steps,
		}, nil
	}

	resp, err := n.responseModel.Generate(ctx, state.Messages)
	if err != nil {
		steps = append(steps, newStep("analyze_question", StepFailed, err.Error()))
		return Update{ProcessingSteps: steps}, &GenerationError{Stage: "analyze_question", Err: err}
	}

	if len(resp.ToolCalls) > 0 {
		names := make([]string, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			names = append(names, tc.Function.Name)
		}
		steps = append(steps, newStep("prepare_search", StepCompleted,
			fmt.Sprintf("Preparing to search using: %s", strings.Join(names, ", "))))
	}

	messages := append(cloneMessages(state.Messages), resp)
	return Update{
		Messages:        messages,
		SearchCount:     intPtr(state.SearchCount + 1),
		ProcessingSteps: steps,
	}, nil
}

// RewriteQuestion 改写最近的用户问题以提升检索效果。
// 改写后整个消息历史被替换为 [system, 改写后的问题]，
// 有意丢弃之前的工具调用/评审痕迹，让下一轮搜索从干净状态开始；
// SearchCount 同时清零，RewriteCount 加一。
// 改写预算耗尽时是 no-op（评审决策已把流程导向回答）。
func (n *Nodes) RewriteQuestion(ctx context.Context, state AgentState) (Update, error) {
	if state.RewriteCount >= state.MaxRewrites {
		return Update{}, nil
	}

	question := latestUserQuestion(state.Messages)

	steps := cloneSteps(state.ProcessingSteps)
	steps = append(steps, newStep("rewrite_question", StepInProgress,
		fmt.Sprintf("Refining question for better retrieval (attempt %d/%d)",
			state.RewriteCount+1, state.MaxRewrites)))

	prompt := n.prompts.RewritePrompt(question)
	resp, err := n.plainModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		steps = append(steps, newStep("rewrite_question", StepFailed, err.Error()))
		return Update{ProcessingSteps: steps}, &GenerationError{Stage: "rewrite_question", Err: err}
	}

	steps = append(steps, newStep("rewrite_question", StepCompleted,
		"Question refined for better document matching"))

	messages := []*schema.Message{
		schema.SystemMessage(n.prompts.System),
		schema.UserMessage(resp.Content),
	}

	return Update{
		Messages:        messages,
		RewriteCount:    intPtr(state.RewriteCount + 1),
		SearchCount:     intPtr(0), // 新问题重新享有完整的搜索预算
		ProcessingSteps: steps,
	}, nil
}

// GenerateAnswer 基于当前可用的最好上下文合成最终回答。
// 上下文取消息历史里最后一条消息的内容；不足 50 字符时改用
// "未找到相关信息" 的提示词。回答模型不绑定工具，保证输出纯文本。
func (n *Nodes) GenerateAnswer(ctx context.Context, state AgentState) (Update, error) {
	steps := cloneSteps(state.ProcessingSteps)
	steps = append(steps, newStep("generate_answer", StepInProgress,
		"Generating answer from retrieved context"))

	question := originalUserQuestion(state.Messages)
	context := ""
	if len(state.Messages) > 0 {
		context = state.Messages[len(state.Messages)-1].Content
	}

	prompt := n.prompts.AnswerPrompt(question, context)
	resp, err := n.plainModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		steps = append(steps, newStep("generate_answer", StepFailed, err.Error()))
		return Update{ProcessingSteps: steps}, &GenerationError{Stage: "generate_answer", Err: err}
	}

	steps = append(steps, newStep("generate_answer", StepCompleted,
		"Answer generated successfully"))

	messages := append(cloneMessages(state.Messages), resp)
	return Update{
		Messages:        messages,
		ProcessingSteps: steps,
	}, nil
}

// originalUserQuestion 返回最初的用户问题（第一条 user 消息；
// 找不到时退回历史里的第一条消息）。
func originalUserQuestion(messages []*schema.Message) string {
	for _, msg := range messages {
		if msg != nil && msg.Role == schema.User {
			return msg.Content
		}
	}
	if len(messages) > 0 && messages[0] != nil {
		return messages[0].Content
	}
	return ""
}

// latestUserQuestion 返回最近的一条 user 消息内容。
func latestUserQuestion(messages []*schema.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if msg := messages[i]; msg != nil && msg.Role == schema.User {
			return msg.Content
		}
	}
	return ""
}

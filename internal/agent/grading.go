package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

// 评审结果是给编排器消费的转移标签，不写进状态。
type transition string

const (
	transitionAnswer  transition = "generate_answer"
	transitionRewrite transition = "rewrite_question"
)

// GradeDocument 是评审器的结构化输出。
type GradeDocument struct {
	// BinaryScore 为 "yes"（相关）或 "no"（不相关）。
	BinaryScore string `json:"binary_score"`
}

// GradeDocuments 判定最新工具响应与问题的相关性，返回转移标签。
// 策略：
//   - 上下文去空白后不足 50 字符 ⇒ 视为 "没有可用证据"，不调模型，
//     改写预算还有就去改写，没有就带着现状去回答（确定性路由）。
//   - 否则用宽松评审提示词要求模型给出 yes/no。
//   - 评审调用本身失败 ⇒ 视为 "yes"（fail-open），瞬时故障不能卡死流程。
//   - "no" 且改写预算耗尽 ⇒ 仍然去回答，接受低相关证据而不是无限循环。
func (n *Nodes) GradeDocuments(ctx context.Context, state AgentState) (transition, Update) {
	steps := cloneSteps(state.ProcessingSteps)
	steps = append(steps, newStep("grade_documents", StepInProgress,
		"Evaluating relevance of retrieved documents"))

	question := originalUserQuestion(state.Messages)
	context := ""
	if len(state.Messages) > 0 {
		context = state.Messages[len(state.Messages)-1].Content
	}

	if utf8.RuneCountInString(strings.TrimSpace(context)) < shortContextChars {
		steps = append(steps, newStep("grade_documents", StepCompleted,
			"No relevant documents found"))
		if state.RewriteCount >= state.MaxRewrites {
			return transitionAnswer, Update{ProcessingSteps: steps}
		}
		return transitionRewrite, Update{ProcessingSteps: steps}
	}

	binaryScore := n.gradeWithModel(ctx, question, context)

	if binaryScore == "yes" {
		steps = append(steps, newStep("grade_documents", StepCompleted,
			"Documents are relevant to your question"))
		return transitionAnswer, Update{ProcessingSteps: steps}
	}

	if state.RewriteCount >= state.MaxRewrites {
		steps = append(steps, newStep("grade_documents", StepCompleted,
			"Using available documents despite lower relevance"))
		return transitionAnswer, Update{ProcessingSteps: steps}
	}

	steps = append(steps, newStep("grade_documents", StepCompleted,
		"Documents not highly relevant, refining search"))
	return transitionRewrite, Update{ProcessingSteps: steps}
}

// gradeWithModel 调用评审模型并解析二元判定，任何失败都回退为 "yes"。
func (n *Nodes) gradeWithModel(ctx context.Context, question, context string) string {
	prompt := n.prompts.GradePrompt(question, context)
	resp, err := n.plainModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		fmt.Printf("[WARN] Grading failed: %v, defaulting to 'yes' to avoid blocking\n", err)
		return "yes"
	}
	return parseBinaryScore(resp.Content)
}

// parseBinaryScore 宽松解析评审输出：优先按 JSON 解析，
// 失败再做子串扫描；只有明确的 "no" 才判不相关。
func parseBinaryScore(content string) string {
	trimmed := strings.TrimSpace(content)

	var grade GradeDocument
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			if err := json.Unmarshal([]byte(trimmed[start:end+1]), &grade); err == nil {
				if s := strings.ToLower(strings.TrimSpace(grade.BinaryScore)); s == "no" {
					return "no"
				}
				if strings.EqualFold(strings.TrimSpace(grade.BinaryScore), "yes") {
					return "yes"
				}
			}
		}
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "no") && !strings.Contains(lower, "yes") {
		return "no"
	}
	return "yes"
}

package agent

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinaryScore(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"plain json yes", `{"binary_score": "yes"}`, "yes"},
		{"plain json no", `{"binary_score": "no"}`, "no"},
		{"json in prose", "Sure, here is my grade: {\"binary_score\": \"no\"} based on the content.", "no"},
		{"fenced json", "```json\n{\"binary_score\": \"yes\"}\n```", "yes"},
		{"uppercase", `{"binary_score": "NO"}`, "no"},
		{"bare no", "no", "no"},
		{"bare yes", "yes", "yes"},
		{"ambiguous defaults to yes", "maybe, hard to tell", "yes"},
		{"both words defaults to yes", "not a clear no, leaning yes", "yes"},
		{"empty defaults to yes", "", "yes"},
		{"garbage json defaults to substring scan", `{"binary_score": }no`, "no"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseBinaryScore(tc.content))
		})
	}
}

func gradeState(toolContent string, rewriteCount, maxRewrites int) AgentState {
	return AgentState{
		Messages: []*schema.Message{
			schema.SystemMessage("s"),
			schema.UserMessage("question"),
			toolCallMsg("product_docs", "question"),
			{Role: schema.Tool, Content: toolContent, ToolCallID: "call-1", ToolName: "product_docs"},
		},
		RewriteCount: rewriteCount,
		MaxRewrites:  maxRewrites,
	}
}

func TestGradeDocumentsShortContextSkipsModel(t *testing.T) {
	plain := &scriptedModel{name: "plain"} // 任何调用都会报错
	nodes := NewNodes(NewPrompts(), &scriptedModel{name: "route"}, plain)

	// 预算未耗尽 ⇒ 改写
	label, update := nodes.GradeDocuments(context.Background(), gradeState("   tiny   ", 0, 1))
	assert.Equal(t, transitionRewrite, label)
	assert.Equal(t, 0, plain.callCount())

	names := stepNames(update.ProcessingSteps)
	assert.Contains(t, names, "grade_documents")

	// 预算耗尽 ⇒ 回答
	label, _ = nodes.GradeDocuments(context.Background(), gradeState("tiny", 1, 1))
	assert.Equal(t, transitionAnswer, label)
	assert.Equal(t, 0, plain.callCount())

	// 阈值按字符计：20 个汉字（60 字节）仍是短上下文，走确定性路由
	label, _ = nodes.GradeDocuments(context.Background(), gradeState(strings.Repeat("中", 20), 0, 1))
	assert.Equal(t, transitionRewrite, label)
	assert.Equal(t, 0, plain.callCount())
}

func TestGradeDocumentsModelVerdicts(t *testing.T) {
	t.Run("yes answers", func(t *testing.T) {
		plain := &scriptedModel{name: "plain", replies: []scriptedReply{
			textReply(`{"binary_score": "yes"}`),
		}}
		nodes := NewNodes(NewPrompts(), &scriptedModel{name: "route"}, plain)
		label, _ := nodes.GradeDocuments(context.Background(), gradeState(longPassage, 0, 1))
		assert.Equal(t, transitionAnswer, label)
	})

	t.Run("no rewrites while budget remains", func(t *testing.T) {
		plain := &scriptedModel{name: "plain", replies: []scriptedReply{
			textReply(`{"binary_score": "no"}`),
		}}
		nodes := NewNodes(NewPrompts(), &scriptedModel{name: "route"}, plain)
		label, _ := nodes.GradeDocuments(context.Background(), gradeState(longPassage, 0, 1))
		assert.Equal(t, transitionRewrite, label)
	})

	t.Run("no answers once budget exhausted", func(t *testing.T) {
		plain := &scriptedModel{name: "plain", replies: []scriptedReply{
			textReply(`{"binary_score": "no"}`),
		}}
		nodes := NewNodes(NewPrompts(), &scriptedModel{name: "route"}, plain)
		label, update := nodes.GradeDocuments(context.Background(), gradeState(longPassage, 1, 1))
		assert.Equal(t, transitionAnswer, label)

		last := update.ProcessingSteps[len(update.ProcessingSteps)-1]
		assert.Contains(t, last.Details, "despite lower relevance")
	})
}

func TestGradePromptTruncatesContext(t *testing.T) {
	p := NewPrompts()
	huge := strings.Repeat("文档内容。", 1000) // 多字节字符，远超 2000 字节
	prompt := p.GradePrompt("q", huge)
	assert.Less(t, len(prompt), len(gradePromptTemplate)+gradeContextLimit+10)
	// 截断不可切断多字节字符
	assert.True(t, utf8.ValidString(prompt))
	require.Contains(t, prompt, "Here is the user question: q")
}

func TestAnswerPromptShortContextByRunes(t *testing.T) {
	p := NewPrompts()

	// 60 字节但只有 20 个字符，仍应使用 "未找到相关信息" 变体
	prompt := p.AnswerPrompt("q", strings.Repeat("中", 20))
	assert.Contains(t, prompt, "couldn't find relevant information")

	// 50 个字符起用正常回答模板
	prompt = p.AnswerPrompt("q", strings.Repeat("中", 50))
	assert.Contains(t, prompt, "based ONLY on the context")
}

package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
)

func TestApplyUpdatePartialSemantics(t *testing.T) {
	state := AgentState{
		Messages:     []*schema.Message{schema.UserMessage("q")},
		SearchCount:  2,
		MaxSearches:  3,
		RewriteCount: 1,
		MaxRewrites:  1,
		ProcessingSteps: []ProcessingStep{
			newStep("analyze_question", StepCompleted, ""),
		},
	}

	// 空 Update 不改变任何字段
	next := applyUpdate(state, Update{})
	assert.Equal(t, state.SearchCount, next.SearchCount)
	assert.Equal(t, state.Messages, next.Messages)
	assert.Equal(t, state.ProcessingSteps, next.ProcessingSteps)

	// 非 nil 字段整体替换，其余保持
	replaced := []*schema.Message{schema.SystemMessage("s"), schema.UserMessage("rewritten")}
	next = applyUpdate(state, Update{
		Messages:    replaced,
		SearchCount: intPtr(0),
	})
	assert.Equal(t, replaced, next.Messages)
	assert.Equal(t, 0, next.SearchCount)
	assert.Equal(t, 1, next.RewriteCount)
	assert.Len(t, next.ProcessingSteps, 1)

	// 上限字段不经 Update 流转，始终保持
	assert.Equal(t, 3, next.MaxSearches)
	assert.Equal(t, 1, next.MaxRewrites)
}

func TestCloneMessagesIndependence(t *testing.T) {
	orig := []*schema.Message{schema.UserMessage("q")}
	cloned := cloneMessages(orig)
	cloned = append(cloned, schema.AssistantMessage("a", nil))
	assert.Len(t, orig, 1)
	assert.Len(t, cloned, 2)
}

package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// 状态机节点标识。每个检索工具以自己的名字作为一个节点，
// 其余是固定节点。
type nodeID string

const (
	nodeRoute   nodeID = "generate_query_or_respond"
	nodeRewrite nodeID = "rewrite_question"
	nodeAnswer  nodeID = "generate_answer"
	nodeEnd     nodeID = "end"

	// nodeNudge 是路由函数的一个特殊出边：模型没发起检索但配置要求必须检索时，
	// 驱动器补一条纠正消息后回到 route 重试。
	nodeNudge nodeID = "nudge_retry"
)

// 防御性步数上限：正常情况下回路由搜索/改写预算保证终止，
// 这里再加一道硬上限兜底。
const defaultMaxSteps = 20

// StateMachine 把各节点接成一张带条件边的有向图，用一个普通循环驱动：
//
//	route --> 某个工具节点 | end（无工具调用 / 未知工具 / 预算耗尽）
//	工具节点 --> answer | rewrite（按评审结果）
//	rewrite --> route
//	answer --> end
//
// 评审在每个工具节点的出边上求值，不是独立节点。
type StateMachine struct {
	nodes    *Nodes
	executor *toolExecutor

	// RequireRetrieval 为 true 时，模型在搜索预算未耗尽的情况下
	// 拒绝发起检索会被纠正重试，而不是直接结束。
	requireRetrieval bool
	maxSteps         int
}

func NewStateMachine(nodes *Nodes, executor *toolExecutor, requireRetrieval bool) (*StateMachine, error) {
	for name := range executor.tools {
		switch nodeID(name) {
		case nodeRoute, nodeRewrite, nodeAnswer, nodeEnd, nodeNudge:
			return nil, fmt.Errorf("vector store name %q collides with a reserved node name", name)
		}
	}
	return &StateMachine{
		nodes:            nodes,
		executor:         executor,
		requireRetrieval: requireRetrieval,
		maxSteps:         defaultMaxSteps,
	}, nil
}

// Run 从 route 出发驱动状态机直到 end，返回终态。
// 任何节点的错误都立即终止本回合；错误发生前节点产出的审计步骤
// 已经合并进状态，调用方仍可拿到完整轨迹。
func (m *StateMachine) Run(ctx context.Context, state AgentState) (AgentState, error) {
	current := nodeRoute
	for step := 0; current != nodeEnd; step++ {
		if step >= m.maxSteps {
			return state, fmt.Errorf("state machine exceeded %d steps without terminating", m.maxSteps)
		}

		switch current {
		case nodeRoute:
			update, err := m.nodes.GenerateQueryOrRespond(ctx, state)
			state = applyUpdate(state, update)
			if err != nil {
				return state, err
			}
			current = m.route(state)
			if current == nodeNudge {
				// 纠正后回到 route；route 每次都递增 SearchCount，所以仍受预算约束
				state.Messages = append(cloneMessages(state.Messages), schema.SystemMessage(retryNudge))
				current = nodeRoute
			}

		case nodeRewrite:
			update, err := m.nodes.RewriteQuestion(ctx, state)
			state = applyUpdate(state, update)
			if err != nil {
				return state, err
			}
			current = nodeRoute

		case nodeAnswer:
			update, err := m.nodes.GenerateAnswer(ctx, state)
			state = applyUpdate(state, update)
			if err != nil {
				return state, err
			}
			current = nodeEnd

		default:
			// 工具节点：执行检索，然后在出边上评审
			update, err := m.executor.Execute(ctx, string(current), state)
			state = applyUpdate(state, update)
			if err != nil {
				return state, err
			}
			label, gradeUpdate := m.nodes.GradeDocuments(ctx, state)
			state = applyUpdate(state, gradeUpdate)
			current = nodeID(label)
		}
	}
	return state, nil
}

// route 是纯决策函数：检查最后一条消息，决定下一个节点。
//   - 指向已配置工具的调用 ⇒ 该工具节点
//   - 未知工具名 ⇒ 告警并结束
//   - 没有工具调用 ⇒ 结束；首次尝试就不检索属于管线异常，提高告警级别；
//     若配置了 RequireRetrieval 且预算未尽则转 nudge 重试
func (m *StateMachine) route(state AgentState) nodeID {
	if len(state.Messages) == 0 {
		fmt.Printf("[ERROR] No messages found in state during routing\n")
		return nodeEnd
	}

	last := state.Messages[len(state.Messages)-1]
	if last != nil && last.Role == schema.Assistant && len(last.ToolCalls) > 0 {
		name := last.ToolCalls[0].Function.Name
		if _, ok := m.executor.tools[name]; ok {
			return nodeID(name)
		}
		fmt.Printf("[WARN] Unknown tool name: %s, ending turn\n", name)
		return nodeEnd
	}

	if state.SearchCount == 1 && state.RewriteCount == 0 {
		fmt.Printf("[ERROR] Model attempted to respond without any retrieval on first attempt\n")
	}
	if m.requireRetrieval && state.SearchCount < state.MaxSearches {
		return nodeNudge
	}
	return nodeEnd
}

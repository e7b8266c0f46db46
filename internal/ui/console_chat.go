package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wwwzy/RagAgent/internal/agent"
)

type ConsoleChatUI struct {
	In  io.Reader
	Out io.Writer
}

func (u *ConsoleChatUI) Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error {
	in := u.In
	if in == nil {
		return fmt.Errorf("console ui: In is nil")
	}
	out := u.Out
	if out == nil {
		return fmt.Errorf("console ui: Out is nil")
	}

	reader := bufio.NewReader(in)
	var history []agent.ChatMessage

	fmt.Fprintln(out, "进入 RagAgent 对话模式。输入 exit/quit 退出，clear 清空历史。")
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "已退出。")
			return nil
		default:
		}

		fmt.Fprint(out, "你: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(out, "已退出。")
				return nil
			}
			return fmt.Errorf("读取输入失败: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "exit", "quit":
			fmt.Fprintln(out, "已退出。")
			return nil
		case "clear":
			history = nil
			fmt.Fprintln(out, "历史已清空。")
			continue
		}

		resp, err := backend.Run(ctx, agent.AskRequest{
			Prompt:      line,
			ChatHistory: trimHistory(history, opts.HistoryLimit),
		})
		if err != nil {
			// 单轮失败不终止 REPL
			fmt.Fprintf(out, "出错了: %v\n\n", err)
			continue
		}

		if opts.ShowSteps {
			printSteps(out, resp.ProcessingSteps)
		}

		answer := strings.TrimSpace(resp.Answer)
		if answer == "" {
			fmt.Fprintln(out, "助手: (无文本输出)")
		} else {
			fmt.Fprintf(out, "助手: %s\n", answer)
		}
		fmt.Fprintln(out)

		history = append(history,
			agent.ChatMessage{Role: "user", Content: line},
			agent.ChatMessage{Role: "assistant", Content: resp.Answer},
		)
	}
}

func printSteps(w io.Writer, steps []agent.ProcessingStep) {
	for _, s := range steps {
		if s.Details != "" {
			fmt.Fprintf(w, "  [%s] %s: %s\n", s.Status, s.StepName, s.Details)
		} else {
			fmt.Fprintf(w, "  [%s] %s\n", s.Status, s.StepName)
		}
	}
}

// trimHistory 保留最近 limit 条历史消息，limit<=0 表示不裁剪。
func trimHistory(history []agent.ChatMessage, limit int) []agent.ChatMessage {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}

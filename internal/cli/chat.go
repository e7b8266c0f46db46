package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wwwzy/RagAgent/internal/tui"
	"github.com/wwwzy/RagAgent/internal/ui"
)

var (
	chatUI           string
	chatShowSteps    bool
	chatHistoryLimit int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "进入交互式对话模式",
	Long: `进入多轮对话模式，历史消息会带入后续提问。
支持 console 与 tui 两种界面。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			cancel()
		}()

		a, cleanup, err := buildAgent(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		var uiImpl ui.ChatUI
		switch chatUI {
		case "console", "":
			uiImpl = &ui.ConsoleChatUI{In: os.Stdin, Out: os.Stdout}
		case "tui":
			uiImpl = &tui.ChatUI{}
		default:
			return fmt.Errorf("未知 ui 类型: %s (支持: console, tui)", chatUI)
		}

		return uiImpl.Run(ctx, a, ui.ChatOptions{
			ShowSteps:    chatShowSteps,
			HistoryLimit: chatHistoryLimit,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatUI, "ui", "console", "交互界面类型: console/tui")
	chatCmd.Flags().BoolVar(&chatShowSteps, "show-steps", false, "回答前打印处理步骤")
	chatCmd.Flags().IntVar(&chatHistoryLimit, "history-limit", 20, "带入上下文的历史消息条数上限")
}

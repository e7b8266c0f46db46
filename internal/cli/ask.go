package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/wwwzy/RagAgent/internal/agent"
)

var (
	askVerbose bool
	askTimeout time.Duration
)

// askCmd 单次提问：适合脚本和快速查询，不进入交互模式。
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "向文档库提一个问题",
	Long: `执行一轮完整的检索问答并打印回答。
加 --verbose 可以看到检索与评审的处理步骤。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()

		a, cleanup, err := buildAgent(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		question := strings.Join(args, " ")
		resp, err := a.Run(ctx, agent.AskRequest{Prompt: question})
		if err != nil {
			return fmt.Errorf("提问失败: %w", err)
		}

		if askVerbose {
			for _, s := range resp.ProcessingSteps {
				fmt.Printf("[%s] %s: %s\n", s.Status, s.StepName, s.Details)
			}
			fmt.Printf("(searches: %d, rewrites: %d, passages: %d)\n\n",
				resp.SearchCount, resp.RewriteCount, len(resp.RetrievedDocuments))
		}

		fmt.Println(resp.Answer)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVarP(&askVerbose, "verbose", "v", false, "打印处理步骤")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "单轮执行超时时间")
}

package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// statusCmd 展示 Agent 的静态配置：模型、预算和已注册的向量库。
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "显示 Agent 配置概况",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		a, cleanup, err := buildAgent(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		status := a.Status()
		fmt.Printf("Model:        %s\n", status.ModelID)
		fmt.Printf("Max Searches: %d\n", status.MaxSearches)
		fmt.Printf("Max Rewrites: %d\n", status.MaxRewrites)
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tTOP-K\tDESCRIPTION")
		for _, t := range status.Tools {
			fmt.Fprintf(w, "%s\t%d\t%s\n", t.Name, t.TopK, t.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

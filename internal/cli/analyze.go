package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/ui"
)

var analyzeQuery string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.csv>",
	Short: "对数据集运行一次自主分析或单次提问",
	Long: `加载 CSV 文件后运行完整的自主 EDA；指定 --query 时只回答这一个问题。
图表写入 agent.plots_dir 目录。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		logger, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()

		session, err := newSession(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer session.Close()

		out := cmd.OutOrStdout()
		banner, err := session.Load(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, banner)

		if analyzeQuery != "" {
			reply, err := session.Query(ctx, analyzeQuery)
			if err != nil {
				return fmt.Errorf("%s", agent.UserMessage(err))
			}
			fmt.Fprintln(out, reply.Text)
			return nil
		}

		res, err := session.Autonomous(ctx)
		if err != nil {
			return fmt.Errorf("%s", agent.UserMessage(err))
		}
		fmt.Fprintln(out, ui.FormatAutonomous(res))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeQuery, "query", "q", "", "只回答这个问题，不运行自主分析")
}

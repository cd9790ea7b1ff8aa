package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/dataset"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.csv>",
	Short: "不调用模型，直接查看数据集结构",
	Long:  `加载 CSV 文件并输出形状、列类型、缺失值和每列的概要统计，以及自主分析会首先绘制的列。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := dataset.Load(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, agent.LoadBanner(ds))
		fmt.Fprintln(out, agent.DetailedInfo(ds))
		if col, reason, ok := agent.SelectPlotColumn(ds); ok {
			fmt.Fprintf(out, "Autonomous analysis would start with `%s` (%s).\n", col, reason)
		} else {
			fmt.Fprintln(out, agent.MsgNoColumns)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

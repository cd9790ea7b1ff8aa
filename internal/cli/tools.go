package cli

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cloudwego/eino/schema"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/dataset"
	"github.com/wwwzy/EDAgent/internal/plot"
	"github.com/wwwzy/EDAgent/internal/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "列出模型可用的分析工具",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := newCatalog(cfg)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Tool\tParameters\tDescription")
		fmt.Fprintln(w, "----\t----------\t-----------")
		for _, def := range catalog.Definitions() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", def.ID, paramsSummary(def.Params), def.Desc)
		}
		return w.Flush()
	},
}

var toolArgs string

var toolsRunCmd = &cobra.Command{
	Use:   "run <tool> <file.csv>",
	Short: "不经过模型直接执行一个分析工具",
	Long:  `加载 CSV 文件后执行指定工具，输出交给模型的 JSON 结果。启用存储时同样写入审计记录。`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		logger, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()

		catalog, err := newCatalog(cfg)
		if err != nil {
			return err
		}
		ds, err := dataset.Load(args[1])
		if err != nil {
			return err
		}
		store, err := openStorage(ctx, cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}

		ctx = agent.WithTraceID(ctx, "cli-"+strings.ReplaceAll(args[0], "_", "-"))
		invoker := agent.NewAuditedInvoker(catalog, store, logger)
		res, err := invoker.Invoke(ctx, tools.Env{
			Dataset:  ds,
			Renderer: plot.NewEChartsRenderer(cfg.Agent.PlotsDir),
			Logger:   logger,
		}, tools.Call{ID: "cli", Name: args[0], Args: toolArgs})
		if err != nil {
			return err
		}

		var pretty bytes.Buffer
		if err := json.Indent(&pretty, []byte(res.JSON()), "", "  "); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsRunCmd)
	toolsRunCmd.Flags().StringVar(&toolArgs, "args", "{}", `工具参数 JSON，例如 '{"column":"age"}'`)
}

// paramsSummary 把参数说明压成一行，可选参数带问号。
func paramsSummary(params map[string]*schema.ParameterInfo) string {
	if len(params) == 0 {
		return "-"
	}
	names := make([]string, 0, len(params))
	for name, p := range params {
		if !p.Required {
			name += "?"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wwwzy/EDAgent/internal/storage"
)

// storageCmd represents the storage command
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "管理运行记录和审计数据库",
	Long:  `提供查看数据库概况、查询运行与工具审计记录以及清理旧记录的命令。`,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "显示数据库统计概况",
	RunE:  runInfo,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "查询工具调用审计记录",
	RunE:  runAudit,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "查询 Agent 运行记录",
	RunE:  runRuns,
}

// pruneAuditCmd represents the prune-audit command
var pruneAuditCmd = &cobra.Command{
	Use:   "prune-audit",
	Short: "清理审计记录",
	Long:  `根据用户指定的保留条数或天数，清理旧的审计记录；按天数清理时同时清理运行记录。`,
	RunE:  runPruneAudit,
}

var (
	keepAuditCount int
	keepAuditDays  int

	queryTrace   string
	queryAction  string
	queryDataset string
	queryStatus  string
	queryKind    string
	querySince   time.Duration
	queryLimit   int
)

func init() {
	rootCmd.AddCommand(storageCmd)
	storageCmd.AddCommand(infoCmd, auditCmd, runsCmd, pruneAuditCmd)

	pruneAuditCmd.Flags().IntVar(&keepAuditCount, "keep", 0, "保留最近的 N 条记录")
	pruneAuditCmd.Flags().IntVar(&keepAuditDays, "days", 0, "保留最近 N 天的记录")

	auditCmd.Flags().StringVar(&queryTrace, "trace", "", "按 TraceID 过滤")
	auditCmd.Flags().StringVar(&queryAction, "action", "", "按工具名过滤")
	auditCmd.Flags().StringVar(&queryDataset, "dataset", "", "按数据集文件名过滤")
	auditCmd.Flags().StringVar(&queryStatus, "status", "", "按状态过滤 running/success/failed")
	auditCmd.Flags().DurationVar(&querySince, "since", 0, "只看最近这段时间，例如 24h")
	auditCmd.Flags().IntVar(&queryLimit, "limit", 20, "最多返回条数")

	runsCmd.Flags().StringVar(&queryKind, "kind", "", "按类型过滤 query/autonomous")
	runsCmd.Flags().StringVar(&queryDataset, "dataset", "", "按数据集文件名过滤")
	runsCmd.Flags().DurationVar(&querySince, "since", 0, "只看最近这段时间，例如 24h")
	runsCmd.Flags().IntVar(&queryLimit, "limit", 20, "最多返回条数")
}

func openStore(ctx context.Context) (*storage.Storage, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	store, err := storage.Open(ctx, cfg.Storage.Config)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return store, nil
}

func sinceTime() *time.Time {
	if querySince <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(-querySince)
	return &t
}

func runPruneAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if keepAuditCount <= 0 && keepAuditDays <= 0 {
		_ = cmd.Usage()
		return errors.New("must specify either --keep or --days")
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var deletedCount int64

	if keepAuditCount > 0 {
		fmt.Fprintf(out, "Pruning audit records, keeping latest %d records...\n", keepAuditCount)
		count, err := store.DeleteAuditRecordsKeepLatest(ctx, keepAuditCount)
		if err != nil {
			return fmt.Errorf("error pruning by count: %w", err)
		}
		deletedCount += count
	}

	if keepAuditDays > 0 {
		before := time.Now().UTC().AddDate(0, 0, -keepAuditDays)
		fmt.Fprintf(out, "Pruning records older than %d days (before %s)...\n", keepAuditDays, before.Format(time.RFC3339))
		count, err := store.DeleteAuditRecordsBefore(ctx, before)
		if err != nil {
			return fmt.Errorf("error pruning by days: %w", err)
		}
		deletedCount += count
		runs, err := store.DeleteRunRecordsBefore(ctx, before)
		if err != nil {
			return fmt.Errorf("error pruning runs: %w", err)
		}
		fmt.Fprintf(out, "Deleted %d run records.\n", runs)
	}

	fmt.Fprintf(out, "Prune completed. Deleted %d audit records.\n", deletedCount)

	if count, err := store.CountAuditRecords(ctx); err == nil {
		fmt.Fprintf(out, "Remaining Audit Records: %d\n", count)
	}
	return nil
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.QueryAuditRecords(ctx, storage.AuditQuery{
		TraceID: queryTrace,
		Action:  queryAction,
		Dataset: queryDataset,
		Status:  queryStatus,
		From:    sinceTime(),
		Limit:   queryLimit,
		Desc:    true,
	})
	if err != nil {
		return err
	}
	printAudit(cmd.OutOrStdout(), records)
	return nil
}

func printAudit(out io.Writer, records []storage.AuditRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Started\tTrace\tDataset\tTool\tStatus\tResult\tDuration\tPlot")
	for _, r := range records {
		dur := "-"
		if !r.FinishedAt.IsZero() {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		plotPath := r.PlotPath
		if plotPath == "" {
			plotPath = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(r.StartedAt), shortID(r.TraceID), r.Dataset, r.Action, r.Status, r.ResultStatus, dur, plotPath)
	}
	_ = w.Flush()
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.QueryRunRecords(ctx, storage.RunQuery{
		Kind:    queryKind,
		Dataset: queryDataset,
		From:    sinceTime(),
		Limit:   queryLimit,
		Desc:    true,
	})
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Started\tTrace\tKind\tDataset\tOutcome\tRounds\tTools\tQuery")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			humanize.Time(r.StartedAt), shortID(r.TraceID), r.Kind, r.Dataset, r.Outcome, r.Iterations, r.ToolCalls, oneLine(r.Query, 40))
	}
	return w.Flush()
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if cfg == nil {
		return errors.New("config not loaded")
	}

	// 1. 获取数据库文件信息
	dbPath := cfg.Storage.Path
	if !filepath.IsAbs(dbPath) {
		if absPath, err := filepath.Abs(dbPath); err == nil {
			dbPath = absPath
		}
	}

	var dbSizeStr string
	info, err := os.Stat(dbPath)
	switch {
	case cfg.Storage.InMemory:
		dbSizeStr = "in-memory"
	case err == nil:
		dbSizeStr = fmt.Sprintf("%s (%s)", humanize.IBytes(uint64(info.Size())), dbPath)
	case os.IsNotExist(err):
		dbSizeStr = "Not Found (Will be created on first run)"
	default:
		dbSizeStr = fmt.Sprintf("Error: %v", err)
	}

	// 2. 连接数据库
	store, err := storage.Open(ctx, cfg.Storage.Config)
	if err != nil {
		fmt.Fprintf(out, "Database File: %s\n", dbSizeStr)
		return fmt.Errorf("error opening database: %w", err)
	}
	defer store.Close()

	// 3. 获取统计信息
	runCount, err := store.CountRunRecords(ctx)
	if err != nil {
		return fmt.Errorf("error counting runs: %w", err)
	}
	auditCount, err := store.CountAuditRecords(ctx)
	if err != nil {
		return fmt.Errorf("error counting audit records: %w", err)
	}
	byAction, err := store.CountAuditRecordsByAction(ctx)
	if err != nil {
		return fmt.Errorf("error counting audit records by tool: %w", err)
	}

	// 4. 格式化输出
	fmt.Fprintf(out, "Database File: %s\n\n", dbSizeStr)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "Table\tCount")
	fmt.Fprintln(w, "-----\t-----")
	fmt.Fprintf(w, "RunRecords\t%d\n", runCount)
	fmt.Fprintf(w, "AuditRecords\t%d\n", auditCount)
	_ = w.Flush()

	if len(byAction) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "Tool\tCalls\tFailed")
		fmt.Fprintln(w, "----\t-----\t------")
		for _, c := range byAction {
			fmt.Fprintf(w, "%s\t%d\t%d\n", c.Action, c.Total, c.Failed)
		}
		_ = w.Flush()
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func oneLine(s string, limit int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return string(r)
}

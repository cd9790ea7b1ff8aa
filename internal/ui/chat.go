package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wwwzy/EDAgent/internal/agent"
	"github.com/wwwzy/EDAgent/internal/dataset"
)

// ChatBackend 是前端依赖的会话能力，由 agent.Session 实现。
type ChatBackend interface {
	Load(ctx context.Context, path string) (string, error)
	Dataset() *dataset.Dataset
	QueryTranscript(ctx context.Context, text string, transcript []agent.Exchange) ([]agent.Exchange, error)
	Autonomous(ctx context.Context) (*agent.AutonomousResult, error)
	ResetMemory() string
	HistorySummary() string
	ConclusionsSummary() string
	DatasetStatus() string
	DetailedInfo() string
}

type ChatUI interface {
	Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error
}

type ChatOptions struct {
	// SkipAutonomous 为 true 时加载数据集后不自动运行自主分析。
	SkipAutonomous bool
}

const HelpText = `Commands:
  /load <path>   load a CSV file (runs the autonomous analysis unless disabled)
  /auto          run the autonomous analysis on the current dataset
  /status        dataset status
  /info          detailed column information
  /history       analyses performed so far
  /conclusions   conclusions recorded so far
  /reset         clear the agent memory (the dataset stays loaded)
  /help          show this help
  exit, quit     leave the chat`

// CommandResult 是一条输入的处理结果。Handled 为 false 表示这是普通提问。
type CommandResult struct {
	Handled bool
	Exit    bool
	Text    string
}

// HandleCommand 处理 / 开头的命令以及 exit/quit。
func HandleCommand(ctx context.Context, b ChatBackend, line string, opts ChatOptions) CommandResult {
	line = strings.TrimSpace(line)
	switch strings.ToLower(line) {
	case "exit", "quit":
		return CommandResult{Handled: true, Exit: true}
	}
	if !strings.HasPrefix(line, "/") {
		return CommandResult{}
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	res := CommandResult{Handled: true}
	switch strings.ToLower(name) {
	case "help":
		res.Text = HelpText
	case "reset":
		res.Text = b.ResetMemory()
	case "history":
		res.Text = b.HistorySummary()
	case "conclusions":
		res.Text = b.ConclusionsSummary()
	case "info":
		res.Text = b.DetailedInfo()
	case "status":
		res.Text = b.DatasetStatus()
	case "load":
		if arg == "" {
			res.Text = "❌ Usage: /load <path>"
			return res
		}
		res.Text = LoadAndAnalyze(ctx, b, arg, opts)
	case "auto":
		res.Text = RunAutonomous(ctx, b)
	default:
		res.Text = fmt.Sprintf("❌ Unknown command /%s\n\n%s", name, HelpText)
	}
	return res
}

// LoadAndAnalyze 加载数据集，随后按需运行自主分析。
func LoadAndAnalyze(ctx context.Context, b ChatBackend, path string, opts ChatOptions) string {
	banner, err := b.Load(ctx, path)
	if errors.Is(err, agent.ErrBusy) {
		return agent.UserMessage(err)
	}
	if err != nil {
		return fmt.Sprintf("❌ Failed to load CSV: %v", err)
	}
	if opts.SkipAutonomous {
		return banner
	}
	return banner + "\n⚠️ **Autonomous analysis started (charts are written to the plots directory)!**\n\n" + RunAutonomous(ctx, b)
}

// RunAutonomous 运行自主分析并格式化结果。
func RunAutonomous(ctx context.Context, b ChatBackend) string {
	res, err := b.Autonomous(ctx)
	if err != nil {
		return agent.UserMessage(err)
	}
	return FormatAutonomous(res)
}

// FormatAutonomous 把自主分析结果整理成一段 markdown。
func FormatAutonomous(res *agent.AutonomousResult) string {
	if res == nil {
		return ""
	}
	if len(res.Exchanges) == 0 {
		return res.Final
	}
	var sb strings.Builder
	if res.Column != "" {
		fmt.Fprintf(&sb, "_First chart: `%s` (%s)_\n\n", res.Column, res.Reason)
	}
	for _, ex := range res.Exchanges {
		if ex.Prompt != "" {
			sb.WriteString(ex.Prompt)
			sb.WriteString("\n\n")
		}
		sb.WriteString(ex.Reply)
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

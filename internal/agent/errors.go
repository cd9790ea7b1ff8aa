package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/wwwzy/EDAgent/internal/tools"
)

var (
	// ErrNoDataset 表示当前没有加载数据集。
	ErrNoDataset = errors.New("no dataset loaded")
	// ErrUnknownTool 表示模型请求了未注册的工具，会中止本次运行。
	ErrUnknownTool = tools.ErrUnknownTool
	// ErrModelUnavailable 表示模型调用在重试后仍然失败。
	ErrModelUnavailable = errors.New("language model unavailable")
	// ErrBusy 表示已有交互在进行中。
	ErrBusy = errors.New("session busy")
)

// 面向用户的固定文案。
const (
	MsgNoDataset           = "⚠️ No dataset loaded. Please load a CSV file first."
	MsgNoDatasetAutonomous = "❌ No dataset loaded for autonomous analysis."
	MsgNoColumns           = "❌ Error: could not identify columns for analysis."
	MsgMaxIterations       = "⚠️ Maximum number of iterations reached"
	MsgAutonomousDone      = "👋 **Autonomous Analysis Complete!**\n\nNow feel free to ask detailed questions about the data."
	MsgBusy                = "⏳ Another analysis is still running. Please wait for it to finish."
)

// UserMessage 把错误转成一行可以直接展示给用户的文本。
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoDataset):
		return MsgNoDataset
	case errors.Is(err, ErrBusy):
		return MsgBusy
	case errors.Is(err, ErrModelUnavailable):
		return fmt.Sprintf("❌ %v", err)
	case errors.Is(err, ErrUnknownTool):
		return fmt.Sprintf("❌ The model requested a tool that does not exist (%v).", err)
	case errors.Is(err, context.Canceled):
		return "⚠️ Analysis cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "⚠️ Analysis timed out."
	default:
		return fmt.Sprintf("❌ Error: %v", err)
	}
}

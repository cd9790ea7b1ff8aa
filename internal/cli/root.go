package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/wwwzy/EDAgent/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
	cfg      *config.Config
)

// rootCmd 是没有子命令时调用的基础命令
var rootCmd = &cobra.Command{
	Use:   "edagent",
	Short: "EDAgent 是一个由大模型驱动的探索性数据分析助手",
	Long: `EDAgent 加载 CSV 数据集，由大模型调用内置的统计与绘图工具完成探索性数据分析，
并支持围绕分析结果继续对话。`,
	SilenceUsage: true,
}

// Execute 将所有子命令添加到根命令并适当设置标志。
// 这由 main.main() 调用。它只需要对 rootCmd 调用一次。
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件（默认按 ./config.yaml、$HOME/.edagent/config.yaml 搜索）")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 debug/info/warn/error（覆盖配置文件）")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "日志写入文件（默认 stderr；tui 模式下默认丢弃）")
}

// initConfig 读取配置文件和环境变量（如果已设置）。模型相关的校验由需要模型的命令自行完成。
func initConfig() {
	var err error
	cfg, err = config.Read(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// newLogger 按配置创建 slog 日志。discard 为 true 且未指定日志文件时丢弃日志。
func newLogger(discard bool) (*slog.Logger, func(), error) {
	var (
		w       io.Writer = os.Stderr
		cleanup           = func() {}
	)
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("打开日志文件失败: %w", err)
		}
		w, cleanup = f, func() { _ = f.Close() }
	case discard:
		w = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return logger, cleanup, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

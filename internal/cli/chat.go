package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wwwzy/EDAgent/internal/tui"
	"github.com/wwwzy/EDAgent/internal/ui"
)

var (
	chatUI       string
	chatSkipAuto bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [file.csv]",
	Short: "进入交互式对话模式",
	Long: `进入对话模式，用自然语言对数据集提问。
指定文件时先加载并运行自主分析（--skip-auto 跳过），之后可以用 /load 切换数据集。`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		var uiImpl ui.ChatUI
		switch chatUI {
		case "console", "":
			uiImpl = &ui.ConsoleChatUI{In: os.Stdin, Out: os.Stdout}
		case "tui":
			uiImpl = &tui.ChatUI{}
		default:
			return fmt.Errorf("未知 ui 类型: %s (支持: console, tui)", chatUI)
		}

		logger, closeLog, err := newLogger(chatUI == "tui")
		if err != nil {
			return err
		}
		defer closeLog()

		session, err := newSession(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer session.Close()

		if len(args) == 1 {
			banner, err := session.Load(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), banner)
		}

		return uiImpl.Run(ctx, session, ui.ChatOptions{SkipAutonomous: chatSkipAuto})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatUI, "ui", "console", "交互界面类型: console/tui")
	chatCmd.Flags().BoolVar(&chatSkipAuto, "skip-auto", false, "加载数据集后不运行自主分析")
}

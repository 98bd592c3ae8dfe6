package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/logging"
)

// rootFlags 是所有子命令共享的参数。
type rootFlags struct {
	configFile string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "camverify",
		Short:         "用拍摄的书类照片核对车台番号与参照 CSV",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env 可选；已存在的环境变量优先。
			_ = godotenv.Load()
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "配置文件路径（默认 <path>/camverify.toml）")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "日志级别：debug|info|warn|error（覆盖配置）")

	rootCmd.AddCommand(newRunCommand(flags))
	rootCmd.AddCommand(newExtractCommand())
	rootCmd.AddCommand(newSummarizeCommand(flags))

	return rootCmd
}

// setupLogger 按配置构造 logger 并设为默认；日志只写 stderr。
func setupLogger(eff config.EffectiveConfig, flags *rootFlags) error {
	if flags.logLevel != "" {
		eff.LogLevel = flags.logLevel
	}
	logger, err := logging.NewFromConfig(eff, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/infra/imgx"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
	"github.com/syun3032-tech/camera-verification-ai/internal/scan"
	"github.com/syun3032-tech/camera-verification-ai/internal/summarize"
)

func newSummarizeCommand(flags *rootFlags) *cobra.Command {
	var transcriptOnly bool

	cmd := &cobra.Command{
		Use:   "summarize <file>",
		Short: "转写录音/录像并生成会议纪要",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file := args[0]
			kind, mime, ok := scan.Classify(file)
			if !ok || kind == domain.InputDataset {
				return fmt.Errorf("不支持的文件类型：%q", filepath.Base(file))
			}

			cwd, err := os.Getwd()
			if err != nil {
				return exitCode(1, "读取当前目录失败：%v", err)
			}
			abs, err := filepath.Abs(file)
			if err != nil {
				return exitCode(1, "解析路径失败：%v", err)
			}
			// 配置文件可选：<文件所在目录>/camverify.toml 或 --config。
			eff, err := config.LoadEffective(cwd, config.CLIArgs{Path: filepath.Dir(abs), ConfigFile: flags.configFile})
			if err != nil {
				return exitCode(1, "%v", err)
			}
			if err := setupLogger(eff, flags); err != nil {
				return exitCode(1, "初始化日志失败：%v", err)
			}

			content, err := os.ReadFile(abs)
			if err != nil {
				return exitCode(1, "读取文件失败：%v", err)
			}
			if recognize.Classify(mime) == recognize.MediaImage {
				content, mime, err = imgx.FitJPEG(content, mime, eff.MaxImageBytes)
				if err != nil {
					return exitCode(1, "%v", err)
				}
			} else if eff.MaxImageBytes > 0 && len(content) > eff.MaxImageBytes && kind == domain.InputMedia {
				return exitCode(1, "文件过大（%d 字节，上限 %d 字节）", len(content), eff.MaxImageBytes)
			}

			ctx := cmd.Context()
			reg, closeAll, err := buildRegistry(ctx, eff)
			if err != nil {
				return exitCode(1, "初始化识别服务失败：%v", err)
			}
			defer closeAll()

			transcript, used, err := recognize.Recognize(ctx, reg, eff.Provider, content, mime)
			if err != nil {
				return exitCode(1, "%v", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "## 转写（%s）\n\n%s\n", used, strings.TrimSpace(transcript))
			if transcriptOnly {
				return nil
			}

			key := strings.TrimSpace(os.Getenv(envAnthropicKey))
			if key == "" {
				return exitCode(1, "未设置 %s，无法生成纪要（可用 --transcript-only 只输出转写）", envAnthropicKey)
			}
			client, err := apiClient(eff)
			if err != nil {
				return exitCode(1, "%v", err)
			}
			s, err := summarize.NewAnthropic(summarize.Options{
				APIKey:     key,
				Model:      eff.AnthropicModel,
				MaxTokens:  eff.MaxTokens,
				HTTPClient: client,
			})
			if err != nil {
				return exitCode(1, "%v", err)
			}
			minutes, err := s.Summarize(ctx, transcript)
			if err != nil {
				return exitCode(1, "%v", err)
			}
			fmt.Fprintf(out, "\n## 纪要（%s）\n\n%s\n", s.Name(), strings.TrimSpace(minutes))
			return nil
		},
	}

	cmd.Flags().BoolVar(&transcriptOnly, "transcript-only", false, "只输出转写，不生成纪要")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syun3032-tech/camera-verification-ai/internal/code"
	"github.com/syun3032-tech/camera-verification-ai/internal/session"
)

func newExtractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [text|-]",
		Short: "从识别文本中提取车台番号（无参数或 - 时读 stdin）",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return exitCode(1, "读取 stdin 失败：%v", err)
				}
				text = string(b)
			}

			id, ok := code.Extract(text)
			if !ok {
				return exitCode(1, "未找到车台番号。\n\n识别结果：\n%s...", code.Truncate(text, session.MissTextLimit))
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

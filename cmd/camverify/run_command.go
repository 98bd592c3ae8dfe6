package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/syun3032-tech/camera-verification-ai/internal/app/run"
	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/session"
)

func newRunCommand(flags *rootFlags) *cobra.Command {
	var (
		provider string
		apply    bool
	)

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "载入 <path> 下的 CSV 并认证拍摄文件（默认 dry-run）",
		Long: `扫描 <path>：*.csv 作为参照数据集载入；图片/PDF/音视频交给识别服务，
hOCR/HTML 在本地读取；从识别文本中提取车台番号并与数据集核对。

stdout 非 TTY 时只输出一个 RunReport JSON；进度与日志写 stderr。
--apply 时写出 out/<prefix>_<日期>.csv（存在未认证记录时）与 cache/report.json。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{ConfigFile: flags.configFile}
			if len(args) == 1 {
				cli.Path = args[0]
			}
			if cmd.Flags().Changed("provider") {
				switch provider {
				case config.ProviderGemini, config.ProviderOpenAI:
				default:
					return fmt.Errorf("--provider 只能是 gemini 或 openai，实际是 %q", provider)
				}
				cli.Provider, cli.ProviderSet = provider, true
			}
			if cmd.Flags().Changed("apply") {
				cli.Apply, cli.ApplySet = apply, true
			}
			return runCmd(cmd, cli, flags)
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "首选识别服务：gemini|openai（未指定则读配置文件；最终默认 gemini）")
	cmd.Flags().BoolVar(&apply, "apply", false, "写出导出文件与报告（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply = true")
	return cmd
}

func runCmd(cmd *cobra.Command, cli config.CLIArgs, flags *rootFlags) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	cwd, err := os.Getwd()
	if err != nil {
		return exitCode(1, "读取当前目录失败：%v", err)
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(cwdAbs, cli, err))
		return &exitError{code: 1}
	}
	if err := setupLogger(eff, flags); err != nil {
		return exitCode(1, "初始化日志失败：%v", err)
	}

	ctx := cmd.Context()
	reg, closeAll, err := buildRegistry(ctx, eff)
	if err != nil {
		return exitCode(1, "初始化识别服务失败：%v", err)
	}
	defer closeAll()

	var obs run.Observer
	progressW, interactive := pickProgressWriter()
	if interactive && progressW != nil {
		obs = newProgressUI(progressW)
	}

	rr := run.ExecuteWithObserver(ctx, eff, reg, obs)

	emitReport(stdout, stderr, rr)
	if interactive {
		emitLocations(progressW, eff, rr)
	}
	if !rr.OK() {
		return &exitError{code: 1}
	}
	return nil
}

// emitReport：stdout 是 TTY 时输出人类可读摘要与表格；否则 stdout 只输出一个 RunReport JSON。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if f, ok := stdout.(*os.File); ok && isTTY(f) {
		fmt.Fprintln(stdout, summaryLine(rr))
		if t := capturesTable(rr); t != "" {
			fmt.Fprintln(stdout, t)
		}
		if t := datasetsTable(rr); t != "" {
			fmt.Fprintln(stdout, t)
		}
		fmt.Fprintln(stdout, unverifiedBlock(rr))
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	s := rr.Summary
	return fmt.Sprintf("完成：verified=%d partial=%d extraction_miss=%d no_match=%d failed=%d datasets=%d/%d 认证=%d/%d",
		s.Verified, s.Partial, s.ExtractionMiss, s.NoMatch, s.Failed,
		s.DatasetsLoaded, s.DatasetsLoaded+s.DatasetsFailed,
		s.VerifiedTotal, s.Total,
	)
}

func capturesTable(rr domain.RunReport) string {
	if len(rr.Captures) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(rr.Captures))
	for _, c := range rr.Captures {
		detail := c.SourceFile
		if c.Status != domain.StatusVerified {
			detail = truncate(c.ErrorMsg, 60)
		}
		rows = append(rows, []string{c.File, c.Status, c.Identifier, c.MatchKind, c.RecognizerUsed, detail})
	}
	return renderTable(
		[]string{"文件", "状态", "车台番号", "匹配", "识别服务", "参照 CSV / 说明"},
		rows, nil,
	)
}

func datasetsTable(rr domain.RunReport) string {
	if len(rr.Datasets) == 0 {
		return ""
	}
	rows := make([][]string, 0, len(rr.Datasets))
	for _, d := range rr.Datasets {
		note := d.ErrorCode
		if d.ErrorMsg != "" {
			note = truncate(d.ErrorMsg, 60)
		}
		rows = append(rows, []string{d.File, d.Status, strconv.Itoa(d.Rows), d.Column, note})
	}
	return renderTable(
		[]string{"CSV", "状态", "行数", "识别列", "说明"},
		rows, []columnAlignment{alignLeft, alignLeft, alignRight},
	)
}

// unverifiedBlock 与会话内的状态提示一致：最多列出 session.StatusSampleLimit 个。
func unverifiedBlock(rr domain.RunReport) string {
	loaded := rr.Summary.DatasetsLoaded
	if loaded == 0 {
		return "尚未载入 CSV。"
	}
	if len(rr.Unverified) == 0 {
		return fmt.Sprintf("全部认证完成 %d/%d 件", rr.Summary.VerifiedTotal, rr.Summary.Total)
	}
	n := min(len(rr.Unverified), session.StatusSampleLimit)
	rows := make([][]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, []string{strconv.Itoa(i + 1), rr.Unverified[i]})
	}
	out := fmt.Sprintf("未认证 %d 件\n", len(rr.Unverified)) + renderTable([]string{"#", "车台番号"}, rows, []columnAlignment{alignRight})
	if rest := len(rr.Unverified) - n; rest > 0 {
		out += fmt.Sprintf("\n…其余 %d 件", rest)
	}
	return out
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		DryRun:     !(cli.ApplySet && cli.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Captures: []domain.CaptureResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Attempts:  []domain.RecognizerAttempt{},
		}},
	}
	rr.Finalize()
	return rr
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, rr domain.RunReport) {
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Path, "cache", "report.json"))
	}
	if rr.ExportFile != "" {
		fmt.Fprintf(w, "export: %s\n", filepath.Join(eff.Path, filepath.FromSlash(rr.ExportFile)))
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/syun3032-tech/camera-verification-ai/internal/app/run"
	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - keepalive：识别服务较慢时定期输出一行
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers  int
	total    int
	done     int
	verified int
	fail     int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不写入导出/报告/缓存)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] camverify run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	if eff.ConfigPath != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigPath)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  provider: %s\n", eff.Provider)
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  identifier_column: %s\n", formatColumnRule(eff.ColumnIndex, eff.Keywords))
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 out/, cache/\n", formatStringListJSON(eff.ExcludeDirs))

	fmt.Fprintln(p.w, "输出:")
	fmt.Fprintf(p.w, "  out: %s\n", filepath.Join(eff.Path, "out"))
	fmt.Fprintf(p.w, "  cache: %s\n", filepath.Join(eff.Path, "cache"))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case run.PhaseScan:
		fmt.Fprintf(p.w, "扫描: files=%d datasets=%d captures=%d (%s)\n",
			intField(fields, "files"), intField(fields, "datasets"), intField(fields, "captures"), formatShortDuration(dur),
		)
	case run.PhaseIngest:
		fmt.Fprintf(p.w, "载入: loaded=%d failed=%d rows=%d in_use=%d columns=%d (%s)\n",
			intField(fields, "loaded"), intField(fields, "failed"), intField(fields, "rows"),
			intField(fields, "in_use"), intField(fields, "columns"), formatShortDuration(dur),
		)
	case run.PhaseRecognize:
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "识别: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case run.PhaseStatus:
		fmt.Fprintf(p.w, "\n状态: total=%d verified=%d unverified=%d (%s)\n",
			intField(fields, "total"), intField(fields, "verified"), intField(fields, "unverified"), formatShortDuration(dur),
		)
	case run.PhaseExport:
		file, _ := fields["file"].(string)
		if file == "" {
			file = "(dry-run 不写入)"
		}
		fmt.Fprintf(p.w, "导出: rows=%d file=%s (%s)\n", intField(fields, "rows"), file, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, res domain.CaptureResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	switch res.Status {
	case domain.StatusVerified:
		p.verified++
		kind := res.MatchKind
		note := ""
		if res.MatchKind == string(domain.MatchPartial) {
			note = fmt.Sprintf(" csv=%s", res.RawIdentifier)
		}
		cached := ""
		if res.Cached {
			cached = " cached"
		}
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s %s%s source=%s via=%s%s (%s)\n",
			idx, total, res.File, res.Identifier, kind, note, res.SourceFile, res.RecognizerUsed, cached, formatShortDuration(dur),
		)
	default:
		p.fail++
		chain := formatAttemptChain(res.Attempts, 1)
		if chain != "" {
			chain = " attempts=" + chain
		}
		msg := res.ErrorMsg
		if res.Status == domain.StatusExtractionMiss && res.Text != "" {
			msg = msg + "：" + res.Text
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s: %s%s (%s)\n",
			idx, total, res.File, strings.ToUpper(res.Status), truncate(oneLine(msg), 160), chain, formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免结束后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) OnProgress(done, total, verified, failed, active int, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printProgressLocked(done, total, verified, failed, active, elapsed)
}

func (p *progressUI) printProgressLocked(done, total, verified, failed, active int, elapsed time.Duration) {
	fmt.Fprintf(p.w, "进度: done=%d/%d verified=%d fail=%d active=%d elapsed=%s\n",
		done, total, verified, failed, active, formatElapsed(elapsed),
	)
	p.lastPrinted = time.Now()
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					active := min(p.workers, p.total-p.done)
					p.printProgressLocked(p.done, p.total, p.verified, p.fail, active, time.Since(p.startedAt))
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func formatColumnRule(index int, keywords []string) string {
	kw := formatStringListJSON(keywords)
	if index < 0 {
		return "keywords " + kw
	}
	return fmt.Sprintf("#%d -> keywords %s", index, kw)
}

func formatStringListJSON(xs []string) string {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// truncate 按字符截断（识别文本多为日文）。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if max <= 0 || len(rs) <= max {
		return s
	}
	if max <= 3 {
		return string(rs[:max])
	}
	return string(rs[:max-3]) + "..."
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func formatAttemptChain(attempts []domain.RecognizerAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Recognizer) + ":" + strings.TrimSpace(a.Stage)
		if ec := strings.TrimSpace(a.ErrorCode); ec != "" {
			s += ":" + ec
		}
		if em := strings.TrimSpace(a.ErrorMsg); em != "" {
			s += ":" + truncate(oneLine(em), 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	default:
		return 0
	}
}

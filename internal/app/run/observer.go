package run

import (
	"time"

	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：CLI 的 keepalive ticker 与 run 在不同 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（scan/ingest/recognize/status/export）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemDone 在某个拍摄文件完成认证时调用；idx 从 1 开始，按扫描顺序递增。
	OnItemDone(idx, total int, res domain.CaptureResult, dur time.Duration)
	// OnProgress 用于 keepalive（通常由 CLI 自己 ticker 触发；run 层不强制调用）。
	OnProgress(done, total, verified, failed, active int, elapsed time.Duration)
}

const (
	PhaseScan      = "scan"
	PhaseIngest    = "ingest"
	PhaseRecognize = "recognize"
	PhaseStatus    = "status"
	PhaseExport    = "export"
)

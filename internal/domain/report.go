package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusVerified       = "verified"
	StatusExtractionMiss = "extraction_miss"
	StatusNoMatch        = "no_match"
	StatusNoDatasets     = "no_datasets"
	StatusFailed         = "failed"
)

const (
	DatasetStatusLoaded   = "loaded"
	DatasetStatusReplaced = "replaced"
	DatasetStatusFailed   = "failed"
)

const (
	ErrCodeFormat            = "format_error"
	ErrCodeMissingColumn     = "missing_column"
	ErrCodeExtractionMiss    = "extraction_miss"
	ErrCodeNoMatch           = "no_match"
	ErrCodeNoDatasets        = "no_datasets"
	ErrCodeService           = "service_error"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path      string `json:"path"`
	DryRun    bool   `json:"dry_run"`
	SessionID string `json:"session_id"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary  ReportSummary   `json:"summary"`
	Datasets []DatasetResult `json:"datasets"`
	Captures []CaptureResult `json:"captures"`

	Unverified []string `json:"unverified"`
	Duplicates []string `json:"duplicates"`
	ExportFile string   `json:"export_file"`
}

type ReportSummary struct {
	DatasetsLoaded int `json:"datasets_loaded"`
	DatasetsFailed int `json:"datasets_failed"`

	Verified       int `json:"verified"`
	Partial        int `json:"partial"`
	ExtractionMiss int `json:"extraction_miss"`
	NoMatch        int `json:"no_match"`
	Failed         int `json:"failed"`

	Total           int `json:"total"`
	VerifiedTotal   int `json:"verified_total"`
	UnverifiedTotal int `json:"unverified_total"`
}

type DatasetResult struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	Rows      int    `json:"rows"`
	Column    string `json:"identifier_column"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

type CaptureResult struct {
	File string `json:"file"`

	Status     string `json:"status"`
	Identifier string `json:"identifier"`
	MatchKind  string `json:"match_kind"`
	// RawIdentifier 是命中行识别列的原始值（部分一致时用于人工核对）。
	RawIdentifier string `json:"raw_identifier"`
	SourceFile    string `json:"source_file"`

	RecognizerUsed string              `json:"recognizer_used"`
	Attempts       []RecognizerAttempt `json:"attempts"`
	Cached         bool                `json:"cached"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
	// Text 只在 extraction_miss 时填写（截断），供人工确认识别结果。
	Text string `json:"text,omitempty"`
}

type RecognizerAttempt struct {
	Recognizer string `json:"recognizer"`
	Stage      string `json:"stage"`
	ErrorCode  string `json:"error_code,omitempty"`
	ErrorMsg   string `json:"error_msg,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) datasets 按文件名稳定排序；captures 保持处理顺序
// 3) summary 的计数由条目推导（Total/VerifiedTotal/UnverifiedTotal 由调用方填写）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Datasets, func(i, j int) bool { return r.Datasets[i].File < r.Datasets[j].File })

	s := ReportSummary{
		Total:           r.Summary.Total,
		VerifiedTotal:   r.Summary.VerifiedTotal,
		UnverifiedTotal: r.Summary.UnverifiedTotal,
	}
	for _, d := range r.Datasets {
		switch d.Status {
		case DatasetStatusLoaded, DatasetStatusReplaced:
			s.DatasetsLoaded++
		case DatasetStatusFailed:
			s.DatasetsFailed++
		}
	}
	for _, c := range r.Captures {
		switch c.Status {
		case StatusVerified:
			s.Verified++
			if c.MatchKind == string(MatchPartial) {
				s.Partial++
			}
		case StatusExtractionMiss:
			s.ExtractionMiss++
		case StatusNoMatch:
			s.NoMatch++
		case StatusFailed, StatusNoDatasets:
			s.Failed++
		}
	}
	r.Summary = s

	if r.Datasets == nil {
		r.Datasets = []DatasetResult{}
	}
	if r.Captures == nil {
		r.Captures = []CaptureResult{}
	}
	if r.Unverified == nil {
		r.Unverified = []string{}
	}
	if r.Duplicates == nil {
		r.Duplicates = []string{}
	}
}

// OK 表示本次运行没有任何需要人工处理的条目。
func (r RunReport) OK() bool {
	s := r.Summary
	return s.DatasetsFailed == 0 && s.ExtractionMiss == 0 && s.NoMatch == 0 && s.Failed == 0
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}

package session

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/syun3032-tech/camera-verification-ai/internal/code"
	"github.com/syun3032-tech/camera-verification-ai/internal/dataset"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/export"
	"github.com/syun3032-tech/camera-verification-ai/internal/ledger"
	"github.com/syun3032-tech/camera-verification-ai/internal/match"
)

// Session 持有一次工作会话的全部可变状态：按载入顺序排列的数据集与认证台账。
//
// 其余组件都是无状态的函数，由 Session 把状态以值的形式传入。
// Session 非并发安全：调用方保证同一时刻只有一个操作在执行。
type Session struct {
	id string

	rule         match.ColumnRule
	exportPrefix string
	now          func() time.Time
	log          *slog.Logger

	datasets []domain.Dataset
	ledger   ledger.Ledger
}

type Option func(*Session)

// WithRule 设置识别列规则（匹配、状态与导出共用）。
func WithRule(r match.ColumnRule) Option {
	return func(s *Session) { s.rule = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

func WithExportPrefix(prefix string) Option {
	return func(s *Session) { s.exportPrefix = prefix }
}

func New(opts ...Option) *Session {
	s := &Session{
		id:           uuid.NewString(),
		rule:         match.DefaultRule(),
		exportPrefix: export.DefaultPrefix,
		now:          time.Now,
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("session", s.id)
	return s
}

func (s *Session) ID() string { return s.id }

// Datasets 返回按载入顺序排列的数据集（切片副本；数据集本身只读）。
func (s *Session) Datasets() []domain.Dataset {
	return append([]domain.Dataset(nil), s.datasets...)
}

// Entries 返回台账条目副本。
func (s *Session) Entries() []domain.VerificationRecord { return s.ledger.Entries() }

// Duplicates 返回被确认过不止一次的 Identifier。
func (s *Session) Duplicates() []domain.Identifier { return s.ledger.Duplicates() }

// Ingest 解析一份数据集文本并按文件名写入会话。
//
// 同名数据集原位替换（保持载入顺序位置，旧行全部丢弃）。
// 解析失败时返回 *dataset.FormatError，会话状态不变。
func (s *Session) Ingest(name, raw string) (IngestResult, error) {
	ds, err := dataset.Parse(name, raw)
	if err != nil {
		s.log.Warn("数据集解析失败", "file", name, "error", err)
		return IngestResult{Name: name, Err: err}, err
	}

	res := IngestResult{Name: name, Rows: len(ds.Records)}
	if col, err := s.rule.Resolve(ds); err != nil {
		res.ColumnErr = err
	} else {
		res.Column = col
	}

	replaced := false
	for i := range s.datasets {
		if s.datasets[i].Name == name {
			s.datasets[i] = ds
			replaced = true
			break
		}
	}
	if !replaced {
		s.datasets = append(s.datasets, ds)
	}
	res.Replaced = replaced
	res.Loaded = len(s.datasets)

	s.log.Info("数据集已载入", "file", name, "rows", res.Rows, "replaced", replaced, "column", res.Column)
	if res.ColumnErr != nil {
		s.log.Warn("数据集缺少识别列，匹配时将跳过", "file", name)
	}
	return res, nil
}

// Source 是一个待载入的数据集文件。
type Source struct {
	Name    string
	Content []byte
}

// IngestBatch 逐个载入数据集；单个文件失败只记录在对应结果中，不影响其他文件。
func (s *Session) IngestBatch(items []Source) []IngestResult {
	out := make([]IngestResult, 0, len(items))
	for _, it := range items {
		res, _ := s.Ingest(it.Name, string(it.Content))
		out = append(out, res)
	}
	return out
}

// Verify 对识别服务返回的文本执行：提取 → 匹配 → 写入台账。
// 每一种未成功的情况都对应独立的 Outcome 类型。
func (s *Session) Verify(text string) Outcome {
	if len(s.datasets) == 0 {
		return Outcome{Kind: NoDatasets}
	}

	id, ok := code.Extract(text)
	if !ok {
		s.log.Info("未能从识别文本中提取车台番号", "chars", len([]rune(text)))
		return Outcome{Kind: ExtractionMiss, Text: code.Truncate(text, MissTextLimit)}
	}
	return s.VerifyIdentifier(id)
}

// VerifyIdentifier 跳过提取，直接用给定 Identifier 匹配并写入台账。
func (s *Session) VerifyIdentifier(id domain.Identifier) Outcome {
	if len(s.datasets) == 0 {
		return Outcome{Kind: NoDatasets}
	}
	id = domain.Normalize(string(id))

	m, ok := s.rule.Match(id, s.datasets)
	if !ok {
		s.log.Info("所有数据集中都不存在该车台番号", "identifier", id, "datasets", len(s.datasets))
		return Outcome{Kind: NoMatch, Candidate: id, Searched: len(s.datasets)}
	}

	e := s.ledger.Record(m, s.now())
	s.log.Info("认证成功", "identifier", e.Identifier, "candidate", id, "kind", m.Kind, "source_file", m.SourceFile)
	return Outcome{Kind: Verified, Candidate: id, Match: m, Entry: e, Searched: len(s.datasets)}
}

// Status 返回当前认证状态。
func (s *Session) Status() domain.Status {
	return ledger.Status(s.datasets, &s.ledger, s.rule)
}

// Export 生成未认证记录的 CSV；没有未认证 Identifier 时返回 ok=false。
func (s *Session) Export() (a export.Artifact, ok bool) {
	st := s.Status()
	if st.Unverified.Len() == 0 {
		return export.Artifact{}, false
	}
	a = export.Unverified(st.Unverified, s.datasets, s.rule)
	a.Filename = export.SuggestedFilename(s.exportPrefix, s.now())
	return a, true
}

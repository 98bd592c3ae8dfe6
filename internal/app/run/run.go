package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syun3032-tech/camera-verification-ai/internal/config"
	"github.com/syun3032-tech/camera-verification-ai/internal/dataset"
	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/infra/cache"
	"github.com/syun3032-tech/camera-verification-ai/internal/infra/fsx"
	"github.com/syun3032-tech/camera-verification-ai/internal/infra/imgx"
	"github.com/syun3032-tech/camera-verification-ai/internal/match"
	"github.com/syun3032-tech/camera-verification-ai/internal/recognize"
	"github.com/syun3032-tech/camera-verification-ai/internal/scan"
	"github.com/syun3032-tech/camera-verification-ai/internal/session"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 错误尽量降级为条目级失败（单个文件失败不影响其他文件）。
func Execute(ctx context.Context, eff config.EffectiveConfig, reg recognize.Registry) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, reg, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
//
// 流程：
// 1) 扫描 <path>，分出数据集与拍摄文件
// 2) 逐个载入数据集（同名替换）
// 3) 识别服务并发调用（worker pool），结果按扫描顺序逐个交给 session 认证
// 4) 计算认证状态；有未认证记录时生成导出
// 5) apply：写 out/<prefix>_<date>.csv 与 cache/report.json；dry-run 不写任何文件
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, reg recognize.Registry, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	log := slog.Default().With("component", "run")

	if obs != nil {
		obs.OnStart(eff)
	}

	sess := session.New(
		session.WithRule(match.ColumnRule{Index: eff.ColumnIndex, Keywords: eff.Keywords}),
		session.WithLogger(slog.Default()),
		session.WithExportPrefix(eff.ExportPrefix),
	)

	rr := domain.RunReport{
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		SessionID: sess.ID(),
		StartedAt: started,
		Captures:  make([]domain.CaptureResult, 0, 64),
	}

	scanStarted := time.Now()
	files, err := scan.ScanInputs(eff.Path, eff.ExcludeDirs)
	if err != nil {
		rr.Captures = append(rr.Captures, syntheticFailed("", domain.ErrCodeIOFailed, fmt.Sprintf("扫描失败：%v", err)))
		return finish(rr, eff, log)
	}
	datasetFiles, captureFiles := scan.Split(files)
	if obs != nil {
		obs.OnPhaseDone(PhaseScan, map[string]any{
			"files":    len(files),
			"datasets": len(datasetFiles),
			"captures": len(captureFiles),
		}, time.Since(scanStarted))
	}

	ingestStarted := time.Now()
	rr.Datasets = ingest(sess, datasetFiles)
	if obs != nil {
		loaded, failed, rows := 0, 0, 0
		for _, d := range rr.Datasets {
			if d.Status == domain.DatasetStatusFailed {
				failed++
				continue
			}
			loaded++
			rows += d.Rows
		}
		obs.OnPhaseDone(PhaseIngest, map[string]any{
			"loaded":  loaded,
			"failed":  failed,
			"rows":    rows,
			"in_use":  len(sess.Datasets()),
			"columns": columnsResolved(rr.Datasets),
		}, time.Since(ingestStarted))
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}
	if obs != nil {
		obs.OnPhaseDone(PhaseRecognize, map[string]any{
			"workers":     workers,
			"total_items": len(captureFiles),
		}, 0)
	}

	store := cache.New(eff.Path, !eff.Apply)
	verifyCaptures(ctx, eff, reg, store, sess, captureFiles, workers, obs, &rr, log)

	statusStarted := time.Now()
	st := sess.Status()
	rr.Summary.Total = st.Total
	rr.Summary.VerifiedTotal = st.Verified.Len()
	rr.Summary.UnverifiedTotal = st.Unverified.Len()
	rr.Unverified = st.Unverified.Strings()
	for _, id := range sess.Duplicates() {
		rr.Duplicates = append(rr.Duplicates, string(id))
	}
	log.Debug(session.StatusMessage(st, len(sess.Datasets())), "phase", PhaseStatus)
	if obs != nil {
		obs.OnPhaseDone(PhaseStatus, map[string]any{
			"total":      st.Total,
			"verified":   st.Verified.Len(),
			"unverified": st.Unverified.Len(),
		}, time.Since(statusStarted))
	}

	exportStarted := time.Now()
	if a, ok := sess.Export(); ok {
		file := ""
		if eff.Apply {
			name, err := fsx.WriteFileAtomicUnique(filepath.Join(eff.Path, "out"), a.Filename, a.Data)
			if err != nil {
				log.Error("导出写入失败", "file", a.Filename, "error", err)
				rr.Captures = append(rr.Captures, syntheticFailed(filepath.ToSlash(filepath.Join("out", a.Filename)), domain.ErrCodeIOFailed, fmt.Sprintf("写入导出文件失败：%v", err)))
			} else {
				file = filepath.ToSlash(filepath.Join("out", name))
				rr.ExportFile = file
			}
		}
		if obs != nil {
			obs.OnPhaseDone(PhaseExport, map[string]any{
				"rows": a.Rows,
				"file": file,
			}, time.Since(exportStarted))
		}
	}

	return finish(rr, eff, log)
}

// finish 收尾：Finalize，并在 apply 时写 cache/report.json（失败只记日志，不改变报告内容）。
func finish(rr domain.RunReport, eff config.EffectiveConfig, log *slog.Logger) domain.RunReport {
	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()

	if eff.Apply {
		b, err := json.MarshalIndent(rr, "", "  ")
		if err == nil {
			err = fsx.WriteFileAtomicReplace(filepath.Join(eff.Path, "cache"), "report.json", append(b, '\n'))
		}
		if err != nil {
			log.Error("写入 report.json 失败", "error", err)
		}
	}
	return rr
}

func ingest(sess *session.Session, files []domain.InputFile) []domain.DatasetResult {
	out := make([]domain.DatasetResult, 0, len(files))
	sources := make([]session.Source, 0, len(files))
	rels := make([]string, 0, len(files))

	for _, f := range files {
		b, err := os.ReadFile(f.AbsPath)
		if err != nil {
			out = append(out, domain.DatasetResult{
				File:      f.RelPath,
				Status:    domain.DatasetStatusFailed,
				ErrorCode: domain.ErrCodeIOFailed,
				ErrorMsg:  fmt.Sprintf("读取失败：%v", err),
			})
			continue
		}
		sources = append(sources, session.Source{Name: f.Name, Content: b})
		rels = append(rels, f.RelPath)
	}

	for i, res := range sess.IngestBatch(sources) {
		out = append(out, datasetResult(rels[i], res))
	}
	return out
}

func datasetResult(rel string, res session.IngestResult) domain.DatasetResult {
	d := domain.DatasetResult{File: rel, Rows: res.Rows, Column: res.Column}
	if res.Err != nil {
		d.Status = domain.DatasetStatusFailed
		d.ErrorCode = domain.ErrCodeIOFailed
		var fe *dataset.FormatError
		if errors.As(res.Err, &fe) {
			d.ErrorCode = domain.ErrCodeFormat
		}
		d.ErrorMsg = res.Message()
		return d
	}

	d.Status = domain.DatasetStatusLoaded
	if res.Replaced {
		d.Status = domain.DatasetStatusReplaced
	}
	var me *match.MissingColumnError
	if errors.As(res.ColumnErr, &me) {
		d.ErrorCode = domain.ErrCodeMissingColumn
		d.ErrorMsg = me.Error()
	}
	return d
}

func columnsResolved(ds []domain.DatasetResult) int {
	n := 0
	for _, d := range ds {
		if d.Column != "" {
			n++
		}
	}
	return n
}

// recognized 是单个拍摄文件的识别结果（尚未认证）。
type recognized struct {
	idx  int
	text string
	used string
	// err 为 *recognize.ServiceError 或读取失败。
	err      error
	ioErr    bool
	cached   bool
	attempts []recognize.Attempt
	dur      time.Duration
}

// verifyCaptures 并发识别，并按扫描顺序把结果依次交给 session（同一时刻只有一个认证在进行）。
func verifyCaptures(ctx context.Context, eff config.EffectiveConfig, reg recognize.Registry, store cache.Store, sess *session.Session, files []domain.InputFile, workers int, obs Observer, rr *domain.RunReport, log *slog.Logger) {
	if len(files) == 0 {
		return
	}

	// 没有数据集时不调用识别服务：每个拍摄文件直接得到 no_datasets。
	if len(sess.Datasets()) == 0 {
		for i, f := range files {
			res := captureResult(f, recognized{idx: i}, sess.Verify(""))
			rr.Captures = append(rr.Captures, res)
			if obs != nil {
				obs.OnItemDone(i+1, len(files), res, 0)
			}
		}
		return
	}

	results := make(chan recognized, len(files))
	var g errgroup.Group
	g.SetLimit(workers)
	go func() {
		for i := range files {
			i, f := i, files[i]
			g.Go(func() error {
				started := time.Now()
				r := recognizeOne(ctx, eff, reg, store, f, log)
				r.idx = i
				r.dur = time.Since(started)
				results <- r
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	pending := make(map[int]recognized, workers)
	next := 0
	for r := range results {
		pending[r.idx] = r
		for {
			p, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			var out session.Outcome
			if p.err != nil {
				out = session.Failed(p.err)
			} else {
				out = sess.Verify(p.text)
			}
			res := captureResult(files[next], p, out)
			rr.Captures = append(rr.Captures, res)
			if obs != nil {
				obs.OnItemDone(next+1, len(files), res, p.dur)
			}
			next++
		}
	}
}

func recognizeOne(ctx context.Context, eff config.EffectiveConfig, reg recognize.Registry, store cache.Store, f domain.InputFile, log *slog.Logger) recognized {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return recognized{err: fmt.Errorf("读取失败：%w", err), ioErr: true}
	}

	media := recognize.Classify(f.MIME)
	useCache := media != recognize.MediaDocument
	key := cache.Key(content)

	if useCache {
		if text, used, ok := lookupCache(store, reg, eff.Provider, key, f.MIME); ok {
			return recognized{text: text, used: used, cached: true}
		}
	}

	mime := f.MIME
	switch {
	case media == recognize.MediaImage:
		content, mime, err = imgx.FitJPEG(content, f.MIME, eff.MaxImageBytes)
		if err != nil {
			return recognized{err: &recognize.ServiceError{Message: err.Error(), Err: err}}
		}
	case media != recognize.MediaDocument && eff.MaxImageBytes > 0 && len(content) > eff.MaxImageBytes:
		return recognized{err: &recognize.ServiceError{
			Message: fmt.Sprintf("文件过大（%d 字节，上限 %d 字节）", len(content), eff.MaxImageBytes),
		}}
	}

	text, used, attempts, err := recognize.RecognizeTrace(ctx, reg, eff.Provider, content, mime)
	if err != nil {
		log.Warn("识别失败", "file", f.RelPath, "error", err)
		return recognized{err: err, attempts: attempts}
	}

	if useCache && !store.ReadOnly {
		if err := store.WriteTranscript(used, key, text); err != nil {
			log.Warn("写入识别缓存失败", "file", f.RelPath, "error", err)
		}
	}
	return recognized{text: text, used: used, attempts: attempts}
}

// lookupCache 按“requested -> 其余已注册服务”的顺序查找识别缓存（只读）。
func lookupCache(store cache.Store, reg recognize.Registry, requested, key, mime string) (text, used string, ok bool) {
	names := append([]string{requested}, reg.Names()...)
	for _, name := range names {
		r, found := reg.Get(name)
		if !found || !r.Accepts(mime) {
			continue
		}
		t, hit, err := store.ReadTranscript(r.Name(), key)
		if err == nil && hit {
			return t, r.Name(), true
		}
	}
	return "", "", false
}

func captureResult(f domain.InputFile, r recognized, out session.Outcome) domain.CaptureResult {
	res := domain.CaptureResult{
		File:           f.RelPath,
		Identifier:     string(out.Candidate),
		RecognizerUsed: r.used,
		Attempts:       attempts(r.attempts),
		Cached:         r.cached,
	}

	switch out.Kind {
	case session.Verified:
		res.Status = domain.StatusVerified
		res.MatchKind = string(out.Match.Kind)
		res.RawIdentifier = out.Match.RawIdentifier
		res.SourceFile = out.Match.SourceFile
	case session.ExtractionMiss:
		res.Status = domain.StatusExtractionMiss
		res.ErrorCode = domain.ErrCodeExtractionMiss
		res.ErrorMsg = "未找到车台番号"
		res.Text = out.Text
	case session.NoMatch:
		res.Status = domain.StatusNoMatch
		res.ErrorCode = domain.ErrCodeNoMatch
		res.ErrorMsg = out.Message()
	case session.NoDatasets:
		res.Status = domain.StatusNoDatasets
		res.ErrorCode = domain.ErrCodeNoDatasets
		res.ErrorMsg = out.Message()
	default:
		res.Status = domain.StatusFailed
		res.ErrorCode = domain.ErrCodeService
		if r.ioErr {
			res.ErrorCode = domain.ErrCodeIOFailed
		}
		res.ErrorMsg = out.Message()
	}
	return res
}

func attempts(in []recognize.Attempt) []domain.RecognizerAttempt {
	out := make([]domain.RecognizerAttempt, 0, len(in))
	for _, a := range in {
		ra := domain.RecognizerAttempt{Recognizer: a.Recognizer, Stage: a.Stage}
		if a.Err != nil {
			ra.ErrorCode = domain.ErrCodeService
			ra.ErrorMsg = a.Err.Error()
		}
		out = append(out, ra)
	}
	return out
}

func syntheticFailed(file, code, msg string) domain.CaptureResult {
	return domain.CaptureResult{
		File:      file,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.RecognizerAttempt{},
	}
}

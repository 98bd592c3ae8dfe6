package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// MissTextLimit 是提取失败时随结果返回的识别原文长度上限（字符）。
const MissTextLimit = 200

// StatusSampleLimit 是状态提示中最多列出的未认证 Identifier 数量。
const StatusSampleLimit = 10

type Kind string

const (
	Verified       Kind = "verified"
	ExtractionMiss Kind = "extraction_miss"
	NoMatch        Kind = "no_match"
	NoDatasets     Kind = "no_datasets"
	ServiceError   Kind = "service_error"
)

// Outcome 是一次拍摄/识别结果的处理结论。
// 各 Kind 的处理方式不同（重拍、重传 CSV、检查数据集、重试网络），提示文本也各不相同。
type Outcome struct {
	Kind Kind

	// Candidate 是提取出的规范化 Identifier（ExtractionMiss/NoDatasets 时为空）。
	Candidate domain.Identifier
	// Match 与 Entry 只在 Verified 时有效。
	Match domain.MatchResult
	Entry domain.VerificationRecord

	// Text 是截断后的识别原文，只在 ExtractionMiss 时填写。
	Text string
	// Searched 是查找时已载入的数据集数量。
	Searched int
	// Err 只在 ServiceError 时填写，消息原样透传。
	Err error
}

// Failed 把识别服务的错误包装为 ServiceError 结论。
func Failed(err error) Outcome {
	if err == nil {
		err = errors.New("识别服务返回了空错误")
	}
	return Outcome{Kind: ServiceError, Err: err}
}

// Message 返回给操作人员看的提示文本。
func (o Outcome) Message() string {
	switch o.Kind {
	case Verified:
		var b strings.Builder
		if o.Match.Kind == domain.MatchExact {
			b.WriteString("认证成功（完全一致）")
		} else {
			b.WriteString("认证成功（部分一致）\n注意：车台番号为部分一致\n")
			fmt.Fprintf(&b, "提取值：%s\nCSV 值：%s", o.Candidate, o.Match.RawIdentifier)
		}
		fmt.Fprintf(&b, "\n\n参照 CSV：%s\n车台番号：%s", o.Match.SourceFile, o.Candidate)
		if detail := formatRecord(o.Match.Record); detail != "" {
			b.WriteString("\n\n")
			b.WriteString(detail)
		}
		return b.String()
	case ExtractionMiss:
		return "未找到车台番号。\n\n识别结果：\n" + o.Text + "..."
	case NoMatch:
		return fmt.Sprintf("所有 CSV 中都不存在该车台番号：%s\n\n已查找 CSV：%d 个", o.Candidate, o.Searched)
	case NoDatasets:
		return "请先载入 CSV。"
	case ServiceError:
		if o.Err == nil {
			return "识别服务错误"
		}
		return o.Err.Error()
	default:
		return string(o.Kind)
	}
}

func formatRecord(r domain.Record) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+r[k])
	}
	return strings.Join(lines, "\n")
}

// IngestResult 是单个数据集文件的载入结果。
type IngestResult struct {
	Name     string
	Rows     int
	Replaced bool
	// Loaded 是载入后会话中的数据集总数。
	Loaded int

	// Column 是解析出的识别列；ColumnErr 为 *match.MissingColumnError（软错误，不影响载入）。
	Column    string
	ColumnErr error

	// Err 非空表示该文件被拒绝（通常为 *dataset.FormatError）。
	Err error
}

func (r IngestResult) Message() string {
	switch {
	case r.Err != nil:
		return fmt.Sprintf("CSV 错误（%s）：%v", r.Name, r.Err)
	case r.Replaced:
		return fmt.Sprintf("已更新 CSV：%s（%d 行）", r.Name, r.Rows)
	default:
		return fmt.Sprintf("已添加 CSV：%s（%d 行）\n已载入 CSV：%d 个", r.Name, r.Rows, r.Loaded)
	}
}

// StatusMessage 渲染状态提示：全部完成时给出 N/N，否则列出最多 StatusSampleLimit 个未认证 Identifier。
func StatusMessage(st domain.Status, datasets int) string {
	if datasets == 0 {
		return "尚未载入 CSV。"
	}
	if st.Complete() {
		return fmt.Sprintf("全部认证完成 %d/%d 件\n\n已查找 CSV：%d 个", st.Verified.Len(), st.Total, datasets)
	}

	miss := st.Unverified.Strings()
	var b strings.Builder
	fmt.Fprintf(&b, "未认证 %d 件\n\n", len(miss))
	n := min(len(miss), StatusSampleLimit)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- " + miss[i])
	}
	if rest := len(miss) - n; rest > 0 {
		fmt.Fprintf(&b, "\n…其余 %d 件", rest)
	}
	fmt.Fprintf(&b, "\n\n已查找 CSV：%d 个", datasets)
	return b.String()
}

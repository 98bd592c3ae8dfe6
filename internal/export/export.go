package export

import (
	"strings"
	"time"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/match"
)

// SourceColumn 是导出 CSV 的首列：每行数据来自哪个数据集文件。
const SourceColumn = "ファイル名"

// DefaultPrefix 是导出文件名的默认前缀。
const DefaultPrefix = "unverified"

// Artifact 是一次导出的结果。
type Artifact struct {
	Filename string
	// Header 是 SourceColumn + 第一个数据集的表头。
	Header []string
	Rows   int
	Data   []byte
}

// Unverified 生成未认证记录的 CSV。
//
// 规则：
// - 以第一个（最早载入的）数据集的表头为规范列；其他数据集按列名取值，缺列留空
// - 每个数据集用同一 ColumnRule 确定识别列，只保留规范化值在 unverified 中的行
// - 含逗号的字段用双引号包裹；字段内的双引号不做转义
// - 行之间用 '\n' 连接；没有命中行时只输出表头
func Unverified(unverified domain.IdentifierSet, datasets []domain.Dataset, rule match.ColumnRule) Artifact {
	var canonical []string
	if len(datasets) > 0 {
		canonical = datasets[0].Headers
	}

	header := make([]string, 0, len(canonical)+1)
	header = append(header, SourceColumn)
	header = append(header, canonical...)

	lines := []string{joinLine(header)}
	rows := 0
	for _, ds := range datasets {
		col, err := rule.Resolve(ds)
		if err != nil {
			continue
		}
		for _, rec := range ds.Records {
			v := domain.Normalize(rec[col])
			if v == "" || !unverified.Has(v) {
				continue
			}

			fields := make([]string, 0, len(header))
			fields = append(fields, ds.Name)
			for _, h := range canonical {
				if ds.HeaderIndex(h) < 0 {
					fields = append(fields, "")
					continue
				}
				fields = append(fields, rec[h])
			}
			lines = append(lines, joinLine(fields))
			rows++
		}
	}

	return Artifact{
		Header: header,
		Rows:   rows,
		Data:   []byte(strings.Join(lines, "\n")),
	}
}

// SuggestedFilename 返回形如 unverified_2026-10-15.csv 的文件名（日期取 now 所在时区）。
func SuggestedFilename(prefix string, now time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + now.Format("2006-01-02") + ".csv"
}

func joinLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.Contains(f, ",") {
			b.WriteByte('"')
			b.WriteString(f)
			b.WriteByte('"')
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

package dataset

import (
	"fmt"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// PreambleLines 是表头之前固定存在的标题/元数据行数（去掉空行后计数）。
const PreambleLines = 2

// FormatError 表示文本去掉空行后不足“前言 + 表头”所需的行数。
// 调用方只拒绝这一份文件，不影响已载入的其他数据集。
type FormatError struct {
	File  string
	Lines int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("CSV 格式不正确：%q 去掉空行后只有 %d 行（至少需要 %d 行前言 + 1 行表头）", e.File, e.Lines, PreambleLines)
}

// Parse 把原始分隔符文本解析为 Dataset。
//
// 规则（固定）：
// - 按 '\n' 切行；trim 后为空的行在计数之前丢弃
// - 前 2 行是前言，无条件跳过；第 3 行是表头
// - 每个字段 trim；若 trim 后首尾都是 '"' 且长度 > 1，去掉首尾引号
// - 全部字段为空的数据行跳过
// - 重复表头追加 _2、_3 … 去重（Record 以表头为键，重复会互相覆盖）
func Parse(name, raw string) (domain.Dataset, error) {
	lines := make([]string, 0, 64)
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	if len(lines) < PreambleLines+1 {
		return domain.Dataset{}, &FormatError{File: name, Lines: len(lines)}
	}

	headers := dedupHeaders(SplitLine(lines[PreambleLines]))

	records := make([]domain.Record, 0, len(lines)-PreambleLines-1)
	for _, l := range lines[PreambleLines+1:] {
		values := SplitLine(l)
		for i := range values {
			values[i] = cleanField(values[i])
		}
		if allEmpty(values) {
			continue
		}

		rec := make(domain.Record, len(headers))
		for i, h := range headers {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			rec[h] = v
		}
		records = append(records, rec)
	}

	return domain.Dataset{
		Name:    name,
		Headers: headers,
		Records: records,
	}, nil
}

// SplitLine 按逗号切分一行，支持引号内的逗号与 "" 转义。
// 引号本身不进入字段值；每个字段 trim。
func SplitLine(line string) []string {
	values := make([]string, 0, 16)
	var cur strings.Builder
	inQuotes := false

	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(rs) && rs[i+1] == '"' {
				cur.WriteRune('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			values = append(values, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	values = append(values, strings.TrimSpace(cur.String()))
	return values
}

func cleanField(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = v[1 : len(v)-1]
	}
	return v
}

func allEmpty(values []string) bool {
	for _, v := range values {
		if v != "" {
			return false
		}
	}
	return true
}

func dedupHeaders(headers []string) []string {
	seen := make(map[string]struct{}, len(headers))
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		name := h
		for n := 2; ; n++ {
			if _, dup := seen[name]; !dup {
				break
			}
			name = fmt.Sprintf("%s_%d", h, n)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

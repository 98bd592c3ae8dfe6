package match

import (
	"fmt"
	"strings"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
)

// DefaultColumnIndex 是参照表约定格式中识别列的位置（第 9 列，I 列）。
const DefaultColumnIndex = 8

// DefaultKeywords 是按表头文本回退查找识别列时使用的关键字（大小写不敏感的子串）。
var DefaultKeywords = []string{"車台番号", "IDENTIFIER", "CHASSIS", "VIN"}

// MissingColumnError 表示数据集中无法确定识别列。
// 这是“软”错误：匹配与状态统计只会跳过该数据集。
type MissingColumnError struct {
	Dataset string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("数据集 %q 中找不到识别列（车台番号/IDENTIFIER/CHASSIS/VIN）", e.Dataset)
}

// ColumnRule 描述如何在一个数据集中确定识别列。
// 匹配、状态统计与导出必须使用同一个 ColumnRule。
type ColumnRule struct {
	// Index 是优先使用的固定列位置；< 0 表示不使用位置规则。
	Index int
	// Keywords 为空时使用 DefaultKeywords。
	Keywords []string
}

func DefaultRule() ColumnRule {
	return ColumnRule{Index: DefaultColumnIndex, Keywords: DefaultKeywords}
}

// Resolve 返回数据集的识别列表头名。
//
// 规则：该位置存在且表头非空时，无条件使用该位置；
// 否则取第一个包含任一关键字的表头。
func (r ColumnRule) Resolve(ds domain.Dataset) (string, error) {
	if r.Index >= 0 && r.Index < len(ds.Headers) && strings.TrimSpace(ds.Headers[r.Index]) != "" {
		return ds.Headers[r.Index], nil
	}

	keywords := r.Keywords
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	for _, h := range ds.Headers {
		up := strings.ToUpper(h)
		for _, k := range keywords {
			if k != "" && strings.Contains(up, strings.ToUpper(k)) {
				return h, nil
			}
		}
	}
	return "", &MissingColumnError{Dataset: ds.Name}
}

// Match 按载入顺序在数据集中查找与候选 Identifier 一致的行。
//
// 每个数据集内按行顺序逐行判断：先判断完全一致，再判断部分一致（互为子串），
// 任一成立即立刻返回。因此靠前的部分一致会先于靠后的完全一致被返回。
// 无法确定识别列、或没有命中行的数据集都会被跳过；只有命中才结束整个查找。
func (r ColumnRule) Match(candidate domain.Identifier, datasets []domain.Dataset) (domain.MatchResult, bool) {
	candidate = domain.Normalize(string(candidate))
	if candidate == "" {
		return domain.MatchResult{}, false
	}

	for _, ds := range datasets {
		col, err := r.Resolve(ds)
		if err != nil {
			continue
		}
		for _, rec := range ds.Records {
			raw := rec[col]
			v := domain.Normalize(raw)
			if v == "" {
				continue
			}

			var kind domain.MatchKind
			switch {
			case v == candidate:
				kind = domain.MatchExact
			case strings.Contains(string(v), string(candidate)) || strings.Contains(string(candidate), string(v)):
				kind = domain.MatchPartial
			default:
				continue
			}
			return domain.MatchResult{
				Candidate:     candidate,
				Kind:          kind,
				Record:        rec,
				RawIdentifier: raw,
				Column:        col,
				SourceFile:    ds.Name,
			}, true
		}
	}
	return domain.MatchResult{}, false
}

// Identifiers 返回数据集识别列的全部规范化值（按行顺序去重，跳过空值）。
func (r ColumnRule) Identifiers(ds domain.Dataset) (domain.IdentifierSet, error) {
	col, err := r.Resolve(ds)
	if err != nil {
		return domain.IdentifierSet{}, err
	}
	var out domain.IdentifierSet
	for _, rec := range ds.Records {
		if v := domain.Normalize(rec[col]); v != "" {
			out.Add(v)
		}
	}
	return out, nil
}

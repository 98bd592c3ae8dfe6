package domain

import (
	"strings"
	"unicode"
)

// Identifier 是书类与参照记录之间的关联主键（例如车台番号）。
//
// 约束：任何位置保存/比较的 Identifier 都必须是 Normalize 之后的形态。
type Identifier string

// Normalize 去掉全部空白字符并把字母转为大写。
// 幂等：Normalize(string(Normalize(x))) == Normalize(x)。
func Normalize(s string) Identifier {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return Identifier(b.String())
}

// IdentifierSet 是保持插入顺序的集合。
// 顺序只用于稳定输出（展示/导出/测试），集合语义不依赖它。
type IdentifierSet struct {
	order []Identifier
	index map[Identifier]struct{}
}

func NewIdentifierSet(ids ...Identifier) IdentifierSet {
	var s IdentifierSet
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add 插入 id；已存在时返回 false。
func (s *IdentifierSet) Add(id Identifier) bool {
	if s.index == nil {
		s.index = make(map[Identifier]struct{})
	}
	if _, ok := s.index[id]; ok {
		return false
	}
	s.index[id] = struct{}{}
	s.order = append(s.order, id)
	return true
}

func (s IdentifierSet) Has(id Identifier) bool {
	_, ok := s.index[id]
	return ok
}

func (s IdentifierSet) Len() int { return len(s.order) }

// Slice 返回按插入顺序排列的副本。
func (s IdentifierSet) Slice() []Identifier {
	return append([]Identifier(nil), s.order...)
}

func (s IdentifierSet) Strings() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, string(id))
	}
	return out
}

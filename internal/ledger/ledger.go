package ledger

import (
	"time"

	"github.com/google/uuid"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/match"
)

// Ledger 是会话内的认证台账：只追加，不去重，不删除。
//
// 零值可直接使用；非并发安全（调用方保证同一时刻只有一个写入）。
type Ledger struct {
	entries []domain.VerificationRecord
}

// Record 把一次命中写入台账并返回写入的条目。
func (l *Ledger) Record(m domain.MatchResult, at time.Time) domain.VerificationRecord {
	e := domain.VerificationRecord{
		ID:         uuid.NewString(),
		Identifier: m.Identifier(),
		Candidate:  m.Candidate,
		Kind:       m.Kind,
		At:         at,
		Record:     m.Record,
		SourceFile: m.SourceFile,
	}
	l.entries = append(l.entries, e)
	return e
}

func (l *Ledger) Len() int { return len(l.entries) }

// Entries 返回按写入顺序排列的副本。
func (l *Ledger) Entries() []domain.VerificationRecord {
	return append([]domain.VerificationRecord(nil), l.entries...)
}

// Identifiers 返回台账中出现过的 Identifier（按首次写入顺序）。
func (l *Ledger) Identifiers() domain.IdentifierSet {
	var s domain.IdentifierSet
	for _, e := range l.entries {
		s.Add(e.Identifier)
	}
	return s
}

// Duplicates 返回被确认过不止一次的 Identifier（按首次写入顺序）。
// 只用于诊断，不影响 Status。
func (l *Ledger) Duplicates() []domain.Identifier {
	counts := make(map[domain.Identifier]int, len(l.entries))
	for _, e := range l.entries {
		counts[e.Identifier]++
	}
	var out []domain.Identifier
	seen := make(map[domain.Identifier]struct{})
	for _, e := range l.entries {
		if counts[e.Identifier] < 2 {
			continue
		}
		if _, ok := seen[e.Identifier]; ok {
			continue
		}
		seen[e.Identifier] = struct{}{}
		out = append(out, e.Identifier)
	}
	return out
}

// Status 由数据集与台账推导认证状态。
//
// total 是所有数据集识别列规范化值的并集；无法确定识别列的数据集不参与统计。
// verified = 台账 ∩ total；unverified = total − verified。
// 两者都是集合运算，同一 Identifier 重复写入台账不会改变结果。
func Status(datasets []domain.Dataset, l *Ledger, rule match.ColumnRule) domain.Status {
	var population domain.IdentifierSet
	for _, ds := range datasets {
		ids, err := rule.Identifiers(ds)
		if err != nil {
			continue
		}
		for _, id := range ids.Slice() {
			population.Add(id)
		}
	}

	var confirmed domain.IdentifierSet
	if l != nil {
		confirmed = l.Identifiers()
	}

	var st domain.Status
	for _, id := range population.Slice() {
		if confirmed.Has(id) {
			st.Verified.Add(id)
		} else {
			st.Unverified.Add(id)
		}
	}
	st.Total = population.Len()
	return st
}

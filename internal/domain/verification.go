package domain

import "time"

type MatchKind string

const (
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
)

// MatchResult 是一次匹配的临时结果；是否写入台账由调用方决定。
type MatchResult struct {
	// Candidate 是参与匹配的（已规范化）候选 Identifier。
	Candidate Identifier
	Kind      MatchKind

	Record Record
	// RawIdentifier 是命中行识别列的原始值（未规范化）。
	RawIdentifier string
	Column        string
	SourceFile    string
}

// Identifier 返回命中行的规范化 Identifier。
func (m MatchResult) Identifier() Identifier {
	return Normalize(m.RawIdentifier)
}

// VerificationRecord 是台账中的一条只追加记录，创建后不再修改。
type VerificationRecord struct {
	ID string

	// Identifier 是命中行的规范化值；部分一致时与 Candidate 不同。
	Identifier Identifier
	Candidate  Identifier
	Kind       MatchKind

	At         time.Time
	Record     Record
	SourceFile string
}

// Status 是由数据集与台账推导出的认证状态视图。
type Status struct {
	Verified   IdentifierSet
	Unverified IdentifierSet
	// Total 是所有数据集识别列规范化值的并集大小。
	Total int
}

// Complete 表示没有剩余的未认证 Identifier。
func (s Status) Complete() bool { return s.Unverified.Len() == 0 }

package domain

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Identifier
	}{
		{"abc123-4567890", "ABC123-4567890"},
		{" hnt32 -117910 ", "HNT32-117910"},
		{"a\tb\nc\r\nd", "ABCD"},
		{"aazh20　-1002549", "AAZH20-1002549"}, // 全角空格
		{"", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q)=%q，期望 %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"abc123-4567890",
		"  Mixed Case  with\tspaces ",
		"ǆ ß ﬁ ǅ",
		"車台番号: aazh20-1002549",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(string(once))
		if once != twice {
			t.Fatalf("Normalize 不幂等：%q -> %q -> %q", in, once, twice)
		}
	}
}

func TestIdentifierSet_KeepsInsertionOrderAndDedups(t *testing.T) {
	s := NewIdentifierSet("B", "A", "B", "C")
	if s.Len() != 3 {
		t.Fatalf("期望 3 个元素，实际 %d", s.Len())
	}
	if !reflect.DeepEqual(s.Strings(), []string{"B", "A", "C"}) {
		t.Fatalf("顺序不符合预期：%v", s.Strings())
	}
	if !s.Has("A") || s.Has("Z") {
		t.Fatalf("Has 结果不正确")
	}

	var zero IdentifierSet
	if zero.Has("A") || zero.Len() != 0 {
		t.Fatalf("零值集合应为空")
	}
}

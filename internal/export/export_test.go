package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/syun3032-tech/camera-verification-ai/internal/domain"
	"github.com/syun3032-tech/camera-verification-ai/internal/match"
)

func TestUnverified_CanonicalHeadersFromFirstDataset(t *testing.T) {
	d1 := domain.Dataset{
		Name:    "d1.csv",
		Headers: []string{"VIN", "B"},
		Records: []domain.Record{
			{"VIN": "AAA-1", "B": "b1"},
			{"VIN": "DONE-9", "B": "b9"},
		},
	}
	d2 := domain.Dataset{
		Name:    "d2.csv",
		Headers: []string{"VIN", "C"},
		Records: []domain.Record{{"VIN": "bbb-2", "C": "c2"}},
	}
	unverified := domain.NewIdentifierSet("AAA-1", "BBB-2")

	a := Unverified(unverified, []domain.Dataset{d1, d2}, match.DefaultRule())

	assert.Equal(t, []string{SourceColumn, "VIN", "B"}, a.Header)
	assert.Equal(t, 2, a.Rows)
	lines := strings.Split(string(a.Data), "\n")
	assert.Equal(t, []string{
		"ファイル名,VIN,B",
		"d1.csv,AAA-1,b1",
		"d2.csv,bbb-2,",
	}, lines)
}

func TestUnverified_QuotesFieldsWithComma(t *testing.T) {
	d := domain.Dataset{
		Name:    "d.csv",
		Headers: []string{"CHASSIS", "memo"},
		Records: []domain.Record{{"CHASSIS": "X-1", "memo": `a,"b"`}},
	}
	a := Unverified(domain.NewIdentifierSet("X-1"), []domain.Dataset{d}, match.DefaultRule())
	// 内部引号不转义。
	assert.Equal(t, "ファイル名,CHASSIS,memo\nd.csv,X-1,\"a,\"b\"\"", string(a.Data))
}

func TestUnverified_HeaderOnlyWhenNothingMatches(t *testing.T) {
	d := domain.Dataset{Name: "d.csv", Headers: []string{"VIN"}, Records: []domain.Record{{"VIN": "A-1"}}}
	a := Unverified(domain.NewIdentifierSet(), []domain.Dataset{d}, match.DefaultRule())
	assert.Equal(t, 0, a.Rows)
	assert.Equal(t, "ファイル名,VIN", string(a.Data))

	a = Unverified(domain.NewIdentifierSet("A-1"), nil, match.DefaultRule())
	assert.Equal(t, "ファイル名", string(a.Data))
}

func TestUnverified_SkipsDatasetWithoutColumn(t *testing.T) {
	d1 := domain.Dataset{Name: "d1.csv", Headers: []string{"name"}, Records: []domain.Record{{"name": "A-1"}}}
	d2 := domain.Dataset{Name: "d2.csv", Headers: []string{"name", "VIN"}, Records: []domain.Record{{"name": "n", "VIN": "A-1"}}}
	a := Unverified(domain.NewIdentifierSet("A-1"), []domain.Dataset{d1, d2}, match.DefaultRule())
	assert.Equal(t, "ファイル名,name\nd2.csv,n", string(a.Data))
}

func TestSuggestedFilename(t *testing.T) {
	now := time.Date(2026, 10, 15, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "unverified_2026-10-15.csv", SuggestedFilename("", now))
	assert.Equal(t, "未認証データ_2026-10-15.csv", SuggestedFilename(" 未認証データ ", now))
}

package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_PreambleHeaderAndRows(t *testing.T) {
	raw := strings.Join([]string{
		"車両一覧",
		"出力日,2026-10-01",
		"No,車台番号,型式",
		"1,AAZH20-1002549,6AA",
		"",
		"2,HNT32-117910,DBA",
		"   ",
		"3,ZVW30-1234567,DAA",
	}, "\n")

	ds, err := Parse("cars.csv", raw)
	require.NoError(t, err)
	assert.Equal(t, "cars.csv", ds.Name)
	assert.Equal(t, []string{"No", "車台番号", "型式"}, ds.Headers)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, "HNT32-117910", ds.Records[1]["車台番号"])
}

func TestParse_RowCountProperty(t *testing.T) {
	for n := 0; n <= 5; n++ {
		lines := []string{"title", "meta", "A,B,C,D"}
		for i := 0; i < n; i++ {
			lines = append(lines, fmt.Sprintf("a%d,b%d,c%d,d%d", i, i, i, i))
		}
		ds, err := Parse("p.csv", strings.Join(lines, "\r\n"))
		require.NoError(t, err)
		assert.Len(t, ds.Records, n)
		assert.Len(t, ds.Headers, 4)
		if n > 0 {
			// \r 由字段 trim 去掉。
			assert.Equal(t, fmt.Sprintf("d%d", n-1), ds.Records[n-1]["D"])
		}
	}
}

func TestParse_FormatError(t *testing.T) {
	for _, raw := range []string{"", "title\n\nmeta\n\n", "only one"} {
		_, err := Parse("bad.csv", raw)
		var fe *FormatError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, "bad.csv", fe.File)
		assert.Less(t, fe.Lines, 3)
	}
}

func TestParse_SkipsAllEmptyRowsAndPadsShortRows(t *testing.T) {
	raw := "t\nm\nA,B,C\n,,\n\"\" , ,\nx\n"
	ds, err := Parse("p.csv", raw)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "x", ds.Records[0]["A"])
	assert.Equal(t, "", ds.Records[0]["B"])
	assert.Equal(t, "", ds.Records[0]["C"])
}

func TestParse_DuplicateHeadersAreSuffixed(t *testing.T) {
	ds, err := Parse("p.csv", "t\nm\nA,B,A,A\n1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "A_2", "A_3"}, ds.Headers)
	assert.Equal(t, "3", ds.Records[0]["A_2"])
	assert.Equal(t, "4", ds.Records[0]["A_3"])
}

func TestSplitLine_QuotesAndEscapes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`a,b,c`, []string{"a", "b", "c"}},
		{`"a,b",c`, []string{"a,b", "c"}},
		{`"say ""hi""", x`, []string{`say "hi"`, "x"}},
		{` a , "b" ,`, []string{"a", "b", ""}},
		{``, []string{""}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, SplitLine(c.in), "SplitLine(%q)", c.in)
	}
}

func TestParse_StripsResidualQuotes(t *testing.T) {
	// """x""" 经过切分后是 "x"，字段清理再去掉一层引号。
	ds, err := Parse("p.csv", "t\nm\nA,B\n\"\"\"x\"\"\",\"\"\"\"")
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "x", ds.Records[0]["A"])
	assert.Equal(t, `"`, ds.Records[0]["B"])
}

func TestLooksLikeDataset(t *testing.T) {
	assert.True(t, LooksLikeDataset("cars.CSV", ""))
	assert.True(t, LooksLikeDataset("upload.bin", "text/csv; charset=utf-8"))
	assert.True(t, LooksLikeDataset("x", "application/vnd.ms-excel+csv"))
	assert.False(t, LooksLikeDataset("photo.jpg", "image/jpeg"))
	assert.False(t, LooksLikeDataset("csv.txt", "text/plain"))
}

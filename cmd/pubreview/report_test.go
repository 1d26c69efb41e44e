package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matsen/pubreview/internal/records"
)

func TestBuildReport(t *testing.T) {
	tbl := records.NewTable(
		records.Row{MemberID: "A", Publication: records.NewPublication("title", "X", "year", "2001", "language", "en")},
		records.Row{MemberID: "A", Publication: records.NewPublication("title", "Y", "year", "1999", "language", "en")},
		records.Row{MemberID: "B|C", Publication: records.NewPublication("title", "X", "year", "abc", "language", "fr")},
	)

	got := buildReport(tbl, "results.jsonl", 1)
	want := "# Publication review\n\n" +
		"Source: `results.jsonl`\n\n" +
		"| Metric | Value |\n|---|---:|\n" +
		"| Members matched | 2 |\n" +
		"| Publications | 3 |\n" +
		"| Unique titles | 2 |\n\n" +
		"## Publications by year\n\n" +
		"| Year | Publications |\n|---|---:|\n" +
		"| 2001 | 1 |\n" +
		"\n_1 more._\n\n" +
		"## Most common languages\n\n" +
		"| Language | Publications |\n|---|---:|\n" +
		"| en | 2 |\n" +
		"\n_1 more._\n\n" +
		"## Members\n\n" +
		"| Member | Publications |\n|---|---:|\n" +
		"| A | 2 |\n" +
		"\n_1 more members._\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("buildReport mismatch (-want +got):\n%s", diff)
	}

	all := buildReport(tbl, "results.jsonl", 0)
	if !strings.Contains(all, `| B\|C | 1 |`) {
		t.Errorf("member cell not escaped:\n%s", all)
	}
}

func TestBuildReport_Empty(t *testing.T) {
	got := buildReport(records.Table{}, "empty.jsonl", 10)
	for _, want := range []string{"| Members matched | 0 |", "## Publications by year\n\n_No data._", "_No members._"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

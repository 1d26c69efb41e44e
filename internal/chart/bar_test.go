package chart

import (
	"strings"
	"testing"

	"github.com/matsen/pubreview/internal/records"
)

func TestBars_Empty(t *testing.T) {
	out := Bars("By year", nil, 20, 0, Style{})
	if !strings.Contains(out, NoData) {
		t.Errorf("empty chart = %q, want %q", out, NoData)
	}
}

func TestBars_Scaling(t *testing.T) {
	counts := []records.Count{{Key: "2001", N: 4}, {Key: "1999", N: 2}, {Key: "87", N: 1}}
	out := Bars("By year", counts, 8, 0, Style{})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out)
	}
	if lines[0] != "By year" {
		t.Errorf("title line = %q", lines[0])
	}
	want := []string{
		"  2001 ████████ 4",
		"  1999 ████ 2",
		"  87   ██ 1",
	}
	for i, w := range want {
		if lines[i+1] != w {
			t.Errorf("line %d = %q, want %q", i+1, lines[i+1], w)
		}
	}
}

func TestBars_MaxRows(t *testing.T) {
	counts := []records.Count{{Key: "en", N: 3}, {Key: "fr", N: 2}, {Key: "de", N: 1}}
	out := Bars("By language", counts, 10, 2, Style{})
	if strings.Contains(out, "de") {
		t.Errorf("hidden row rendered:\n%s", out)
	}
	if !strings.Contains(out, "1 more") {
		t.Errorf("missing overflow note:\n%s", out)
	}
}

func TestBarLength(t *testing.T) {
	tests := []struct{ n, max, width, want int }{
		{0, 10, 20, 0},
		{1, 100, 20, 1},
		{50, 100, 20, 10},
		{100, 100, 20, 20},
		{3, 0, 20, 0},
	}
	for _, tt := range tests {
		if got := barLength(tt.n, tt.max, tt.width); got != tt.want {
			t.Errorf("barLength(%d, %d, %d) = %d, want %d", tt.n, tt.max, tt.width, got, tt.want)
		}
	}
}

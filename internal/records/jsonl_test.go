package records

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const scenarioFile = `{"member_id":"A","results":[{"title":"X","year":"2001","language":"en"}]}
{"member_id":"B","results":[{"title":"Y","year":"abc","language":"fr"}]}
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

// rowSet renders rows per member as sorted JSON strings so tables can be
// compared without regard to row order.
func rowSet(t *testing.T, tbl Table) map[string][]string {
	t.Helper()
	set := make(map[string][]string)
	for _, r := range tbl.Rows() {
		data, err := r.Publication.MarshalJSON()
		if err != nil {
			t.Fatalf("MarshalJSON: %v", err)
		}
		set[r.MemberID] = append(set[r.MemberID], string(data))
	}
	for _, v := range set {
		sort.Strings(v)
	}
	return set
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.jsonl"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Load error %T is not *NotFoundError", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "")

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 0 {
		t.Errorf("Len = %d, want 0", tbl.Len())
	}
	if m := Members(tbl); len(m) != 0 {
		t.Errorf("Members = %v, want empty", m)
	}
}

func TestLoad_Scenario(t *testing.T) {
	tbl, err := Load(writeFile(t, scenarioFile))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", tbl.Len())
	}
	if diff := cmp.Diff([]string{"A", "B"}, Members(tbl)); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}

	row := tbl.Rows()[0]
	if row.MemberID != "A" {
		t.Errorf("rows[0].MemberID = %q, want A", row.MemberID)
	}
	if diff := cmp.Diff([]string{"title", "year", "language"}, row.Publication.Keys()); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_SkipsLinesWithoutResults(t *testing.T) {
	content := `{"member_id":"A","num_results":0}

{"member_id":"B","results":[{"title":"Y"}]}
`
	tbl, err := Load(writeFile(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"B"}, Members(tbl)); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{"invalid json", `{"member_id":"A","results":[]}` + "\n{not json\n", 2},
		{"not an object", `["A"]`, 1},
		{"member not string", `{"member_id":7,"results":[]}`, 1},
		{"member missing", `{"results":[]}`, 1},
		{"results not array", `{"member_id":"A","results":{"title":"X"}}`, 1},
		{"result not object", "\n\n" + `{"member_id":"A","results":["X"]}`, 3},
		{"invalid utf-8", `{"member_id":"A","results":[]}` + "\n" + `{"member_id":"B","results":[{"title":"bad` + "\xff" + `"}]}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)
			_, err := Load(path)
			if !errors.Is(err, ErrParse) {
				t.Fatalf("Load error = %v, want ErrParse", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Load error %T is not *ParseError", err)
			}
			if pe.Line != tt.line {
				t.Errorf("Line = %d, want %d", pe.Line, tt.line)
			}
			if pe.Path != path {
				t.Errorf("Path = %q, want %q", pe.Path, path)
			}
		})
	}
}

func TestLoad_NumResultsMismatchWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	content := `{"member_id":"A","num_results":5,"results":[{"title":"X"}]}
{"member_id":"B","num_results":1,"results":[{"title":"Y"}]}
`
	tbl, err := Load(writeFile(t, content), WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
	entries := logs.FilterMessage("num_results does not match results").All()
	if len(entries) != 1 {
		t.Fatalf("got %d warnings, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["member"]; got != "A" {
		t.Errorf("warning member = %v, want A", got)
	}
}

func TestLoad_CustomMemberKey(t *testing.T) {
	content := `{"CITR member":"Ada Lovelace","num_results":1,"results":[{"title":"Notes"}]}` + "\n"
	path := writeFile(t, content)

	tbl, err := Load(path, WithMemberKey("CITR member"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"Ada Lovelace"}, Members(tbl)); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}

	if err := Save(tbl, path, WithMemberKey("CITR member")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != content {
		t.Errorf("saved content = %q, want %q", data, content)
	}
}

func TestLoad_DropsMemberKeyInsidePublication(t *testing.T) {
	content := `{"member_id":"A","results":[{"title":"X","member_id":"Z"}]}`
	tbl, err := Load(writeFile(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	pub := tbl.Rows()[0].Publication
	if _, ok := pub.Get("member_id"); ok {
		t.Error("publication still carries member_id")
	}
	if tbl.Rows()[0].MemberID != "A" {
		t.Errorf("MemberID = %q, want A", tbl.Rows()[0].MemberID)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	content := `{"member_id":"B","num_results":2,"results":[{"title":"Y","year":"1999","pages":12,"open":true,"doi":null,"authors":["a","b"]},{"title":"Z <&>","extra":{"k":1}}]}
{"member_id":"A","num_results":1,"results":[{"language":"en","title":"X"}]}
{"member_id":"C","num_results":0,"results":[]}
`
	path := writeFile(t, content)
	first, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := Save(first, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}

	if diff := cmp.Diff(rowSet(t, first), rowSet(t, second)); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(Members(first), Members(second)); diff != "" {
		t.Errorf("members mismatch (-first +second):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := `{"member_id":"A","num_results":1,"results":[{"language":"en","title":"X"}]}
{"member_id":"B","num_results":2,"results":[{"title":"Y","year":"1999","pages":12,"open":true,"doi":null,"authors":["a","b"]},{"title":"Z <&>","extra":{"k":1}}]}
{"member_id":"C","num_results":0,"results":[]}
`
	if string(data) != want {
		t.Errorf("saved file:\n%s\nwant:\n%s", data, want)
	}
}

func TestSave_DerivesNumResults(t *testing.T) {
	tbl := NewTable(
		Row{MemberID: "A", Publication: NewPublication("title", "1")},
		Row{MemberID: "A", Publication: NewPublication("title", "2")},
		Row{MemberID: "B", Publication: NewPublication("title", "3")},
	)
	var buf bytes.Buffer
	if err := Write(&buf, tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, rec := range Regroup(tbl) {
		if rec.NumResults() != len(rec.Results) {
			t.Errorf("member %s NumResults = %d, want %d", rec.MemberID, rec.NumResults(), len(rec.Results))
		}
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"num_results":2`) {
		t.Errorf("line for A = %s, want num_results 2", lines[0])
	}
	if !strings.Contains(lines[1], `"num_results":1`) {
		t.Errorf("line for B = %s, want num_results 1", lines[1])
	}
}

func TestSave_EmptyTableWritesNothing(t *testing.T) {
	path := writeFile(t, scenarioFile)
	if err := Save(Table{}, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestSave_PreservesMode(t *testing.T) {
	path := writeFile(t, scenarioFile)
	if err := os.Chmod(path, 0600); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Save(tbl, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSave_FailureLeavesFileIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing-dir", "results.jsonl")

	err := Save(NewTable(Row{MemberID: "A", Publication: NewPublication("title", "X")}), path)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Save error = %v, want ErrWrite", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files left behind, found %d", len(entries))
	}
}

func TestSave_NoTempFilesLeft(t *testing.T) {
	path := writeFile(t, scenarioFile)
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Save(tbl, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1", len(entries))
	}
}

func TestScenario_ReplaceWithNothing(t *testing.T) {
	path := writeFile(t, scenarioFile)
	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff([]Count{{Key: "2001", N: 1}}, CountByYear(tbl)); diff != "" {
		t.Errorf("CountByYear mismatch (-want +got):\n%s", diff)
	}

	pubs := Filter(tbl, "B")
	if len(pubs) != 1 {
		t.Fatalf("Filter(B) = %d rows, want 1", len(pubs))
	}
	if _, ok := pubs[0].Get("member_id"); ok {
		t.Error("Filter result carries member_id")
	}

	if err := Save(Replace(tbl, "B", nil), path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := `{"member_id":"A","num_results":1,"results":[{"title":"X","year":"2001","language":"en"}]}
{"member_id":"B","num_results":0,"results":[]}
`
	if string(data) != want {
		t.Errorf("saved file = %q, want %q", data, want)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B"}, Members(reloaded)); diff != "" {
		t.Errorf("Members mismatch (-want +got):\n%s", diff)
	}
	if n := len(Filter(reloaded, "B")); n != 0 {
		t.Errorf("Filter(B) = %d rows, want 0", n)
	}
}

func TestReadPublications(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty", "  \n", 0},
		{"array", `[{"title":"X"},{"title":"Y","year":"2001"}]`, 2},
		{"empty array", `[]`, 0},
		{"lines", "{\"title\":\"X\"}\n\n{\"title\":\"Y\"}\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pubs, err := ReadPublications(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadPublications: %v", err)
			}
			if len(pubs) != tt.want {
				t.Errorf("got %d publications, want %d", len(pubs), tt.want)
			}
		})
	}
}

func TestReadPublications_Errors(t *testing.T) {
	for _, input := range []string{`[{"title":"X"},3]`, `[{"title"`, "{\"title\":\"X\"}\nnope"} {
		if _, err := ReadPublications(strings.NewReader(input)); !errors.Is(err, ErrParse) {
			t.Errorf("ReadPublications(%q) error = %v, want ErrParse", input, err)
		}
	}
}

func TestReadPublications_InvalidUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"array", `[{"title":"caf` + "\xe9" + `"}]`, 1},
		{"lines", "{\"title\":\"X\"}\n{\"title\":\"caf\xe9\"}\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPublications(strings.NewReader(tt.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ReadPublications error = %v, want *ParseError", err)
			}
			if pe.Line != tt.line || pe.Reason != "invalid UTF-8" {
				t.Errorf("ParseError = line %d %q, want line %d \"invalid UTF-8\"", pe.Line, pe.Reason, tt.line)
			}
		})
	}
}

func TestSave_ThroughSymlink(t *testing.T) {
	target := writeFile(t, scenarioFile)
	link := filepath.Join(t.TempDir(), "link.jsonl")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("Symlink: %v", err)
	}

	tbl, err := Load(link)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Save(Replace(tbl, "A", nil), link); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Lstat(link)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Errorf("Save replaced the symlink with a %v file", info.Mode().Type())
	}
	got, err := Load(target)
	if err != nil {
		t.Fatalf("Load target: %v", err)
	}
	if n := len(Filter(got, "A")); n != 0 || got.Len() != 1 {
		t.Errorf("target has %d rows for A and %d in total, want 0 and 1", n, got.Len())
	}
}

func TestSave_RenameFailureKeepsDestination(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "results.jsonl")
	if err := os.MkdirAll(filepath.Join(dest, "keep"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	err := Save(NewTable(Row{MemberID: "A", Publication: NewPublication("title", "X")}), dest)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Save error = %v, want ErrWrite", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "keep")); err != nil {
		t.Errorf("destination disturbed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file not cleaned up)", len(entries))
	}
}

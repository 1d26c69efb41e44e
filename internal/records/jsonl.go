package records

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// DefaultMemberKey is the field that identifies the member on each line.
const DefaultMemberKey = "member_id"

// MaxLineCapacity is the maximum size of one record line (8MB).
// A member with many results produces a long line.
const MaxLineCapacity = 8 * 1024 * 1024

const (
	resultsKey    = "results"
	numResultsKey = "num_results"
)

// MemberRecord is the persisted unit: one member and their publications.
type MemberRecord struct {
	MemberID string
	Results  []Publication
}

// NumResults is always derived from Results.
func (m MemberRecord) NumResults() int {
	return len(m.Results)
}

type options struct {
	memberKey string
	logger    *zap.Logger
}

// Option configures Load and Save.
type Option func(*options)

// WithMemberKey sets the name of the member id field. Empty keeps the default.
func WithMemberKey(key string) Option {
	return func(o *options) {
		if key != "" {
			o.memberKey = key
		}
	}
}

// WithLogger sets the logger for integrity warnings and skipped lines.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{memberKey: DefaultMemberKey, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Load reads a record file and flattens it into a Table.
//
// Blank lines and lines without a "results" field are skipped. Any other
// malformed line fails the load with a *ParseError. A missing file fails
// with a *NotFoundError.
func Load(path string, opts ...Option) (Table, error) {
	o := newOptions(opts)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Table{}, &NotFoundError{Path: path}
		}
		return Table{}, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	t, err := read(f, o)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return Table{}, err
	}

	o.logger.Debug("loaded record file",
		zap.String("path", path),
		zap.Int("rows", t.Len()))
	return t, nil
}

// Read flattens record lines from r into a Table.
func Read(r io.Reader, opts ...Option) (Table, error) {
	return read(r, newOptions(opts))
}

func read(r io.Reader, o options) (Table, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxLineCapacity)

	t := Table{rows: []Row{}}
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		member, rows, ok, err := parseMemberLine(line, lineNum, o)
		if err != nil {
			return Table{}, err
		}
		if ok {
			t.members = addMember(t.members, member)
			t.rows = append(t.rows, rows...)
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Table{}, &ParseError{Line: lineNum + 1, Reason: "line exceeds maximum length"}
		}
		return Table{}, fmt.Errorf("reading record file: %w", err)
	}

	return t, nil
}

// parseMemberLine returns the member and rows of one line. ok is false when
// the line has no results and is skipped.
func parseMemberLine(line []byte, lineNum int, o options) (member string, rows []Row, ok bool, err error) {
	// gjson accepts raw invalid bytes inside strings and decodes them as
	// U+FFFD, which Save would then write back in place of the original.
	if !utf8.Valid(line) {
		return "", nil, false, &ParseError{Line: lineNum, Reason: "invalid UTF-8"}
	}
	if !gjson.ValidBytes(line) {
		return "", nil, false, &ParseError{Line: lineNum, Reason: "invalid JSON"}
	}
	rec := gjson.ParseBytes(line)
	if !rec.IsObject() {
		return "", nil, false, &ParseError{Line: lineNum, Reason: "expected a JSON object"}
	}

	// Keys are matched exactly rather than through gjson paths, which treat
	// characters such as '.' and '*' specially.
	var id, results, numResults gjson.Result
	rec.ForEach(func(k, v gjson.Result) bool {
		switch k.String() {
		case o.memberKey:
			id = v
		case resultsKey:
			results = v
		case numResultsKey:
			numResults = v
		}
		return true
	})

	if !results.Exists() {
		o.logger.Debug("skipping line without results", zap.Int("line", lineNum))
		return "", nil, false, nil
	}
	if id.Type != gjson.String {
		return "", nil, false, &ParseError{Line: lineNum, Reason: fmt.Sprintf("%q must be a string", o.memberKey)}
	}
	if !results.IsArray() {
		return "", nil, false, &ParseError{Line: lineNum, Reason: fmt.Sprintf("%q must be an array", resultsKey)}
	}
	member = id.Str

	var perr *ParseError
	results.ForEach(func(_, v gjson.Result) bool {
		if !v.IsObject() {
			perr = &ParseError{Line: lineNum, Reason: fmt.Sprintf("entry %d of %q is not an object", len(rows), resultsKey)}
			return false
		}
		pub := publicationFromResult(v)
		if _, ok := pub.Get(o.memberKey); ok {
			o.logger.Debug("dropping member key from publication",
				zap.Int("line", lineNum),
				zap.String("key", o.memberKey))
			pub.Delete(o.memberKey)
		}
		rows = append(rows, Row{MemberID: member, Publication: pub})
		return true
	})
	if perr != nil {
		return "", nil, false, perr
	}

	if numResults.Exists() && (numResults.Type != gjson.Number || numResults.Raw != fmt.Sprint(len(rows))) {
		o.logger.Warn("num_results does not match results",
			zap.Int("line", lineNum),
			zap.String("member", member),
			zap.String("stated", numResults.Raw),
			zap.Int("actual", len(rows)))
	}

	return member, rows, true, nil
}

// Regroup partitions the table by member, in ascending member order.
// Each member's publications keep their table order; a member without rows
// gets an empty result list.
func Regroup(t Table) []MemberRecord {
	byMember := make(map[string][]Publication)
	for _, r := range t.rows {
		byMember[r.MemberID] = append(byMember[r.MemberID], r.Publication)
	}

	recs := make([]MemberRecord, 0, len(byMember))
	for _, m := range Members(t) {
		recs = append(recs, MemberRecord{MemberID: m, Results: byMember[m]})
	}
	return recs
}

// Write encodes the regrouped table to w, one Member Record per line.
func Write(w io.Writer, t Table, opts ...Option) error {
	o := newOptions(opts)
	bw := bufio.NewWriter(w)
	var buf bytes.Buffer
	for _, rec := range Regroup(t) {
		buf.Reset()
		if err := encodeMemberRecord(&buf, o.memberKey, rec); err != nil {
			return fmt.Errorf("encoding member %q: %w", rec.MemberID, err)
		}
		if _, err := bw.Write(buf.Bytes()); err != nil {
			return fmt.Errorf("writing member %q: %w", rec.MemberID, err)
		}
	}
	return bw.Flush()
}

// Save regroups the table and replaces the file at path.
//
// The records are written to a temp file in the same directory and renamed
// over path, so readers see either the old file or the complete new one.
// When path is a symlink the file it points to is replaced and the link kept.
// On failure the temp file is removed and a *WriteError is returned.
func Save(t Table, path string, opts ...Option) error {
	o := newOptions(opts)

	target := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		target = resolved
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(target); err == nil {
		mode = info.Mode().Perm()
	}

	dir := filepath.Dir(target)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*.jsonl")
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("creating temp file: %w", err)}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := Write(tmpFile, t, opts...); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := tmpFile.Chmod(mode); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("setting file mode: %w", err)}
	}
	if err := tmpFile.Sync(); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("syncing temp file: %w", err)}
	}
	if err := tmpFile.Close(); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("closing temp file: %w", err)}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("renaming temp file: %w", err)}
	}

	success = true
	o.logger.Debug("saved record file",
		zap.String("path", path),
		zap.Int("rows", t.Len()))
	return nil
}

func encodeMemberRecord(buf *bytes.Buffer, memberKey string, rec MemberRecord) error {
	buf.WriteByte('{')
	if err := encodeValue(buf, memberKey); err != nil {
		return err
	}
	buf.WriteByte(':')
	if err := encodeValue(buf, rec.MemberID); err != nil {
		return err
	}
	fmt.Fprintf(buf, `,"%s":%d,"%s":[`, numResultsKey, rec.NumResults(), resultsKey)
	for i, p := range rec.Results {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := p.encode(buf); err != nil {
			return fmt.Errorf("encoding result %d: %w", i, err)
		}
	}
	buf.WriteString("]}\n")
	return nil
}

// ReadPublications reads publications given either as a JSON array of
// objects or as one JSON object per line.
func ReadPublications(r io.Reader) ([]Publication, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading publications: %w", err)
	}
	data = bytes.TrimSpace(data)
	pubs := []Publication{}
	if len(data) == 0 {
		return pubs, nil
	}

	if data[0] == '[' {
		if !utf8.Valid(data) {
			return nil, &ParseError{Line: 1, Reason: "invalid UTF-8"}
		}
		if !gjson.ValidBytes(data) {
			return nil, &ParseError{Line: 1, Reason: "invalid JSON array"}
		}
		var perr *ParseError
		gjson.ParseBytes(data).ForEach(func(_, v gjson.Result) bool {
			if !v.IsObject() {
				perr = &ParseError{Line: 1, Reason: fmt.Sprintf("array entry %d is not an object", len(pubs))}
				return false
			}
			pubs = append(pubs, publicationFromResult(v))
			return true
		})
		if perr != nil {
			return nil, perr
		}
		return pubs, nil
	}

	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !utf8.Valid(line) {
			return nil, &ParseError{Line: i + 1, Reason: "invalid UTF-8"}
		}
		var p Publication
		if err := p.UnmarshalJSON(line); err != nil {
			return nil, &ParseError{Line: i + 1, Reason: err.Error()}
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

package records

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Row is one publication tagged with the member it belongs to.
type Row struct {
	MemberID    string
	Publication Publication
}

// Table is the flattened, in-memory view of a record file.
// A Table is a value: operations return new Tables and never modify their input.
//
// A member stays known to the Table after all of its rows are removed, so
// that it is saved with an empty result list.
type Table struct {
	rows    []Row
	members []string // sorted, distinct
}

// NewTable builds a Table from rows. The rows are copied.
func NewTable(rows ...Row) Table {
	t := Table{rows: make([]Row, 0, len(rows))}
	for _, r := range rows {
		t.rows = append(t.rows, Row{MemberID: r.MemberID, Publication: r.Publication.Clone()})
		t.members = addMember(t.members, r.MemberID)
	}
	return t
}

// addMember inserts m into the sorted slice members, copying on change.
func addMember(members []string, m string) []string {
	i := sort.SearchStrings(members, m)
	if i < len(members) && members[i] == m {
		return members
	}
	out := make([]string, 0, len(members)+1)
	out = append(out, members[:i]...)
	out = append(out, m)
	return append(out, members[i:]...)
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in table order.
func (t Table) Rows() []Row {
	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = Row{MemberID: r.MemberID, Publication: r.Publication.Clone()}
	}
	return rows
}

// Columns returns every field name present in the table, in first-seen order.
func (t Table) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range t.rows {
		for _, k := range r.Publication.keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

// Members returns the distinct member ids known to the table, sorted.
// This includes members whose publications have all been removed.
func Members(t Table) []string {
	return append([]string{}, t.members...)
}

// Filter returns copies of the publications belonging to member, in table order.
func Filter(t Table, member string) []Publication {
	pubs := []Publication{}
	for _, r := range t.rows {
		if r.MemberID == member {
			pubs = append(pubs, r.Publication.Clone())
		}
	}
	return pubs
}

// Replace returns a Table in which member's rows are exactly pubs.
// Rows of other members keep their order; the new rows are appended.
func Replace(t Table, member string, pubs []Publication) Table {
	out := Table{
		rows:    make([]Row, 0, len(t.rows)+len(pubs)),
		members: addMember(t.members, member),
	}
	for _, r := range t.rows {
		if r.MemberID != member {
			out.rows = append(out.rows, Row{MemberID: r.MemberID, Publication: r.Publication.Clone()})
		}
	}
	for _, p := range pubs {
		out.rows = append(out.rows, Row{MemberID: member, Publication: p.Clone()})
	}
	return out
}

// SearchMembers returns the members matching term, sorted. Matching is a
// case-insensitive substring test. When term contains *, ? or [ it is a glob
// that may match anywhere in the id, so "smith*" finds "John Smith". A term
// that is not a valid glob, such as a lone "[", is matched literally.
// An empty term matches every member.
func SearchMembers(members []string, term string) []string {
	term = strings.ToLower(strings.TrimSpace(term))
	match := func(s string) bool { return strings.Contains(s, term) }
	if strings.ContainsAny(term, "*?[") {
		if g, err := glob.Compile("*" + term + "*"); err == nil {
			match = g.Match
		}
	}

	found := []string{}
	for _, m := range members {
		if match(strings.ToLower(m)) {
			found = append(found, m)
		}
	}
	sort.Strings(found)
	return found
}

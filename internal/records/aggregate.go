package records

import (
	"encoding/json"
	"sort"
)

// Well-known publication fields used by the aggregates.
const (
	FieldTitle    = "title"
	FieldYear     = "year"
	FieldLanguage = "language"
)

// Count is the number of rows sharing one key.
type Count struct {
	Key string `json:"key"`
	N   int    `json:"count"`
}

// Summary holds the headline metrics of a table.
type Summary struct {
	Members      int `json:"members"`
	Publications int `json:"publications"`
	UniqueTitles int `json:"unique_titles"`
}

// Summarize counts members with at least one publication, publications, and
// distinct non-null titles.
func Summarize(t Table) Summary {
	matched := make(map[string]bool)
	titles := make(map[string]bool)
	for _, r := range t.rows {
		matched[r.MemberID] = true
		if v, ok := r.Publication.Get(FieldTitle); ok && v != nil {
			titles[textOf(v)] = true
		}
	}
	return Summary{
		Members:      len(matched),
		Publications: t.Len(),
		UniqueTitles: len(titles),
	}
}

// CountByYear counts rows per year, newest first. Rows whose year is
// missing, null, empty, or not entirely ASCII digits are left out.
func CountByYear(t Table) []Count {
	counts := make(map[string]int)
	for _, r := range t.rows {
		v, _ := r.Publication.Get(FieldYear)
		if IsNumericYear(v) {
			counts[textOf(v)]++
		}
	}

	out := toCounts(counts)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a > b
	})
	return out
}

// CountByLanguage counts rows per language, most common first.
// Rows with a missing, null, or empty language are left out.
func CountByLanguage(t Table) []Count {
	counts := make(map[string]int)
	for _, r := range t.rows {
		lang := r.Publication.Text(FieldLanguage)
		if lang != "" {
			counts[lang]++
		}
	}

	out := toCounts(counts)
	sort.Slice(out, func(i, j int) bool {
		if out[i].N != out[j].N {
			return out[i].N > out[j].N
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// IsNumericYear reports whether v is a non-empty string or JSON integer made
// only of the digits 0-9.
func IsNumericYear(v any) bool {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case json.Number:
		s = x.String()
	default:
		return false
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, N: n})
	}
	return out
}

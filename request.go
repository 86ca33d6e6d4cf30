package store

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Filter is a conjunction of column = value terms. Build it with MatchAll, Where or
// Eq; the zero Filter matches nothing and is rejected by every operation.
//
// Besides plain values a term may hold a FilterNull (IS [NOT] NULL), a
// FilterStringContains (LIKE) or a non-byte slice (IN).
type Filter struct {
	all   bool
	terms map[string]any
}

// MatchAll addresses every row of the table.
func MatchAll() Filter {
	return Filter{all: true}
}

// Where builds a filter from column/value pairs. An empty map does not mean "all
// rows"; use MatchAll for that.
func Where(terms map[string]any) Filter {
	f := Filter{terms: make(map[string]any, len(terms))}
	for k, v := range terms {
		f.terms[k] = v
	}
	return f
}

// Eq builds a single term filter.
func Eq(column string, value any) Filter {
	return Filter{terms: map[string]any{column: value}}
}

// And returns a copy of f with one more term.
func (f Filter) And(column string, value any) Filter {
	nf := Where(f.terms)
	nf.terms[column] = value
	return nf
}

func (f Filter) IsMatchAll() bool {
	return f.all
}

// Columns returns the filtered column names, sorted.
func (f Filter) Columns() []string {
	cols := make([]string, 0, len(f.terms))
	for k := range f.terms {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func (f Filter) Value(column string) any {
	return f.terms[column]
}

func (f Filter) String() string {
	if f.all {
		return "ALL"
	}
	var parts []string
	for _, c := range f.Columns() {
		parts = append(parts, fmt.Sprintf("%s=%v", c, f.terms[c]))
	}
	return strings.Join(parts, " AND ")
}

// resolve checks the filter against the table and returns it keyed by declared names.
func (f Filter) resolve(op string, td TableDef) (Filter, error) {
	if f.all {
		if len(f.terms) > 0 {
			return f, validationErrorf(op, td.Name, "MatchAll cannot carry conditions")
		}
		return f, nil
	}

	if len(f.terms) == 0 {
		return f, validationErrorf(op, td.Name, "empty conditions; use MatchAll to address every row")
	}

	rf := Filter{terms: make(map[string]any, len(f.terms))}
	for k, v := range f.terms {
		col, ok := td.Column(k)
		if !ok {
			return f, validationErrorf(op, td.Name, "unknown column %q in conditions", k)
		}

		if _, dup := rf.terms[col.Name]; dup {
			return f, validationErrorf(op, td.Name, "column %q given more than once in conditions", col.Name)
		}

		if isListValue(v) && reflect.ValueOf(v).Len() == 0 {
			return f, validationErrorf(op, td.Name, "empty value list for column %q", k)
		}

		rf.terms[col.Name] = v
	}

	return rf, nil
}

func isListValue(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// InsertRequest inserts one row.
type InsertRequest struct {
	Table  string
	Values map[string]any
}

// SelectRequest projects Columns of the rows matching Where. Empty Columns selects
// every column in declaration order. OrderBy entries may be prefixed with "-" for
// descending or "+" for ascending order.
type SelectRequest struct {
	Table   string
	Where   Filter
	Columns []string
	OrderBy []string
	Limit   int
	Offset  int64
}

// UpdateRequest sets Set on every row matching Where.
type UpdateRequest struct {
	Table string
	Set   map[string]any
	Where Filter
}

// TableFilter addresses the rows of Table matching Where. It is the request of
// Delete, Exists and Count.
type TableFilter struct {
	Table string
	Where Filter
}

func resolveValues(op string, td TableDef, values map[string]any) (map[string]any, error) {
	if len(values) == 0 {
		return nil, validationErrorf(op, td.Name, "no values given")
	}

	out := make(map[string]any, len(values))
	for k, v := range values {
		col, ok := td.Column(k)
		if !ok {
			return nil, validationErrorf(op, td.Name, "unknown column %q", k)
		}
		if _, dup := out[col.Name]; dup {
			return nil, validationErrorf(op, td.Name, "column %q given more than once", col.Name)
		}
		out[col.Name] = v
	}

	return out, nil
}

func resolveColumns(op string, td TableDef, columns []string) ([]string, error) {
	if len(columns) == 0 {
		return td.ColumnNames(), nil
	}

	out := make([]string, 0, len(columns))
	for _, c := range columns {
		col, ok := td.Column(c)
		if !ok {
			return nil, validationErrorf(op, td.Name, "unknown column %q", c)
		}
		if SliceContains(out, col.Name) {
			return nil, validationErrorf(op, td.Name, "column %q selected more than once", col.Name)
		}
		out = append(out, col.Name)
	}

	return out, nil
}

type sortTerm struct {
	column string
	desc   bool
}

func resolveOrder(op string, td TableDef, orderBy []string) ([]sortTerm, error) {
	if len(orderBy) == 0 {
		return Map(td.KeyColumns(), func(c string) sortTerm { return sortTerm{column: c} }), nil
	}

	var terms []sortTerm
	for _, s := range orderBy {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		desc := false
		if s[0] == '-' || s[0] == '+' {
			desc = s[0] == '-'
			s = s[1:]
		}

		col, ok := td.Column(s)
		if !ok {
			return nil, validationErrorf(op, td.Name, "unknown order column %q", s)
		}
		terms = append(terms, sortTerm{column: col.Name, desc: desc})
	}

	return terms, nil
}

// FilterNull marks a term as IS NULL (true) or IS NOT NULL (false).
type FilterNull interface {
	IsNull() bool
}

type filterNull bool

func (fn filterNull) IsNull() bool {
	return bool(fn)
}

func FilterNullFrom(isNull bool) FilterNull {
	return filterNull(isNull)
}

// FilterStringContains marks a term as a substring match.
type FilterStringContains interface {
	Contains() string
}

type filterStringContains string

func (fs filterStringContains) Contains() string {
	return string(fs)
}

func FilterStringContainsFrom(str string) FilterStringContains {
	return filterStringContains(str)
}

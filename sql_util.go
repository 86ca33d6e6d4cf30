package store

import (
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// whereClause turns a resolved filter into a squirrel predicate. MatchAll yields nil.
func (c *Client) whereClause(f Filter) sq.Sqlizer {
	if f.IsMatchAll() {
		return nil
	}

	and := sq.And{}
	for _, col := range f.Columns() {
		q := c.dialect.quoteIdent(col)
		switch v := f.Value(col).(type) {
		case FilterNull:
			if v.IsNull() {
				and = append(and, sq.Eq{q: nil})
			} else {
				and = append(and, sq.NotEq{q: nil})
			}
		case FilterStringContains:
			and = append(and, c.dialect.contains(col, v.Contains()))
		default:
			and = append(and, sq.Eq{q: v})
		}
	}

	return and
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike quotes the LIKE wildcards of s for an ESCAPE '\' clause.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func makeSortClause(d dialect, terms []sortTerm) []string {
	return Map(terms, func(t sortTerm) string {
		dir := "ASC"
		if t.desc {
			dir = "DESC"
		}
		return fmt.Sprintf("%s %s", d.quoteIdent(t.column), dir)
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Client) buildInsert(td TableDef, values map[string]any) (string, []any, error) {
	cols := sortedKeys(values)
	args := Map(cols, func(k string) any { return values[k] })

	b := c.builder().
		Insert(c.dialect.tableName(td)).
		Columns(Map(cols, c.dialect.quoteIdent)...).
		Values(args...)

	if keys := td.KeyColumns(); len(keys) > 0 {
		b = b.Suffix("RETURNING " + strings.Join(Map(keys, c.dialect.quoteIdent), ", "))
	}

	return b.ToSql()
}

func (c *Client) buildSelect(op string, td TableDef, req SelectRequest) (string, []any, []string, error) {
	cols, err := resolveColumns(op, td, req.Columns)
	if err != nil {
		return "", nil, nil, err
	}

	where, err := req.Where.resolve(op, td)
	if err != nil {
		return "", nil, nil, err
	}

	order, err := resolveOrder(op, td, req.OrderBy)
	if err != nil {
		return "", nil, nil, err
	}

	if req.Limit < 0 || req.Offset < 0 {
		return "", nil, nil, validationErrorf(op, td.Name, "limit and offset must not be negative")
	}

	b := c.builder().
		Select(Map(cols, c.dialect.quoteIdent)...).
		From(c.dialect.tableName(td))

	if pred := c.whereClause(where); pred != nil {
		b = b.Where(pred)
	}

	if len(order) > 0 {
		b = b.OrderBy(makeSortClause(c.dialect, order)...)
	}

	if req.Limit > 0 {
		b = b.Limit(uint64(req.Limit))
	}

	if req.Offset > 0 {
		b = b.Offset(uint64(req.Offset))
	}

	qry, args, err := b.ToSql()
	return qry, args, cols, err
}

// normalizeRow converts driver byte slices of text columns to strings.
func normalizeRow(td TableDef, m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		if b, ok := v.([]byte); ok {
			if col, found := td.Column(k); found && isTextType(col.Type()) {
				v = string(b)
			}
		}
		row[k] = v
	}
	return row
}

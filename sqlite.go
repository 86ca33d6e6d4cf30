package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) placeholder() sq.PlaceholderFormat {
	return sq.Question
}

func (sqliteDialect) quoteIdent(name string) string {
	return quoteDoubled(name)
}

// contains uses instr because LIKE in SQLite folds ASCII case.
func (s sqliteDialect) contains(column, str string) sq.Sqlizer {
	return sq.Expr("instr("+s.quoteIdent(column)+", ?) > 0", str)
}

func (sqliteDialect) namespace(_, _ string) string {
	return ""
}

func (s sqliteDialect) tableName(td TableDef) string {
	return s.quoteIdent(td.Name)
}

// columnType keeps the declared type name so PRAGMA table_info reports it back.
// Serial columns become INTEGER, which is the rowid alias when it is the only key.
func (sqliteDialect) columnType(c ColumnDef) string {
	t := c.Type()
	if isSerialType(t) {
		return "INTEGER"
	}
	if (t == TypeVarchar || t == TypeChar) && c.Length > 0 {
		return fmt.Sprintf("%s(%d)", strings.ToUpper(t), c.Length)
	}
	return strings.ToUpper(t)
}

// keyConstraint makes a serial key the rowid alias, with AUTOINCREMENT so ids are
// never reused.
func (sqliteDialect) keyConstraint(c ColumnDef) string {
	if isSerialType(c.Type()) {
		return "PRIMARY KEY AUTOINCREMENT"
	}
	return "PRIMARY KEY"
}

func (sqliteDialect) storageType(canonical string) string {
	if isSerialType(canonical) || canonical == TypeBigInt {
		return TypeInteger
	}
	return canonical
}

func (sqliteDialect) createNamespaceDDL(string) string {
	return ""
}

type sqliteColumnInfo struct {
	Name    string `db:"name"`
	Type    string `db:"type"`
	NotNull int    `db:"notnull"`
	Pk      int    `db:"pk"`
}

type sqliteIndexColumn struct {
	Index  string `db:"index_name"`
	Column string `db:"column_name"`
}

func (sqliteDialect) describeTable(ctx context.Context, q sqlx.QueryerContext, td TableDef) (existingTable, bool, error) {
	var cols []sqliteColumnInfo
	qry := `SELECT name, type, "notnull", pk FROM pragma_table_info(?)`
	if err := sqlx.SelectContext(ctx, q, &cols, qry, td.Name); err != nil {
		return existingTable{}, false, fmt.Errorf("describe table %s: %w", td.Name, err)
	}

	if len(cols) == 0 {
		return existingTable{}, false, nil
	}

	var idxCols []sqliteIndexColumn
	qry = `
		SELECT il.name AS index_name, ii.name AS column_name
		FROM pragma_index_list(?) AS il
		JOIN pragma_index_info(il.name) AS ii
		WHERE il."unique" = 1 AND il.origin = 'u'
	`
	if err := sqlx.SelectContext(ctx, q, &idxCols, qry, td.Name); err != nil {
		return existingTable{}, false, fmt.Errorf("describe indexes of %s: %w", td.Name, err)
	}

	perIndex := make(map[string][]string)
	for _, ic := range idxCols {
		perIndex[ic.Index] = append(perIndex[ic.Index], ic.Column)
	}

	unique := make(map[string]bool)
	for _, cols := range perIndex {
		if len(cols) == 1 {
			unique[strings.ToLower(cols[0])] = true
		}
	}

	return existingTable{
		Columns: Map(cols, func(c sqliteColumnInfo) existingColumn {
			dataType, length := parseDeclaredType(c.Type)
			return existingColumn{
				Name:       c.Name,
				DataType:   dataType,
				Length:     length,
				Nullable:   c.NotNull == 0 && c.Pk == 0,
				PrimaryKey: c.Pk > 0,
				Unique:     unique[strings.ToLower(c.Name)],
			}
		}),
	}, true, nil
}

func (sqliteDialect) translateError(err error) Kind {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return ""
	}

	switch se.Code() & 0xff {
	case int(sqlite3.SQLITE_CONSTRAINT):
		return KindConstraint
	case int(sqlite3.SQLITE_BUSY), int(sqlite3.SQLITE_LOCKED):
		return KindTimeout
	case int(sqlite3.SQLITE_CANTOPEN), int(sqlite3.SQLITE_NOTADB), int(sqlite3.SQLITE_IOERR):
		return KindConnection
	case int(sqlite3.SQLITE_ERROR), int(sqlite3.SQLITE_MISMATCH), int(sqlite3.SQLITE_RANGE), int(sqlite3.SQLITE_TOOBIG):
		return KindValidation
	}

	return ""
}

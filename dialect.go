package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// dialect isolates what differs between the SQL backends.
type dialect interface {
	name() string
	driverName() string
	placeholder() sq.PlaceholderFormat
	quoteIdent(name string) string
	// contains matches rows whose column holds s as a literal, case-sensitive substring.
	contains(column, s string) sq.Sqlizer
	// namespace resolves the namespace of a table, "" where the backend has none.
	namespace(declared, fallback string) string
	tableName(td TableDef) string
	columnType(c ColumnDef) string
	// keyConstraint is the inline constraint of a column that alone forms the primary key.
	keyConstraint(c ColumnDef) string
	// storageType folds types the backend stores identically, e.g. serial and integer.
	storageType(canonical string) string
	createNamespaceDDL(namespace string) string
	describeTable(ctx context.Context, q sqlx.QueryerContext, td TableDef) (existingTable, bool, error)
	translateError(err error) Kind
}

type existingColumn struct {
	Name       string
	DataType   string
	Length     int
	Nullable   bool
	PrimaryKey bool
	Unique     bool
}

// existingTable is a table found by introspection. Namespace and Name hold the
// stored spelling when the backend reports it.
type existingTable struct {
	Namespace string
	Name      string
	Columns   []existingColumn
}

func (et existingTable) toTableDef(namespace, name string) TableDef {
	td := et.adopt(TableDef{Namespace: namespace, Name: name})
	for _, c := range et.Columns {
		td.Columns = append(td.Columns, ColumnDef{
			Name:       c.Name,
			DataType:   c.DataType,
			Length:     c.Length,
			Nullable:   Bool(c.Nullable),
			PrimaryKey: c.PrimaryKey,
			Unique:     c.Unique && !c.PrimaryKey,
		})
	}
	return td
}

// adopt renames td, and the columns it shares with et, to their stored spelling.
func (et existingTable) adopt(td TableDef) TableDef {
	if et.Namespace != "" {
		td.Namespace = et.Namespace
	}
	if et.Name != "" {
		td.Name = et.Name
	}

	stored := make(map[string]string, len(et.Columns))
	for _, c := range et.Columns {
		stored[strings.ToLower(c.Name)] = c.Name
	}
	cols := make([]ColumnDef, len(td.Columns))
	for i, c := range td.Columns {
		if name, ok := stored[strings.ToLower(c.Name)]; ok {
			c.Name = name
		}
		cols[i] = c
	}
	td.Columns = cols
	return td
}

// existingFromDef describes a stored definition the way introspection would.
func existingFromDef(td TableDef) existingTable {
	return existingTable{
		Columns: Map(td.Columns, func(c ColumnDef) existingColumn {
			return existingColumn{
				Name:       c.Name,
				DataType:   c.Type(),
				Length:     c.Length,
				Nullable:   c.IsNullable(),
				PrimaryKey: c.PrimaryKey,
				Unique:     c.Unique,
			}
		}),
	}
}

// dialectFor picks the backend from the DSN and returns the string handed to the
// driver.
func dialectFor(dsn string) (dialect, string, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, "", fmt.Errorf("connection string is empty")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return postgresDialect{}, dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		path := strings.TrimPrefix(dsn, "sqlite://")
		if path == "" {
			return nil, "", fmt.Errorf("sqlite connection string has no path")
		}
		return sqliteDialect{}, path, nil
	case strings.Contains(dsn, "://"):
		return nil, "", fmt.Errorf("unsupported connection scheme in %q", maskDSN(dsn))
	case strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname="):
		return postgresDialect{}, dsn, nil
	default:
		return nil, "", fmt.Errorf("unrecognised connection string %q", maskDSN(dsn))
	}
}

func quoteDoubled(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// parseDeclaredType splits "VARCHAR(100)" into its canonical type and length. Unknown
// types are returned lower-cased.
func parseDeclaredType(declared string) (string, int) {
	base := strings.TrimSpace(declared)
	length := 0
	if i := strings.Index(base, "("); i >= 0 {
		if j := strings.Index(base[i:], ")"); j > 0 {
			length, _ = strconv.Atoi(strings.TrimSpace(base[i+1 : i+j]))
		}
		base = strings.TrimSpace(base[:i])
	}

	if t, ok := CanonicalType(base); ok {
		return t, length
	}
	return strings.ToLower(base), length
}

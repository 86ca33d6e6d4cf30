package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

func (postgresDialect) quoteIdent(name string) string {
	return pq.QuoteIdentifier(name)
}

func (p postgresDialect) contains(column, s string) sq.Sqlizer {
	return sq.Expr(p.quoteIdent(column)+` LIKE ? ESCAPE '\'`, "%"+escapeLike(s)+"%")
}

func (postgresDialect) namespace(declared, fallback string) string {
	if declared != "" {
		return declared
	}
	if fallback != "" {
		return fallback
	}
	return DefaultNamespace
}

func (p postgresDialect) tableName(td TableDef) string {
	if td.Namespace == "" {
		return p.quoteIdent(td.Name)
	}
	return fmt.Sprintf("%s.%s", p.quoteIdent(td.Namespace), p.quoteIdent(td.Name))
}

func (postgresDialect) columnType(c ColumnDef) string {
	t := c.Type()
	if (t == TypeVarchar || t == TypeChar) && c.Length > 0 {
		return fmt.Sprintf("%s(%d)", t, c.Length)
	}
	return t
}

func (postgresDialect) keyConstraint(ColumnDef) string {
	return "PRIMARY KEY"
}

func (postgresDialect) storageType(canonical string) string {
	switch canonical {
	case TypeSerial:
		return TypeInteger
	case TypeBigSerial:
		return TypeBigInt
	default:
		return canonical
	}
}

func (p postgresDialect) createNamespaceDDL(namespace string) string {
	if namespace == "" || namespace == DefaultNamespace {
		return ""
	}
	return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", p.quoteIdent(namespace))
}

// pgDescribeTableQuery folds the case of both names, as the table cache does. An
// exact match sorts first.
const pgDescribeTableQuery = `
	SELECT
		c.table_schema,
		c.table_name,
		c.column_name,
		c.data_type,
		COALESCE(c.character_maximum_length, 0) AS length,
		c.is_nullable = 'YES' AS nullable,
		EXISTS (
			SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name
				AND tc.constraint_type = 'PRIMARY KEY'
				AND kcu.column_name = c.column_name
		) AS primary_key,
		EXISTS (
			SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON tc.constraint_name = kcu.constraint_name
				AND tc.table_schema = kcu.table_schema
				AND tc.table_name = kcu.table_name
			WHERE tc.table_schema = c.table_schema
				AND tc.table_name = c.table_name
				AND tc.constraint_type = 'UNIQUE'
				AND kcu.column_name = c.column_name
		) AS is_unique
	FROM information_schema.columns c
	WHERE lower(c.table_schema) = lower($1::text) AND lower(c.table_name) = lower($2::text)
	ORDER BY
		(c.table_schema::text = $1 AND c.table_name::text = $2) DESC,
		(c.table_schema::text = $1) DESC,
		c.table_schema,
		c.table_name,
		c.ordinal_position
`

type pgColumnInfo struct {
	Schema     string `db:"table_schema"`
	Table      string `db:"table_name"`
	Name       string `db:"column_name"`
	DataType   string `db:"data_type"`
	Length     int    `db:"length"`
	Nullable   bool   `db:"nullable"`
	PrimaryKey bool   `db:"primary_key"`
	Unique     bool   `db:"is_unique"`
}

func (postgresDialect) describeTable(ctx context.Context, q sqlx.QueryerContext, td TableDef) (existingTable, bool, error) {
	var cols []pgColumnInfo
	if err := sqlx.SelectContext(ctx, q, &cols, pgDescribeTableQuery, td.Namespace, td.Name); err != nil {
		return existingTable{}, false, fmt.Errorf("describe table %s: %w", td.FullTableName(), err)
	}

	if len(cols) == 0 {
		return existingTable{}, false, nil
	}

	schema, table := cols[0].Schema, cols[0].Table
	cols = FilterSlice(cols, func(c pgColumnInfo) bool { return c.Schema == schema && c.Table == table })

	return existingTable{
		Namespace: schema,
		Name:      table,
		Columns: Map(cols, func(c pgColumnInfo) existingColumn {
			dataType, ok := CanonicalType(c.DataType)
			if !ok {
				dataType = strings.ToLower(c.DataType)
			}
			return existingColumn{
				Name:       c.Name,
				DataType:   dataType,
				Length:     c.Length,
				Nullable:   c.Nullable,
				PrimaryKey: c.PrimaryKey,
				Unique:     c.Unique,
			}
		}),
	}, true, nil
}

func (postgresDialect) translateError(err error) Kind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsIntegrityConstraintViolation(pgErr.Code):
			return KindConstraint
		case pgErr.Code == pgerrcode.QueryCanceled, pgErr.Code == pgerrcode.LockNotAvailable:
			return KindTimeout
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgErr.Code == pgerrcode.InvalidPassword,
			pgErr.Code == pgerrcode.InvalidAuthorizationSpecification,
			pgErr.Code == pgerrcode.InvalidCatalogName,
			pgErr.Code == pgerrcode.AdminShutdown,
			pgErr.Code == pgerrcode.CannotConnectNow:
			return KindConnection
		case pgErr.Code == pgerrcode.DuplicateTable:
			return KindSchema
		case pgErr.Code == pgerrcode.UndefinedTable,
			pgErr.Code == pgerrcode.UndefinedColumn,
			pgErr.Code == pgerrcode.DatatypeMismatch,
			pgerrcode.IsDataException(pgErr.Code),
			strings.HasPrefix(pgErr.Code, "42"):
			return KindValidation
		}
		return ""
	}

	if pgconn.Timeout(err) {
		return KindTimeout
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return KindConnection
	}

	var parseErr *pgconn.ParseConfigError
	if errors.As(err, &parseErr) {
		return KindConnection
	}

	return ""
}

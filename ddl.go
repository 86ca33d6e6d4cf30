package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TableCreator applies a schema descriptor.
type TableCreator interface {
	CreateTables(ctx context.Context, s Schema) (CreateTablesResult, error)
}

// CreateTables applies s through creator. Tables that already exist with a compatible
// shape are left alone; a conflicting definition fails that table with ErrSchema.
func CreateTables(ctx context.Context, s Schema, creator TableCreator) (CreateTablesResult, error) {
	return creator.CreateTables(ctx, s)
}

func createTableDDL(d dialect, td TableDef) string {
	keys := td.KeyColumns()
	soleKey := len(keys) == 1

	var ddlCols []string
	for _, col := range td.Columns {
		var ddlCol strings.Builder
		ddlCol.WriteString(d.quoteIdent(col.Name))
		ddlCol.WriteString(" ")
		ddlCol.WriteString(d.columnType(col))

		if !col.IsNullable() {
			ddlCol.WriteString(" NOT NULL")
		}

		if col.PrimaryKey && soleKey {
			ddlCol.WriteString(" ")
			ddlCol.WriteString(d.keyConstraint(col))
		}

		if col.Unique && !(col.PrimaryKey && soleKey) {
			ddlCol.WriteString(" UNIQUE")
		}

		ddlCols = append(ddlCols, ddlCol.String())
	}

	if len(keys) > 1 {
		ddlCols = append(ddlCols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(Map(keys, d.quoteIdent), ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.tableName(td), strings.Join(ddlCols, ", "))
}

// checkCompatible compares a declared table with the one found in the database.
// storageType folds the types the backend stores identically.
func checkCompatible(storageType func(string) string, td TableDef, ex existingTable) error {
	found := make(map[string]existingColumn, len(ex.Columns))
	for _, c := range ex.Columns {
		found[strings.ToLower(c.Name)] = c
	}

	var diffs []string
	for _, c := range td.Columns {
		key := strings.ToLower(c.Name)
		e, ok := found[key]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("column %s is missing", c.Name))
			continue
		}
		delete(found, key)

		want, got := storageType(c.Type()), storageType(e.DataType)
		if want != got {
			diffs = append(diffs, fmt.Sprintf("column %s is %s, declared %s", c.Name, e.DataType, c.Type()))
			continue
		}

		if wl, gl := comparableLength(c.Type(), c.Length), comparableLength(c.Type(), e.Length); wl != gl {
			diffs = append(diffs, fmt.Sprintf("column %s has length %d, declared %d", c.Name, gl, wl))
		}

		if c.IsNullable() != (e.Nullable && !e.PrimaryKey) {
			diffs = append(diffs, fmt.Sprintf("column %s nullability differs", c.Name))
		}

		if c.PrimaryKey != e.PrimaryKey {
			diffs = append(diffs, fmt.Sprintf("column %s primary key differs", c.Name))
		}

		if (c.Unique && !c.PrimaryKey) != (e.Unique && !e.PrimaryKey) {
			diffs = append(diffs, fmt.Sprintf("column %s uniqueness differs", c.Name))
		}
	}

	var extra []string
	for _, e := range found {
		extra = append(extra, e.Name)
	}
	sort.Strings(extra)
	for _, name := range extra {
		diffs = append(diffs, fmt.Sprintf("unexpected column %s", name))
	}

	if len(diffs) > 0 {
		return newError(KindSchema, "create tables", td.Name, "conflicting redefinition: "+strings.Join(diffs, "; "))
	}

	return nil
}

func comparableLength(canonical string, length int) int {
	switch canonical {
	case TypeChar:
		if length == 0 {
			return 1
		}
		return length
	case TypeVarchar:
		return length
	default:
		return 0
	}
}

// CreateTables creates every table of s that does not exist yet and registers all
// of them with the client. The returned error joins the per-table failures.
func (c *Client) CreateTables(ctx context.Context, s Schema) (CreateTablesResult, error) {
	const op = "create tables"
	var res CreateTablesResult

	release, err := c.acquire(op, "")
	if err != nil {
		return res, err
	}
	defer release()

	if err := s.Validate(); err != nil {
		return res, err
	}

	for _, td := range s.Tables {
		res.Tables = append(res.Tables, c.createTable(ctx, td))
	}

	return res, res.Err()
}

func (c *Client) createTable(ctx context.Context, td TableDef) TableStatus {
	const op = "create tables"
	td.Namespace = c.dialect.namespace(td.Namespace, c.namespace)
	status := TableStatus{Table: td.FullTableName()}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		status.Err = c.classify(op, td.Name, err)
		return status
	}
	defer tx.Rollback()

	ex, found, err := c.dialect.describeTable(ctx, tx, td)
	if err != nil {
		status.Err = c.classify(op, td.Name, err)
		return status
	}

	if found {
		if err := checkCompatible(c.dialect.storageType, td, ex); err != nil {
			c.logger.Warn("table exists with a different definition", "table", td.FullTableName(), "error", err)
			status.Err = err
			return status
		}

		c.registerTable(ex.adopt(td))
		status.Existed = true
		return status
	}

	if ddl := c.dialect.createNamespaceDDL(td.Namespace); ddl != "" {
		c.logStatement(op, ddl, nil)
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			status.Err = c.classify(op, td.Name, err)
			return status
		}
	}

	ddl := createTableDDL(c.dialect, td)
	c.logStatement(op, ddl, nil)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		status.Err = c.classify(op, td.Name, err)
		return status
	}

	if err := tx.Commit(); err != nil {
		status.Err = c.classify(op, td.Name, err)
		return status
	}

	c.registerTable(td)
	status.Created = true
	c.logger.Info("table created", "table", td.FullTableName())
	return status
}

package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Insert inserts one row. Unknown columns fail with ErrValidation; NOT NULL, UNIQUE
// and PRIMARY KEY violations fail with ErrConstraint.
func (c *Client) Insert(ctx context.Context, req InsertRequest, options ...QueryOption) (InsertResult, error) {
	const op = "insert"
	var res InsertResult
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		var err error
		res, err = c.insertRow(ctx, tx, td, req.Values)
		return err
	})
	return res, err
}

// InsertAll inserts rows into table within one transaction; either all rows are
// inserted or none.
func (c *Client) InsertAll(ctx context.Context, table string, rows []map[string]any, options ...QueryOption) ([]InsertResult, error) {
	const op = "insert"
	var res []InsertResult
	err := c.run(ctx, op, table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		if len(rows) == 0 {
			return validationErrorf(op, td.Name, "no rows given")
		}

		res = make([]InsertResult, 0, len(rows))
		for _, values := range rows {
			r, err := c.insertRow(ctx, tx, td, values)
			if err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) insertRow(ctx context.Context, tx *sqlx.Tx, td TableDef, values map[string]any) (InsertResult, error) {
	const op = "insert"
	res := InsertResult{Table: td.Name}

	vals, err := resolveValues(op, td, values)
	if err != nil {
		return res, err
	}

	qry, args, err := c.buildInsert(td, vals)
	if err != nil {
		return res, err
	}
	c.logStatement(op, qry, args)

	if len(td.KeyColumns()) == 0 {
		r, err := tx.ExecContext(ctx, qry, args...)
		if err != nil {
			return res, err
		}
		res.RowsAffected, err = r.RowsAffected()
		return res, err
	}

	rows, err := tx.QueryxContext(ctx, qry, args...)
	if err != nil {
		return res, err
	}
	defer rows.Close()

	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return res, err
		}
		res.Key = normalizeRow(td, m)
		res.RowsAffected++
	}

	return res, rows.Err()
}

// Select returns the projected rows matching the request, ordered by OrderBy or by
// the primary key. No match yields an empty slice.
func (c *Client) Select(ctx context.Context, req SelectRequest, options ...QueryOption) ([]Row, error) {
	const op = "select"
	result := []Row{}
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		qry, args, _, err := c.buildSelect(op, td, req)
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		rows, err := tx.QueryxContext(ctx, qry, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m := make(map[string]any)
			if err := rows.MapScan(m); err != nil {
				return err
			}
			result = append(result, normalizeRow(td, m))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SelectInto scans the rows matching req into dest. Struct fields map to columns by
// their `db` tag or, untagged, by their snake_case name.
func SelectInto[T any](ctx context.Context, c *Client, req SelectRequest, dest *[]T, options ...QueryOption) error {
	const op = "select"
	return c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		qry, args, _, err := c.buildSelect(op, td, req)
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		*dest = (*dest)[:0]
		return tx.SelectContext(ctx, dest, qry, args...)
	})
}

// Update applies req.Set to every matching row. Zero affected rows is not an error.
func (c *Client) Update(ctx context.Context, req UpdateRequest, options ...QueryOption) (WriteResult, error) {
	const op = "update"
	res := WriteResult{Table: req.Table}
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		res.Table = td.Name
		set, err := resolveValues(op, td, req.Set)
		if err != nil {
			return err
		}

		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		quoted := make(map[string]any, len(set))
		for k, v := range set {
			quoted[c.dialect.quoteIdent(k)] = v
		}

		b := c.builder().Update(c.dialect.tableName(td)).SetMap(quoted)
		if pred := c.whereClause(where); pred != nil {
			b = b.Where(pred)
		}

		qry, args, err := b.ToSql()
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		r, err := tx.ExecContext(ctx, qry, args...)
		if err != nil {
			return err
		}
		res.RowsAffected, err = r.RowsAffected()
		return err
	})
	return res, err
}

// Delete removes every matching row.
func (c *Client) Delete(ctx context.Context, req TableFilter, options ...QueryOption) (WriteResult, error) {
	const op = "delete"
	res := WriteResult{Table: req.Table}
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		res.Table = td.Name
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		b := c.builder().Delete(c.dialect.tableName(td))
		if pred := c.whereClause(where); pred != nil {
			b = b.Where(pred)
		}

		qry, args, err := b.ToSql()
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		r, err := tx.ExecContext(ctx, qry, args...)
		if err != nil {
			return err
		}
		res.RowsAffected, err = r.RowsAffected()
		return err
	})
	return res, err
}

// Exists reports whether at least one row matches.
func (c *Client) Exists(ctx context.Context, req TableFilter, options ...QueryOption) (bool, error) {
	const op = "exists"
	var exists bool
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		b := c.builder().Select("1").From(c.dialect.tableName(td)).Limit(1)
		if pred := c.whereClause(where); pred != nil {
			b = b.Where(pred)
		}

		qry, args, err := b.ToSql()
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		rows, err := tx.QueryContext(ctx, qry, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		exists = rows.Next()
		return rows.Err()
	})
	return exists, err
}

// Count returns the number of matching rows.
func (c *Client) Count(ctx context.Context, req TableFilter, options ...QueryOption) (int64, error) {
	const op = "count"
	var n int64
	err := c.run(ctx, op, req.Table, options, func(ctx context.Context, tx *sqlx.Tx, td TableDef) error {
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		b := c.builder().Select("COUNT(*)").From(c.dialect.tableName(td))
		if pred := c.whereClause(where); pred != nil {
			b = b.Where(pred)
		}

		qry, args, err := b.ToSql()
		if err != nil {
			return err
		}
		c.logStatement(op, qry, args)

		return tx.GetContext(ctx, &n, qry, args...)
	})
	return n, err
}

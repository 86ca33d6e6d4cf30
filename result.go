package store

import "errors"

// Row is one selected row keyed by column name.
type Row map[string]any

// InsertResult reports an inserted row. Key holds the primary key values the backend
// assigned or stored, including generated serial ids.
type InsertResult struct {
	Table        string
	RowsAffected int64
	Key          Row
}

// ID returns the single primary key value of the row, or nil for tables without a
// single-column primary key.
func (r InsertResult) ID() any {
	if len(r.Key) != 1 {
		return nil
	}
	for _, v := range r.Key {
		return v
	}
	return nil
}

// WriteResult reports an update or delete.
type WriteResult struct {
	Table        string
	RowsAffected int64
}

// TableStatus is the outcome of CreateTables for one table. Existed is set when a
// compatible table was already present.
type TableStatus struct {
	Table   string
	Created bool
	Existed bool
	Err     error
}

func (s TableStatus) OK() bool {
	return s.Err == nil
}

// CreateTablesResult is the per-table summary of CreateTables, in schema order.
type CreateTablesResult struct {
	Tables []TableStatus
}

func (r CreateTablesResult) Failed() []TableStatus {
	return FilterSlice(r.Tables, func(s TableStatus) bool { return !s.OK() })
}

// Err joins the per-table errors.
func (r CreateTablesResult) Err() error {
	return errors.Join(Map(r.Failed(), func(s TableStatus) error { return s.Err })...)
}

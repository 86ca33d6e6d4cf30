package store

import "context"

// Store is the table contract served by both the SQL Client and the MongoClient.
type Store interface {
	TableCreator
	Register(s Schema) error
	Insert(ctx context.Context, req InsertRequest, options ...QueryOption) (InsertResult, error)
	InsertAll(ctx context.Context, table string, rows []map[string]any, options ...QueryOption) ([]InsertResult, error)
	Select(ctx context.Context, req SelectRequest, options ...QueryOption) ([]Row, error)
	Update(ctx context.Context, req UpdateRequest, options ...QueryOption) (WriteResult, error)
	Delete(ctx context.Context, req TableFilter, options ...QueryOption) (WriteResult, error)
	Exists(ctx context.Context, req TableFilter, options ...QueryOption) (bool, error)
	Count(ctx context.Context, req TableFilter, options ...QueryOption) (int64, error)
	Begin(ctx context.Context) (Transaction, error)
	Close() error
}

var (
	_ Store = (*Client)(nil)
	_ Store = (*MongoClient)(nil)
)

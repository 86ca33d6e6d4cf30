package store

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	mongoOptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	mongoSchemaCollection  = "_tablestore_schema"
	mongoCounterCollection = "_tablestore_counters"
)

// MongoClient serves the same table contract as Client over a MongoDB database.
// Tables are collections; their definitions are stored in the _tablestore_schema
// collection, and serial columns draw values from _tablestore_counters.
//
// NOT NULL is checked by the client. UNIQUE and PRIMARY KEY columns are backed by
// unique indexes. InsertAll is atomic only inside a transaction from Begin, which
// needs a replica set.
type MongoClient struct {
	handle
	client *mongo.Client
	db     *mongo.Database

	tablesMu sync.RWMutex
	tables   map[string]TableDef
}

type mongoSchemaDoc struct {
	ID    string   `bson:"_id"`
	Table TableDef `bson:"table"`
}

// OpenMongo connects to the MongoDB deployment at uri and uses database for tables.
func OpenMongo(ctx context.Context, uri, database string, options ...Option) (*MongoClient, error) {
	const op = "open"
	opt := defaultOptions()
	for _, o := range options {
		o(opt)
	}

	if strings.TrimSpace(database) == "" {
		return nil, newError(KindConnection, op, "", "database name is empty")
	}

	clientOpts := mongoOptions.Client().ApplyURI(uri)
	if err := clientOpts.Validate(); err != nil {
		return nil, wrapError(KindConnection, op, "", err)
	}

	m := &MongoClient{
		handle: handle{logger: opt.logger, timeout: opt.timeout},
		tables: make(map[string]TableDef),
	}

	connCtx, cancel := m.withTimeout(ctx)
	defer cancel()

	client, err := mongo.Connect(connCtx, clientOpts)
	if err != nil {
		return nil, wrapError(KindConnection, op, "", err)
	}

	if err := client.Ping(connCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, wrapError(KindConnection, op, "", err)
	}

	m.client = client
	m.db = client.Database(database)

	if opt.schema != nil {
		if err := m.Register(*opt.schema); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
	}

	m.logger.Info("database connection established", "backend", "mongodb", "dsn", maskDSN(uri), "database", database)
	return m, nil
}

// Close disconnects from the deployment. Closing twice is a no-op.
func (m *MongoClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	ctx, cancel := m.withTimeout(context.Background())
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return wrapError(KindConnection, "close", "", err)
	}

	m.logger.Info("database connection closed", "backend", "mongodb")
	return nil
}

// Register declares table definitions without touching the database.
func (m *MongoClient) Register(s Schema) error {
	release, err := m.acquire("register", "")
	if err != nil {
		return err
	}
	defer release()

	if err := s.Validate(); err != nil {
		return err
	}

	for _, td := range s.Tables {
		m.registerTable(td)
	}
	return nil
}

func (m *MongoClient) registerTable(td TableDef) {
	td.Namespace = ""
	m.tablesMu.Lock()
	defer m.tablesMu.Unlock()
	m.tables[strings.ToLower(td.Name)] = td
}

func (m *MongoClient) classify(op, table string, err error) error {
	return classify(op, table, err, translateMongoError)
}

func translateMongoError(err error) Kind {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return KindConstraint
	case mongo.IsTimeout(err):
		return KindTimeout
	case mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return KindConnection
	}
	return ""
}

// CreateTables records every table of s and builds its unique indexes. A table
// already recorded with a different definition fails with ErrSchema.
func (m *MongoClient) CreateTables(ctx context.Context, s Schema) (CreateTablesResult, error) {
	const op = "create tables"
	var res CreateTablesResult

	release, err := m.acquire(op, "")
	if err != nil {
		return res, err
	}
	defer release()

	if err := s.Validate(); err != nil {
		return res, err
	}

	for _, td := range s.Tables {
		res.Tables = append(res.Tables, m.createTable(ctx, td))
	}

	return res, res.Err()
}

func (m *MongoClient) createTable(ctx context.Context, td TableDef) TableStatus {
	const op = "create tables"
	td.Namespace = ""
	status := TableStatus{Table: td.Name}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	schemaColl := m.db.Collection(mongoSchemaCollection)

	var doc mongoSchemaDoc
	err := schemaColl.FindOne(ctx, bson.M{"_id": strings.ToLower(td.Name)}).Decode(&doc)
	switch {
	case err == nil:
		if err := checkCompatible(mongoStorageType, td, existingFromDef(doc.Table)); err != nil {
			m.logger.Warn("table exists with a different definition", "table", td.Name, "error", err)
			status.Err = err
			return status
		}
		m.registerTable(td)
		status.Existed = true
		return status
	case !errors.Is(err, mongo.ErrNoDocuments):
		status.Err = m.classify(op, td.Name, err)
		return status
	}

	if indexes := mongoIndexes(td); len(indexes) > 0 {
		if _, err := m.db.Collection(td.Name).Indexes().CreateMany(ctx, indexes); err != nil {
			status.Err = m.classify(op, td.Name, err)
			return status
		}
	}

	if _, err := schemaColl.InsertOne(ctx, mongoSchemaDoc{ID: strings.ToLower(td.Name), Table: td}); err != nil {
		status.Err = m.classify(op, td.Name, err)
		return status
	}

	m.registerTable(td)
	status.Created = true
	m.logger.Info("table created", "table", td.Name, "backend", "mongodb")
	return status
}

func mongoStorageType(canonical string) string {
	return canonical
}

// mongoIndexes returns the unique indexes backing the key and UNIQUE columns.
// Nullable unique columns index only documents holding the field, so several rows
// may leave it unset.
func mongoIndexes(td TableDef) []mongo.IndexModel {
	var indexes []mongo.IndexModel

	if keys := td.KeyColumns(); len(keys) > 0 {
		keyDoc := bson.D{}
		for _, k := range keys {
			keyDoc = append(keyDoc, bson.E{Key: k, Value: 1})
		}
		indexes = append(indexes, mongo.IndexModel{
			Keys:    keyDoc,
			Options: mongoOptions.Index().SetUnique(true).SetName("pk_" + strings.Join(keys, "_")),
		})
	}

	for _, c := range td.Columns {
		if !c.Unique || c.PrimaryKey {
			continue
		}

		idxOpts := mongoOptions.Index().SetUnique(true).SetName("ux_" + c.Name)
		if c.IsNullable() {
			idxOpts.SetPartialFilterExpression(bson.M{c.Name: bson.M{"$exists": true}})
		}
		indexes = append(indexes, mongo.IndexModel{Keys: bson.D{{Key: c.Name, Value: 1}}, Options: idxOpts})
	}

	return indexes
}

func (m *MongoClient) tableDef(ctx context.Context, op, table string) (TableDef, error) {
	name := strings.TrimSpace(table)
	if name == "" {
		return TableDef{}, validationErrorf(op, "", "table name is empty")
	}

	key := strings.ToLower(name)
	m.tablesMu.RLock()
	td, ok := m.tables[key]
	m.tablesMu.RUnlock()
	if ok {
		return td, nil
	}

	var doc mongoSchemaDoc
	err := m.db.Collection(mongoSchemaCollection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return TableDef{}, validationErrorf(op, name, "unknown table")
	}
	if err != nil {
		return TableDef{}, m.classify(op, name, err)
	}

	m.registerTable(doc.Table)
	return doc.Table, nil
}

// run resolves the table and executes fn, inside the caller's session when the
// options carry a transaction.
func (m *MongoClient) run(ctx context.Context, op, table string, options []QueryOption, fn func(ctx context.Context, coll *mongo.Collection, td TableDef) error) error {
	release, err := m.acquire(op, table)
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	ctx, err = m.setTransactionContext(ctx, applyQueryOptions(options))
	if err != nil {
		return err
	}

	td, err := m.tableDef(ctx, op, table)
	if err != nil {
		return err
	}

	if err := fn(ctx, m.db.Collection(td.Name), td); err != nil {
		return m.classify(op, td.Name, err)
	}
	return nil
}

func (m *MongoClient) setTransactionContext(ctx context.Context, opt *queryOption) (context.Context, error) {
	if opt.Tx == nil {
		return ctx, nil
	}

	tx, ok := opt.Tx.(*mongoTransaction)
	if !ok || tx.client != m {
		return nil, validationErrorf("begin", "", "transaction was not started by this client")
	}
	return mongo.NewSessionContext(ctx, tx.session), nil
}

func (m *MongoClient) nextSequence(ctx context.Context, table, column string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := m.db.Collection(mongoCounterCollection).FindOneAndUpdate(ctx,
		bson.M{"_id": strings.ToLower(table) + "." + strings.ToLower(column)},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		mongoOptions.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(mongoOptions.After),
	).Decode(&counter)

	return counter.Seq, err
}

// buildDocument checks values against td and fills serial columns. Columns without a
// value are left out of the document.
func (m *MongoClient) buildDocument(ctx context.Context, td TableDef, values map[string]any) (bson.D, Row, error) {
	const op = "insert"
	vals, err := resolveValues(op, td, values)
	if err != nil {
		return nil, nil, err
	}

	doc := bson.D{}
	key := Row{}
	for _, col := range td.Columns {
		v, given := vals[col.Name]
		if (!given || v == nil) && isSerialType(col.Type()) {
			if v, err = m.nextSequence(ctx, td.Name, col.Name); err != nil {
				return nil, nil, err
			}
			given = true
		}

		if !given || v == nil {
			if !col.IsNullable() {
				return nil, nil, newError(KindConstraint, op, td.Name, "column "+col.Name+" violates NOT NULL")
			}
			continue
		}

		doc = append(doc, bson.E{Key: col.Name, Value: v})
		if col.PrimaryKey {
			key[col.Name] = v
		}
	}

	if len(key) == 0 {
		key = nil
	}
	return doc, key, nil
}

func (m *MongoClient) Insert(ctx context.Context, req InsertRequest, options ...QueryOption) (InsertResult, error) {
	var res InsertResult
	err := m.run(ctx, "insert", req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		doc, key, err := m.buildDocument(ctx, td, req.Values)
		if err != nil {
			return err
		}

		if _, err := coll.InsertOne(ctx, doc); err != nil {
			return err
		}

		res = InsertResult{Table: td.Name, RowsAffected: 1, Key: key}
		return nil
	})
	return res, err
}

// InsertAll validates every row before writing any of them.
func (m *MongoClient) InsertAll(ctx context.Context, table string, rows []map[string]any, options ...QueryOption) ([]InsertResult, error) {
	const op = "insert"
	var res []InsertResult
	err := m.run(ctx, op, table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		if len(rows) == 0 {
			return validationErrorf(op, td.Name, "no rows given")
		}

		docs := make([]any, 0, len(rows))
		res = make([]InsertResult, 0, len(rows))
		for _, values := range rows {
			doc, key, err := m.buildDocument(ctx, td, values)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			res = append(res, InsertResult{Table: td.Name, RowsAffected: 1, Key: key})
		}

		_, err := coll.InsertMany(ctx, docs, mongoOptions.InsertMany().SetOrdered(true))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (m *MongoClient) Select(ctx context.Context, req SelectRequest, options ...QueryOption) ([]Row, error) {
	const op = "select"
	result := []Row{}
	err := m.run(ctx, op, req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		cols, err := resolveColumns(op, td, req.Columns)
		if err != nil {
			return err
		}

		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		order, err := resolveOrder(op, td, req.OrderBy)
		if err != nil {
			return err
		}

		if req.Limit < 0 || req.Offset < 0 {
			return validationErrorf(op, td.Name, "limit and offset must not be negative")
		}

		projection := bson.D{{Key: "_id", Value: 0}}
		for _, c := range cols {
			projection = append(projection, bson.E{Key: c, Value: 1})
		}

		findOpts := mongoOptions.Find().SetProjection(projection)
		if len(order) > 0 {
			sortDoc := bson.D{}
			for _, t := range order {
				dir := 1
				if t.desc {
					dir = -1
				}
				sortDoc = append(sortDoc, bson.E{Key: t.column, Value: dir})
			}
			findOpts.SetSort(sortDoc)
		}
		if req.Limit > 0 {
			findOpts.SetLimit(int64(req.Limit))
		}
		if req.Offset > 0 {
			findOpts.SetSkip(req.Offset)
		}

		cur, err := coll.Find(ctx, parseFilterIntoDocument(where), findOpts)
		if err != nil {
			return err
		}
		defer cur.Close(ctx)

		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return err
		}

		for _, doc := range docs {
			row := make(Row, len(cols))
			for _, c := range cols {
				row[c] = normalizeMongoValue(doc[c])
			}
			result = append(result, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update sets the given values on every matching row. Nil values unset the field.
func (m *MongoClient) Update(ctx context.Context, req UpdateRequest, options ...QueryOption) (WriteResult, error) {
	const op = "update"
	res := WriteResult{Table: req.Table}
	err := m.run(ctx, op, req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		res.Table = td.Name
		set, err := resolveValues(op, td, req.Set)
		if err != nil {
			return err
		}

		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		update, err := createUpdateParam(td, set)
		if err != nil {
			return err
		}

		up, err := coll.UpdateMany(ctx, parseFilterIntoDocument(where), update)
		if err != nil {
			return err
		}

		res.RowsAffected = up.MatchedCount
		return nil
	})
	return res, err
}

func (m *MongoClient) Delete(ctx context.Context, req TableFilter, options ...QueryOption) (WriteResult, error) {
	const op = "delete"
	res := WriteResult{Table: req.Table}
	err := m.run(ctx, op, req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		res.Table = td.Name
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		dr, err := coll.DeleteMany(ctx, parseFilterIntoDocument(where))
		if err != nil {
			return err
		}

		res.RowsAffected = dr.DeletedCount
		m.logger.Debug("documents deleted", "table", td.Name, "count", dr.DeletedCount)
		return nil
	})
	return res, err
}

func (m *MongoClient) Exists(ctx context.Context, req TableFilter, options ...QueryOption) (bool, error) {
	const op = "exists"
	var exists bool
	err := m.run(ctx, op, req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		n, err := coll.CountDocuments(ctx, parseFilterIntoDocument(where), mongoOptions.Count().SetLimit(1))
		if err != nil {
			return err
		}

		exists = n > 0
		return nil
	})
	return exists, err
}

func (m *MongoClient) Count(ctx context.Context, req TableFilter, options ...QueryOption) (int64, error) {
	const op = "count"
	var n int64
	err := m.run(ctx, op, req.Table, options, func(ctx context.Context, coll *mongo.Collection, td TableDef) error {
		where, err := req.Where.resolve(op, td)
		if err != nil {
			return err
		}

		n, err = coll.CountDocuments(ctx, parseFilterIntoDocument(where))
		return err
	})
	return n, err
}

// Begin starts a multi-document transaction. It needs a replica set or sharded
// cluster.
func (m *MongoClient) Begin(ctx context.Context) (Transaction, error) {
	const op = "begin"
	release, err := m.acquire(op, "")
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := m.client.StartSession()
	if err != nil {
		return nil, m.classify(op, "", err)
	}

	txnOpts := mongoOptions.Transaction().
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Snapshot())

	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, m.classify(op, "", err)
	}

	return &mongoTransaction{session: session, client: m}, nil
}

func createUpdateParam(td TableDef, set map[string]any) (bson.D, error) {
	setDoc, unsetDoc := bson.D{}, bson.D{}
	for _, k := range sortedKeys(set) {
		v := set[k]
		if v != nil {
			setDoc = append(setDoc, bson.E{Key: k, Value: v})
			continue
		}

		if col, _ := td.Column(k); !col.IsNullable() {
			return nil, newError(KindConstraint, "update", td.Name, "column "+k+" violates NOT NULL")
		}
		unsetDoc = append(unsetDoc, bson.E{Key: k, Value: ""})
	}

	update := bson.D{}
	if len(setDoc) > 0 {
		update = append(update, bson.E{Key: "$set", Value: setDoc})
	}
	if len(unsetDoc) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unsetDoc})
	}
	return update, nil
}

// parseFilterIntoDocument translates a resolved filter. A missing field matches a
// null term, as an absent value is how a NULL column is stored.
func parseFilterIntoDocument(f Filter) bson.D {
	filter := bson.D{}
	if f.IsMatchAll() {
		return filter
	}

	for _, col := range f.Columns() {
		switch v := f.Value(col).(type) {
		case FilterNull:
			if v.IsNull() {
				filter = append(filter, bson.E{Key: col, Value: nil})
			} else {
				filter = append(filter, bson.E{Key: col, Value: bson.M{"$ne": nil}})
			}
		case FilterStringContains:
			filter = append(filter, bson.E{Key: col, Value: bson.M{"$regex": regexp.QuoteMeta(v.Contains())}})
		default:
			if isListValue(v) {
				filter = append(filter, parameterizedFilterCriteriaSlice(col, v))
				continue
			}
			filter = append(filter, bson.E{Key: col, Value: v})
		}
	}

	return filter
}

func parameterizedFilterCriteriaSlice(fieldname string, values any) bson.E {
	s := reflect.ValueOf(values)
	if s.Len() == 1 {
		return bson.E{Key: fieldname, Value: s.Index(0).Interface()}
	}
	return bson.E{Key: fieldname, Value: bson.M{"$in": values}}
}

func normalizeMongoValue(v any) any {
	switch val := v.(type) {
	case primitive.DateTime:
		return val.Time()
	case primitive.A:
		return []any(val)
	case primitive.Binary:
		return val.Data
	}
	return v
}

type mongoTransaction struct {
	session mongo.Session
	client  *MongoClient
	done    bool
}

func (tx *mongoTransaction) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.session.EndSession(ctx)

	if err := tx.session.AbortTransaction(ctx); err != nil {
		return tx.client.classify("rollback", "", err)
	}
	return nil
}

func (tx *mongoTransaction) Commit(ctx context.Context) error {
	if tx.done {
		return validationErrorf("commit", "", "transaction already finished")
	}
	tx.done = true
	defer tx.session.EndSession(ctx)

	if err := tx.session.CommitTransaction(ctx); err != nil {
		return tx.client.classify("commit", "", err)
	}
	return nil
}

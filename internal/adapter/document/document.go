// Package document implements the document-store backend adapter on top of
// MongoDB via go.mongodb.org/mongo-driver/v2 — the one backend whose wire
// model is a native document rather than relational rows, so it gets its
// own condition compiler (compile.go) instead of internal/query.Compile.
package document

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/crossdbodm/odm/internal/adapter"
	"github.com/crossdbodm/odm/internal/odmerr"
	"github.com/crossdbodm/odm/internal/query"
	"github.com/crossdbodm/odm/internal/schema"
	"github.com/crossdbodm/odm/internal/value"
)

// Config is the document-store backend's connection configuration.
type Config struct {
	URI      string
	Database string
}

// Adapter implements adapter.Adapter against a MongoDB deployment. The
// driver manages its own internal connection pool, so Connect below hands
// every operation the same shared *mongo.Client rather than checking out
// a dedicated native connection the way the database/sql-backed adapters
// do — odm's own pool still serializes access per alias, this just means
// there is no separate handle to acquire underneath it.
type Adapter struct {
	client *mongo.Client
	db     *mongo.Database

	// schemas/known are only ever touched from the single pool worker
	// goroutine serializing operations for this alias, so they need no
	// lock of their own — see internal/pool's single-consumer worker.
	schemas map[string]schema.Schema
	known   map[string]bool
}

// New connects to cfg.URI and verifies connectivity with a ping.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, &odmerr.ConfigError{Message: "document adapter requires a URI and database name"}
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &odmerr.ConnectionError{Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &odmerr.ConnectionError{Err: err}
	}
	return &Adapter{
		client:  client,
		db:      client.Database(cfg.Database),
		schemas: make(map[string]schema.Schema),
		known:   make(map[string]bool),
	}, nil
}

func (a *Adapter) Dialect() string { return "mongo" }

// Connect hands back a thin wrapper over the shared client; the document
// store has nothing per-operation to check out beyond that.
func (a *Adapter) Connect(ctx context.Context) (adapter.Conn, error) {
	return &conn_{client: a.client}, nil
}

type conn_ struct{ client *mongo.Client }

func (c *conn_) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return &odmerr.ConnectionError{Err: err}
	}
	return nil
}

func (c *conn_) Close(ctx context.Context) error { return nil }

func (a *Adapter) collection(table string) *mongo.Collection {
	return a.db.Collection(table)
}

func (a *Adapter) tableSchema(table string) schema.Schema {
	return a.schemas[table]
}

// CreateTable creates the backing collection if absent and builds the
// indexes the declared schema asks for (per-field Unique/Indexed markers
// plus any composite schema.Index entries), mirroring the at-most-once
// create-if-absent behavior the database/sql adapters implement with their
// known-table cache.
func (a *Adapter) CreateTable(ctx context.Context, c adapter.Conn, table string, s schema.Schema) error {
	if a.known[table] {
		return nil
	}
	names, err := a.db.ListCollectionNames(ctx, bson.M{"name": table})
	if err != nil {
		return classifyError(table, err)
	}
	if len(names) == 0 {
		if err := a.db.CreateCollection(ctx, table); err != nil {
			return classifyError(table, err)
		}
	}

	coll := a.collection(table)
	models := indexModels(s)
	if len(models) > 0 {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return classifyError(table, err)
		}
	}

	a.known[table] = true
	a.schemas[table] = s
	return nil
}

func indexModels(s schema.Schema) []mongo.IndexModel {
	var models []mongo.IndexModel
	for _, f := range s.Fields {
		if f.Name == idField {
			continue // Mongo already indexes _id
		}
		if f.Unique {
			models = append(models, mongo.IndexModel{
				Keys:    bson.D{{Key: fieldKey(f.Name), Value: 1}},
				Options: options.Index().SetUnique(true),
			})
		} else if f.Indexed {
			models = append(models, mongo.IndexModel{
				Keys: bson.D{{Key: fieldKey(f.Name), Value: 1}},
			})
		}
	}
	for _, idx := range s.Indexes {
		keys := make(bson.D, 0, len(idx.Fields))
		for _, fname := range idx.Fields {
			keys = append(keys, bson.E{Key: fieldKey(fname), Value: 1})
		}
		opts := options.Index()
		if idx.Unique {
			opts = opts.SetUnique(true)
		}
		if idx.Name != "" {
			opts = opts.SetName(idx.Name)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}
	return models
}

func (a *Adapter) DropTable(ctx context.Context, c adapter.Conn, table string) error {
	if err := a.collection(table).Drop(ctx); err != nil {
		return classifyError(table, err)
	}
	delete(a.known, table)
	delete(a.schemas, table)
	return nil
}

func (a *Adapter) Create(ctx context.Context, c adapter.Conn, table string, record value.Value) (value.Value, error) {
	doc := recordToBSON(record)
	res, err := a.collection(table).InsertOne(ctx, doc)
	if err != nil {
		return value.Value{}, classifyError(table, err)
	}

	if idv, ok := record.Get(idField); ok && !idv.IsNull() {
		return record, nil
	}

	// The caller supplied no id (Opaque12 delegated-to-backend case):
	// splice the server-assigned _id back into the returned record.
	assigned := bsonToCanonical(res.InsertedID, schema.Field{})
	fields, order, _ := record.AsObject()
	merged := make(map[string]value.Value, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[idField] = assigned
	if _, present := fields[idField]; !present {
		order = append(append([]string(nil), order...), idField)
	}
	return value.Object(merged, order), nil
}

func (a *Adapter) Find(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, opts adapter.FindOptions) ([]value.Value, error) {
	filter, err := compile(cond)
	if err != nil {
		return nil, err
	}
	s := a.tableSchema(table)

	findOpts := options.Find()
	if len(opts.Fields) > 0 {
		proj := bson.M{}
		for _, f := range opts.Fields {
			proj[fieldKey(f)] = 1
		}
		findOpts = findOpts.SetProjection(proj)
	}
	if len(opts.Sort) > 0 {
		sortDoc := bson.D{}
		for _, sf := range opts.Sort {
			dir := 1
			if sf.Desc {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: fieldKey(sf.Field), Value: dir})
		}
		findOpts = findOpts.SetSort(sortDoc)
	}
	if opts.Pagination != nil {
		findOpts = findOpts.SetSkip(opts.Pagination.Skip)
		if opts.Pagination.Limit != nil {
			findOpts = findOpts.SetLimit(*opts.Pagination.Limit)
		}
	}

	cur, err := a.collection(table).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, classifyError(table, err)
	}
	defer cur.Close(ctx)

	var out []value.Value
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, &odmerr.SerializationError{Message: err.Error()}
		}
		out = append(out, docToValue(doc, s))
	}
	if err := cur.Err(); err != nil {
		return nil, classifyError(table, err)
	}
	return out, nil
}

func (a *Adapter) FindByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (value.Value, bool, error) {
	s := a.tableSchema(table)
	var doc bson.M
	err := a.collection(table).FindOne(ctx, idFilter(id)).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return value.Value{}, false, nil
		}
		return value.Value{}, false, classifyError(table, err)
	}
	return docToValue(doc, s), true, nil
}

func (a *Adapter) Update(ctx context.Context, c adapter.Conn, table string, cond *query.Condition, data value.Value) (int64, error) {
	filter, err := compile(cond)
	if err != nil {
		return 0, err
	}
	set := updateSet(data)
	res, err := a.collection(table).UpdateMany(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return 0, classifyError(table, err)
	}
	return res.ModifiedCount, nil
}

func (a *Adapter) UpdateByID(ctx context.Context, c adapter.Conn, table string, id value.Value, data value.Value) (int64, error) {
	set := updateSet(data)
	res, err := a.collection(table).UpdateOne(ctx, idFilter(id), bson.M{"$set": set})
	if err != nil {
		return 0, classifyError(table, err)
	}
	return res.ModifiedCount, nil
}

func updateSet(data value.Value) bson.M {
	fields, order, _ := data.AsObject()
	set := bson.M{}
	for _, k := range order {
		if k == idField {
			continue // primary key is immutable once assigned
		}
		set[fieldKey(k)] = toBSON(fields[k])
	}
	return set
}

func (a *Adapter) Delete(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	filter, err := compile(cond)
	if err != nil {
		return 0, err
	}
	res, err := a.collection(table).DeleteMany(ctx, filter)
	if err != nil {
		return 0, classifyError(table, err)
	}
	return res.DeletedCount, nil
}

func (a *Adapter) DeleteByID(ctx context.Context, c adapter.Conn, table string, id value.Value) (int64, error) {
	res, err := a.collection(table).DeleteOne(ctx, idFilter(id))
	if err != nil {
		return 0, classifyError(table, err)
	}
	return res.DeletedCount, nil
}

func (a *Adapter) Count(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (int64, error) {
	filter, err := compile(cond)
	if err != nil {
		return 0, err
	}
	n, err := a.collection(table).CountDocuments(ctx, filter)
	if err != nil {
		return 0, classifyError(table, err)
	}
	return n, nil
}

func (a *Adapter) Exists(ctx context.Context, c adapter.Conn, table string, cond *query.Condition) (bool, error) {
	filter, err := compile(cond)
	if err != nil {
		return false, err
	}
	n, err := a.collection(table).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, classifyError(table, err)
	}
	return n > 0, nil
}

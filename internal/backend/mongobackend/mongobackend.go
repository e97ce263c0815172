// Package mongobackend is a MongoDB-flavored implementation of the
// internal/backend collection contract. ensureCollection/ensureIndex/
// insertOne/findOne/find/drop map almost directly onto mongo.Database and
// mongo.Collection. RecordId's 12-byte layout round-trips as a BSON
// ObjectId (see internal/recordid/bson.go), so no wrapper type is needed on
// the wire.
//
// Payload is kept opaque end to end: InsertOne marshals it through the
// driver's default struct-tag codec, and Decode hands callers back the raw
// BSON bytes of the payload field rather than attempting to reconstruct a
// concrete Go type; the reflector that knows the target type lives a layer
// above this package and is the one place in the store that should own that
// decision.
package mongobackend

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Store is a backend.Store backed by one MongoDB database, one collection
// per root type.
type Store struct {
	db  *mongo.Database
	log *zap.Logger
}

// New wraps an already-connected *mongo.Client's named database.
func New(client *mongo.Client, dbName string, log *zap.Logger) *Store {
	return &Store{db: client.Database(dbName), log: log}
}

// EnsureCollection implements backend.Store. MongoDB creates collections
// implicitly on first write, so this just hands back a typed wrapper.
func (s *Store) EnsureCollection(_ context.Context, rootType string) (backend.Collection, error) {
	return &Collection{col: s.db.Collection(rootType), log: s.log}, nil
}

// Drop implements backend.Store: irreversibly drops the entire database.
func (s *Store) Drop(ctx context.Context) error {
	if err := s.db.Drop(ctx); err != nil {
		return fmt.Errorf("%w: drop database %q: %v", dcerr.ErrBackend, s.db.Name(), err)
	}
	return nil
}

// Collection is a backend.Collection backed by a *mongo.Collection.
type Collection struct {
	col *mongo.Collection
	log *zap.Logger
}

// EnsureIndex implements backend.Collection, translating an IndexDecl into
// a single compound mongo.IndexModel.
func (c *Collection) EnsureIndex(ctx context.Context, decl dcrecord.IndexDecl) error {
	keys := bson.D{}
	for _, el := range decl.Elements {
		dir := 1
		if el.Direction == dcrecord.Descending {
			dir = -1
		}
		keys = append(keys, bson.E{Key: el.Field, Value: dir})
	}

	_, err := c.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(decl.Name),
	})
	if err != nil {
		return fmt.Errorf("%w: ensure index %q on %q: %v", dcerr.ErrBackend, decl.Name, c.col.Name(), err)
	}
	return nil
}

// wireDocument is the on-disk shape of a backend.Document. Payload is kept
// as raw BSON so InsertOne/Decode never need reflector knowledge of the
// concrete Go type.
type wireDocument struct {
	Id        any      `bson:"_id"`
	DataSet   any      `bson:"_dataset"`
	Key       string   `bson:"_key"`
	TypeChain []string `bson:"_t"`
	Payload   any      `bson:"payload"`
}

// InsertOne implements backend.Collection.
func (c *Collection) InsertOne(ctx context.Context, doc backend.Document) error {
	wire := wireDocument{Id: doc.Id, DataSet: doc.DataSet, Key: doc.Key, TypeChain: doc.TypeChain, Payload: doc.Payload}
	if _, err := c.col.InsertOne(ctx, wire); err != nil {
		return fmt.Errorf("%w: insert into %q: %v", dcerr.ErrBackend, c.col.Name(), err)
	}
	return nil
}

// FindOne implements backend.Collection.
func (c *Collection) FindOne(ctx context.Context, filter backend.Expr, sort []backend.SortSpec) (backend.Document, bool, error) {
	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(translateSort(sort))
	}

	var raw bson.Raw
	err := c.col.FindOne(ctx, translateExpr(filter), opts).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return backend.Document{}, false, nil
	}
	if err != nil {
		return backend.Document{}, false, fmt.Errorf("%w: find one in %q: %v", dcerr.ErrBackend, c.col.Name(), err)
	}

	doc, err := decodeWire(raw)
	if err != nil {
		return backend.Document{}, false, err
	}
	return doc, true, nil
}

// Find implements backend.Collection.
func (c *Collection) Find(ctx context.Context, filter backend.Expr, sortSpecs []backend.SortSpec) (backend.Cursor, error) {
	opts := options.Find()
	if len(sortSpecs) > 0 {
		opts.SetSort(translateSort(sortSpecs))
	}

	cur, err := c.col.Find(ctx, translateExpr(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("%w: find in %q: %v", dcerr.ErrBackend, c.col.Name(), err)
	}
	return &mongoCursor{cur: cur}, nil
}

// Drop implements backend.Collection.
func (c *Collection) Drop(ctx context.Context) error {
	if err := c.col.Drop(ctx); err != nil {
		return fmt.Errorf("%w: drop %q: %v", dcerr.ErrBackend, c.col.Name(), err)
	}
	return nil
}

func translateExpr(e backend.Expr) bson.D {
	switch e.Op {
	case backend.OpAnd:
		sub := bson.A{}
		for _, s := range e.Sub {
			sub = append(sub, translateExpr(s))
		}
		return bson.D{{Key: "$and", Value: sub}}
	case backend.OpEq:
		return bson.D{{Key: e.Field, Value: e.Value}}
	case backend.OpIn:
		return bson.D{{Key: e.Field, Value: bson.D{{Key: "$in", Value: e.Value}}}}
	case backend.OpLte:
		return bson.D{{Key: e.Field, Value: bson.D{{Key: "$lte", Value: e.Value}}}}
	case backend.OpPrefix:
		prefix, _ := e.Value.(string)
		return bson.D{{Key: e.Field, Value: bson.D{{Key: "$regex", Value: "^" + regexEscape(prefix)}}}}
	default:
		return bson.D{}
	}
}

// regexEscape quotes the handful of characters a record key or dataset name
// could plausibly contain that are meaningful to a Mongo $regex.
func regexEscape(s string) string {
	special := `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		if containsByte(special, s[i]) {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}

func translateSort(specs []backend.SortSpec) bson.D {
	d := bson.D{}
	for _, s := range specs {
		dir := 1
		if s.Direction == backend.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.Field, Value: dir})
	}
	return d
}

func decodeWire(raw bson.Raw) (backend.Document, error) {
	var wire struct {
		Id        recordid.RecordId `bson:"_id"`
		DataSet   recordid.RecordId `bson:"_dataset"`
		Key       string            `bson:"_key"`
		TypeChain []string          `bson:"_t"`
		Payload   bson.Raw          `bson:"payload"`
	}
	if err := bson.Unmarshal(raw, &wire); err != nil {
		return backend.Document{}, fmt.Errorf("%w: decode document: %v", dcerr.ErrBackend, err)
	}
	return backend.Document{
		Id:        wire.Id,
		DataSet:   wire.DataSet,
		Key:       wire.Key,
		TypeChain: wire.TypeChain,
		Payload:   wire.Payload,
	}, nil
}

type mongoCursor struct {
	cur *mongo.Cursor
	doc backend.Document
	err error
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *mongoCursor) Decode() (backend.Document, error) {
	var raw bson.Raw
	if err := c.cur.Decode(&raw); err != nil {
		return backend.Document{}, fmt.Errorf("%w: cursor decode: %v", dcerr.ErrBackend, err)
	}
	return decodeWire(raw)
}

func (c *mongoCursor) Err() error { return c.cur.Err() }

func (c *mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

// Package memdb is an in-memory reference implementation of the
// internal/backend collection contract. It is the backend used by the tests
// in this module that run against a real collection: a mutex-guarded
// slice of documents plus a recorded set of declared indexes, no
// durability.
package memdb

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
)

// Store is an in-memory backend.Store: one *Collection per root type name.
type Store struct {
	mu   sync.Mutex
	cols map[string]*Collection
}

// New constructs an empty Store.
func New() *Store {
	return &Store{cols: make(map[string]*Collection)}
}

// EnsureCollection implements backend.Store.
func (s *Store) EnsureCollection(_ context.Context, rootType string) (backend.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[rootType]
	if !ok {
		c = &Collection{name: rootType}
		s.cols[rootType] = c
	}
	return c, nil
}

// Drop implements backend.Store: irreversibly removes all state.
func (s *Store) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cols = make(map[string]*Collection)
	return nil
}

// Collection is an in-memory backend.Collection.
type Collection struct {
	name string

	mu      sync.RWMutex
	docs    []backend.Document
	indexes []dcrecord.IndexDecl
}

// EnsureIndex implements backend.Collection. Idempotent: re-declaring an
// index with the same name is a no-op.
func (c *Collection) EnsureIndex(_ context.Context, decl dcrecord.IndexDecl) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.indexes {
		if existing.Name == decl.Name {
			return nil
		}
	}
	c.indexes = append(c.indexes, decl)
	return nil
}

// InsertOne implements backend.Collection. Atomic on the single document by
// construction: a single mutex-guarded append.
func (c *Collection) InsertOne(_ context.Context, doc backend.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
	return nil
}

// FindOne implements backend.Collection.
func (c *Collection) FindOne(ctx context.Context, filter backend.Expr, sort []backend.SortSpec) (backend.Document, bool, error) {
	cur, err := c.Find(ctx, filter, sort)
	if err != nil {
		return backend.Document{}, false, err
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		doc, err := cur.Decode()
		return doc, err == nil, err
	}
	return backend.Document{}, false, cur.Err()
}

// Find implements backend.Collection: a single-pass, finite cursor over the
// matching documents of a snapshot taken under lock. Filtering and sorting
// happen here, before the cursor is returned.
func (c *Collection) Find(_ context.Context, filter backend.Expr, sortSpecs []backend.SortSpec) (backend.Cursor, error) {
	c.mu.RLock()
	snapshot := make([]backend.Document, len(c.docs))
	copy(snapshot, c.docs)
	c.mu.RUnlock()

	matched := snapshot[:0:0]
	for _, d := range snapshot {
		if matches(d, filter) {
			matched = append(matched, d)
		}
	}

	if len(sortSpecs) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], sortSpecs)
		})
	}

	return &sliceCursor{docs: matched, idx: -1}, nil
}

// Drop implements backend.Collection.
func (c *Collection) Drop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = nil
	c.indexes = nil
	return nil
}

func matches(d backend.Document, e backend.Expr) bool {
	switch e.Op {
	case backend.OpAnd:
		for _, sub := range e.Sub {
			if !matches(d, sub) {
				return false
			}
		}
		return true
	case backend.OpEq:
		return fieldValue(d, e.Field) == e.Value
	case backend.OpIn:
		return containsField(d, e.Field, e.Value)
	case backend.OpLte:
		return compareField(d, e.Field, e.Value) <= 0
	case backend.OpPrefix:
		prefix, _ := e.Value.(string)
		s, _ := fieldValue(d, e.Field).(string)
		return len(s) >= len(prefix) && s[:len(prefix)] == prefix
	default:
		return false
	}
}

func fieldValue(d backend.Document, field string) any {
	switch field {
	case "_id":
		return d.Id
	case "_dataset":
		return d.DataSet
	case "_key":
		return d.Key
	default:
		return payloadFieldValue(d.Payload, field)
	}
}

// payloadFieldValue looks up an exported field by name on the document's
// payload, since the backend contract keeps Payload opaque but collections
// still need to filter on a handful of payload fields (e.g. DataSet.Name).
func payloadFieldValue(payload any, field string) any {
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	fv := v.FieldByName(field)
	if !fv.IsValid() {
		return nil
	}
	return fv.Interface()
}

func containsField(d backend.Document, field string, value any) bool {
	rv := fieldValue(d, field)
	switch vs := value.(type) {
	case []any:
		for _, v := range vs {
			if v == rv {
				return true
			}
		}
	default:
		return false
	}
	return false
}

func compareField(d backend.Document, field string, value any) int {
	rv := fieldValue(d, field)
	// RecordId is a [12]byte-backed type; compare byte-for-byte when both
	// sides expose Bytes().
	a, aok := rv.(interface{ Bytes() []byte })
	b, bok := value.(interface{ Bytes() []byte })
	if aok && bok {
		return compareBytes(a.Bytes(), b.Bytes())
	}
	return 0
}

func compareBytes(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func less(a, b backend.Document, specs []backend.SortSpec) bool {
	for _, s := range specs {
		c := compareField(a, s.Field, fieldValue(b, s.Field))
		if c == 0 {
			continue
		}
		if s.Direction == backend.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

type sliceCursor struct {
	docs []backend.Document
	idx  int
	err  error
}

func (c *sliceCursor) Next(_ context.Context) bool {
	if c.idx+1 >= len(c.docs) {
		return false
	}
	c.idx++
	return true
}

func (c *sliceCursor) Decode() (backend.Document, error) {
	if c.idx < 0 || c.idx >= len(c.docs) {
		return backend.Document{}, fmt.Errorf("%w: cursor: decode out of range", dcerr.ErrBackend)
	}
	return c.docs[c.idx], nil
}

func (c *sliceCursor) Err() error { return c.err }

func (c *sliceCursor) Close(_ context.Context) error { return nil }

// Package dccontext implements the Context of spec §5: a scoped container
// holding a DataSource, a current DataSet, and a logger, with convenience
// methods that delegate to the DataSource's operations.
package dccontext

import (
	"context"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/datacentricorg/datacentric-sub000/internal/dckey"
	"github.com/datacentricorg/datacentric-sub000/internal/dcquery"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// DataSource is the subset of datasource.DataSource a Context depends on.
// Declared locally so dccontext never imports datasource directly, keeping
// the dependency direction the same one-way shape as dcquery.Source.
type DataSource interface {
	Save(ctx context.Context, payload any, saveTo recordid.RecordId) (recordid.RecordId, error)
	SaveDataSet(ctx context.Context, data dcrecord.DataSetData) (recordid.RecordId, error)
	LoadOrNil(ctx context.Context, sample any, id recordid.RecordId) (*dcrecord.Record, error)
	Load(ctx context.Context, sample any, id recordid.RecordId) (dcrecord.Record, error)
	LoadByKeyOrNil(ctx context.Context, sample any, key dckey.Key, loadFrom recordid.RecordId) (*dcrecord.Record, error)
	Query(sample any, loadFrom recordid.RecordId) *dcquery.Query
	Delete(ctx context.Context, sample any, key dckey.Key, saveTo recordid.RecordId) (recordid.RecordId, error)
	Drop(ctx context.Context) error
	IsReadOnly() bool
}

// Disposable is implemented by scoped resources a Context hands out that
// need explicit teardown before the Context itself closes.
type Disposable interface {
	io.Closer
}

// Context is the scoped container of spec §5.
type Context struct {
	dataSource DataSource
	currentSet recordid.RecordId
	log        *zap.Logger

	mu        sync.Mutex
	resources []Disposable
}

// New constructs a Context bound to ds, scoped initially to currentDataSet.
func New(ds DataSource, currentDataSet recordid.RecordId, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{dataSource: ds, currentSet: currentDataSet, log: log}
}

// DataSet returns the current DataSet this Context saves into / reads from
// by default.
func (c *Context) DataSet() recordid.RecordId { return c.currentSet }

// WithDataSet returns a derived Context scoped to a different DataSet,
// sharing this Context's DataSource and logger.
func (c *Context) WithDataSet(id recordid.RecordId) *Context {
	return &Context{dataSource: c.dataSource, currentSet: id, log: c.log}
}

// Log returns the Context's logger.
func (c *Context) Log() *zap.Logger { return c.log }

// Track registers a scoped resource to be closed when the Context is
// closed, in LIFO order.
func (c *Context) Track(d Disposable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources = append(c.resources, d)
}

// Close releases every tracked resource, LIFO, without stopping on
// individual close errors, and returns the first error encountered.
func (c *Context) Close() error {
	c.mu.Lock()
	resources := c.resources
	c.resources = nil
	c.mu.Unlock()

	var firstErr error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Save saves payload into the current DataSet.
func (c *Context) Save(ctx context.Context, payload any) (recordid.RecordId, error) {
	return c.dataSource.Save(ctx, payload, c.currentSet)
}

// SaveDataSet saves a dataset record and returns a derived Context scoped to
// that new dataset; the assigned id is available from its DataSet method.
func (c *Context) SaveDataSet(ctx context.Context, name string, imports ...recordid.RecordId) (*Context, error) {
	id, err := c.dataSource.SaveDataSet(ctx, dcrecord.DataSetData{Name: name, Imports: imports})
	if err != nil {
		return nil, err
	}
	return c.WithDataSet(id), nil
}

// LoadOrNil loads by id against sample's root type.
func (c *Context) LoadOrNil(ctx context.Context, sample any, id recordid.RecordId) (*dcrecord.Record, error) {
	return c.dataSource.LoadOrNil(ctx, sample, id)
}

// Load loads by id, failing with NotFound if absent.
func (c *Context) Load(ctx context.Context, sample any, id recordid.RecordId) (dcrecord.Record, error) {
	return c.dataSource.Load(ctx, sample, id)
}

// LoadByKeyOrNil loads by key within the current DataSet's lookup list.
func (c *Context) LoadByKeyOrNil(ctx context.Context, sample any, key dckey.Key) (*dcrecord.Record, error) {
	return c.dataSource.LoadByKeyOrNil(ctx, sample, key, c.currentSet)
}

// Query returns a Query builder scoped to the current DataSet.
func (c *Context) Query(sample any) *dcquery.Query {
	return c.dataSource.Query(sample, c.currentSet)
}

// Delete writes a tombstone for key in the current DataSet.
func (c *Context) Delete(ctx context.Context, sample any, key dckey.Key) (recordid.RecordId, error) {
	return c.dataSource.Delete(ctx, sample, key, c.currentSet)
}

// IsReadOnly reports whether the underlying DataSource is read-only.
func (c *Context) IsReadOnly() bool { return c.dataSource.IsReadOnly() }

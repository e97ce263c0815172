// Package datasource implements the DataSource of spec §4.3: the temporal
// engine that save/load/query/delete/drop flow through, enforcing read-only
// policy, dataset precedence, version precedence, and type filtering.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dataset"
	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
	"github.com/datacentricorg/datacentric-sub000/internal/dckey"
	"github.com/datacentricorg/datacentric-sub000/internal/dcquery"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// InstanceType distinguishes deployment instances for the policy checks of
// spec §4.3.1/§7 (e.g. drop forbidden on PROD).
type InstanceType int

const (
	InstanceDev InstanceType = iota
	InstanceUat
	InstanceProd
)

// Config configures a DataSource at construction time (spec §4.3.1). At
// most one of SavedByTime/SavedById may be set.
type Config struct {
	Name         string
	Instance     InstanceType
	ReadOnly     bool
	SavedByTime  *time.Time
	SavedById    recordid.RecordId
	ImportSetCap int
}

// DataSource is the process-wide scoped resource of spec §4.3.1.
type DataSource struct {
	name     string
	instance InstanceType
	readOnly bool
	cutoff   recordid.RecordId

	store     backend.Store
	reflector dcrecord.Reflector
	idGen     *recordid.OrderedIdGenerator
	registry  *dataset.Registry
	log       *zap.Logger

	mu   sync.Mutex
	cols map[string]backend.Collection
}

// New validates cfg and constructs a ready DataSource. store is the backend
// driver handle; reflector supplies key/type/index reflection for payload
// values (internal/dcrecord.NewStructReflector is the default).
func New(store backend.Store, reflector dcrecord.Reflector, log *zap.Logger, cfg Config) (*DataSource, error) {
	if cfg.SavedByTime != nil && !cfg.SavedById.IsEmpty() {
		return nil, fmt.Errorf("%w: datasource %q: savedByTime and savedById both set", dcerr.ErrConfiguration, cfg.Name)
	}

	cutoff := recordid.Empty
	switch {
	case !cfg.SavedById.IsEmpty():
		cutoff = cfg.SavedById
	case cfg.SavedByTime != nil:
		cutoff = recordid.AtOrAfterSecond(*cfg.SavedByTime)
	}

	ds := &DataSource{
		name:      cfg.Name,
		instance:  cfg.Instance,
		readOnly:  cfg.ReadOnly,
		cutoff:    cutoff,
		store:     store,
		reflector: reflector,
		idGen:     recordid.NewOrderedIdGenerator(log),
		log:       log,
		cols:      make(map[string]backend.Collection),
	}
	ds.registry = dataset.New(ds, log, cfg.ImportSetCap)
	return ds, nil
}

// IsReadOnly implements spec §4.3.1: true iff readOnly, or either cutoff
// field was configured.
func (ds *DataSource) IsReadOnly() bool {
	return ds.readOnly || !ds.cutoff.IsEmpty()
}

// Cutoff implements dcquery.Source.
func (ds *DataSource) Cutoff() recordid.RecordId { return ds.cutoff }

func (ds *DataSource) checkWritable() error {
	if ds.IsReadOnly() {
		return fmt.Errorf("%w: datasource %q is read-only", dcerr.ErrReadOnlyViolation, ds.name)
	}
	return nil
}

// collectionFor returns the cached backend.Collection for a root type name,
// ensuring the system index on first use.
func (ds *DataSource) collectionFor(ctx context.Context, rootType string) (backend.Collection, error) {
	ds.mu.Lock()
	col, ok := ds.cols[rootType]
	ds.mu.Unlock()
	if ok {
		return col, nil
	}

	col, err := ds.store.EnsureCollection(ctx, rootType)
	if err != nil {
		return nil, fmt.Errorf("%w: ensure collection %q: %v", dcerr.ErrBackend, rootType, err)
	}
	if err := col.EnsureIndex(ctx, dcrecord.SystemIndex); err != nil {
		return nil, fmt.Errorf("%w: ensure system index on %q: %v", dcerr.ErrBackend, rootType, err)
	}
	if rootType == datasetRootType {
		if err := dataset.EnsureIndexes(ctx, col); err != nil {
			return nil, err
		}
	}

	ds.mu.Lock()
	ds.cols[rootType] = col
	ds.mu.Unlock()
	return col, nil
}

const datasetRootType = "DataSet"

// ResolveCollection implements dcquery.Source.
func (ds *DataSource) ResolveCollection(ctx context.Context, sample any) (backend.Collection, dcrecord.Reflector, error) {
	root := ds.reflector.RootType(sample)
	col, err := ds.collectionFor(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	for _, decl := range ds.reflector.Indexes(sample) {
		if err := col.EnsureIndex(ctx, decl); err != nil {
			return nil, nil, err
		}
	}
	return col, ds.reflector, nil
}

// LookupList implements dcquery.Source by delegating to the
// dataset.Registry with this DataSource's cutoff.
func (ds *DataSource) LookupList(ctx context.Context, loadFrom recordid.RecordId) ([]recordid.RecordId, error) {
	return ds.registry.GetLookupList(ctx, loadFrom, ds.cutoff)
}

func (ds *DataSource) keyString(sample any) (string, error) {
	tokens, err := ds.reflector.KeyTokens(sample)
	if err != nil {
		return "", err
	}
	k, err := dckey.New(tokens...)
	if err != nil {
		return "", err
	}
	return k.Serialize(), nil
}

// Save implements spec §4.3.2.
func (ds *DataSource) Save(ctx context.Context, payload any, saveTo recordid.RecordId) (recordid.RecordId, error) {
	if err := ds.checkWritable(); err != nil {
		return recordid.Empty, err
	}

	id := ds.idGen.Next()
	key, err := ds.keyString(payload)
	if err != nil {
		return recordid.Empty, err
	}

	root := ds.reflector.RootType(payload)
	col, err := ds.collectionFor(ctx, root)
	if err != nil {
		return recordid.Empty, err
	}

	doc := backend.Document{
		Id:        id,
		DataSet:   saveTo,
		Key:       key,
		TypeChain: ds.reflector.TypeChain(payload),
		Payload:   payload,
	}
	if err := col.InsertOne(ctx, doc); err != nil {
		return recordid.Empty, fmt.Errorf("%w: insert into %q: %v", dcerr.ErrBackend, root, err)
	}
	return id, nil
}

// SaveDataSet persists a dataset record in the root dataset and updates the
// DatasetRegistry caches (spec §4.2 saveDataSet).
func (ds *DataSource) SaveDataSet(ctx context.Context, data dcrecord.DataSetData) (recordid.RecordId, error) {
	id, err := ds.Save(ctx, data, recordid.Empty)
	if err != nil {
		return recordid.Empty, err
	}
	ds.registry.NoteSaved(id, data)
	return id, nil
}

// LoadOrNil implements loadOrNull(id) of spec §4.3.3.
func (ds *DataSource) LoadOrNil(ctx context.Context, sample any, id recordid.RecordId) (*dcrecord.Record, error) {
	root := ds.reflector.RootType(sample)
	col, err := ds.collectionFor(ctx, root)
	if err != nil {
		return nil, err
	}

	doc, ok, err := col.FindOne(ctx, backend.Eq("_id", id), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", dcerr.ErrBackend, id, err)
	}
	if !ok {
		return nil, nil
	}
	requested := dcrecord.RequestedTypeName(ds.reflector, sample)
	if !typeChainMatches(doc.TypeChain, requested) {
		return nil, fmt.Errorf("%w: record %s is not a %s", dcerr.ErrTypeMismatch, id, requested)
	}
	rec := dcrecord.Record{Id: doc.Id, DataSet: doc.DataSet, Key: doc.Key, Payload: doc.Payload}
	return &rec, nil
}

// Load is the non-OrNil variant: fails with NotFound instead of returning
// nil.
func (ds *DataSource) Load(ctx context.Context, sample any, id recordid.RecordId) (dcrecord.Record, error) {
	rec, err := ds.LoadOrNil(ctx, sample, id)
	if err != nil {
		return dcrecord.Record{}, err
	}
	if rec == nil {
		return dcrecord.Record{}, fmt.Errorf("%w: record %s", dcerr.ErrNotFound, id)
	}
	return *rec, nil
}

// LoadByKeyOrNil implements loadOrNull(key, loadFrom) of spec §4.3.4.
func (ds *DataSource) LoadByKeyOrNil(ctx context.Context, sample any, key dckey.Key, loadFrom recordid.RecordId) (*dcrecord.Record, error) {
	root := ds.reflector.RootType(sample)
	col, err := ds.collectionFor(ctx, root)
	if err != nil {
		return nil, err
	}

	list, err := ds.LookupList(ctx, loadFrom)
	if err != nil {
		return nil, err
	}
	datasetIds := make([]any, len(list))
	for i, id := range list {
		datasetIds[i] = id
	}

	filter := backend.And(
		backend.Eq("_key", key.Serialize()),
		backend.In("_dataset", datasetIds),
	)
	if !ds.cutoff.IsEmpty() {
		filter = backend.And(filter, backend.Lte("_id", ds.cutoff))
	}
	sortSpecs := []backend.SortSpec{
		{Field: "_dataset", Direction: backend.Desc},
		{Field: "_id", Direction: backend.Desc},
	}

	doc, ok, err := col.FindOne(ctx, filter, sortSpecs)
	if err != nil {
		return nil, fmt.Errorf("%w: load by key %q: %v", dcerr.ErrBackend, key.Serialize(), err)
	}
	if !ok {
		return nil, nil
	}
	if isTombstoneDoc(doc) {
		return nil, nil
	}
	if !typeChainMatches(doc.TypeChain, dcrecord.RequestedTypeName(ds.reflector, sample)) {
		return nil, nil
	}
	rec := dcrecord.Record{Id: doc.Id, DataSet: doc.DataSet, Key: doc.Key, Payload: doc.Payload}
	return &rec, nil
}

// Query returns a Query builder scoped to sample's root type and loadFrom's
// lookup list (spec §4.3.5).
func (ds *DataSource) Query(sample any, loadFrom recordid.RecordId) *dcquery.Query {
	return dcquery.New(ds, sample, loadFrom)
}

// Delete writes a tombstone in sample's root-type collection under key, in
// saveTo, suppressing visibility of any earlier version under that key in
// datasets importing saveTo (spec §3 Tombstone, §4.3 delete).
func (ds *DataSource) Delete(ctx context.Context, sample any, key dckey.Key, saveTo recordid.RecordId) (recordid.RecordId, error) {
	if err := ds.checkWritable(); err != nil {
		return recordid.Empty, err
	}

	root := ds.reflector.RootType(sample)
	col, err := ds.collectionFor(ctx, root)
	if err != nil {
		return recordid.Empty, err
	}

	id := ds.idGen.Next()
	doc := backend.Document{
		Id:        id,
		DataSet:   saveTo,
		Key:       key.Serialize(),
		TypeChain: []string{dcrecord.TombstoneTypeName},
		Payload:   dcrecord.Tombstone{},
	}
	if err := col.InsertOne(ctx, doc); err != nil {
		return recordid.Empty, fmt.Errorf("%w: insert tombstone into %q: %v", dcerr.ErrBackend, root, err)
	}
	return id, nil
}

// Drop irreversibly clears the entire backend. Forbidden on PROD and UAT
// instances per spec §7 PolicyViolation, and when read-only.
func (ds *DataSource) Drop(ctx context.Context) error {
	if ds.instance == InstanceProd || ds.instance == InstanceUat {
		return fmt.Errorf("%w: drop forbidden on PROD/UAT datasource %q", dcerr.ErrPolicyViolation, ds.name)
	}
	if err := ds.checkWritable(); err != nil {
		return err
	}
	if err := ds.store.Drop(ctx); err != nil {
		return fmt.Errorf("%w: drop: %v", dcerr.ErrBackend, err)
	}
	ds.mu.Lock()
	ds.cols = make(map[string]backend.Collection)
	ds.mu.Unlock()
	ds.registry.ClearCache()
	return nil
}

// ClearCache forces the DatasetRegistry to reload on next use.
func (ds *DataSource) ClearCache() { ds.registry.ClearCache() }

// LoadDataSetByName implements dataset.Loader.
func (ds *DataSource) LoadDataSetByName(ctx context.Context, name string) (recordid.RecordId, dcrecord.DataSetData, bool, error) {
	col, err := ds.collectionFor(ctx, datasetRootType)
	if err != nil {
		return recordid.Empty, dcrecord.DataSetData{}, false, err
	}
	doc, ok, err := col.FindOne(ctx, backend.Eq("Name", name), []backend.SortSpec{{Field: "_id", Direction: backend.Desc}})
	if err != nil {
		return recordid.Empty, dcrecord.DataSetData{}, false, fmt.Errorf("%w: load dataset %q: %v", dcerr.ErrBackend, name, err)
	}
	if !ok {
		return recordid.Empty, dcrecord.DataSetData{}, false, nil
	}
	data, ok := doc.Payload.(dcrecord.DataSetData)
	if !ok {
		return recordid.Empty, dcrecord.DataSetData{}, false, nil
	}
	return doc.Id, data, true, nil
}

// LoadDataSetById implements dataset.Loader.
func (ds *DataSource) LoadDataSetById(ctx context.Context, id recordid.RecordId) (dcrecord.DataSetData, bool, error) {
	col, err := ds.collectionFor(ctx, datasetRootType)
	if err != nil {
		return dcrecord.DataSetData{}, false, err
	}
	doc, ok, err := col.FindOne(ctx, backend.Eq("_id", id), nil)
	if err != nil {
		return dcrecord.DataSetData{}, false, fmt.Errorf("%w: load dataset %s: %v", dcerr.ErrBackend, id, err)
	}
	if !ok {
		return dcrecord.DataSetData{}, false, nil
	}
	data, ok := doc.Payload.(dcrecord.DataSetData)
	return data, ok, nil
}

func isTombstoneDoc(doc backend.Document) bool {
	return len(doc.TypeChain) > 0 && doc.TypeChain[0] == dcrecord.TombstoneTypeName
}

func typeChainMatches(chain []string, want string) bool {
	for _, t := range chain {
		if t == want {
			return true
		}
	}
	return false
}

// Package dataset implements the DatasetRegistry of spec §4.2: the
// per-DataSource cache of dataset name/id lookups and transitively expanded
// import lookup lists, with cycle detection and as-of cutoff filtering.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Loader is the minimal collaborator the registry needs from the backend: a
// way to look up a dataset by name and by id in the root collection. It is
// satisfied by DataSource, which supplies it at construction time; the
// registry never imports the datasource package, to keep the dependency
// one-directional.
type Loader interface {
	// LoadDataSetByName returns the DataSet record with the given name,
	// stored in the root dataset, or ok=false if none exists.
	LoadDataSetByName(ctx context.Context, name string) (recordid.RecordId, dcrecord.DataSetData, bool, error)

	// LoadDataSetById returns the DataSet payload for a given id, or
	// ok=false if the id is not a dataset record.
	LoadDataSetById(ctx context.Context, id recordid.RecordId) (dcrecord.DataSetData, bool, error)
}

// Registry is the DatasetRegistry of spec §4.2. It is owned exclusively by
// one DataSource instance (spec §3 "Ownership").
type Registry struct {
	loader Loader
	log    *zap.Logger

	mu         sync.RWMutex
	nameToId   map[string]recordid.RecordId
	importSets *lru.Cache[recordid.RecordId, []recordid.RecordId]

	group singleflight.Group
}

// New constructs a Registry backed by loader. importSetCapacity bounds the
// memoized lookup-list cache (0 uses a sensible default).
func New(loader Loader, log *zap.Logger, importSetCapacity int) *Registry {
	if importSetCapacity <= 0 {
		importSetCapacity = 4096
	}
	cache, err := lru.New[recordid.RecordId, []recordid.RecordId](importSetCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which we've
		// already guarded against.
		panic(err)
	}
	return &Registry{
		loader:     loader,
		log:        log,
		nameToId:   make(map[string]recordid.RecordId),
		importSets: cache,
	}
}

// GetOrEmpty implements the getOrEmpty operation of spec §4.2: returns the
// cached dataset id for name, or issues a single load from storage,
// returning recordid.Empty if no such dataset exists.
func (r *Registry) GetOrEmpty(ctx context.Context, name string) (recordid.RecordId, error) {
	r.mu.RLock()
	if id, ok := r.nameToId[name]; ok {
		r.mu.RUnlock()
		return id, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do("name:"+name, func() (any, error) {
		id, _, found, err := r.loader.LoadDataSetByName(ctx, name)
		if err != nil {
			return recordid.Empty, err
		}
		if !found {
			return recordid.Empty, nil
		}
		r.mu.Lock()
		r.nameToId[name] = id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return recordid.Empty, err
	}
	return v.(recordid.RecordId), nil
}

// NoteSaved updates both caches for a freshly saved dataset, per the
// saveDataSet operation of spec §4.2: it records the name-to-id mapping and
// drops any memoized lookup list for id, so the next lookup rebuilds it. The
// caller (DataSource) has already persisted the record; NoteSaved only
// updates in-memory state.
func (r *Registry) NoteSaved(id recordid.RecordId, data dcrecord.DataSetData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nameToId[data.Name] = id
	r.importSets.Remove(id) // invalidate: its expansion must be recomputed
}

// ClearCache forces every cached lookup to be reloaded on next use (spec
// §4.2 "Cache invalidation").
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nameToId = make(map[string]recordid.RecordId)
	r.importSets.Purge()
}

// GetLookupList implements getLookupList of spec §4.2: the transitive
// import expansion of D, ordered by descending RecordId (newer first)
// except that Empty is always last. cutoff is the as-of cutoff in force, or
// recordid.Empty if none.
func (r *Registry) GetLookupList(ctx context.Context, d recordid.RecordId, cutoff recordid.RecordId) ([]recordid.RecordId, error) {
	if cached, ok := r.importSets.Get(d); ok && cutoff.IsEmpty() {
		return cached, nil
	}

	key := fmt.Sprintf("build:%s:%s", d, cutoff)
	v, err, _ := r.group.Do(key, func() (any, error) {
		list, err := r.build(ctx, d, cutoff)
		if err != nil {
			return nil, err
		}
		if cutoff.IsEmpty() {
			r.importSets.Add(d, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]recordid.RecordId), nil
}

// build runs the BFS expansion algorithm of spec §4.2: breadth-first over
// Imports, cycles pruned by visited-set membership, a dataset naming itself
// as an import fails outright, and an excluded node (beyond cutoff) halts
// traversal through it without excluding siblings reached another way.
func (r *Registry) build(ctx context.Context, d recordid.RecordId, cutoff recordid.RecordId) ([]recordid.RecordId, error) {
	if d.IsEmpty() {
		return []recordid.RecordId{recordid.Empty}, nil
	}

	visited := map[recordid.RecordId]bool{d: true}
	queue := []recordid.RecordId{d}
	order := []recordid.RecordId{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if !cutoff.IsEmpty() && cur.Compare(cutoff) > 0 {
			continue // excluded node: do not include, do not traverse its imports
		}

		order = append(order, cur)

		data, ok, err := r.loader.LoadDataSetById(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // a referenced id that is not (or no longer) a dataset
		}

		for _, imp := range data.Imports {
			if imp == cur {
				return nil, fmt.Errorf("%w: dataset %s imports itself", dcerr.ErrCycleDetected, cur)
			}
			if visited[imp] {
				continue
			}
			visited[imp] = true
			queue = append(queue, imp)
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Compare(order[j]) > 0 })
	order = append(order, recordid.Empty)
	return order, nil
}

// backendIndexes are the indexes the root dataset collection needs; exposed
// so DataSource can ensure them at startup alongside the system index.
var backendIndexes = []dcrecord.IndexDecl{
	{
		Name: "_dataset_name",
		Elements: []dcrecord.IndexElement{
			{Field: "Name", Direction: dcrecord.Ascending},
		},
	},
}

// EnsureIndexes declares the dataset-lookup-by-name index on col.
func EnsureIndexes(ctx context.Context, col backend.Collection) error {
	for _, ix := range backendIndexes {
		if err := col.EnsureIndex(ctx, ix); err != nil {
			return err
		}
	}
	return nil
}

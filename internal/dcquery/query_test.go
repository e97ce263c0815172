package dcquery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/backend/memdb"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

type stubSource struct {
	col     backend.Collection
	refl    dcrecord.Reflector
	list    []recordid.RecordId
	cutoff  recordid.RecordId
	resErr  error
	listErr error
}

func (s *stubSource) ResolveCollection(context.Context, any) (backend.Collection, dcrecord.Reflector, error) {
	return s.col, s.refl, s.resErr
}

func (s *stubSource) LookupList(context.Context, recordid.RecordId) ([]recordid.RecordId, error) {
	return s.list, s.listErr
}

func (s *stubSource) Cutoff() recordid.RecordId { return s.cutoff }

type widget struct {
	Name    string `dckey:"0"`
	Version int
	Active  bool
}

func newSourceWithDocs(t *testing.T, docs ...backend.Document) *stubSource {
	t.Helper()
	store := memdb.New()
	col, err := store.EnsureCollection(context.Background(), "widget")
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, col.InsertOne(context.Background(), d))
	}
	return &stubSource{col: col, refl: dcrecord.NewStructReflector(), list: []recordid.RecordId{recordid.Empty}}
}

func TestQueryDedupsByKeyKeepingFirstSeen(t *testing.T) {
	ctx := context.Background()
	newer := recordid.New(2, 0, 0, 0)
	older := recordid.New(1, 0, 0, 0)
	src := newSourceWithDocs(t,
		backend.Document{Id: newer, DataSet: recordid.Empty, Key: "w1", TypeChain: []string{"widget"}, Payload: widget{Name: "w1", Version: 2}},
		backend.Document{Id: older, DataSet: recordid.Empty, Key: "w1", TypeChain: []string{"widget"}, Payload: widget{Name: "w1", Version: 1}},
	)

	q := New(src, widget{}, recordid.Empty)
	recs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Payload.(widget).Version)
}

func TestQuerySkipsTombstonedKeys(t *testing.T) {
	ctx := context.Background()
	tomb := recordid.New(2, 0, 0, 0)
	base := recordid.New(1, 0, 0, 0)
	src := newSourceWithDocs(t,
		backend.Document{Id: tomb, DataSet: recordid.Empty, Key: "w1", TypeChain: []string{dcrecord.TombstoneTypeName}},
		backend.Document{Id: base, DataSet: recordid.Empty, Key: "w1", TypeChain: []string{"widget"}, Payload: widget{Name: "w1"}},
	)

	q := New(src, widget{}, recordid.Empty)
	recs, err := q.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestQueryAppliesWherePredicate(t *testing.T) {
	ctx := context.Background()
	src := newSourceWithDocs(t,
		backend.Document{Id: recordid.New(1, 0, 0, 0), DataSet: recordid.Empty, Key: "a", TypeChain: []string{"widget"}, Payload: widget{Name: "a", Version: 1}},
		backend.Document{Id: recordid.New(2, 0, 0, 0), DataSet: recordid.Empty, Key: "b", TypeChain: []string{"widget"}, Payload: widget{Name: "b", Version: 2}},
	)

	q := New(src, widget{}, recordid.Empty).Where(func(p any) bool { return p.(widget).Version > 1 })
	recs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Key)
}

func TestQuerySortByAppliesAfterSystemOrdering(t *testing.T) {
	ctx := context.Background()
	src := newSourceWithDocs(t,
		backend.Document{Id: recordid.New(1, 0, 0, 0), DataSet: recordid.Empty, Key: "a", TypeChain: []string{"widget"}, Payload: widget{Name: "a", Version: 3}},
		backend.Document{Id: recordid.New(2, 0, 0, 0), DataSet: recordid.Empty, Key: "b", TypeChain: []string{"widget"}, Payload: widget{Name: "b", Version: 1}},
	)

	q := New(src, widget{}, recordid.Empty).SortBy(func(a, b any) bool { return a.(widget).Version < b.(widget).Version })
	recs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Key)
	assert.Equal(t, "a", recs[1].Key)
}

// TestQueryWherePredicateFailingOnWinningVersionSurfacesOlderMatch
// reproduces: key K has a newer version in dataset B (Active=false) and an
// older version in dataset A, which B imports (Active=true). Querying from
// B with Where(Active==true) must surface the older A version rather than
// dropping the key entirely, since the predicate only rules out the
// specific version that fails it, not the whole key.
func TestQueryWherePredicateFailingOnWinningVersionSurfacesOlderMatch(t *testing.T) {
	ctx := context.Background()

	dsA := recordid.New(1, 0, 0, 0)
	dsB := recordid.New(2, 0, 0, 0)

	store := memdb.New()
	col, err := store.EnsureCollection(ctx, "widget")
	require.NoError(t, err)
	require.NoError(t, col.InsertOne(ctx, backend.Document{
		Id: recordid.New(20, 0, 0, 0), DataSet: dsB, Key: "K", TypeChain: []string{"widget"},
		Payload: widget{Name: "K", Version: 2, Active: false},
	}))
	require.NoError(t, col.InsertOne(ctx, backend.Document{
		Id: recordid.New(10, 0, 0, 0), DataSet: dsA, Key: "K", TypeChain: []string{"widget"},
		Payload: widget{Name: "K", Version: 1, Active: true},
	}))

	src := &stubSource{col: col, refl: dcrecord.NewStructReflector(), list: []recordid.RecordId{dsB, dsA}}

	q := New(src, widget{}, dsB).Where(func(p any) bool { return p.(widget).Active })
	recs, err := q.All(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, dsA, recs[0].DataSet)
	assert.Equal(t, 1, recs[0].Payload.(widget).Version)
}

func TestWhereAfterCompilePanics(t *testing.T) {
	ctx := context.Background()
	src := newSourceWithDocs(t)
	q := New(src, widget{}, recordid.Empty)
	_, _, err := q.Next(ctx)
	require.NoError(t, err)

	assert.Panics(t, func() { q.Where(func(any) bool { return true }) })
}

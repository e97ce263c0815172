package memdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
	"github.com/datacentricorg/datacentric-sub000/internal/dcrecord"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

func TestEnsureCollectionReturnsSameCollectionForSameRootType(t *testing.T) {
	s := New()
	c1, err := s.EnsureCollection(context.Background(), "Widget")
	require.NoError(t, err)
	c2, err := s.EnsureCollection(context.Background(), "Widget")
	require.NoError(t, err)
	assert.Same(t, c1, c2)
}

func TestInsertAndFindByEqFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	col, err := s.EnsureCollection(ctx, "Widget")
	require.NoError(t, err)

	id := recordid.New(1, 1, 1, 1)
	ds := recordid.New(2, 1, 1, 1)
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: id, DataSet: ds, Key: "w1", TypeChain: []string{"Widget"}, Payload: "p"}))

	cur, err := col.Find(ctx, backend.Eq("_key", "w1"), nil)
	require.NoError(t, err)
	require.True(t, cur.Next(ctx))
	doc, err := cur.Decode()
	require.NoError(t, err)
	assert.Equal(t, "w1", doc.Key)
	assert.False(t, cur.Next(ctx))
}

func TestFindInFilterMatchesDatasetMembership(t *testing.T) {
	ctx := context.Background()
	s := New()
	col, _ := s.EnsureCollection(ctx, "Widget")

	dsA := recordid.New(1, 0, 0, 0)
	dsB := recordid.New(2, 0, 0, 0)
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: recordid.New(10, 0, 0, 0), DataSet: dsA, Key: "a"}))
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: recordid.New(11, 0, 0, 0), DataSet: dsB, Key: "b"}))

	cur, err := col.Find(ctx, backend.In("_dataset", []any{dsA}), nil)
	require.NoError(t, err)
	var keys []string
	for cur.Next(ctx) {
		doc, err := cur.Decode()
		require.NoError(t, err)
		keys = append(keys, doc.Key)
	}
	assert.Equal(t, []string{"a"}, keys)
}

func TestFindSortsByDescendingIdWhenRequested(t *testing.T) {
	ctx := context.Background()
	s := New()
	col, _ := s.EnsureCollection(ctx, "Widget")

	older := recordid.New(1, 0, 0, 0)
	newer := recordid.New(2, 0, 0, 0)
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: older, Key: "old"}))
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: newer, Key: "new"}))

	cur, err := col.Find(ctx, backend.Eq("_key", "old"), nil)
	require.NoError(t, err)
	_ = cur

	cur, err = col.Find(ctx, backend.In("_id", []any{older, newer}), []backend.SortSpec{{Field: "_id", Direction: backend.Desc}})
	require.NoError(t, err)
	var order []string
	for cur.Next(ctx) {
		doc, err := cur.Decode()
		require.NoError(t, err)
		order = append(order, doc.Key)
	}
	assert.Equal(t, []string{"new", "old"}, order)
}

func TestDropClearsDocumentsAndIndexes(t *testing.T) {
	ctx := context.Background()
	s := New()
	col, _ := s.EnsureCollection(ctx, "Widget")
	require.NoError(t, col.InsertOne(ctx, backend.Document{Id: recordid.New(1, 0, 0, 0), Key: "a"}))
	require.NoError(t, col.EnsureIndex(ctx, dcrecord.SystemIndex))

	require.NoError(t, col.Drop(ctx))

	cur, err := col.Find(ctx, backend.Eq("_key", "a"), nil)
	require.NoError(t, err)
	assert.False(t, cur.Next(ctx))
	assert.Empty(t, col.(*Collection).indexes)
}

func TestStoreDropRemovesAllCollections(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.EnsureCollection(ctx, "Widget")
	require.NoError(t, err)

	require.NoError(t, s.Drop(ctx))

	col2, err := s.EnsureCollection(ctx, "Widget")
	require.NoError(t, err)
	cur, err := col2.Find(ctx, backend.Eq("_key", "anything"), nil)
	require.NoError(t, err)
	assert.False(t, cur.Next(ctx))
}

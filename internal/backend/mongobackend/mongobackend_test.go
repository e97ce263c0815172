package mongobackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/datacentricorg/datacentric-sub000/internal/backend"
)

func TestTranslateExprEq(t *testing.T) {
	got := translateExpr(backend.Eq("_key", "w1"))
	assert.Equal(t, bson.D{{Key: "_key", Value: "w1"}}, got)
}

func TestTranslateExprAnd(t *testing.T) {
	got := translateExpr(backend.And(backend.Eq("_key", "w1"), backend.Lte("_id", 5)))
	want := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "_key", Value: "w1"}},
		bson.D{{Key: "_id", Value: bson.D{{Key: "$lte", Value: 5}}}},
	}}}
	assert.Equal(t, want, got)
}

func TestTranslateExprIn(t *testing.T) {
	got := translateExpr(backend.In("_dataset", []any{1, 2, 3}))
	want := bson.D{{Key: "_dataset", Value: bson.D{{Key: "$in", Value: []any{1, 2, 3}}}}}
	assert.Equal(t, want, got)
}

func TestTranslateExprPrefixEscapesRegexMetacharacters(t *testing.T) {
	got := translateExpr(backend.Prefix("_key", "a.b*c"))
	want := bson.D{{Key: "_key", Value: bson.D{{Key: "$regex", Value: `^a\.b\*c`}}}}
	assert.Equal(t, want, got)
}

func TestTranslateSortDirections(t *testing.T) {
	got := translateSort([]backend.SortSpec{
		{Field: "_dataset", Direction: backend.Desc},
		{Field: "_id", Direction: backend.Asc},
	})
	want := bson.D{{Key: "_dataset", Value: -1}, {Key: "_id", Value: 1}}
	assert.Equal(t, want, got)
}

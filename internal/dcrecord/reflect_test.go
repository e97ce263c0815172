package dcrecord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datacentricorg/datacentric-sub000/internal/dckey"
)

type plainWidget struct {
	Name    string `dckey:"0"`
	Variant int32  `dckey:"1"`
	Ignored string
}

type subWidget struct {
	Name string `dckey:"0"`
}

func (subWidget) DataCentricRootType() string    { return "Widget" }
func (subWidget) DataCentricTypeChain() []string { return []string{"SubWidget", "Widget"} }
func (subWidget) DataCentricIndexes() []IndexDecl {
	return []IndexDecl{{Name: "by_name", Elements: []IndexElement{{Field: "Name", Direction: Ascending}}}}
}

func TestKeySchemaOrdersByTagAndSkipsUntaggedFields(t *testing.T) {
	r := NewStructReflector()
	schema, err := r.KeySchema(plainWidget{})
	require.NoError(t, err)
	require.Len(t, schema, 2)
	assert.Equal(t, dckey.Schema{{Kind: dckey.KindString}, {Kind: dckey.KindInt32}}, schema)
}

func TestKeyTokensExtractsValuesInSchemaOrder(t *testing.T) {
	r := NewStructReflector()
	tokens, err := r.KeyTokens(plainWidget{Name: "w1", Variant: 2, Ignored: "noise"})
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, []dckey.Token{dckey.StringToken("w1"), dckey.Int32Token(2)}, tokens)
}

func TestRootTypeDefaultsToOwnTypeNameWithoutRootTyped(t *testing.T) {
	r := NewStructReflector()
	assert.Equal(t, "plainWidget", r.RootType(plainWidget{}))
}

func TestRootTypeUsesRootTypedWhenImplemented(t *testing.T) {
	r := NewStructReflector()
	assert.Equal(t, "Widget", r.RootType(subWidget{}))
}

func TestTypeChainDefaultsToSingleElementWithoutBased(t *testing.T) {
	r := NewStructReflector()
	assert.Equal(t, []string{"plainWidget"}, r.TypeChain(plainWidget{}))
}

func TestTypeChainUsesBasedWhenImplemented(t *testing.T) {
	r := NewStructReflector()
	assert.Equal(t, []string{"SubWidget", "Widget"}, r.TypeChain(subWidget{}))
}

func TestIndexesReturnsNilWithoutIndexed(t *testing.T) {
	r := NewStructReflector()
	assert.Nil(t, r.Indexes(plainWidget{}))
}

func TestIndexesUsesIndexedWhenImplemented(t *testing.T) {
	r := NewStructReflector()
	idx := r.Indexes(subWidget{})
	require.Len(t, idx, 1)
	assert.Equal(t, "by_name", idx[0].Name)
}

func TestRequestedTypeNameUsesChainHeadNotRoot(t *testing.T) {
	r := NewStructReflector()
	assert.Equal(t, "SubWidget", RequestedTypeName(r, subWidget{}))
	assert.Equal(t, "plainWidget", RequestedTypeName(r, plainWidget{}))
}

// Package dcrecord defines the Record/DataSet value types of spec §3 and the
// key/record reflection contract of spec §6. Reflection and (de)serialization
// to a backing document format are explicitly out of scope for the core
// (spec §1); this package defines the interface the core consumes plus one
// concrete, reflect-based implementation so the in-memory backend, the tests,
// and the example cmd/ binaries have something real to run against.
package dcrecord

import (
	"github.com/datacentricorg/datacentric-sub000/internal/dckey"
	"github.com/datacentricorg/datacentric-sub000/internal/recordid"
)

// Record is a single persisted version (spec §3): Id is unique within a
// collection and assigned at save time; DataSet is the dataset this version
// was written into; Key is the canonical serialization of the record's key
// fields; Payload is the opaque, polymorphic application value.
type Record struct {
	Id      recordid.RecordId
	DataSet recordid.RecordId
	Key     string
	Payload any
}

// DataSetData is the payload of a dataset record (spec §3): a name plus an
// ordered set of imported dataset ids, always stored in the root dataset.
type DataSetData struct {
	Name    string `dckey:"0"`
	Imports []recordid.RecordId
}

// DataCentricRootType implements RootTyped: DataSetData is always stored in
// the "DataSet" collection regardless of its Go type name.
func (DataSetData) DataCentricRootType() string { return "DataSet" }

// Tombstone is the payload marker written by DataSource.Delete to suppress
// visibility of earlier versions under the same key (spec §3 "Tombstone").
// Its reserved type-chain leaf name is "DeletedRecord" (spec §6).
type Tombstone struct{}

// TombstoneTypeName is the reserved _t leaf used for tombstones on the wire.
const TombstoneTypeName = "DeletedRecord"

// IsTombstone reports whether payload is the Tombstone marker.
func IsTombstone(payload any) bool {
	_, ok := payload.(Tombstone)
	return ok
}

// IndexDirection is the per-element sort direction of a declared index.
type IndexDirection int

const (
	Ascending IndexDirection = iota
	Descending
)

// IndexElement is one field of a declared index, with its direction.
type IndexElement struct {
	Field     string
	Direction IndexDirection
}

// IndexDecl is a named, ordered index declaration (spec §4.3.8). Multiple
// declarations may coexist on one record type.
type IndexDecl struct {
	Name     string
	Elements []IndexElement
}

// SystemIndex is the required system index of spec §4.3.8: (Key asc,
// DataSet desc, Id desc). It is what makes point lookup (§4.3.4) and query
// (§4.3.5) efficient, and every backend collection must carry it.
var SystemIndex = IndexDecl{
	Name: "_system_key_dataset_id",
	Elements: []IndexElement{
		{Field: "_key", Direction: Ascending},
		{Field: "_dataset", Direction: Descending},
		{Field: "_id", Direction: Descending},
	},
}

// Reflector is the external key/record reflection collaborator of spec §6:
// given a payload value, it exposes the ordered key-field schema, the
// derived-to-root type chain, the root data type (collection selector), and
// any declared indexes. The core DataSource consumes a Reflector; it never
// inspects payload structure itself.
type Reflector interface {
	// KeySchema returns the ordered key-field list for payload's type.
	KeySchema(payload any) (dckey.Schema, error)

	// KeyTokens returns the key tokens extracted from payload's key fields,
	// in schema order.
	KeyTokens(payload any) ([]dckey.Token, error)

	// TypeChain returns the ordered type names from payload's concrete
	// (derived) type up to its root type, inclusive of both ends.
	TypeChain(payload any) []string

	// RootType returns the name of the root data type of payload, the
	// type directly derived from the generic record base, used to select
	// the shared backend collection for payload's type and all its
	// subtypes.
	RootType(payload any) string

	// Indexes returns the index declarations attached to payload's type,
	// not including the required system index.
	Indexes(payload any) []IndexDecl
}

// RequestedTypeName returns the name a caller's sample value requests for
// masking purposes: its own (possibly polymorphic) type, not its root.
// Collection selection always uses the root (Reflector.RootType); the
// subtype-vs-sibling-subtype distinction only matters for TypeMismatch and
// query/load masking checks.
func RequestedTypeName(reflector Reflector, sample any) string {
	chain := reflector.TypeChain(sample)
	if len(chain) == 0 {
		return reflector.RootType(sample)
	}
	return chain[0]
}

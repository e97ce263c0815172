package recordid

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
)

// MarshalBSONValue implements bsoncodec.ValueMarshaler. RecordId's 12-byte
// layout (4-byte seconds, 8-byte ordered suffix) is structurally a BSON
// ObjectId, so it round-trips through the driver without a wrapper type.
func (id RecordId) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bsontype.ObjectID, id.Bytes(), nil
}

// UnmarshalBSONValue implements bsoncodec.ValueUnmarshaler.
func (id *RecordId) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t != bsontype.ObjectID {
		return fmt.Errorf("%w: recordid: expected BSON ObjectId, got %s", dcerr.ErrParse, t)
	}
	if len(data) != 12 {
		return fmt.Errorf("%w: recordid: bad ObjectId length %d", dcerr.ErrParse, len(data))
	}
	copy(id[:], data)
	return nil
}

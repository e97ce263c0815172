// Package recordid implements the 12-byte ordered identifier described in
// spec §4.1: a 32-bit Unix-seconds timestamp prefix followed by a 64-bit
// randomized-but-ordered suffix. RecordId doubles as a timestamp and as a
// version key; total order on the 12 bytes is what gives the rest of the
// store its "dataset precedence, then version precedence" ordering rule.
package recordid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
)

// RecordId is a 12-byte big-endian value: bytes 0-3 are Unix seconds, bytes
// 4-11 are a randomized, within-process-ordered suffix.
type RecordId [12]byte

// Empty is the all-zero RecordId: the sentinel for "the root dataset" and
// for "no cutoff configured".
var Empty RecordId

const (
	canonicalLen = 40 // 24-char ISO instant + 16 hex chars
	isoLen       = 24
	hexLen       = 16
)

// New builds a RecordId from its three logical fields. It does not validate
// that machineHash/pid/counter fit their bit widths; callers that need that
// (the generator) mask before calling.
func New(seconds uint32, machineHash uint32, pid uint16, counter uint32) RecordId {
	var id RecordId
	id[0] = byte(seconds >> 24)
	id[1] = byte(seconds >> 16)
	id[2] = byte(seconds >> 8)
	id[3] = byte(seconds)

	id[4] = byte(machineHash >> 16)
	id[5] = byte(machineHash >> 8)
	id[6] = byte(machineHash)

	id[7] = byte(pid >> 8)
	id[8] = byte(pid)

	id[9] = byte(counter >> 16)
	id[10] = byte(counter >> 8)
	id[11] = byte(counter)

	return id
}

// Bytes returns the 12-byte big-endian encoding.
func (id RecordId) Bytes() []byte {
	out := make([]byte, 12)
	copy(out, id[:])
	return out
}

// Seconds returns the raw Unix-seconds prefix.
func (id RecordId) Seconds() uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// CreationTime returns the UTC instant (second resolution) encoded in the id.
func (id RecordId) CreationTime() time.Time {
	return time.Unix(int64(id.Seconds()), 0).UTC()
}

// Compare returns -1, 0, or 1 following unsigned lexicographic order over
// the 12 bytes, which is exactly dataset/version precedence: larger bytes
// (later timestamp, or same timestamp with a "larger" suffix) wins.
func (id RecordId) Compare(other RecordId) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts strictly before other.
func (id RecordId) Less(other RecordId) bool { return id.Compare(other) < 0 }

// IsEmpty reports whether id is the all-zero sentinel.
func (id RecordId) IsEmpty() bool { return id == Empty }

// String renders the canonical 40-character form:
// yyyy-mm-ddThh:mm:ss.fffZ followed by 16 lowercase hex chars.
func (id RecordId) String() string {
	t := id.CreationTime()
	iso := t.Format("2006-01-02T15:04:05.000Z")
	suffix := hex.EncodeToString(id[4:])
	return iso + suffix
}

// Parse accepts the 40-char canonical form and rejects anything else.
func Parse(s string) (RecordId, error) {
	if len(s) != canonicalLen {
		return Empty, fmt.Errorf("%w: recordid %q: want %d chars, got %d", dcerr.ErrParse, s, canonicalLen, len(s))
	}
	isoPart := s[:isoLen]
	hexPart := s[isoLen:]

	t, err := time.Parse("2006-01-02T15:04:05.000Z", isoPart)
	if err != nil {
		return Empty, fmt.Errorf("%w: recordid %q: bad timestamp: %v", dcerr.ErrParse, s, err)
	}

	suffix, err := hex.DecodeString(hexPart)
	if err != nil || len(suffix) != 8 {
		return Empty, fmt.Errorf("%w: recordid %q: bad suffix", dcerr.ErrParse, s)
	}

	var id RecordId
	sec := uint32(t.Unix())
	id[0] = byte(sec >> 24)
	id[1] = byte(sec >> 16)
	id[2] = byte(sec >> 8)
	id[3] = byte(sec)
	copy(id[4:], suffix)
	return id, nil
}

// TryParse is the non-erroring counterpart of Parse.
func TryParse(s string) (RecordId, bool) {
	id, err := Parse(s)
	if err != nil {
		return Empty, false
	}
	return id, true
}

// FromBytes reinterprets a 12-byte big-endian slice as a RecordId.
func FromBytes(b []byte) (RecordId, error) {
	if len(b) != 12 {
		return Empty, fmt.Errorf("%w: recordid bytes: want 12, got %d", dcerr.ErrParse, len(b))
	}
	var id RecordId
	copy(id[:], b)
	return id, nil
}

// AtOrAfterSecond returns the least RecordId whose timestamp equals t,
// i.e. the same timestamp prefix with an all-zero suffix. This is how
// DataSource derives a cutoff from a SavedByTime configuration (spec §4.3.1),
// making the cutoff exclusive of any write that lands in the same second.
func AtOrAfterSecond(t time.Time) RecordId {
	return New(uint32(t.UTC().Unix()), 0, 0, 0)
}

// incrementSuffix returns id with its low-order bytes incremented by one,
// carrying across the 8 suffix bytes. The timestamp prefix is never touched:
// a suffix of all 0xff bytes wraps to all zeros. Used by OrderedIdGenerator
// to repair a non-increasing id.
func (id RecordId) incrementSuffix() RecordId {
	out := id
	for i := 11; i >= 4; i-- {
		out[i]++
		if out[i] != 0 {
			break
		}
	}
	return out
}

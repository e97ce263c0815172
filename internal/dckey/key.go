// Package dckey implements the Key model of spec §3: an ordered tuple of
// primitive tokens, canonically serialized to a semicolon-delimited string.
// Dates/times inside a key use compact non-delimited integer forms so that
// a key string never contains punctuation beyond the ';' separator.
package dckey

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/datacentricorg/datacentric-sub000/internal/dcerr"
)

// Kind identifies the primitive shape of one key token.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindLocalDate
	KindLocalTime
	KindLocalMinute
	KindLocalDateTime
	KindEnum
	KindNested
)

// Field describes one position in a key's schema. Nested carries the
// sub-schema of a nested key token.
type Field struct {
	Kind   Kind
	Nested Schema
}

// Schema is the ordered key-field list of a record type, as supplied by the
// (external, out-of-scope) key/record reflection collaborator.
type Schema []Field

// LocalDate is a plain calendar date, serialized as yyyymmdd.
type LocalDate struct{ Year, Month, Day int }

// LocalTime is a time-of-day with millisecond resolution, serialized as
// hhmmssfff.
type LocalTime struct{ Hour, Minute, Second, Milli int }

// LocalMinute is a time-of-day truncated to the minute, serialized as hhmm.
type LocalMinute struct{ Hour, Minute int }

// LocalDateTime combines LocalDate and LocalTime, serialized as
// yyyymmddhhmmssfff.
type LocalDateTime struct {
	Year, Month, Day            int
	Hour, Minute, Second, Milli int
}

// Token is one value in a Key, tagged by Kind. Only the field matching Kind
// is meaningful.
type Token struct {
	Kind     Kind
	Str      string
	Bool     bool
	Int32    int32
	Int64    int64
	Date     LocalDate
	Time     LocalTime
	Minute   LocalMinute
	DateTime LocalDateTime
	Enum     string
	Nested   *Key
}

// Key is an ordered tuple of primitive tokens (spec §3). The zero value is
// the singleton (zero-token) key, which serializes to the empty string.
type Key struct {
	Tokens []Token
}

func StringToken(s string) Token          { return Token{Kind: KindString, Str: s} }
func BoolToken(b bool) Token              { return Token{Kind: KindBool, Bool: b} }
func Int32Token(v int32) Token            { return Token{Kind: KindInt32, Int32: v} }
func Int64Token(v int64) Token            { return Token{Kind: KindInt64, Int64: v} }
func DateToken(v LocalDate) Token         { return Token{Kind: KindLocalDate, Date: v} }
func TimeToken(v LocalTime) Token         { return Token{Kind: KindLocalTime, Time: v} }
func MinuteToken(v LocalMinute) Token     { return Token{Kind: KindLocalMinute, Minute: v} }
func DateTimeToken(v LocalDateTime) Token { return Token{Kind: KindLocalDateTime, DateTime: v} }
func EnumToken(member string) Token       { return Token{Kind: KindEnum, Enum: member} }
func NestedToken(k Key) Token             { return Token{Kind: KindNested, Nested: &k} }

// New validates tokens and constructs a Key. It enforces the KeyViolation
// invariants of spec §7: no empty string tokens, no ';' inside a string
// token, and no nil nested key.
func New(tokens ...Token) (Key, error) {
	if len(tokens) == 0 {
		return Key{}, nil
	}
	k := Key{Tokens: tokens}
	if err := validate(tokens); err != nil {
		return Key{}, err
	}
	return k, nil
}

func validate(tokens []Token) error {
	for i, tok := range tokens {
		switch tok.Kind {
		case KindString:
			if tok.Str == "" {
				return fmt.Errorf("%w: token %d: empty string token", dcerr.ErrKeyViolation, i)
			}
			if strings.Contains(tok.Str, ";") {
				return fmt.Errorf("%w: token %d: string token %q contains ';'", dcerr.ErrKeyViolation, i, tok.Str)
			}
		case KindEnum:
			if tok.Enum == "" {
				return fmt.Errorf("%w: token %d: empty enum token", dcerr.ErrKeyViolation, i)
			}
		case KindNested:
			if tok.Nested == nil {
				return fmt.Errorf("%w: token %d: nil nested key", dcerr.ErrKeyViolation, i)
			}
			if err := validate(tok.Nested.Tokens); err != nil {
				return err
			}
		case KindBool, KindInt32, KindInt64, KindLocalDate, KindLocalTime, KindLocalMinute, KindLocalDateTime:
			// No additional constraints.
		default:
			return fmt.Errorf("%w: token %d: unknown token kind %d", dcerr.ErrKeyViolation, i, tok.Kind)
		}
	}
	return nil
}

// Serialize returns the canonical semicolon-delimited string form. A
// singleton key (zero tokens) serializes to the empty string. Nested keys
// contribute their own tokens inline, so serialization is a flat join of
// every leaf token's compact encoding.
func (k Key) Serialize() string {
	parts := make([]string, 0, len(k.Tokens))
	appendEncoded(&parts, k.Tokens)
	return strings.Join(parts, ";")
}

func appendEncoded(parts *[]string, tokens []Token) {
	for _, tok := range tokens {
		switch tok.Kind {
		case KindString:
			*parts = append(*parts, tok.Str)
		case KindBool:
			*parts = append(*parts, strconv.FormatBool(tok.Bool))
		case KindInt32:
			*parts = append(*parts, strconv.FormatInt(int64(tok.Int32), 10))
		case KindInt64:
			*parts = append(*parts, strconv.FormatInt(tok.Int64, 10))
		case KindLocalDate:
			*parts = append(*parts, fmt.Sprintf("%04d%02d%02d", tok.Date.Year, tok.Date.Month, tok.Date.Day))
		case KindLocalTime:
			*parts = append(*parts, fmt.Sprintf("%02d%02d%02d%03d", tok.Time.Hour, tok.Time.Minute, tok.Time.Second, tok.Time.Milli))
		case KindLocalMinute:
			*parts = append(*parts, fmt.Sprintf("%02d%02d", tok.Minute.Hour, tok.Minute.Minute))
		case KindLocalDateTime:
			dt := tok.DateTime
			*parts = append(*parts, fmt.Sprintf("%04d%02d%02d%02d%02d%02d%03d", dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second, dt.Milli))
		case KindEnum:
			*parts = append(*parts, tok.Enum)
		case KindNested:
			appendEncoded(parts, tok.Nested.Tokens)
		}
	}
}

// String implements fmt.Stringer via Serialize, so Keys print canonically.
func (k Key) String() string { return k.Serialize() }

// leafCount returns how many flat string parts a schema consumes, counting
// through nested sub-schemas.
func (s Schema) leafCount() int {
	n := 0
	for _, f := range s {
		if f.Kind == KindNested {
			n += f.Nested.leafCount()
		} else {
			n++
		}
	}
	return n
}

// Parse reconstructs a Key from its canonical string given the schema that
// describes the record type's key fields. The schema is what the (external)
// reflection collaborator would supply for a given record type; Parse
// itself has no way to infer token kinds from the string alone, since the
// compact integer date forms are ambiguous with plain integers.
func Parse(schema Schema, s string) (Key, error) {
	var parts []string
	if s != "" {
		parts = strings.Split(s, ";")
	}
	if want := schema.leafCount(); want != len(parts) {
		return Key{}, fmt.Errorf("%w: key %q: schema expects %d tokens, got %d", dcerr.ErrKeyViolation, s, want, len(parts))
	}

	idx := 0
	tokens, err := parseSchema(schema, parts, &idx)
	if err != nil {
		return Key{}, err
	}
	return New(tokens...)
}

func parseSchema(schema Schema, parts []string, idx *int) ([]Token, error) {
	out := make([]Token, 0, len(schema))
	for _, f := range schema {
		if f.Kind == KindNested {
			nestedTokens, err := parseSchema(f.Nested, parts, idx)
			if err != nil {
				return nil, err
			}
			nk := Key{Tokens: nestedTokens}
			out = append(out, Token{Kind: KindNested, Nested: &nk})
			continue
		}

		part := parts[*idx]
		*idx++

		tok, err := parseLeaf(f.Kind, part)
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
	}
	return out, nil
}

func parseLeaf(kind Kind, part string) (Token, error) {
	switch kind {
	case KindString:
		if part == "" {
			return Token{}, fmt.Errorf("%w: empty string token", dcerr.ErrKeyViolation)
		}
		return StringToken(part), nil
	case KindBool:
		b, err := strconv.ParseBool(part)
		if err != nil {
			return Token{}, fmt.Errorf("%w: bad bool token %q: %v", dcerr.ErrParse, part, err)
		}
		return BoolToken(b), nil
	case KindInt32:
		v, err := strconv.ParseInt(part, 10, 32)
		if err != nil {
			return Token{}, fmt.Errorf("%w: bad int32 token %q: %v", dcerr.ErrParse, part, err)
		}
		return Int32Token(int32(v)), nil
	case KindInt64:
		v, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return Token{}, fmt.Errorf("%w: bad int64 token %q: %v", dcerr.ErrParse, part, err)
		}
		return Int64Token(v), nil
	case KindLocalDate:
		if len(part) != 8 {
			return Token{}, fmt.Errorf("%w: bad date token %q", dcerr.ErrParse, part)
		}
		y, m, d := atoi(part[0:4]), atoi(part[4:6]), atoi(part[6:8])
		return DateToken(LocalDate{Year: y, Month: m, Day: d}), nil
	case KindLocalTime:
		if len(part) != 9 {
			return Token{}, fmt.Errorf("%w: bad time token %q", dcerr.ErrParse, part)
		}
		h, mi, se, ms := atoi(part[0:2]), atoi(part[2:4]), atoi(part[4:6]), atoi(part[6:9])
		return TimeToken(LocalTime{Hour: h, Minute: mi, Second: se, Milli: ms}), nil
	case KindLocalMinute:
		if len(part) != 4 {
			return Token{}, fmt.Errorf("%w: bad minute token %q", dcerr.ErrParse, part)
		}
		h, mi := atoi(part[0:2]), atoi(part[2:4])
		return MinuteToken(LocalMinute{Hour: h, Minute: mi}), nil
	case KindLocalDateTime:
		if len(part) != 17 {
			return Token{}, fmt.Errorf("%w: bad datetime token %q", dcerr.ErrParse, part)
		}
		y, mo, d := atoi(part[0:4]), atoi(part[4:6]), atoi(part[6:8])
		h, mi, se, ms := atoi(part[8:10]), atoi(part[10:12]), atoi(part[12:14]), atoi(part[14:17])
		return DateTimeToken(LocalDateTime{Year: y, Month: mo, Day: d, Hour: h, Minute: mi, Second: se, Milli: ms}), nil
	case KindEnum:
		if part == "" {
			return Token{}, fmt.Errorf("%w: empty enum token", dcerr.ErrKeyViolation)
		}
		return EnumToken(part), nil
	default:
		return Token{}, fmt.Errorf("%w: unknown token kind %d", dcerr.ErrKeyViolation, kind)
	}
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

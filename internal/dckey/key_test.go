package dckey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSingletonKeySerializesEmpty(t *testing.T) {
	k, err := New()
	require.NoError(t, err)
	assert.Equal(t, "", k.Serialize())

	got, err := Parse(nil, "")
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestSimpleRoundTrip(t *testing.T) {
	k, err := New(StringToken("A"), Int32Token(42))
	require.NoError(t, err)
	assert.Equal(t, "A;42", k.Serialize())

	schema := Schema{{Kind: KindString}, {Kind: KindInt32}}
	got, err := Parse(schema, k.Serialize())
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestNestedKeyInlinesTokens(t *testing.T) {
	inner, err := New(StringToken("inner"), BoolToken(true))
	require.NoError(t, err)
	outer, err := New(StringToken("outer"), NestedToken(inner))
	require.NoError(t, err)

	assert.Equal(t, "outer;inner;true", outer.Serialize())

	schema := Schema{
		{Kind: KindString},
		{Kind: KindNested, Nested: Schema{{Kind: KindString}, {Kind: KindBool}}},
	}
	got, err := Parse(schema, outer.Serialize())
	require.NoError(t, err)
	assert.Equal(t, outer, got)
}

func TestDateTimeCompactForms(t *testing.T) {
	k, err := New(
		DateToken(LocalDate{2024, 3, 7}),
		TimeToken(LocalTime{13, 5, 9, 42}),
		MinuteToken(LocalMinute{13, 5}),
		DateTimeToken(LocalDateTime{2024, 3, 7, 13, 5, 9, 42}),
	)
	require.NoError(t, err)
	assert.Equal(t, "20240307;130509042;1305;20240307130509042", k.Serialize())

	schema := Schema{
		{Kind: KindLocalDate}, {Kind: KindLocalTime}, {Kind: KindLocalMinute}, {Kind: KindLocalDateTime},
	}
	got, err := Parse(schema, k.Serialize())
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestEmptyStringTokenRejected(t *testing.T) {
	_, err := New(StringToken(""))
	require.Error(t, err)
}

func TestSemicolonInStringTokenRejected(t *testing.T) {
	_, err := New(StringToken("a;b"))
	require.Error(t, err)
}

func TestParseArityMismatch(t *testing.T) {
	schema := Schema{{Kind: KindString}, {Kind: KindInt32}}
	_, err := Parse(schema, "onlyone")
	require.Error(t, err)
}

// Property: parse(serialize(k)) == k for all keys of permitted shape
// (spec §8 property 2).
func TestPropertyKeyRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 5).Draw(rt, "n")
		schema := make(Schema, 0, n)
		tokens := make([]Token, 0, n)

		for i := 0; i < n; i++ {
			switch rapid.IntRange(0, 6).Draw(rt, "kind") {
			case 0:
				s := rapid.StringMatching(`[a-zA-Z0-9]+`).Draw(rt, "str")
				schema = append(schema, Field{Kind: KindString})
				tokens = append(tokens, StringToken(s))
			case 1:
				b := rapid.Bool().Draw(rt, "bool")
				schema = append(schema, Field{Kind: KindBool})
				tokens = append(tokens, BoolToken(b))
			case 2:
				v := rapid.Int32().Draw(rt, "int32")
				schema = append(schema, Field{Kind: KindInt32})
				tokens = append(tokens, Int32Token(v))
			case 3:
				v := rapid.Int64().Draw(rt, "int64")
				schema = append(schema, Field{Kind: KindInt64})
				tokens = append(tokens, Int64Token(v))
			case 4:
				d := LocalDate{
					Year:  rapid.IntRange(0, 9999).Draw(rt, "y"),
					Month: rapid.IntRange(1, 12).Draw(rt, "m"),
					Day:   rapid.IntRange(1, 28).Draw(rt, "d"),
				}
				schema = append(schema, Field{Kind: KindLocalDate})
				tokens = append(tokens, DateToken(d))
			case 5:
				mi := LocalMinute{
					Hour:   rapid.IntRange(0, 23).Draw(rt, "h"),
					Minute: rapid.IntRange(0, 59).Draw(rt, "min"),
				}
				schema = append(schema, Field{Kind: KindLocalMinute})
				tokens = append(tokens, MinuteToken(mi))
			case 6:
				e := rapid.StringMatching(`[A-Z][a-zA-Z]*`).Draw(rt, "enum")
				schema = append(schema, Field{Kind: KindEnum})
				tokens = append(tokens, EnumToken(e))
			}
		}

		k, err := New(tokens...)
		if err != nil {
			rt.Fatalf("New failed: %v", err)
		}
		got, err := Parse(schema, k.Serialize())
		if err != nil {
			rt.Fatalf("Parse failed: %v", err)
		}
		if got.Serialize() != k.Serialize() {
			rt.Fatalf("round trip mismatch: %q != %q", got.Serialize(), k.Serialize())
		}
	})
}

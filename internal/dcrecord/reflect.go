package dcrecord

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/datacentricorg/datacentric-sub000/internal/dckey"
)

// RootTyped is implemented by a payload type that declares a root data type
// different from its own type name (i.e. it is a polymorphic subtype).
// Types that don't implement this are their own root.
type RootTyped interface {
	DataCentricRootType() string
}

// Based is implemented by a payload type that declares its own
// derived-to-root type chain explicitly. Types that don't implement this
// get a single-element chain containing just their own type name, unless
// RootTyped names a different root, in which case the root is appended.
type Based interface {
	DataCentricTypeChain() []string
}

// Indexed is implemented by a payload type that declares indexes beyond the
// required system index.
type Indexed interface {
	DataCentricIndexes() []IndexDecl
}

// StructReflector is the default Reflector (spec §6): it derives a payload
// type's key schema from `dckey:"N"` struct tags (lowest N first), and its
// type chain / root type from the optional Based/RootTyped interfaces above.
// It is the concrete reference implementation of the reflection contract
// that spec §1 declares out of scope for the core; DataSource depends only
// on the Reflector interface, so callers may supply their own.
type StructReflector struct {
	mu    sync.RWMutex
	cache map[reflect.Type]structSchema
}

type structSchema struct {
	fields []schemaField
}

type schemaField struct {
	index []int
	kind  dckey.Kind
	tag   int
}

// NewStructReflector constructs a ready-to-use StructReflector.
func NewStructReflector() *StructReflector {
	return &StructReflector{cache: make(map[reflect.Type]structSchema)}
}

func payloadType(payload any) reflect.Type {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func payloadValue(payload any) reflect.Value {
	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v
}

func (r *StructReflector) schemaFor(t reflect.Type) structSchema {
	r.mu.RLock()
	s, ok := r.cache[t]
	r.mu.RUnlock()
	if ok {
		return s
	}

	var fields []schemaField
	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			tagVal, present := f.Tag.Lookup("dckey")
			if !present {
				continue
			}
			pos, err := strconv.Atoi(strings.Split(tagVal, ",")[0])
			if err != nil {
				continue
			}
			kind := kindForField(f.Type)
			fields = append(fields, schemaField{index: f.Index, kind: kind, tag: pos})
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i].tag < fields[j].tag })
	}

	s = structSchema{fields: fields}
	r.mu.Lock()
	r.cache[t] = s
	r.mu.Unlock()
	return s
}

func kindForField(t reflect.Type) dckey.Kind {
	switch t {
	case reflect.TypeOf(dckey.LocalDate{}):
		return dckey.KindLocalDate
	case reflect.TypeOf(dckey.LocalTime{}):
		return dckey.KindLocalTime
	case reflect.TypeOf(dckey.LocalMinute{}):
		return dckey.KindLocalMinute
	case reflect.TypeOf(dckey.LocalDateTime{}):
		return dckey.KindLocalDateTime
	}
	switch t.Kind() {
	case reflect.String:
		return dckey.KindString
	case reflect.Bool:
		return dckey.KindBool
	case reflect.Int32:
		return dckey.KindInt32
	case reflect.Int64, reflect.Int:
		return dckey.KindInt64
	default:
		return dckey.KindString
	}
}

// KeySchema implements Reflector.
func (r *StructReflector) KeySchema(payload any) (dckey.Schema, error) {
	t := payloadType(payload)
	s := r.schemaFor(t)
	schema := make(dckey.Schema, 0, len(s.fields))
	for _, f := range s.fields {
		schema = append(schema, dckey.Field{Kind: f.kind})
	}
	return schema, nil
}

// KeyTokens implements Reflector.
func (r *StructReflector) KeyTokens(payload any) ([]dckey.Token, error) {
	t := payloadType(payload)
	v := payloadValue(payload)
	s := r.schemaFor(t)

	tokens := make([]dckey.Token, 0, len(s.fields))
	for _, f := range s.fields {
		fv := v.FieldByIndex(f.index)
		tok, err := tokenFor(f.kind, fv)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

func tokenFor(kind dckey.Kind, v reflect.Value) (dckey.Token, error) {
	switch kind {
	case dckey.KindString:
		return dckey.StringToken(v.String()), nil
	case dckey.KindBool:
		return dckey.BoolToken(v.Bool()), nil
	case dckey.KindInt32:
		return dckey.Int32Token(int32(v.Int())), nil
	case dckey.KindInt64:
		return dckey.Int64Token(v.Int()), nil
	case dckey.KindLocalDate:
		return dckey.DateToken(v.Interface().(dckey.LocalDate)), nil
	case dckey.KindLocalTime:
		return dckey.TimeToken(v.Interface().(dckey.LocalTime)), nil
	case dckey.KindLocalMinute:
		return dckey.MinuteToken(v.Interface().(dckey.LocalMinute)), nil
	case dckey.KindLocalDateTime:
		return dckey.DateTimeToken(v.Interface().(dckey.LocalDateTime)), nil
	default:
		return dckey.Token{}, fmt.Errorf("dcrecord: unsupported key field kind %d", kind)
	}
}

// RootType implements Reflector.
func (r *StructReflector) RootType(payload any) string {
	if rt, ok := payload.(RootTyped); ok {
		return rt.DataCentricRootType()
	}
	return payloadType(payload).Name()
}

// TypeChain implements Reflector.
func (r *StructReflector) TypeChain(payload any) []string {
	if b, ok := payload.(Based); ok {
		chain := b.DataCentricTypeChain()
		out := make([]string, len(chain))
		copy(out, chain)
		return out
	}
	self := payloadType(payload).Name()
	root := r.RootType(payload)
	if root == self {
		return []string{self}
	}
	return []string{self, root}
}

// Indexes implements Reflector.
func (r *StructReflector) Indexes(payload any) []IndexDecl {
	if ix, ok := payload.(Indexed); ok {
		return ix.DataCentricIndexes()
	}
	return nil
}

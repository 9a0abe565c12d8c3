// Package record provides Record, an insertion-ordered field map that is the
// unit of data for upserts, audit diffs and masking, together with
// ExclusionSet, the field policy shared by those pipelines.
package record

import (
	"fmt"
	"sort"
	"time"
)

// Record is an ordered mapping from field name to value. Values are scalars,
// time.Time, nested *Record, map[string]any, []any or nil.
//
// The zero value is an empty record ready to use. A nil *Record stands for a
// missing snapshot and is accepted by every read-only method.
type Record struct {
	keys   []string
	values map[string]any
}

// New returns an empty Record.
func New() *Record {
	return &Record{values: make(map[string]any)}
}

// FromPairs builds a Record from alternating key/value arguments:
//
//	record.FromPairs("id", 1, "name", "foo")
//
// It panics if a key is not a string or a value is missing, the same way a
// malformed composite literal would fail to compile.
func FromPairs(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("record: FromPairs requires an even number of arguments")
	}
	r := New()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("record: key at position %d is %T, not string", i, kv[i]))
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// FromMap converts a plain map into a Record. Go maps carry no order, so keys
// are sorted; nested maps become nested records.
func FromMap(m map[string]any) *Record {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	r := New()
	for _, k := range keys {
		v := m[k]
		if nested, ok := v.(map[string]any); ok {
			v = FromMap(nested)
		}
		r.Set(k, v)
	}
	return r
}

// Set stores v under key. A new key is appended at the end of the order; an
// existing key keeps its position.
func (r *Record) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present, even with a nil value.
func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining fields.
func (r *Record) Delete(key string) {
	if r == nil {
		return
	}
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the field names in order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Range calls fn for every field in order until fn returns false.
func (r *Record) Range(fn func(key string, v any) bool) {
	if r == nil {
		return
	}
	for _, k := range r.keys {
		if !fn(k, r.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy. Nested records, maps and slices are copied;
// scalars are shared.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		keys:   make([]string, len(r.keys)),
		values: make(map[string]any, len(r.values)),
	}
	copy(out.keys, r.keys)
	for k, v := range r.values {
		out.values[k] = cloneValue(v)
	}
	return out
}

// ToMap converts the record into a plain map, recursively.
func (r *Record) ToMap() map[string]any {
	if r == nil {
		return nil
	}
	out := make(map[string]any, len(r.keys))
	for _, k := range r.keys {
		v := r.values[k]
		if nested, ok := v.(*Record); ok {
			out[k] = nested.ToMap()
			continue
		}
		out[k] = v
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Record:
		return t.Clone()
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []byte:
		b := make([]byte, len(t))
		copy(b, t)
		return b
	case time.Time:
		return t
	default:
		return v
	}
}

// Package audit computes field-level changes between two snapshots of an
// entity, redacts snapshots for safe storage and writes audit log entries.
package audit

import (
	"bytes"
	"math"
	"reflect"
	"time"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// ChangeKind classifies a FieldChange.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeDeleted ChangeKind = "deleted"
	ChangeEdited  ChangeKind = "edited"
	// ChangeArray marks a collection that differs; it is reported once at
	// the collection path instead of per element.
	ChangeArray ChangeKind = "array"
)

// FieldChange is one difference. Path is dot-separated for nested members.
type FieldChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
	Old  any        `json:"old"`
	New  any        `json:"new"`
}

// Diff compares two snapshots structurally. It returns nil when either side
// is nil or when nothing differs after exclusions.
//
// Nested objects are walked and reported with dotted paths. Fields whose name
// starts with an underscore are skipped at every depth. An excluded path also
// hides everything nested below it.
func Diff(old, new *record.Record, exclusions record.ExclusionSet) []FieldChange {
	if old == nil || new == nil {
		return nil
	}
	var out []FieldChange
	diffRecords("", old, new, exclusions, &out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// ShallowDiff compares top-level scalar and date fields only. Any field that
// holds a non-date object on either side is ignored.
func ShallowDiff(old, new *record.Record, exclusions record.ExclusionSet) []FieldChange {
	if old == nil || new == nil {
		return nil
	}
	var out []FieldChange
	visit := func(k string) {
		if record.IsInternal(k) || exclusions.Contains(k) {
			return
		}
		ov, inOld := old.Get(k)
		nv, inNew := new.Get(k)
		if isObject(ov) || isObject(nv) {
			return
		}
		switch {
		case !inOld:
			out = append(out, FieldChange{Path: k, Kind: ChangeAdded, New: nv})
		case !inNew:
			out = append(out, FieldChange{Path: k, Kind: ChangeDeleted, Old: ov})
		case !equalValues(ov, nv):
			out = append(out, FieldChange{Path: k, Kind: ChangeEdited, Old: ov, New: nv})
		}
	}
	for _, k := range old.Keys() {
		visit(k)
	}
	for _, k := range new.Keys() {
		if !old.Has(k) {
			visit(k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func diffRecords(prefix string, a, b *record.Record, ex record.ExclusionSet, out *[]FieldChange) {
	a.Range(func(k string, av any) bool {
		path := joinPath(prefix, k)
		if record.IsInternal(k) || ex.CoversPath(path) {
			return true
		}
		bv, ok := b.Get(k)
		if !ok {
			*out = append(*out, FieldChange{Path: path, Kind: ChangeDeleted, Old: av})
			return true
		}
		diffValues(path, av, bv, ex, out)
		return true
	})
	b.Range(func(k string, bv any) bool {
		path := joinPath(prefix, k)
		if a.Has(k) || record.IsInternal(k) || ex.CoversPath(path) {
			return true
		}
		*out = append(*out, FieldChange{Path: path, Kind: ChangeAdded, New: bv})
		return true
	})
}

func diffValues(path string, av, bv any, ex record.ExclusionSet, out *[]FieldChange) {
	ar, aObj := asRecord(av)
	br, bObj := asRecord(bv)
	if aObj && bObj {
		diffRecords(path, ar, br, ex, out)
		return
	}
	if equalValues(av, bv) {
		return
	}
	kind := ChangeEdited
	if isList(av) && isList(bv) {
		kind = ChangeArray
	}
	*out = append(*out, FieldChange{Path: path, Kind: kind, Old: av, New: bv})
}

// asRecord views nested objects as records.
func asRecord(v any) (*record.Record, bool) {
	switch t := v.(type) {
	case *record.Record:
		return t, t != nil
	case map[string]any:
		return record.FromMap(t), t != nil
	}
	return nil, false
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// isObject reports values that are neither scalars nor dates.
func isObject(v any) bool {
	switch v.(type) {
	case nil, time.Time, *time.Time, []byte:
		return false
	case *record.Record, map[string]any:
		return true
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	case reflect.Pointer:
		return reflect.TypeOf(v).Elem().Kind() == reflect.Struct
	}
	return false
}

// equalValues compares dates by instant, numbers by value across widths and
// everything else structurally.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if at, ok := asTime(a); ok {
		bt, ok := asTime(b)
		return ok && at.Equal(bt)
	}
	if ai, aInt, aNum := asNumber(a); aNum {
		bi, bInt, bNum := asNumber(b)
		if !bNum {
			return false
		}
		if aInt.ok && bInt.ok {
			return aInt.v == bInt.v
		}
		return ai == bi
	}

	switch at := a.(type) {
	case []byte:
		bt, ok := b.([]byte)
		return ok && bytes.Equal(at, bt)
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	}

	if ar, ok := asRecord(a); ok {
		br, ok := asRecord(b)
		if !ok || ar.Len() != br.Len() {
			return false
		}
		equal := true
		ar.Range(func(k string, av any) bool {
			bv, ok := br.Get(k)
			if !ok || !equalValues(av, bv) {
				equal = false
			}
			return equal
		})
		return equal
	}

	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !equalValues(as[i], bs[i]) {
				return false
			}
		}
		return true
	}

	return reflect.DeepEqual(a, b)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

type exactInt struct {
	v  int64
	ok bool
}

// asNumber returns v as float64 plus, when lossless, as int64.
func asNumber(v any) (float64, exactInt, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), exactInt{int64(n), true}, true
	case int8:
		return float64(n), exactInt{int64(n), true}, true
	case int16:
		return float64(n), exactInt{int64(n), true}, true
	case int32:
		return float64(n), exactInt{int64(n), true}, true
	case int64:
		return float64(n), exactInt{n, true}, true
	case uint:
		return float64(n), exactInt{int64(n), n <= math.MaxInt64}, true
	case uint8:
		return float64(n), exactInt{int64(n), true}, true
	case uint16:
		return float64(n), exactInt{int64(n), true}, true
	case uint32:
		return float64(n), exactInt{int64(n), true}, true
	case uint64:
		return float64(n), exactInt{int64(n), n <= math.MaxInt64}, true
	case float32:
		return float64(n), exactInt{}, true
	case float64:
		return n, exactInt{}, true
	}
	return 0, exactInt{}, false
}

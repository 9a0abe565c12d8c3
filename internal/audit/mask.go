package audit

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// MaskPlaceholder replaces the hidden part of a masked value.
const MaskPlaceholder = "***"

// MaskFunc replaces a sensitive value with a safe representation.
type MaskFunc func(v any) any

// MaskPolicy maps top-level field names to their mask.
type MaskPolicy map[string]MaskFunc

// DefaultMask keeps the first 20% (rounded down) and the last 20% (rounded
// up) of the value's characters and hides the rest. Values of four
// characters or fewer are fully hidden.
func DefaultMask(v any) any {
	r := []rune(stringify(v))
	n := len(r)
	if n <= 4 {
		return MaskPlaceholder
	}
	prefix := n * 20 / 100
	suffix := (n*20 + 99) / 100
	return string(r[:prefix]) + MaskPlaceholder + string(r[n-suffix:])
}

// FullMask hides the value entirely.
func FullMask(any) any { return MaskPlaceholder }

// HashMask returns a mask that replaces values with a keyed BLAKE2b-256
// digest, so equal inputs stay comparable across log entries without being
// recoverable. key may be empty and must not exceed 64 bytes.
func HashMask(key []byte) (MaskFunc, error) {
	if _, err := blake2b.New256(key); err != nil {
		return nil, fmt.Errorf("hash mask: %w", err)
	}
	return func(v any) any {
		h, _ := blake2b.New256(key)
		h.Write([]byte(stringify(v)))
		return "blake2b:" + hex.EncodeToString(h.Sum(nil))
	}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}

// Filter prepares a snapshot for storage.
type Filter struct {
	// Mask replaces values of the named fields.
	Mask MaskPolicy
	// Exclude drops the named fields.
	Exclude record.ExclusionSet
	// AllowNested keeps the named object-valued fields, which are otherwise
	// dropped.
	AllowNested record.ExclusionSet
}

// Apply returns a new record holding the top-level fields of values that
// survive the filter. Internal fields, excluded fields, function values and
// nested objects not listed in AllowNested are dropped; masked fields with a
// non-nil value are passed through their mask. The input is never modified.
// Apply returns nil when values is nil or nothing survives.
func (f Filter) Apply(values *record.Record) *record.Record {
	if values == nil {
		return nil
	}
	out := record.New()
	values.Range(func(k string, v any) bool {
		if record.IsInternal(k) || f.Exclude.Contains(k) || isFunc(v) {
			return true
		}
		if isObject(v) && !f.AllowNested.Contains(k) {
			return true
		}
		if m, ok := f.Mask[k]; ok && m != nil && v != nil {
			v = m(v)
		} else if r, ok := v.(*record.Record); ok {
			v = r.Clone()
		}
		out.Set(k, v)
		return true
	})
	if out.Len() == 0 {
		return nil
	}
	return out
}

// Redact is Filter{Mask: mask, Exclude: exclusions}.Apply(values).
func Redact(values *record.Record, mask MaskPolicy, exclusions record.ExclusionSet) *record.Record {
	return Filter{Mask: mask, Exclude: exclusions}.Apply(values)
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

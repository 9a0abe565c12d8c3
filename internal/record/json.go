package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MarshalJSON encodes the record as a JSON object with fields in order.
func (r *Record) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the field order of the input.
// Nested objects become *Record, arrays become []any, integral numbers
// become int64 and other numbers float64.
func (r *Record) UnmarshalJSON(data []byte) error {
	r.keys = nil
	r.values = make(map[string]any)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}
	return decodeObject(dec, r)
}

// ParseList decodes either a single JSON object or an array of objects.
// scalar reports whether the input was a single object, so callers can
// answer in the same shape.
func ParseList(data []byte) (recs []*Record, scalar bool, err error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, errors.New("record: empty input")
	}

	switch trimmed[0] {
	case '{':
		r := New()
		if err := r.UnmarshalJSON(trimmed); err != nil {
			return nil, false, err
		}
		return []*Record{r}, true, nil
	case '[':
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, false, err
		}
		for i, rec := range recs {
			if rec == nil {
				return nil, false, fmt.Errorf("record: null element at index %d", i)
			}
		}
		return recs, false, nil
	default:
		return nil, false, fmt.Errorf("record: expected JSON object or array, got %q", trimmed[0])
	}
}

func decodeObject(dec *json.Decoder, r *Record) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return err
		}
		r.Set(key, v)
	}
	// closing '}'
	_, err := dec.Token()
	return err
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			nested := New()
			if err := decodeObject(dec, nested); err != nil {
				return nil, err
			}
			return nested, nil
		case '[':
			arr := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("record: unexpected delimiter %v", t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		// string, bool or nil
		return t, nil
	}
}

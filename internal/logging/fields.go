package logging

import (
	"fmt"
	"log/slog"
)

const badKey = "!BADKEY"

// fieldMap turns slog-style loose key/value args into a map for backends
// that want one. A dangling value is stored under "!BADKEY", the same way
// slog reports it. Errors are stored as their message so every backend
// renders them the same.
func fieldMap(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	m := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); {
		switch k := args[i].(type) {
		case slog.Attr:
			m[k.Key] = k.Value.Any()
			i++
			continue
		case string:
			if i+1 >= len(args) {
				m[badKey] = k
				i++
				continue
			}
			m[k] = normalize(args[i+1])
			i += 2
		default:
			m[badKey] = fmt.Sprint(k)
			i++
		}
	}
	return m
}

func normalize(v any) any {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

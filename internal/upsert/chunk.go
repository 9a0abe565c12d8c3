package upsert

import "github.com/dmitrijs2005/pgkit/internal/common"

// DefaultChunkSize bounds the number of rows per statement.
const DefaultChunkSize = 1000

// Chunk splits items into consecutive groups of size; only the last group may
// be shorter. Concatenating the groups yields items again. The groups share
// the backing array of items.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, common.ErrInvalidChunkSize
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out, nil
}

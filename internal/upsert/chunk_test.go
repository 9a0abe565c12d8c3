package upsert

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pgkit/internal/common"
)

func TestChunk_ConcatenationAndSizes(t *testing.T) {
	for n := 0; n <= 12; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}
		for size := 1; size <= 5; size++ {
			chunks, err := Chunk(items, size)
			require.NoError(t, err)

			var joined []int
			for i, c := range chunks {
				if i < len(chunks)-1 {
					assert.Len(t, c, size)
				} else {
					assert.LessOrEqual(t, len(c), size)
					assert.NotEmpty(t, c)
				}
				joined = append(joined, c...)
			}
			if n == 0 {
				assert.Empty(t, chunks)
				continue
			}
			assert.Equal(t, items, joined, "n=%d size=%d", n, size)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}
	a, _ := Chunk(items, 2)
	b, _ := Chunk(items, 2)
	assert.Equal(t, a, b)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, a)
}

func TestChunk_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := Chunk([]int{1}, size)
		assert.True(t, errors.Is(err, common.ErrInvalidChunkSize))
	}
}

func TestChunk_AppendDoesNotClobberNeighbour(t *testing.T) {
	chunks, _ := Chunk([]int{1, 2, 3, 4}, 2)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{3, 4}, chunks[1])
}

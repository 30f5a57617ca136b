package dataloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int64
	Owner int64
	Name  string
}

func TestUniqueKeys(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []int64{3, 1, 2}, UniqueKeys([]int64{3, 1, 3, 2, 1}))
	assert.Empty(t, UniqueKeys[int64](nil))
}

func TestChunk(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		keys []int
		size int
		want [][]int
	}{
		{"empty", nil, 2, nil},
		{"fits", []int{1, 2}, 5, [][]int{{1, 2}}},
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, [][]int{{1, 2}, {3, 4}, {5}}},
		{"no_limit", []int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Chunk(tt.keys, tt.size))
		})
	}

	chunks := Chunk([]int{1, 2, 3}, 2)
	chunks[0] = append(chunks[0], 9)
	assert.Equal(t, []int{3}, chunks[1], "appending to a chunk must not overwrite the next one")
}

func TestOrderByKeys(t *testing.T) {
	t.Parallel()
	keyFn := func(r row) int64 { return r.ID }

	t.Run("all keys found", func(t *testing.T) {
		t.Parallel()
		result, errs := OrderByKeys([]int64{1, 2, 3}, []row{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}, {ID: 2, Name: "b"}}, keyFn)
		require.Len(t, result, 3)
		assert.Equal(t, "a", result[0].Name)
		assert.Equal(t, "b", result[1].Name)
		assert.Equal(t, "c", result[2].Name)
		for _, err := range errs {
			assert.NoError(t, err)
		}
	})

	t.Run("some keys missing", func(t *testing.T) {
		t.Parallel()
		result, errs := OrderByKeys([]int64{1, 2}, []row{{ID: 1, Name: "a"}}, keyFn)
		assert.Equal(t, "a", result[0].Name)
		assert.NoError(t, errs[0])
		assert.Zero(t, result[1])
		assert.ErrorIs(t, errs[1], ErrNotFound)
	})

	t.Run("first duplicate wins", func(t *testing.T) {
		t.Parallel()
		result, _ := OrderByKeys([]int64{1}, []row{{ID: 1, Name: "first"}, {ID: 1, Name: "second"}}, keyFn)
		assert.Equal(t, "first", result[0].Name)
	})
}

func TestGroupByKey(t *testing.T) {
	t.Parallel()
	rows := []row{{ID: 1, Owner: 10}, {ID: 2, Owner: 20}, {ID: 3, Owner: 10}}
	grouped := GroupByKey(rows, func(r row) int64 { return r.Owner })
	require.Len(t, grouped, 2)
	assert.Len(t, grouped[10], 2)
	assert.Len(t, grouped[20], 1)

	ordered := OrderGroupsByKeys([]int64{20, 30, 10}, grouped)
	require.Len(t, ordered, 3)
	assert.Equal(t, int64(2), ordered[0][0].ID)
	assert.NotNil(t, ordered[1])
	assert.Empty(t, ordered[1])
	assert.Equal(t, []int64{1, 3}, []int64{ordered[2][0].ID, ordered[2][1].ID})
}

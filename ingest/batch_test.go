package ingest

import (
	"errors"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordSeq(n int, failAt int, failErr error) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for i := 0; i < n; i++ {
			if i == failAt {
				yield(Record{}, failErr)
				return
			}
			if !yield(Record{Columns: []string{"n"}, Values: []string{string(rune('a' + i%26))}}, nil) {
				return
			}
		}
	}
}

func collect(t *testing.T, seq iter.Seq2[Batch, error]) ([]Batch, error) {
	t.Helper()
	var batches []Batch
	for b, err := range seq {
		if err != nil {
			return batches, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func TestBatches_Sizes(t *testing.T) {
	tests := []struct {
		rows, size int
		want       []int
	}{
		{0, 100, nil},
		{1, 100, []int{1}},
		{100, 100, []int{100}},
		{101, 100, []int{100, 1}},
		{250, 100, []int{100, 100, 50}},
		{7, 3, []int{3, 3, 1}},
	}
	for _, tt := range tests {
		batches, err := collect(t, Batches(recordSeq(tt.rows, -1, nil), tt.size))
		require.NoError(t, err)
		var sizes []int
		for i, b := range batches {
			assert.Equal(t, i, b.Index)
			sizes = append(sizes, len(b.Records))
		}
		assert.Equal(t, tt.want, sizes, "%d rows in batches of %d", tt.rows, tt.size)
	}
}

func TestBatches_IDs(t *testing.T) {
	batches, err := collect(t, Batches(recordSeq(250, -1, nil), BatchSize))
	require.NoError(t, err)
	require.Len(t, batches, 3)

	want := [][2]int64{{1, 100}, {101, 200}, {201, 250}}
	seen := make(map[int64]bool)
	for i, b := range batches {
		ids := b.IDs()
		assert.Equal(t, want[i][0], ids[0])
		assert.Equal(t, want[i][1], ids[len(ids)-1])
		for _, id := range ids {
			assert.False(t, seen[id])
			seen[id] = true
		}
	}
	assert.Len(t, seen, 250)
}

func TestBatches_FreshSlices(t *testing.T) {
	batches, err := collect(t, Batches(recordSeq(6, -1, nil), 2))
	require.NoError(t, err)
	require.Len(t, batches, 3)

	batches[0].Records[0].Values = []string{"changed"}
	batches[0].Records = append(batches[0].Records, Record{})
	assert.Equal(t, []string{"c"}, batches[1].Records[0].Values)
	assert.Len(t, batches[1].Records, 2)
}

func TestBatches_Lazy(t *testing.T) {
	pulled := 0
	rows := func(yield func(Record, error) bool) {
		for i := 0; i < 10; i++ {
			pulled++
			if !yield(Record{}, nil) {
				return
			}
		}
	}
	for b := range Batches(rows, 3) {
		// The first batch is flushed only once the fourth row arrives.
		assert.Equal(t, 0, b.Index)
		assert.Equal(t, 4, pulled)
		break
	}
}

func TestBatches_Error(t *testing.T) {
	boom := errors.New("bad row")
	batches, err := collect(t, Batches(recordSeq(10, 7, boom), 3))
	assert.ErrorIs(t, err, boom)
	// Batches 0 and 1 are complete before the failing row; row 6 is dropped.
	require.Len(t, batches, 2)
	assert.Len(t, batches[1].Records, 3)
}

func TestBatches_InvalidSize(t *testing.T) {
	_, err := collect(t, Batches(recordSeq(3, -1, nil), 0))
	assert.Error(t, err)
}

func TestRecord_Item(t *testing.T) {
	rec := Record{Columns: []string{"id", "name"}, Values: []string{"x", "widget"}}
	assert.Equal(t, map[string]any{"id": int64(42), "name": "widget"}, rec.Item(42))
}

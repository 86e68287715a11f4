package ingest

import "fmt"

const (
	// IDStride is the id range reserved for each batch.
	IDStride = 100
	// BatchSize is the default number of rows per batch.
	BatchSize = 100
)

// SynthesizeID returns the primary key of the row at position within the
// batch with index batchIndex. Both are zero-based and the result starts at 1.
func SynthesizeID(batchIndex, position int) int64 {
	return int64(IDStride)*int64(batchIndex) + int64(position) + 1
}

// ValidateBatchSize rejects sizes that would make the ids of adjacent batches
// overlap.
func ValidateBatchSize(size int) error {
	if size < 1 {
		return fmt.Errorf("batch size must be positive, got %d", size)
	}
	if size > IDStride {
		return fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, size, IDStride)
	}
	return nil
}

package ingest

import "iter"

// Record is one CSV data row. Columns is the header shared by every record
// of the object and Values holds the cells in header order.
type Record struct {
	Columns []string
	Values  []string
}

// Item returns the record as a DynamoDB item with the given id. A column
// named "id" is replaced by the synthesized id. Columns missing from a short
// row are left out and cells beyond the header are dropped.
func (r Record) Item(id int64) map[string]any {
	item := make(map[string]any, len(r.Columns)+1)
	for i, col := range r.Columns {
		if i < len(r.Values) {
			item[col] = r.Values[i]
		}
	}
	item[IDAttribute] = id
	return item
}

// Batch is a group of consecutive records. Index is zero-based.
type Batch struct {
	Index   int
	Records []Record
}

// Ragged returns the number of records with more cells than columns.
func (b Batch) Ragged() int {
	n := 0
	for _, rec := range b.Records {
		if len(rec.Values) > len(rec.Columns) {
			n++
		}
	}
	return n
}

// IDs returns the synthesized ids of the records in the batch.
func (b Batch) IDs() []int64 {
	ids := make([]int64, len(b.Records))
	for p := range b.Records {
		ids[p] = SynthesizeID(b.Index, p)
	}
	return ids
}

// Batches groups rows into batches of size records, the last one possibly
// shorter. A full batch is yielded when the next row arrives or the input
// ends. A row error is yielded after any complete batch and stops the
// sequence; the partial batch collected so far is dropped.
func Batches(rows iter.Seq2[Record, error], size int) iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		if size < 1 {
			yield(Batch{}, ValidateBatchSize(size))
			return
		}
		index := 0
		var pending []Record
		for rec, err := range rows {
			if len(pending) >= size {
				if !yield(Batch{Index: index, Records: pending}, nil) {
					return
				}
				index++
				pending = nil
			}
			if err != nil {
				yield(Batch{}, err)
				return
			}
			if pending == nil {
				pending = make([]Record, 0, size)
			}
			pending = append(pending, rec)
		}
		if len(pending) > 0 {
			yield(Batch{Index: index, Records: pending}, nil)
		}
	}
}

package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/pierrec/lz4/v4"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CompressedSuffix marks objects that are lz4 compressed.
const CompressedSuffix = ".lz4"

// Decode wraps r so it yields UTF-8 text with any byte order mark removed.
// Objects whose key ends in CompressedSuffix are decompressed first.
func Decode(r io.Reader, key string) io.Reader {
	if strings.HasSuffix(key, CompressedSuffix) {
		r = lz4.NewReader(r)
	}
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadCSV reads the header row from r and returns it together with a lazy
// sequence of the remaining rows. The sequence can be ranged over once.
// An empty input has no header and no rows. Rows may have fewer or more
// fields than the header.
func ReadCSV(r io.Reader) ([]string, iter.Seq2[Record, error], error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, func(func(Record, error) bool) {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	rows := func(yield func(Record, error) bool) {
		for {
			values, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Record{}, err)
				return
			}
			if !yield(Record{Columns: header, Values: values}, nil) {
				return
			}
		}
	}
	return header, rows, nil
}

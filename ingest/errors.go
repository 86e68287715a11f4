package ingest

import "errors"

var (
	// ErrNoRecords is returned for a trigger event without records.
	ErrNoRecords = errors.New("event contains no records")
	// ErrFetch wraps failures to read the uploaded object.
	ErrFetch = errors.New("fetch object")
	// ErrParse wraps failures to decode the object as CSV.
	ErrParse = errors.New("parse csv")
	// ErrTableName is returned when no table name can be derived from a key.
	ErrTableName = errors.New("derive table name")
	// ErrProvision wraps failures to list, create or wait for the table.
	ErrProvision = errors.New("provision table")
	// ErrWrite wraps failures to write a batch.
	ErrWrite = errors.New("write batch")
	// ErrBatchTooLarge is returned for batch sizes above IDStride.
	ErrBatchTooLarge = errors.New("batch size exceeds id stride")
)

package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// MaxBatchWriteItems is DynamoDB's limit of write requests per BatchWriteItem call.
const MaxBatchWriteItems = 25

type encodedWrite struct {
	key  []byte
	item []byte // nil for deletes
	req  types.WriteRequest
}

// BatchWriteItem performs multiple put/delete operations.
// The whole request is validated before anything is written, like DynamoDB.
// Requests rejected by StoreOptions.Throttle are returned as UnprocessedItems.
func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if len(params.RequestItems) == 0 {
		return nil, validationError("request items is required")
	}

	var total int
	writes := make(map[string][]encodedWrite, len(params.RequestItems))
	for tableName, writeRequests := range params.RequestItems {
		tabl, err := s.getActiveTable(&tableName)
		if err != nil {
			return nil, err
		}
		total += len(writeRequests)
		if total > MaxBatchWriteItems {
			return nil, validationError(fmt.Sprintf("too many items requested for the BatchWriteItem call: max %d", MaxBatchWriteItems))
		}

		seen := make(map[string]struct{}, len(writeRequests))
		for _, req := range writeRequests {
			var doc map[string]types.AttributeValue
			switch {
			case req.PutRequest != nil:
				doc = req.PutRequest.Item
			case req.DeleteRequest != nil:
				doc = req.DeleteRequest.Key
			default:
				return nil, validationError("empty write request, must be put or delete")
			}

			pk, err := tabl.definition.ExtractPrimaryKey(doc)
			if err != nil {
				return nil, validationError(fmt.Sprintf("extract primary key: %v", err))
			}
			key, err := tabl.encodeKey(pk)
			if err != nil {
				return nil, validationError(fmt.Sprintf("encode key: %v", err))
			}
			if _, dup := seen[string(key)]; dup {
				return nil, validationError("provided list of item keys contains duplicates")
			}
			seen[string(key)] = struct{}{}

			w := encodedWrite{key: key, req: req}
			if req.PutRequest != nil {
				if w.item, err = SerializeItem(doc); err != nil {
					return nil, validationError(fmt.Sprintf("serialize item: %v", err))
				}
			}
			writes[tableName] = append(writes[tableName], w)
		}
	}

	unprocessed := make(map[string][]types.WriteRequest)
	err := s.db.Update(func(txn *badger.Txn) error {
		for tableName, ws := range writes {
			for _, w := range ws {
				if s.opts.Throttle != nil && s.opts.Throttle(tableName, w.req) {
					unprocessed[tableName] = append(unprocessed[tableName], w.req)
					continue
				}
				var err error
				if w.item != nil {
					err = txn.Set(w.key, w.item)
				} else {
					err = txn.Delete(w.key)
				}
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: unprocessed,
	}, nil
}

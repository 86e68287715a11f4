package ddbstore

import (
	"context"
	"fmt"

	"github.com/acksell/csvload/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Scan retrieves items in key order. Filter expressions and secondary
// indexes are not supported; Limit and ExclusiveStartKey paginate.
func (s *Store) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.FilterExpression != nil || params.IndexName != nil {
		return nil, validationError("filter expressions and indexes are not supported by the local store")
	}

	t, err := s.getActiveTable(params.TableName)
	if err != nil {
		return nil, err
	}
	proj, err := parseProjection(params.ProjectionExpression, params.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}

	limit := 0
	if params.Limit != nil {
		limit = int(*params.Limit)
	}

	var items []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue
	prefix := t.prefix()

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		if params.ExclusiveStartKey != nil {
			startPK, err := t.definition.ExtractPrimaryKey(params.ExclusiveStartKey)
			if err != nil {
				return validationError(fmt.Sprintf("extract start key: %v", err))
			}
			startKey, err := t.encodeKey(startPK)
			if err != nil {
				return validationError(fmt.Sprintf("encode start key: %v", err))
			}
			it.Seek(startKey)
			if it.Valid() && string(it.Item().Key()) == string(startKey) {
				it.Next() // exclusive
			}
		} else {
			it.Seek(prefix)
		}

		for ; it.Valid() && hasPrefix(it.Item().Key(), prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var item map[string]types.AttributeValue
			if err := it.Item().Value(func(val []byte) error {
				var err error
				item, err = DeserializeItem(val)
				return err
			}); err != nil {
				return err
			}

			if limit > 0 && len(items) == limit {
				// More items remain; the previous one is where the next page starts.
				lastKey = extractKeyAttributes(items[len(items)-1], t.definition.KeyDefinitions)
				break
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, item := range items {
		items[i] = proj.apply(item)
	}
	count := int32(len(items))
	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            count,
		ScannedCount:     count,
		LastEvaluatedKey: lastKey,
	}, nil
}

func extractKeyAttributes(item map[string]types.AttributeValue, keyDef table.PrimaryKeyDefinition) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, 2)
	if pk, ok := item[keyDef.PartitionKey.Name]; ok {
		result[keyDef.PartitionKey.Name] = pk
	}
	if keyDef.SortKey.Name != "" {
		if sk, ok := item[keyDef.SortKey.Name]; ok {
			result[keyDef.SortKey.Name] = sk
		}
	}
	return result
}

package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// PutItem creates or replaces an item. Condition expressions are not supported.
func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Item == nil {
		return nil, validationError("item is required")
	}
	if params.ConditionExpression != nil {
		return nil, validationError("condition expressions are not supported by the local store")
	}

	tabl, err := s.getActiveTable(params.TableName)
	if err != nil {
		return nil, err
	}

	pk, err := tabl.definition.ExtractPrimaryKey(params.Item)
	if err != nil {
		return nil, validationError(fmt.Sprintf("extract primary key: %v", err))
	}

	key, err := tabl.encodeKey(pk)
	if err != nil {
		return nil, validationError(fmt.Sprintf("encode key: %v", err))
	}

	itemBytes, err := SerializeItem(params.Item)
	if err != nil {
		return nil, validationError(fmt.Sprintf("serialize item: %v", err))
	}

	var oldItem map[string]types.AttributeValue
	err = s.db.Update(func(txn *badger.Txn) error {
		if params.ReturnValues == types.ReturnValueAllOld {
			if oldItem, err = readItem(txn, key); err != nil {
				return err
			}
		}
		return txn.Set(key, itemBytes)
	})
	if err != nil {
		return nil, err
	}

	return &dynamodb.PutItemOutput{Attributes: oldItem}, nil
}

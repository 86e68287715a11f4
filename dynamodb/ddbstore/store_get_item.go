package ddbstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// GetItem retrieves a single item by its primary key. A missing item yields
// an output with a nil Item, as in DynamoDB.
func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	if params.Key == nil {
		return nil, validationError("key is required")
	}

	t, err := s.getActiveTable(params.TableName)
	if err != nil {
		return nil, err
	}

	pk, err := t.definition.ExtractPrimaryKey(params.Key)
	if err != nil {
		return nil, validationError(fmt.Sprintf("extract primary key: %v", err))
	}

	key, err := t.encodeKey(pk)
	if err != nil {
		return nil, validationError(fmt.Sprintf("encode key: %v", err))
	}

	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = readItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return &dynamodb.GetItemOutput{}, nil
	}

	proj, err := parseProjection(params.ProjectionExpression, params.ExpressionAttributeNames)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: proj.apply(item)}, nil
}

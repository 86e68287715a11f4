package ddbsdk

import (
	"fmt"

	"github.com/acksell/csvload/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BatchAction is a write that can be part of a BatchWriteItem call.
type BatchAction interface {
	TableName() *string
	ToBatchWriteRequest() (types.WriteRequest, error)
}

// Put writes Entity as a whole item, replacing any item with the same key.
// Entity is marshalled with attributevalue.MarshalMap, so it may be a struct
// with dynamodbav tags or a map.
type Put struct {
	Table  table.TableDefinition
	Entity any
}

var _ BatchAction = (*Put)(nil)

func NewPut(t table.TableDefinition, entity any) *Put {
	return &Put{Table: t, Entity: entity}
}

func (p *Put) TableName() *string {
	return &p.Table.Name
}

// ToBatchWriteRequest marshals the entity and checks that it carries the
// table's primary key with the declared kinds.
func (p *Put) ToBatchWriteRequest() (types.WriteRequest, error) {
	item, err := attributevalue.MarshalMap(p.Entity)
	if err != nil {
		return types.WriteRequest{}, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err)
	}
	if _, err := p.Table.ExtractPrimaryKey(item); err != nil {
		return types.WriteRequest{}, fmt.Errorf("item for table %s: %w", p.Table.Name, err)
	}
	return types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}, nil
}

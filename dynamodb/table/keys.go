package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type PrimaryKeyDefinition struct {
	PartitionKey KeyDef
	SortKey      KeyDef // empty Name means the table has no sort key
}

type KeyDef struct {
	Name string
	Kind KeyKind
}

type KeyKind string

const (
	KeyKindS KeyKind = "S"
	KeyKindN KeyKind = "N"
	KeyKindB KeyKind = "B"
)

type PrimaryKeyValues struct {
	PartitionKey any
	SortKey      any
}

type PrimaryKey struct {
	Definition PrimaryKeyDefinition
	Values     PrimaryKeyValues
}

// DDB returns the key as a DynamoDB key map.
func (k PrimaryKey) DDB() (map[string]types.AttributeValue, error) {
	pk, err := marshalKeyValue(k.Definition.PartitionKey, k.Values.PartitionKey)
	if err != nil {
		return nil, fmt.Errorf("partition key: %w", err)
	}
	if k.Definition.SortKey.Name == "" {
		return map[string]types.AttributeValue{
			k.Definition.PartitionKey.Name: pk,
		}, nil
	}
	if k.Values.SortKey == nil {
		return nil, fmt.Errorf("sort key %q is required but got nil", k.Definition.SortKey.Name)
	}
	sk, err := marshalKeyValue(k.Definition.SortKey, k.Values.SortKey)
	if err != nil {
		return nil, fmt.Errorf("sort key: %w", err)
	}
	return map[string]types.AttributeValue{
		k.Definition.PartitionKey.Name: pk,
		k.Definition.SortKey.Name:      sk,
	}, nil
}

func marshalKeyValue(def KeyDef, v any) (types.AttributeValue, error) {
	// Numeric key values are carried as their DynamoDB string form.
	if s, ok := v.(string); ok && def.Kind == KeyKindN {
		return &types.AttributeValueMemberN{Value: s}, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %q of type %T: %w", def.Name, v, err)
	}
	if err := attributeMatchesDefinition(def.Kind, av); err != nil {
		return nil, fmt.Errorf("%q: %w", def.Name, err)
	}
	return av, nil
}

func attributeMatchesDefinition(want KeyKind, v types.AttributeValue) error {
	var got KeyKind
	switch v.(type) {
	case *types.AttributeValueMemberS:
		got = KeyKindS
	case *types.AttributeValueMemberN:
		got = KeyKindN
	case *types.AttributeValueMemberB:
		got = KeyKindB
	default:
		return fmt.Errorf("unexpected key attribute type %T", v)
	}
	if got != want {
		return fmt.Errorf("got KeyKind %q want %q", got, want)
	}
	return nil
}

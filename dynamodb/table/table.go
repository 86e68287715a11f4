package table

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type TableDefinition struct {
	Name           string
	KeyDefinitions PrimaryKeyDefinition
	// Throughput is the provisioned capacity. The zero value means on-demand billing.
	Throughput Throughput
}

type Throughput struct {
	ReadCapacityUnits  int64
	WriteCapacityUnits int64
}

func (t Throughput) IsProvisioned() bool {
	return t.ReadCapacityUnits > 0 || t.WriteCapacityUnits > 0
}

func (t TableDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	return t.KeyDefinitions.ExtractPrimaryKey(doc)
}

// CreateTableInput renders the definition as a CreateTable request.
func (t TableDefinition) CreateTableInput() *dynamodb.CreateTableInput {
	keys := t.KeyDefinitions
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(t.Name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(keys.PartitionKey.Name), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(keys.PartitionKey.Name), AttributeType: types.ScalarAttributeType(keys.PartitionKey.Kind)},
		},
	}
	if keys.SortKey.Name != "" {
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(keys.SortKey.Name), KeyType: types.KeyTypeRange,
		})
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(keys.SortKey.Name), AttributeType: types.ScalarAttributeType(keys.SortKey.Kind),
		})
	}
	if t.Throughput.IsProvisioned() {
		in.BillingMode = types.BillingModeProvisioned
		in.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(t.Throughput.ReadCapacityUnits),
			WriteCapacityUnits: aws.Int64(t.Throughput.WriteCapacityUnits),
		}
	} else {
		in.BillingMode = types.BillingModePayPerRequest
	}
	return in
}

// FromCreateTableInput is the inverse of CreateTableInput. Secondary indexes are not supported.
func FromCreateTableInput(in *dynamodb.CreateTableInput) (TableDefinition, error) {
	if in == nil || in.TableName == nil || *in.TableName == "" {
		return TableDefinition{}, fmt.Errorf("table name is required")
	}
	if len(in.GlobalSecondaryIndexes) > 0 || len(in.LocalSecondaryIndexes) > 0 {
		return TableDefinition{}, fmt.Errorf("secondary indexes are not supported")
	}
	kinds := make(map[string]KeyKind, len(in.AttributeDefinitions))
	for _, def := range in.AttributeDefinitions {
		kinds[aws.ToString(def.AttributeName)] = KeyKind(def.AttributeType)
	}
	keyDef := func(elem types.KeySchemaElement) (KeyDef, error) {
		name := aws.ToString(elem.AttributeName)
		kind, ok := kinds[name]
		if !ok {
			return KeyDef{}, fmt.Errorf("key attribute %q has no attribute definition", name)
		}
		switch kind {
		case KeyKindS, KeyKindN, KeyKindB:
		default:
			return KeyDef{}, fmt.Errorf("key attribute %q has unsupported type %q", name, kind)
		}
		return KeyDef{Name: name, Kind: kind}, nil
	}

	def := TableDefinition{Name: *in.TableName}
	for _, elem := range in.KeySchema {
		kd, err := keyDef(elem)
		if err != nil {
			return TableDefinition{}, err
		}
		switch elem.KeyType {
		case types.KeyTypeHash:
			def.KeyDefinitions.PartitionKey = kd
		case types.KeyTypeRange:
			def.KeyDefinitions.SortKey = kd
		default:
			return TableDefinition{}, fmt.Errorf("unknown key type %q", elem.KeyType)
		}
	}
	if def.KeyDefinitions.PartitionKey.Name == "" {
		return TableDefinition{}, fmt.Errorf("key schema must have a HASH key")
	}
	if in.BillingMode != types.BillingModePayPerRequest && in.ProvisionedThroughput != nil {
		def.Throughput = Throughput{
			ReadCapacityUnits:  aws.ToInt64(in.ProvisionedThroughput.ReadCapacityUnits),
			WriteCapacityUnits: aws.ToInt64(in.ProvisionedThroughput.WriteCapacityUnits),
		}
	}
	return def, nil
}

func (k PrimaryKeyDefinition) ExtractPrimaryKey(doc map[string]types.AttributeValue) (PrimaryKey, error) {
	part, ok := doc[k.PartitionKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("partition key %q not found", k.PartitionKey.Name)
	}
	if err := attributeMatchesDefinition(k.PartitionKey.Kind, part); err != nil {
		return PrimaryKey{}, fmt.Errorf("document key %q kind does not match definition: %w", k.PartitionKey.Name, err)
	}
	pk := PrimaryKey{
		Definition: k,
		Values: PrimaryKeyValues{
			PartitionKey: keyValueFromAV(part),
		},
	}
	if k.SortKey.Name == "" {
		return pk, nil
	}
	sort, ok := doc[k.SortKey.Name]
	if !ok {
		return PrimaryKey{}, fmt.Errorf("sort key %q not found on document", k.SortKey.Name)
	}
	if err := attributeMatchesDefinition(k.SortKey.Kind, sort); err != nil {
		return PrimaryKey{}, fmt.Errorf("sort key %q kind does not match definition: %w", k.SortKey.Name, err)
	}
	pk.Values.SortKey = keyValueFromAV(sort)
	return pk, nil
}

// keyValueFromAV is only called after attributeMatchesDefinition has accepted the value.
func keyValueFromAV(av types.AttributeValue) any {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberB:
		return v.Value
	default:
		panic(fmt.Sprintf("unsupported attribute value %T for dynamodb keys", v))
	}
}

package table

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numericIDTable = TableDefinition{
	Name: "orders",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "id", Kind: KeyKindN},
	},
	Throughput: Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5},
}

var pkAndSKTable = TableDefinition{
	Name: "events",
	KeyDefinitions: PrimaryKeyDefinition{
		PartitionKey: KeyDef{Name: "pk", Kind: KeyKindS},
		SortKey:      KeyDef{Name: "sk", Kind: KeyKindS},
	},
}

func TestCreateTableInput_RoundTrip(t *testing.T) {
	for _, def := range []TableDefinition{numericIDTable, pkAndSKTable} {
		t.Run(def.Name, func(t *testing.T) {
			got, err := FromCreateTableInput(def.CreateTableInput())
			require.NoError(t, err)
			assert.Equal(t, def, got)
		})
	}
}

func TestCreateTableInput_Provisioned(t *testing.T) {
	in := numericIDTable.CreateTableInput()
	assert.Equal(t, types.BillingModeProvisioned, in.BillingMode)
	require.NotNil(t, in.ProvisionedThroughput)
	assert.EqualValues(t, 5, *in.ProvisionedThroughput.ReadCapacityUnits)
	assert.EqualValues(t, 5, *in.ProvisionedThroughput.WriteCapacityUnits)
	require.Len(t, in.KeySchema, 1)
	assert.Equal(t, "id", *in.KeySchema[0].AttributeName)
	assert.Equal(t, types.KeyTypeHash, in.KeySchema[0].KeyType)
	assert.Equal(t, types.ScalarAttributeTypeN, in.AttributeDefinitions[0].AttributeType)

	assert.Nil(t, pkAndSKTable.CreateTableInput().ProvisionedThroughput)
}

func TestFromCreateTableInput_Invalid(t *testing.T) {
	in := numericIDTable.CreateTableInput()
	in.AttributeDefinitions = nil
	_, err := FromCreateTableInput(in)
	assert.ErrorContains(t, err, "no attribute definition")

	in = numericIDTable.CreateTableInput()
	in.TableName = nil
	_, err = FromCreateTableInput(in)
	assert.ErrorContains(t, err, "table name is required")
}

func TestExtractPrimaryKey(t *testing.T) {
	pk, err := numericIDTable.ExtractPrimaryKey(map[string]types.AttributeValue{
		"id":   &types.AttributeValueMemberN{Value: "42"},
		"name": &types.AttributeValueMemberS{Value: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, "42", pk.Values.PartitionKey)

	_, err = numericIDTable.ExtractPrimaryKey(map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: "42"},
	})
	assert.Error(t, err)

	_, err = numericIDTable.ExtractPrimaryKey(map[string]types.AttributeValue{})
	assert.ErrorContains(t, err, "not found")
}

func TestPrimaryKey_DDB(t *testing.T) {
	key, err := PrimaryKey{
		Definition: numericIDTable.KeyDefinitions,
		Values:     PrimaryKeyValues{PartitionKey: "7"},
	}.DDB()
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberN{Value: "7"}, key["id"])

	_, err = PrimaryKey{
		Definition: pkAndSKTable.KeyDefinitions,
		Values:     PrimaryKeyValues{PartitionKey: "a"},
	}.DDB()
	assert.ErrorContains(t, err, "required")
}

package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acksell/csvload/dynamodb/ddbstore"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvisioner(client *recordingDynamo) *Provisioner {
	return NewProvisioner(client, ProvisionerOptions{Waiter: fastWaiter})
}

func TestProvisioner_CreatesTable(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
	p := newTestProvisioner(ddb)

	handle, err := p.Ensure(context.Background(), "orders", []string{"name", "qty"})
	require.NoError(t, err)
	assert.True(t, handle.Created)
	assert.Equal(t, types.TableStatusActive, handle.Description.TableStatus)
	assert.Equal(t, 1, ddb.creates)

	desc := handle.Description
	require.Len(t, desc.KeySchema, 1)
	assert.Equal(t, IDAttribute, *desc.KeySchema[0].AttributeName)
	assert.Equal(t, types.KeyTypeHash, desc.KeySchema[0].KeyType)
	assert.Equal(t, types.ScalarAttributeTypeN, desc.AttributeDefinitions[0].AttributeType)
	assert.Equal(t, int64(5), *desc.ProvisionedThroughput.ReadCapacityUnits)
	assert.Equal(t, int64(5), *desc.ProvisionedThroughput.WriteCapacityUnits)
}

func TestProvisioner_ExistingTable(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
	_, err := ddb.Store.CreateTable(context.Background(), TableDefinitionFor("orders", DefaultThroughput).CreateTableInput())
	require.NoError(t, err)
	p := newTestProvisioner(ddb)

	start := time.Now()
	handle, err := p.Ensure(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.False(t, handle.Created)
	assert.Equal(t, 0, ddb.creates)
	// The waiter still runs and its first poll sees the ACTIVE table.
	assert.Equal(t, 1, ddb.describes)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProvisioner_Idempotent(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
	p := newTestProvisioner(ddb)
	ctx := context.Background()

	_, err := p.Ensure(ctx, "orders", nil)
	require.NoError(t, err)
	_, err = p.Ensure(ctx, "orders", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ddb.creates)
	out, err := ddb.Store.ListTables(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, out.TableNames)
}

func TestProvisioner_ConcurrentCreate(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
	// Another writer creates the table between our list and create calls.
	ddb.createErr = &types.ResourceInUseException{}
	p := newTestProvisioner(ddb)

	handle, err := p.Ensure(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.False(t, handle.Created)
	assert.Equal(t, types.TableStatusActive, handle.Description.TableStatus)
}

func TestProvisioner_WaitsForActive(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{ActivationDelay: 30 * time.Millisecond})
	p := newTestProvisioner(ddb)

	handle, err := p.Ensure(context.Background(), "orders", nil)
	require.NoError(t, err)
	assert.Equal(t, types.TableStatusActive, handle.Description.TableStatus)
	assert.Greater(t, ddb.describes, 1)
}

func TestProvisioner_WaitTimeout(t *testing.T) {
	ddb := newRecordingDynamo(t, ddbstore.StoreOptions{ActivationDelay: time.Hour})
	p := NewProvisioner(ddb, ProvisionerOptions{Waiter: WaiterOptions{
		MinDelay: 5 * time.Millisecond,
		MaxDelay: 10 * time.Millisecond,
		MaxWait:  50 * time.Millisecond,
	}})

	_, err := p.Ensure(context.Background(), "orders", nil)
	assert.ErrorIs(t, err, ErrProvision)
}

func TestProvisioner_Errors(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
		boom := errors.New("list denied")
		ddb.listErr = boom
		_, err := newTestProvisioner(ddb).Ensure(context.Background(), "orders", nil)
		assert.ErrorIs(t, err, ErrProvision)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, ddb.creates)
	})
	t.Run("create", func(t *testing.T) {
		ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
		boom := errors.New("create denied")
		ddb.createErr = boom
		_, err := newTestProvisioner(ddb).Ensure(context.Background(), "orders", nil)
		assert.ErrorIs(t, err, ErrProvision)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, ddb.describes)
	})
	t.Run("invalid name", func(t *testing.T) {
		ddb := newRecordingDynamo(t, ddbstore.StoreOptions{})
		_, err := newTestProvisioner(ddb).Ensure(context.Background(), "a b", nil)
		assert.ErrorIs(t, err, ErrProvision)
	})
	t.Run("canceled", func(t *testing.T) {
		ddb := newRecordingDynamo(t, ddbstore.StoreOptions{ActivationDelay: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestProvisioner(ddb).Ensure(ctx, "orders", nil)
		assert.ErrorIs(t, err, ErrProvision)
	})
}

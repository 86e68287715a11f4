package ingest

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/acksell/csvload/blob"
	"github.com/acksell/csvload/dynamodb/ddbstore"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
)

// recordingDynamo wraps the local store and counts the calls the loader makes.
type recordingDynamo struct {
	*ddbstore.Store

	mu          sync.Mutex
	lists       int
	creates     int
	describes   int
	batchWrites []int
	createErr   error
	listErr     error
}

func (r *recordingDynamo) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	r.mu.Lock()
	r.lists++
	err := r.listErr
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Store.ListTables(ctx, params, optFns...)
}

func (r *recordingDynamo) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	r.mu.Lock()
	r.creates++
	err := r.createErr
	r.mu.Unlock()
	out, storeErr := r.Store.CreateTable(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return out, storeErr
}

func (r *recordingDynamo) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	r.mu.Lock()
	r.describes++
	r.mu.Unlock()
	return r.Store.DescribeTable(ctx, params, optFns...)
}

func (r *recordingDynamo) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	n := 0
	for _, reqs := range params.RequestItems {
		n += len(reqs)
	}
	r.mu.Lock()
	r.batchWrites = append(r.batchWrites, n)
	r.mu.Unlock()
	return r.Store.BatchWriteItem(ctx, params, optFns...)
}

func newRecordingDynamo(t *testing.T, opts ddbstore.StoreOptions) *recordingDynamo {
	t.Helper()
	opts.InMemory = true
	store, err := ddbstore.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &recordingDynamo{Store: store}
}

// memSource serves objects from memory.
type memSource map[blob.ObjectRef]string

func (m memSource) Open(_ context.Context, ref blob.ObjectRef) (io.ReadCloser, error) {
	body, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, blob.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// csvRows returns a CSV document with a header and n data rows.
func csvRows(n int) string {
	var b strings.Builder
	b.WriteString("name,qty\n")
	for i := 1; i <= n; i++ {
		b.WriteString("item ")
		b.WriteString(strconv.Itoa(i))
		b.WriteString(",")
		b.WriteString(strconv.Itoa(i * 10))
		b.WriteString("\n")
	}
	return b.String()
}

// fastWaiter keeps tests from sleeping for the production poll interval.
var fastWaiter = WaiterOptions{MinDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, MaxWait: 5 * time.Second}

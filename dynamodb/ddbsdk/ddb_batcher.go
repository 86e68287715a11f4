package ddbsdk

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/acksell/csvload/dynamodb/table"
	dynamodbv2 "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxBatchWriteItems is DynamoDB's limit of write requests per BatchWriteItem call.
const MaxBatchWriteItems = 25

// BatchWriteClient is the part of the DynamoDB client a Batcher needs.
type BatchWriteClient interface {
	BatchWriteItem(ctx context.Context, params *dynamodbv2.BatchWriteItemInput, optFns ...func(*dynamodbv2.Options)) (*dynamodbv2.BatchWriteItemOutput, error)
}

func NewBatcher(ddb BatchWriteClient, opts ...BatchOption) *Batcher {
	b := &Batcher{
		awsddb:  ddb,
		pending: make(map[string][]types.WriteRequest),
		keys:    make(map[string]table.PrimaryKeyDefinition),
	}
	for _, opt := range opts {
		opt(&b.opts)
	}
	// Default exponential backoff: 50ms base, 2x multiplier, 5s cap, full jitter
	if b.opts.backoff == nil {
		b.opts.backoff = DefaultBackoff
	}
	return b
}

// Batcher groups put requests and writes them with BatchWriteItem, splitting
// them into calls of at most MaxBatchWriteItems requests. A Batcher is not
// safe for concurrent use.
type Batcher struct {
	awsddb BatchWriteClient
	opts   batchOpts

	pending map[string][]types.WriteRequest
	keys    map[string]table.PrimaryKeyDefinition
	retries int
}

// AddAction adds BatchActions to the batch.
// Returns error if an action with the same table+primarykey already exists.
func (b *Batcher) AddAction(actions ...BatchAction) error {
	for _, a := range actions {
		tableName := *a.TableName()

		req, err := a.ToBatchWriteRequest()
		if err != nil {
			return err
		}
		if p, ok := a.(*Put); ok {
			b.keys[tableName] = p.Table.KeyDefinitions
		}

		newKey := b.extractKey(tableName, req)
		for _, existing := range b.pending[tableName] {
			if keysEqual(newKey, b.extractKey(tableName, existing)) {
				return fmt.Errorf("duplicate action for table %s", tableName)
			}
		}

		b.pending[tableName] = append(b.pending[tableName], req)
	}
	return nil
}

// Pending returns the number of requests not yet written.
func (b *Batcher) Pending() int {
	return countRequests(b.pending)
}

// Exec attempts to write all pending items once (no retries), in calls of at
// most MaxBatchWriteItems requests. Items DynamoDB leaves unprocessed stay
// pending and are returned in ExecResult.
func (b *Batcher) Exec(ctx context.Context) (ExecResult, error) {
	if len(b.pending) == 0 {
		return ExecResult{Retries: b.retries}, nil
	}

	chunks := chunkRequests(b.pending, MaxBatchWriteItems)
	unprocessed := make(map[string][]types.WriteRequest)
	for i, chunk := range chunks {
		res, err := b.awsddb.BatchWriteItem(ctx, &dynamodbv2.BatchWriteItemInput{
			RequestItems: chunk,
		})
		if err != nil {
			// Everything not confirmed written stays pending.
			for _, rest := range chunks[i:] {
				mergeRequests(unprocessed, rest)
			}
			b.pending = unprocessed
			return ExecResult{
				Unprocessed: b.pending,
				Retries:     b.retries,
			}, fmt.Errorf("batch write failed: %w", err)
		}
		mergeRequests(unprocessed, res.UnprocessedItems)
	}

	b.pending = unprocessed
	if len(b.pending) > 0 {
		b.retries++
	}

	return ExecResult{
		Unprocessed: b.pending,
		Retries:     b.retries,
	}, nil
}

// ExecAndRetry writes all pending items, retrying unprocessed items until
// complete or limits exceeded.
// At least one of [WithMaxRetries] or [WithTimeout] must be configured.
// Uses exponential backoff by default (50ms, 100ms, 200ms, ...), override with [WithCustomBackoff].
// When retries are exhausted the error is a *PartialWriteError.
//
// Example:
//
//	batch := ddbsdk.NewBatcher(client, ddbsdk.WithMaxRetries(5))
//	batch.AddAction(putA, putB)
//	if err := batch.ExecAndRetry(ctx); err != nil {
//	    return err
//	}
func (b *Batcher) ExecAndRetry(ctx context.Context) error {
	if b.opts.maxRetries == 0 && b.opts.timeout == 0 {
		return fmt.Errorf("ExecAndRetry requires WithMaxRetries or WithTimeout to be configured")
	}
	if b.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.timeout)
		defer cancel()
	}
	for {
		res, err := b.Exec(ctx)
		if err != nil {
			return err
		}
		if res.Done() {
			return nil
		}
		if b.opts.maxRetries > 0 && res.Retries > b.opts.maxRetries {
			return res.Err()
		}
		if b.opts.backoff != nil {
			select {
			case <-ctx.Done():
				return errors.Join(ctx.Err(), res.Err())
			case <-time.After(b.opts.backoff(res.Retries)):
			}
		}
	}
}

// extractKey gets the key attributes from a WriteRequest.
func (b *Batcher) extractKey(tableName string, wr types.WriteRequest) map[string]types.AttributeValue {
	var doc map[string]types.AttributeValue
	switch {
	case wr.PutRequest != nil:
		doc = wr.PutRequest.Item
	case wr.DeleteRequest != nil:
		return wr.DeleteRequest.Key
	}
	def, ok := b.keys[tableName]
	if !ok {
		return doc
	}
	key := map[string]types.AttributeValue{def.PartitionKey.Name: doc[def.PartitionKey.Name]}
	if def.SortKey.Name != "" {
		key[def.SortKey.Name] = doc[def.SortKey.Name]
	}
	return key
}

// keysEqual checks if two key maps have the same key attribute values.
func keysEqual(a, b map[string]types.AttributeValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !attributeValuesEqual(av, bv) {
			return false
		}
	}
	return true
}

// attributeValuesEqual compares two scalar AttributeValues.
func attributeValuesEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return av.Value == bv.Value
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			return av.Value == bv.Value
		}
	case *types.AttributeValueMemberB:
		if bv, ok := b.(*types.AttributeValueMemberB); ok {
			return string(av.Value) == string(bv.Value)
		}
	}
	return false
}

// chunkRequests splits requests into maps holding at most size requests in total.
func chunkRequests(m map[string][]types.WriteRequest, size int) []map[string][]types.WriteRequest {
	var chunks []map[string][]types.WriteRequest
	cur := make(map[string][]types.WriteRequest)
	n := 0
	for tableName, reqs := range m {
		for _, req := range reqs {
			if n == size {
				chunks = append(chunks, cur)
				cur = make(map[string][]types.WriteRequest)
				n = 0
			}
			cur[tableName] = append(cur[tableName], req)
			n++
		}
	}
	if n > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}

func mergeRequests(dst, src map[string][]types.WriteRequest) {
	for tableName, reqs := range src {
		if len(reqs) > 0 {
			dst[tableName] = append(dst[tableName], reqs...)
		}
	}
}

func countRequests(m map[string][]types.WriteRequest) int {
	var n int
	for _, reqs := range m {
		n += len(reqs)
	}
	return n
}

// ExecResult contains the result of a Write operation.
type ExecResult struct {
	Unprocessed map[string][]types.WriteRequest
	Retries     int
}

// Done returns true if all items were successfully processed.
func (r ExecResult) Done() bool {
	return len(r.Unprocessed) == 0
}

// Err returns nil if Done(), otherwise a *PartialWriteError.
func (r ExecResult) Err() error {
	if r.Done() {
		return nil
	}
	return &PartialWriteError{Unprocessed: r.Unprocessed, Retries: r.Retries}
}

// PartialWriteError reports the requests that were still unprocessed when
// the batcher gave up.
type PartialWriteError struct {
	Unprocessed map[string][]types.WriteRequest
	Retries     int
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("batch incomplete: %d items unprocessed after %d retries", countRequests(e.Unprocessed), e.Retries)
}

// Items returns the items of the unprocessed put requests for a table.
func (e *PartialWriteError) Items(tableName string) []map[string]types.AttributeValue {
	var items []map[string]types.AttributeValue
	for _, req := range e.Unprocessed[tableName] {
		if req.PutRequest != nil {
			items = append(items, req.PutRequest.Item)
		}
	}
	return items
}

type BatchOption func(*batchOpts)

// BackoffFunc returns the duration to wait before retry attempt n.
type BackoffFunc func(attempt int) time.Duration

// WithMaxRetries sets the maximum number of retry attempts for [Batcher.ExecAndRetry].
func WithMaxRetries(n int) BatchOption {
	return func(o *batchOpts) {
		o.maxRetries = n
	}
}

// WithTimeout sets a timeout for [Batcher.ExecAndRetry].
func WithTimeout(d time.Duration) BatchOption {
	return func(o *batchOpts) {
		o.timeout = d
	}
}

// WithCustomBackoff sets a custom backoff function for [Batcher.ExecAndRetry].
func WithCustomBackoff(fn BackoffFunc) BatchOption {
	return func(o *batchOpts) {
		o.backoff = fn
	}
}

// WithExponentialBackoff sets exponential backoff for [Batcher.ExecAndRetry].
// See [ExponentialBackoff] for details.
func WithExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BatchOption {
	return WithCustomBackoff(ExponentialBackoff(base, multiplier, cap))
}

// ExponentialBackoff returns a capped exponential backoff with full jitter.
// Wait time is: rand(0, min(cap, base * multiplier^attempt))
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func ExponentialBackoff(base time.Duration, multiplier float64, cap time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		factor := 1.0
		for i := 0; i < attempt; i++ {
			factor *= multiplier
		}
		backoff := time.Duration(float64(base) * factor)
		if backoff > cap {
			backoff = cap
		}
		if backoff <= 0 {
			return 0
		}
		// Full jitter: random duration between 0 and backoff
		return time.Duration(rand.Int64N(int64(backoff)))
	}
}

// DefaultBackoff is [ExponentialBackoff] with 50ms base, 2x multiplier, 5s cap.
var DefaultBackoff = ExponentialBackoff(50*time.Millisecond, 2.0, 5*time.Second)

type batchOpts struct {
	maxRetries int
	timeout    time.Duration
	backoff    BackoffFunc
}

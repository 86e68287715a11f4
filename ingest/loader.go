package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/acksell/csvload/blob"
	"github.com/acksell/csvload/dynamodb/ddbiface"
	"github.com/acksell/csvload/dynamodb/ddbsdk"
	"github.com/acksell/csvload/dynamodb/table"
	"github.com/acksell/csvload/logging"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// SuccessBody is the body of the result of every completed load.
	SuccessBody = "Created DynamoDB table!"
	// DefaultMaxRetries bounds the retries of unprocessed items per batch.
	DefaultMaxRetries = 8
)

// Result is returned to the Lambda runtime.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`

	Stats Stats `json:"-"`
}

// Stats describe a completed load.
type Stats struct {
	Table        string
	TableCreated bool
	Rows         int
	Batches      int
	Duration     time.Duration
}

type Options struct {
	// BatchSize is the number of rows per grouped write, at most IDStride.
	// Defaults to BatchSize.
	BatchSize int
	// MaxRetries bounds the retries of unprocessed items per batch.
	MaxRetries int
	// Backoff overrides the wait between retries. Defaults to ddbsdk.DefaultBackoff.
	Backoff    ddbsdk.BackoffFunc
	Throughput table.Throughput
	Waiter     WaiterOptions
	Logger     *slog.Logger
}

// Loader loads CSV objects into DynamoDB tables.
type Loader struct {
	source      blob.Source
	ddb         ddbiface.Client
	provisioner *Provisioner
	batchSize   int
	maxRetries  int
	backoff     ddbsdk.BackoffFunc
	logger      *slog.Logger
}

func NewLoader(source blob.Source, ddb ddbiface.Client, opts Options) (*Loader, error) {
	if opts.BatchSize == 0 {
		opts.BatchSize = BatchSize
	}
	if err := ValidateBatchSize(opts.BatchSize); err != nil {
		return nil, err
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Backoff == nil {
		opts.Backoff = ddbsdk.DefaultBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Loader{
		source: source,
		ddb:    ddb,
		provisioner: NewProvisioner(ddb, ProvisionerOptions{
			Throughput: opts.Throughput,
			Waiter:     opts.Waiter,
			Logger:     opts.Logger,
		}),
		batchSize:  opts.BatchSize,
		maxRetries: opts.MaxRetries,
		backoff:    opts.Backoff,
		logger:     opts.Logger,
	}, nil
}

// HandleS3Event loads the object named by the first record of the event.
func (l *Loader) HandleS3Event(ctx context.Context, ev events.S3Event) (Result, error) {
	ref, err := ObjectFromEvent(ev)
	if err != nil {
		return Result{}, err
	}
	return l.Load(ctx, ref)
}

// Load reads the object as CSV, provisions its table and writes the rows in
// batches, one batch at a time.
func (l *Loader) Load(ctx context.Context, ref blob.ObjectRef) (Result, error) {
	start := time.Now()
	name, err := TableName(ref.Key)
	if err != nil {
		return Result{}, err
	}
	logger := logging.ForRequest(ctx, l.logger).With("bucket", ref.Bucket, "key", ref.Key, "table", name)
	logger.Info("load started")

	body, err := l.source.Open(ctx, ref)
	if err != nil {
		return Result{}, fmt.Errorf("%w %s: %w", ErrFetch, ref, err)
	}
	defer body.Close()

	header, rows, err := ReadCSV(Decode(body, ref.Key))
	if err != nil {
		return Result{}, fmt.Errorf("%w %s: %w", ErrParse, ref, err)
	}

	handle, err := l.provisioner.Ensure(ctx, name, header)
	if err != nil {
		return Result{}, err
	}

	stats := Stats{Table: name, TableCreated: handle.Created}
	for batch, err := range Batches(rows, l.batchSize) {
		if err != nil {
			return Result{}, fmt.Errorf("%w %s after %d rows: %w", ErrParse, ref, stats.Rows, err)
		}
		if err := l.writeBatch(ctx, handle.Definition, batch); err != nil {
			return Result{}, err
		}
		if n := batch.Ragged(); n > 0 {
			logger.Warn("cells beyond the header were dropped", "batch", batch.Index, "rows", n)
		}
		stats.Rows += len(batch.Records)
		stats.Batches++
		logger.Debug("batch written", "batch", batch.Index, "rows", len(batch.Records))
	}
	stats.Duration = time.Since(start)

	logger.Info("load complete", "rows", stats.Rows, "batches", stats.Batches, "created", stats.TableCreated, "duration", stats.Duration)
	return Result{StatusCode: 200, Body: SuccessBody, Stats: stats}, nil
}

func (l *Loader) writeBatch(ctx context.Context, def table.TableDefinition, batch Batch) error {
	batcher := ddbsdk.NewBatcher(l.ddb,
		ddbsdk.WithMaxRetries(l.maxRetries),
		ddbsdk.WithCustomBackoff(l.backoff),
	)
	for p, rec := range batch.Records {
		put := ddbsdk.NewPut(def, rec.Item(SynthesizeID(batch.Index, p)))
		if err := batcher.AddAction(put); err != nil {
			return fmt.Errorf("%w %d: %w", ErrWrite, batch.Index, err)
		}
	}
	if err := batcher.ExecAndRetry(ctx); err != nil {
		return fmt.Errorf("%w %d: %w", ErrWrite, batch.Index, err)
	}
	return nil
}

// UnwrittenIDs returns the ids of the items a failed load left unwritten,
// or nil when err does not carry a *ddbsdk.PartialWriteError.
func UnwrittenIDs(err error) []int64 {
	var partial *ddbsdk.PartialWriteError
	if !errors.As(err, &partial) {
		return nil
	}
	var ids []int64
	for tableName := range partial.Unprocessed {
		for _, item := range partial.Items(tableName) {
			n, ok := item[IDAttribute].(*types.AttributeValueMemberN)
			if !ok {
				continue
			}
			id, err := strconv.ParseInt(n.Value, 10, 64)
			if err == nil {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/acksell/csvload/dynamodb/ddbiface"
	"github.com/acksell/csvload/dynamodb/table"
	"github.com/acksell/csvload/logging"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// IDAttribute is the hash key of every loaded table.
const IDAttribute = "id"

// DefaultThroughput is the provisioned capacity of created tables.
var DefaultThroughput = table.Throughput{ReadCapacityUnits: 5, WriteCapacityUnits: 5}

// TableDefinitionFor returns the schema of a loaded table: a numeric hash key
// named IDAttribute and no range key.
func TableDefinitionFor(name string, throughput table.Throughput) table.TableDefinition {
	return table.TableDefinition{
		Name: name,
		KeyDefinitions: table.PrimaryKeyDefinition{
			PartitionKey: table.KeyDef{Name: IDAttribute, Kind: table.KeyKindN},
		},
		Throughput: throughput,
	}
}

// WaiterOptions bound the wait for a table to become ACTIVE.
type WaiterOptions struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	MaxWait  time.Duration
}

var DefaultWaiterOptions = WaiterOptions{
	MinDelay: 2 * time.Second,
	MaxDelay: 20 * time.Second,
	MaxWait:  5 * time.Minute,
}

func (w WaiterOptions) withDefaults() WaiterOptions {
	if w.MinDelay <= 0 {
		w.MinDelay = DefaultWaiterOptions.MinDelay
	}
	if w.MaxDelay <= 0 {
		w.MaxDelay = max(DefaultWaiterOptions.MaxDelay, w.MinDelay)
	}
	if w.MaxWait <= 0 {
		w.MaxWait = DefaultWaiterOptions.MaxWait
	}
	return w
}

// TableHandle is a table that exists and is ACTIVE.
type TableHandle struct {
	Definition table.TableDefinition
	// Created is false when the table already existed or another writer
	// created it concurrently.
	Created     bool
	Description *types.TableDescription
}

// Provisioner makes sure the table for an upload exists.
type Provisioner struct {
	client     ddbiface.TableAdmin
	throughput table.Throughput
	waiter     WaiterOptions
	logger     *slog.Logger
}

type ProvisionerOptions struct {
	Throughput table.Throughput
	Waiter     WaiterOptions
	Logger     *slog.Logger
}

func NewProvisioner(client ddbiface.TableAdmin, opts ProvisionerOptions) *Provisioner {
	if !opts.Throughput.IsProvisioned() {
		opts.Throughput = DefaultThroughput
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provisioner{
		client:     client,
		throughput: opts.Throughput,
		waiter:     opts.Waiter.withDefaults(),
		logger:     opts.Logger,
	}
}

// Ensure creates the table unless it is listed already, then waits until it
// is ACTIVE. The schema of an existing table is not checked. The header is
// only used for logging since every column is stored as an opaque attribute.
func (p *Provisioner) Ensure(ctx context.Context, name string, header []string) (TableHandle, error) {
	def := TableDefinitionFor(name, p.throughput)
	logger := logging.ForRequest(ctx, p.logger).With("table", name)
	if slices.Contains(header, IDAttribute) {
		logger.Warn("csv column is overwritten by the synthesized key", "column", IDAttribute)
	}

	exists, err := p.tableExists(ctx, name)
	if err != nil {
		return TableHandle{}, fmt.Errorf("%w %s: list tables: %w", ErrProvision, name, err)
	}

	handle := TableHandle{Definition: def}
	if !exists {
		_, err := p.client.CreateTable(ctx, def.CreateTableInput())
		var inUse *types.ResourceInUseException
		switch {
		case errors.As(err, &inUse):
			logger.Info("table created concurrently")
		case err != nil:
			return TableHandle{}, fmt.Errorf("%w %s: create table: %w", ErrProvision, name, err)
		default:
			handle.Created = true
			logger.Info("creating table", "columns", len(header))
		}
	}

	waiter := dynamodb.NewTableExistsWaiter(p.client, func(o *dynamodb.TableExistsWaiterOptions) {
		o.MinDelay = p.waiter.MinDelay
		o.MaxDelay = p.waiter.MaxDelay
	})
	out, err := waiter.WaitForOutput(ctx, &dynamodb.DescribeTableInput{TableName: &name}, p.waiter.MaxWait)
	if err != nil {
		return TableHandle{}, fmt.Errorf("%w %s: wait for table: %w", ErrProvision, name, err)
	}
	handle.Description = out.Table
	logger.Debug("table active", "created", handle.Created)
	return handle, nil
}

func (p *Provisioner) tableExists(ctx context.Context, name string) (bool, error) {
	paginator := dynamodb.NewListTablesPaginator(p.client, &dynamodb.ListTablesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		if slices.Contains(page.TableNames, name) {
			return true, nil
		}
	}
	return false, nil
}

package ddbstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/acksell/csvload/dynamodb/ddbiface"
	"github.com/acksell/csvload/dynamodb/table"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"
)

// Store is a DynamoDB-compatible store backed by BadgerDB.
// Table definitions are persisted next to the items, so a store opened on an
// existing Path sees the tables created by earlier processes.
type Store struct {
	db   *badger.DB
	opts StoreOptions

	mu     sync.RWMutex
	tables map[string]*tableSchema
}

var _ ddbiface.Client = (*Store)(nil)

type tableSchema struct {
	definition table.TableDefinition
	createdAt  time.Time
}

func (t *tableSchema) encodeKey(pk table.PrimaryKey) ([]byte, error) {
	return encodeItemKey(t.definition.Name, pk)
}

func (t *tableSchema) prefix() []byte {
	return tablePrefix(t.definition.Name)
}

// StoreOptions configures the BadgerDB store.
type StoreOptions struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
	// ActivationDelay keeps newly created tables in CREATING status for the
	// given duration, like DynamoDB does. Zero makes tables ACTIVE immediately.
	ActivationDelay time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
	// Throttle, if set, is consulted for every BatchWriteItem request.
	// Returning true leaves the request unwritten and reports it in
	// UnprocessedItems, the way DynamoDB does when throughput is exceeded.
	Throttle func(tableName string, req types.WriteRequest) bool
}

// New creates a new BadgerDB-backed DynamoDB store. The given definitions are
// created as ACTIVE tables unless they already exist.
func New(opts StoreOptions, defs ...table.TableDefinition) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)

	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{
		db:     db,
		opts:   opts,
		tables: make(map[string]*tableSchema),
	}
	if err := s.loadTables(); err != nil {
		db.Close()
		return nil, err
	}
	for _, def := range defs {
		if _, ok := s.tables[def.Name]; ok {
			continue
		}
		// Predeclared tables skip the activation delay.
		schema := &tableSchema{definition: def, createdAt: opts.Now().Add(-opts.ActivationDelay)}
		if err := s.saveTable(schema); err != nil {
			db.Close()
			return nil, err
		}
		s.tables[def.Name] = schema
	}
	return s, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

type tableRecord struct {
	Definition table.TableDefinition `json:"definition"`
	CreatedAt  time.Time             `json:"createdAt"`
}

func (s *Store) loadTables() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = metaPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec tableRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode table metadata %q: %w", it.Item().Key(), err)
			}
			s.tables[rec.Definition.Name] = &tableSchema{definition: rec.Definition, createdAt: rec.CreatedAt}
		}
		return nil
	})
}

func (s *Store) saveTable(t *tableSchema) error {
	data, err := json.Marshal(tableRecord{Definition: t.definition, CreatedAt: t.createdAt})
	if err != nil {
		return fmt.Errorf("encode table metadata: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(metaKey(t.definition.Name), data)
	})
}

func (s *Store) status(t *tableSchema) types.TableStatus {
	if s.opts.Now().Before(t.createdAt.Add(s.opts.ActivationDelay)) {
		return types.TableStatusCreating
	}
	return types.TableStatusActive
}

// getTable returns the schema of a table that exists, in any status.
func (s *Store) getTable(tableName *string) (*tableSchema, error) {
	if tableName == nil {
		return nil, validationError("table name is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, ok := s.tables[*tableName]
	if !ok {
		return nil, tableNotFound(*tableName)
	}
	return schema, nil
}

// getActiveTable is getTable for data-plane calls, which DynamoDB rejects
// until the table is ACTIVE.
func (s *Store) getActiveTable(tableName *string) (*tableSchema, error) {
	schema, err := s.getTable(tableName)
	if err != nil {
		return nil, err
	}
	if s.status(schema) != types.TableStatusActive {
		return nil, tableNotFound(*tableName)
	}
	return schema, nil
}

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,255}$`)

// CreateTable registers a new table. Only the primary key schema and
// provisioned throughput are honoured.
func (s *Store) CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	def, err := table.FromCreateTableInput(params)
	if err != nil {
		return nil, validationError(err.Error())
	}
	if !tableNamePattern.MatchString(def.Name) {
		return nil, validationError(fmt.Sprintf("invalid table name %q: must match %s", def.Name, tableNamePattern))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[def.Name]; ok {
		return nil, &types.ResourceInUseException{Message: aws.String("Table already exists: " + def.Name)}
	}
	schema := &tableSchema{definition: def, createdAt: s.opts.Now()}
	if err := s.saveTable(schema); err != nil {
		return nil, err
	}
	s.tables[def.Name] = schema

	desc := s.describe(schema, 0)
	return &dynamodb.CreateTableOutput{TableDescription: &desc}, nil
}

// DescribeTable reports the table's key schema and status. The SDK's
// TableExistsWaiter polls this until the status is ACTIVE.
func (s *Store) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	count, err := s.countItems(schema)
	if err != nil {
		return nil, err
	}
	desc := s.describe(schema, count)
	return &dynamodb.DescribeTableOutput{Table: &desc}, nil
}

func (s *Store) describe(t *tableSchema, itemCount int64) types.TableDescription {
	in := t.definition.CreateTableInput()
	desc := types.TableDescription{
		TableName:            in.TableName,
		TableStatus:          s.status(t),
		KeySchema:            in.KeySchema,
		AttributeDefinitions: in.AttributeDefinitions,
		CreationDateTime:     aws.Time(t.createdAt),
		ItemCount:            aws.Int64(itemCount),
		BillingModeSummary:   &types.BillingModeSummary{BillingMode: in.BillingMode},
	}
	if in.ProvisionedThroughput != nil {
		desc.ProvisionedThroughput = &types.ProvisionedThroughputDescription{
			ReadCapacityUnits:  in.ProvisionedThroughput.ReadCapacityUnits,
			WriteCapacityUnits: in.ProvisionedThroughput.WriteCapacityUnits,
		}
	}
	return desc
}

func (s *Store) countItems(t *tableSchema) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix()
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

const maxListTablesLimit = 100

// ListTables returns table names in ascending order, paginated like DynamoDB.
func (s *Store) ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	if params == nil {
		params = &dynamodb.ListTablesInput{}
	}
	limit := maxListTablesLimit
	if params.Limit != nil {
		if *params.Limit < 1 || *params.Limit > maxListTablesLimit {
			return nil, validationError(fmt.Sprintf("limit must be between 1 and %d", maxListTablesLimit))
		}
		limit = int(*params.Limit)
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)

	if start := aws.ToString(params.ExclusiveStartTableName); start != "" {
		i, found := slices.BinarySearch(names, start)
		if found {
			i++
		}
		names = names[i:]
	}
	out := &dynamodb.ListTablesOutput{TableNames: names}
	if len(names) > limit {
		out.TableNames = names[:limit]
		out.LastEvaluatedTableName = aws.String(names[limit-1])
	}
	return out, nil
}

// DeleteTable removes a table and all of its items.
func (s *Store) DeleteTable(ctx context.Context, params *dynamodb.DeleteTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteTableOutput, error) {
	if params == nil {
		return nil, validationError("params is required")
	}
	schema, err := s.getTable(params.TableName)
	if err != nil {
		return nil, err
	}
	desc := s.describe(schema, 0)
	desc.TableStatus = types.TableStatusDeleting

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DropPrefix(schema.prefix()); err != nil {
		return nil, fmt.Errorf("drop items: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(metaKey(schema.definition.Name))
	}); err != nil {
		return nil, fmt.Errorf("drop table metadata: %w", err)
	}
	delete(s.tables, schema.definition.Name)
	return &dynamodb.DeleteTableOutput{TableDescription: &desc}, nil
}

// readItem returns nil, nil when the key does not exist.
func readItem(txn *badger.Txn, key []byte) (map[string]types.AttributeValue, error) {
	badgerItem, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = badgerItem.Value(func(val []byte) error {
		item, err = DeserializeItem(val)
		return err
	})
	return item, err
}

func hasPrefix(key, prefix []byte) bool {
	return bytes.HasPrefix(key, prefix)
}

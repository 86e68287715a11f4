// Package ddbiface provides the core interface for DynamoDB client operations.
// This interface is satisfied by both the AWS SDK v2 DynamoDB client and by
// ddbstore.Store, allowing the loader to run against real AWS DynamoDB or
// local BadgerDB-backed storage.
package ddbiface

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Client is the subset of *dynamodb.Client used by csvload.
// It also satisfies dynamodb.DescribeTableAPIClient, dynamodb.ListTablesAPIClient
// and dynamodb.ScanAPIClient so SDK waiters and paginators accept it.
type Client interface {
	TableAdmin
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// TableAdmin covers the control-plane calls needed to provision a table.
type TableAdmin interface {
	ListTables(ctx context.Context, params *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

var _ Client = (*dynamodb.Client)(nil)

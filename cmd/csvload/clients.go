package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/acksell/csvload/blob"
	"github.com/acksell/csvload/dynamodb/ddbiface"
	"github.com/acksell/csvload/dynamodb/ddbstore"
	"github.com/acksell/csvload/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// clients are the backends a command talks to. With local set, DynamoDB is
// replaced by the BadgerDB store in cfg.Local.DataDir.
type clients struct {
	awsCfg aws.Config
	ddb    ddbiface.Client
	store  *ddbstore.Store
}

func openClients(ctx context.Context, cfg Config, local bool, logger *slog.Logger) (*clients, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := &clients{awsCfg: awsCfg}
	if local {
		store, err := ddbstore.New(ddbstore.StoreOptions{
			Path:   cfg.Local.DataDir,
			Logger: logging.BadgerLogger{Logger: logger},
		})
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		logger.Debug("using local store", "dataDir", cfg.Local.DataDir)
		c.ddb = store
		c.store = store
		return c, nil
	}
	c.ddb = dynamodb.NewFromConfig(awsCfg)
	return c, nil
}

func (c *clients) s3Source(cfg Config) blob.Source {
	return blob.NewS3Source(s3.NewFromConfig(c.awsCfg, func(o *s3.Options) {
		// Emulators such as LocalStack serve buckets by path.
		o.UsePathStyle = cfg.Endpoint != ""
	}))
}

func (c *clients) sts() *sts.Client {
	return sts.NewFromConfig(c.awsCfg)
}

func (c *clients) iam() *iam.Client {
	return iam.NewFromConfig(c.awsCfg)
}

func (c *clients) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

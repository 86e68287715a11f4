package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/acksell/csvload/logging"
	"github.com/acksell/csvload/preflight"
)

func runPreflight(cfg Config) error {
	fs := flag.NewFlagSet("preflight", flag.ExitOnError)

	var (
		bucket    = fs.String("bucket", "", "bucket the uploads arrive in")
		tableName = fs.String("table", "", "restrict DynamoDB checks to one table")
	)
	addCommonFlags(fs, &cfg)

	fs.Usage = func() {
		fmt.Println(`csvload preflight - Check the IAM permissions a load needs

Usage:
  csvload preflight --bucket <bucket> [flags]

Simulates s3:GetObject, dynamodb:ListTables, dynamodb:CreateTable,
dynamodb:DescribeTable and dynamodb:BatchWriteItem for the current
credentials and lists every denied action.

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *bucket == "" {
		fs.Usage()
		return errors.New("--bucket is required")
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()
	c, err := openClients(ctx, cfg, false, logger)
	if err != nil {
		return err
	}

	report, err := preflight.Check(ctx, c.sts(), c.iam(), preflight.Resources{
		Bucket: *bucket,
		Table:  *tableName,
		Region: c.awsCfg.Region,
	}, logger)
	if err != nil {
		return err
	}

	fmt.Printf("principal: %s\n", report.Principal)
	for _, d := range report.Decisions {
		fmt.Printf("  %-28s %-14s %s\n", d.Action, d.Decision, d.Resource)
	}
	if !report.OK() {
		return fmt.Errorf("%d actions denied", len(report.Denied()))
	}
	return nil
}

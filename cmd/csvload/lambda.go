package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/acksell/csvload/ingest"
	"github.com/acksell/csvload/logging"
	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

func runLambda(cfg Config) error {
	fs := flag.NewFlagSet("lambda", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`csvload lambda - Serve S3 upload notifications as an AWS Lambda function

Usage:
  csvload lambda

Started automatically when AWS_LAMBDA_RUNTIME_API is set and no command is given.
Configuration comes from CSVLOAD_* environment variables.`)
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()
	c, err := openClients(ctx, cfg, false, logger)
	if err != nil {
		return err
	}

	opts := cfg.loaderOptions()
	opts.Logger = logger
	loader, err := ingest.NewLoader(c.s3Source(cfg), c.ddb, opts)
	if err != nil {
		return err
	}

	lambda.Start(newHandler(loader))
	return nil
}

// newHandler tags every invocation with its request id. Errors are returned
// to the runtime so the invocation is reported as failed.
func newHandler(loader *ingest.Loader) func(context.Context, events.S3Event) (ingest.Result, error) {
	return func(ctx context.Context, ev events.S3Event) (ingest.Result, error) {
		ctx = logging.WithRequestID(ctx)
		res, err := loader.HandleS3Event(ctx, ev)
		if err != nil {
			logging.FromContext(ctx).Error("load failed", "error", err, "records", len(ev.Records), "unwritten", len(ingest.UnwrittenIDs(err)))
			return ingest.Result{}, err
		}
		return res, nil
	}
}

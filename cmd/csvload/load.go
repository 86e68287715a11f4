package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/acksell/csvload/blob"
	"github.com/acksell/csvload/ingest"
	"github.com/acksell/csvload/logging"
)

func runLoad(cfg Config) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)

	var (
		bucket = fs.String("bucket", "", "S3 bucket of the object to load")
		key    = fs.String("key", "", "S3 key of the object to load")
		file   = fs.String("file", "", "load a local CSV file instead of an S3 object")
		local  = fs.Bool("local", false, "write to the local store in local.dataDir instead of DynamoDB")
	)
	addCommonFlags(fs, &cfg)

	fs.Usage = func() {
		fmt.Println(`csvload load - Load one CSV object into its DynamoDB table

Usage:
  csvload load --bucket <bucket> --key <key> [flags]
  csvload load --file <path> [flags]

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  csvload load --bucket uploads --key orders.csv     # creates table "orders"
  csvload load --file ./orders.csv --local           # local store, no AWS calls
  csvload load --file ./orders.csv.lz4 --local       # lz4 compressed input`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var ref blob.ObjectRef
	switch {
	case *file != "" && (*bucket != "" || *key != ""):
		return errors.New("--file cannot be combined with --bucket or --key")
	case *file != "":
		ref = blob.ObjectRef{Key: filepath.Base(*file)}
	case *bucket != "" && *key != "":
		ref = blob.ObjectRef{Bucket: *bucket, Key: *key}
	default:
		fs.Usage()
		return errors.New("either --file or both --bucket and --key are required")
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logging.WithRequestID(ctx)

	c, err := openClients(ctx, cfg, *local, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	var source blob.Source
	if *file != "" {
		source = blob.FileSource{Root: filepath.Dir(*file)}
	} else {
		source = c.s3Source(cfg)
	}

	opts := cfg.loaderOptions()
	opts.Logger = logging.WithFields(ctx)
	loader, err := ingest.NewLoader(source, c.ddb, opts)
	if err != nil {
		return err
	}

	res, err := loader.Load(ctx, ref)
	if err != nil {
		if ids := ingest.UnwrittenIDs(err); len(ids) > 0 {
			return fmt.Errorf("%w (unwritten ids: %v)", err, ids)
		}
		return err
	}

	out, err := json.Marshal(res)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "table %s: %d rows in %d batches (created: %t, %s)\n",
		res.Stats.Table, res.Stats.Rows, res.Stats.Batches, res.Stats.TableCreated, res.Stats.Duration.Round(time.Millisecond))
	return nil
}

// addCommonFlags registers flags that override configuration values.
func addCommonFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Region, "region", cfg.Region, "AWS region")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "AWS endpoint override, e.g. http://localhost:4566")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "rows per grouped write (at most 100)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "retries of unprocessed items per batch")
	fs.StringVar(&cfg.Local.DataDir, "data-dir", cfg.Local.DataDir, "directory of the local store")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format: text or json")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/acksell/csvload/ingest"
	"github.com/acksell/csvload/logging"
)

func runInspect(cfg Config) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)

	var (
		tableName = fs.String("table", "", "table to inspect")
		local     = fs.Bool("local", false, "inspect the local store instead of DynamoDB")
	)
	addCommonFlags(fs, &cfg)

	fs.Usage = func() {
		fmt.Println(`csvload inspect - Count the items of a loaded table

Usage:
  csvload inspect --table <name> [flags]

Flags:`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *tableName == "" {
		fs.Usage()
		return errors.New("--table is required")
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	ctx := context.Background()
	c, err := openClients(ctx, cfg, *local, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	summary, err := ingest.Inspect(ctx, c.ddb, *tableName)
	if err != nil {
		return err
	}
	if summary.Items == 0 {
		fmt.Printf("%s: empty\n", summary.Table)
		return nil
	}
	fmt.Printf("%s: %d items, ids %d..%d\n", summary.Table, summary.Items, summary.MinID, summary.MaxID)
	return nil
}

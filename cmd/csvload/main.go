// csvload loads CSV uploads into DynamoDB.
//
// Every CSV object becomes a table named after the object key, with a
// numeric hash key "id" synthesized per row. Rows are written in batches of
// up to 100 items.
//
// # Commands
//
//	csvload lambda     Serve S3 notifications (default inside AWS Lambda)
//	csvload load       Load one object or local file
//	csvload inspect    Count the items of a loaded table
//	csvload preflight  Check IAM permissions
//
// # Quick Start
//
// Try a file against the local BadgerDB store:
//
//	csvload load --file ./orders.csv --local
//	csvload inspect --table orders --local
package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	cfg, err := LoadConfig(os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "csvload: %v\n", err)
		os.Exit(1)
	}

	cmd := "help"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
		// Remove the subcommand from args so flag parsing works
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
	} else if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		cmd = "lambda"
	}

	switch cmd {
	case "lambda":
		err = runLambda(cfg)
	case "load":
		err = runLoad(cfg)
	case "inspect":
		err = runInspect(cfg)
	case "preflight":
		err = runPreflight(cfg)
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "-v", "--version":
		fmt.Printf("csvload version %s\n", version)
		return
	default:
		fmt.Fprintf(os.Stderr, "csvload: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "csvload %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`csvload - Load CSV uploads into DynamoDB

Usage:
  csvload <command> [flags]

Commands:
  lambda     Serve S3 upload notifications (default when AWS_LAMBDA_RUNTIME_API is set)
  load       Load one S3 object or local file
  inspect    Count the items of a loaded table
  preflight  Check the IAM permissions a load needs
  version    Print the version

Examples:
  csvload load --bucket uploads --key orders.csv
  csvload load --file ./orders.csv --local
  csvload inspect --table orders --local
  csvload preflight --bucket uploads

Configuration (optional):
  Create csvload.yaml, or set CSVLOAD_CONFIG to its path:

    region: eu-west-1
    batchSize: 100
    maxRetries: 8
    readCapacity: 5
    writeCapacity: 5
    waiter:
      minDelay: 2s
      maxDelay: 20s
      maxWait: 5m
    log:
      level: info
      format: json
    local:
      dataDir: ./.csvload

  Every setting can be overridden with CSVLOAD_* environment variables
  (CSVLOAD_BATCH_SIZE, CSVLOAD_LOG_LEVEL, ...) and then with flags.

Run 'csvload <command> --help' for more information on a command.`)
}

// cmd/forecast is the operator CLI: it imports CSV bars into the series store
// and builds reports from a CSV file or from the store, printing JSON.
//
// Usage:
//
//	forecast import --symbol ACME data/acme.csv
//	forecast report --symbol ACME --horizon 30
//	forecast report --symbol ACME --archived
//	forecast report --csv data/acme.csv --horizon 10 --no-noise
//	forecast symbols
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

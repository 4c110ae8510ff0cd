// Command valuate runs a single comps or DCF valuation and prints the report.
//
//	go run ./cmd/valuate comps --ticker AAPL --peers MSFT,GOOG,META
//	go run ./cmd/valuate dcf --ticker AAPL --wacc 0.09 --xlsx aapl.xlsx
package main

import (
	"os"

	"FinValue/cmd/valuate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command pattern-trader analyzes candles and broadcasts live signals.
package main

import (
	"fmt"
	"os"

	"pattern-trader/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

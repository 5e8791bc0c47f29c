// Command ledgerctl runs the ledger integrity engine against an exported snapshot file.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := newRootCommand(os.Stdout).Execute()
	switch {
	case err == nil:
	case errors.Is(err, errLedgerInvalid):
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}

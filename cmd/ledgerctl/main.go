// Command ledgerctl runs ledger maintenance tasks against the configured backend.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

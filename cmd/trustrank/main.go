package main

import (
	"os"

	"github.com/wonny/trustrank/cmd/trustrank/commands"
)

// main is the entry point for the trustrank CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/trustrank [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

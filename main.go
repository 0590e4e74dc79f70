package main

import "github.com/custodia-labs/quaero-cli/internal/adapters/driving/cli"

func main() {
	cli.Execute()
}

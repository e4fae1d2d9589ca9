package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/platinummonkey/depgraph/pkg/cli"
)

func main() {
	// A .env file may carry DEPGRAPH_GITHUB_TOKEN.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

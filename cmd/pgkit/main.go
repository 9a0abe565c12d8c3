package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/pgkit/internal/cli"
)

func main() {
	ctx := context.Background()
	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rpggio/tally/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "tally: %v\n", err)
		os.Exit(1)
	}
}

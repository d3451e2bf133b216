package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	var root *cobra.Command

	app := fx.New(
		fx.NopLogger,
		fx.Provide(
			newConfig,
			newLogger,
			newRootCommand,
		),
		fx.Populate(&root),
	)

	if err := app.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

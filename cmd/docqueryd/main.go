package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/docquery-ai/docquery/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqueryd",
		Short: "Document QA daemon",
		Long:  "Docquery daemon running the HTTP API and the background ingestion pipeline",
	}

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shayan-nathan/airbyte/pkg/connector/registry"
	"github.com/shayan-nathan/airbyte/pkg/connector/sources/notion"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"

	// Register the destinations
	_ "github.com/shayan-nathan/airbyte/pkg/connector/destinations/json"
)

var version = "1.0.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "notion-sync",
		Short: "Incremental sync of a Notion workspace",
		Long: `notion-sync reads users, databases, pages, blocks and comments from the
Notion API and writes them as JSON records. Cursors are persisted per stream
so the next run only fetches what changed.`,
		SilenceUsage: true,
	}

	root.AddCommand(newVersionCmd(), newStreamsCmd(), newConnectorsCmd(), newSyncCmd(), newStateCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "notion-sync v%s (notion source v%s)\n", version, notion.Version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams",
		Short: "Print the catalog of Notion streams as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := notion.NewSource("notion").Discover(cmd.Context())
			if err != nil {
				return err
			}
			data, err := jsonpool.MarshalIndent(catalog, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}

func newConnectorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connectors",
		Short: "List registered connectors",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Sources:")
			for _, name := range registry.ListSources() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
			fmt.Fprintln(out, "Destinations:")
			for _, name := range registry.ListDestinations() {
				fmt.Fprintf(out, "  - %s\n", name)
			}
		},
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shayan-nathan/airbyte/pkg/connector/core"
	"github.com/shayan-nathan/airbyte/pkg/connector/sources/notion"
	jsonpool "github.com/shayan-nathan/airbyte/pkg/json"
	"github.com/shayan-nathan/airbyte/pkg/state"
)

func newStateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or rewind persisted stream cursors",
	}
	cmd.PersistentFlags().StringVar(&path, "state", "state.json", "Path to the JSON state file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the state file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := state.NewStore(path).Load()
			if err != nil {
				return err
			}
			data, err := jsonpool.MarshalIndent(st, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set STREAM VALUE",
		Short: "Replace the cursor of one incremental stream",
		Long: `Replace the cursor of one incremental stream, for example to re-read
everything edited since a date:

  notion-sync state set pages 2024-01-01T00:00:00.000Z`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ss, err := cursorState(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if _, err := state.NewStore(path).Update(args[0], ss); err != nil {
				return err
			}
			for field, value := range ss {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s = %v\n", args[0], field, value)
			}
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// cursorState validates value against the cursor of stream.
func cursorState(ctx context.Context, stream, value string) (core.StreamState, error) {
	catalog, err := notion.NewSource("notion").Discover(ctx)
	if err != nil {
		return nil, err
	}
	desc, ok := catalog.Stream(stream)
	if !ok {
		return nil, fmt.Errorf("unknown stream %q", stream)
	}
	if !desc.SupportsIncremental() {
		return nil, fmt.Errorf("stream %q is full refresh only", stream)
	}
	ts, err := notion.ParseTime(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("invalid cursor %q: %w", value, err)
	}
	return core.StreamState{desc.CursorField: notion.FormatTime(ts)}, nil
}

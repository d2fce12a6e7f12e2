package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/topsisrun/internal/persistence"
)

func (a *app) historyCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent ranking runs",
		Long:  "Lists runs recorded in the database. Requires database.enabled in the config.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			if !a.cfg.Database.Enabled {
				return errors.New("run history requires database.enabled in the config")
			}

			res, err := openResources(cmd.Context(), a.cfg, false)
			if err != nil {
				return err
			}
			defer res.Close()

			runs, err := res.store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			printRuns(a, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func printRuns(a *app, runs []persistence.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded.")
		return
	}

	fmt.Fprintf(a.stdout, "%-36s  %-20s  %-6s  %-8s  %s\n", "ID", "CREATED", "ROWS", "POLICY", "BEST")
	for _, r := range runs {
		var best []string
		for _, b := range r.Best() {
			best = append(best, b.Label)
		}
		fmt.Fprintf(a.stdout, "%-36s  %-20s  %-6d  %-8s  %s\n",
			r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Alternatives, r.Policy, strings.Join(best, ", "))
	}
}

package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"maintenance-backend/internal/generator"
	"maintenance-backend/internal/store"
)

var (
	generateAt     string
	generateWindow time.Duration
	assignDate     string
)

func init() {
	generateCmd.Flags().StringVar(&generateAt, "at", "", "generation instant, RFC3339 (default now)")
	generateCmd.Flags().DurationVar(&generateWindow, "window", 0, "lookahead window (default scheduler.lookahead_hours)")
	assignCmd.Flags().StringVar(&assignDate, "date", "", "day to assign, YYYY-MM-DD (default today)")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run task generation once and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		at := time.Now()
		if generateAt != "" {
			if at, err = time.Parse(time.RFC3339, generateAt); err != nil {
				return err
			}
		}
		window := generateWindow
		if window <= 0 {
			window = a.cfg.Scheduler.Lookahead
		}

		opts, err := a.storeOptions(nil)
		if err != nil {
			return err
		}
		sum, err := generator.New(store.NewGormStore(a.db, opts), a.metrics, a.log).GenerateTasks(cmd.Context(), at, window)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Auto-assign the open plan tasks of a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap()
		if err != nil {
			return err
		}
		defer a.close()

		loc := a.cfg.Location()
		n := time.Now().In(loc)
		day := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
		if assignDate != "" {
			if day, err = time.ParseInLocation(time.DateOnly, assignDate, loc); err != nil {
				return err
			}
		}

		opts, err := a.storeOptions(nil)
		if err != nil {
			return err
		}
		sum, err := store.NewGormStore(a.db, opts).AutoAssign(cmd.Context(), day)
		if err != nil {
			return err
		}
		return printJSON(sum)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

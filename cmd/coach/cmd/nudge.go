package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/chris/coach/internal/scheduler"
	"github.com/chris/coach/internal/surge"
	"github.com/spf13/cobra"
)

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Run the daily nudge check once and print the report",
	Args:  cobra.NoArgs,
	RunE:  runNudge,
}

func init() {
	rootCmd.AddCommand(nudgeCmd)
}

func runNudge(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	sms := surge.NewClient(cfg.SurgeAccountID, cfg.SurgeAPIKey, cfg.SMSTimeout)
	rep, err := scheduler.New(database, sms, cfg.NudgeConcurrency).Run(context.Background(), time.Now())
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

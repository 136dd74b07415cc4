package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/coach/internal/db"
	"github.com/spf13/cobra"
)

var (
	approveName     string
	approveTimezone string
)

var approveCmd = &cobra.Command{
	Use:   "approve <phone>",
	Short: "Approve a phone number, creating the user if needed",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <phone>",
	Short: "Stop replying to a phone number",
	Args:  cobra.ExactArgs(1),
	RunE:  runRevoke,
}

func init() {
	approveCmd.Flags().StringVar(&approveName, "name", "", "display name")
	approveCmd.Flags().StringVar(&approveTimezone, "timezone", "", "IANA timezone, e.g. America/New_York")
	rootCmd.AddCommand(approveCmd, revokeCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := approve(context.Background(), database, args[0], approveName, approveTimezone); err != nil {
		return err
	}
	fmt.Printf("approved %s\n", args[0])
	return nil
}

// approve creates the user when missing, applies profile flags, and sets
// the approval flag.
func approve(ctx context.Context, database *db.DB, phone, name, tz string) error {
	u, err := database.GetUserByPhone(ctx, phone)
	if err != nil {
		return err
	}
	if u == nil {
		if _, err := database.CreateUser(ctx, phone, name, tz); err != nil {
			return err
		}
	} else if name != "" || tz != "" {
		if err := database.UpdateUserProfile(ctx, phone, name, tz); err != nil {
			return err
		}
	}
	return database.SetApproval(ctx, phone, true)
}

func runRevoke(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	err = database.SetApproval(context.Background(), args[0], false)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("no user with number %s", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Printf("revoked %s\n", args[0])
	return nil
}

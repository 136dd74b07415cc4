package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chris/coach/internal/coach"
	"github.com/chris/coach/internal/surge"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <phone>",
	Short: "Talk to the coach as an approved user from the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

// consoleSender prints replies instead of texting them.
type consoleSender struct {
	w io.Writer
}

func (c consoleSender) Send(_ context.Context, _ string, body string) surge.SendResult {
	fmt.Fprintln(c.w, body)
	return surge.SendResult{Success: true, MessageID: "console-" + uuid.NewString()}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	ag, err := newAgent(cfg, database)
	if err != nil {
		return err
	}
	svc := coach.New(database, ag, consoleSender{w: os.Stdout}, coach.Options{
		HistoryLimit:    cfg.HistoryLimit,
		TurnTimeout:     cfg.TurnTimeout,
		DefaultTimezone: cfg.DefaultTimezone,
	})

	return chatLoop(context.Background(), svc, args[0], os.Stdin, os.Stderr)
}

func chatLoop(ctx context.Context, svc *coach.Service, phone string, in *os.File, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)

	// Check if stdin is a pipe (non-interactive)
	stat, _ := in.Stat()
	isPipe := stat != nil && (stat.Mode()&os.ModeCharDevice) == 0

	prompt := func() {
		if !isPipe {
			fmt.Print("you> ")
		}
	}
	prompt()

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			prompt()
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		_, err := svc.HandleDirect(ctx, phone, input)
		switch {
		case errors.Is(err, coach.ErrUserNotFound), errors.Is(err, coach.ErrNotApproved):
			return fmt.Errorf("%w: run `coach approve %s` first", err, phone)
		case err != nil:
			fmt.Fprintf(errOut, "error: %v\n", err)
		}

		if isPipe {
			break // single exchange in pipe mode
		}
		prompt()
	}
	return scanner.Err()
}

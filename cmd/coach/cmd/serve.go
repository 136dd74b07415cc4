package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/chris/coach/internal/coach"
	"github.com/chris/coach/internal/discord"
	"github.com/chris/coach/internal/scheduler"
	"github.com/chris/coach/internal/server"
	"github.com/chris/coach/internal/surge"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server (plus nudge cron and Discord bot when configured)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
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

	if cfg.SurgeAPIKey == "" || cfg.SurgeAccountID == "" {
		log.Println("warning: SURGE_ACCOUNT_ID or SURGE_API_KEY not set, replies will fail to send")
	}
	sms := surge.NewClient(cfg.SurgeAccountID, cfg.SurgeAPIKey, cfg.SMSTimeout)

	svc := coach.New(database, ag, sms, coach.Options{
		HistoryLimit:    cfg.HistoryLimit,
		TurnTimeout:     cfg.TurnTimeout,
		DefaultTimezone: cfg.DefaultTimezone,
	})

	if cfg.DiscordToken != "" {
		bot, err := discord.NewBot(cfg.DiscordToken, cfg.DiscordChannelID, cfg.DiscordAdminID, database)
		if err != nil {
			return err
		}
		defer bot.Close()
		svc.SetNotifier(bot)
	}

	sched := scheduler.New(database, sms, cfg.NudgeConcurrency)
	if cfg.NudgeCron != "" {
		if err := sched.Start(cfg.NudgeCron); err != nil {
			return err
		}
		defer sched.Stop()
	}

	srv := server.New(database, svc, sched, server.Config{
		WebhookSecret: cfg.SurgeWebhookSecret,
		CronSecret:    cfg.CronSecret,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		return err
	}
	log.Println("shutting down.")
	return nil
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vacationfavorites/apiserver/config"
	"github.com/vacationfavorites/apiserver/internal/logging"
	"github.com/vacationfavorites/apiserver/internal/mq"
	"github.com/vacationfavorites/apiserver/internal/notify"
)

// mailerCmd represents the mailer command
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Delivers queued verification and reset emails",
	Long: `Consumes mail jobs published by the API server and delivers them
through the configured email provider. Usage:

	MQ_BACKEND=rabbitmq vacfav mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg := config.LoadConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.MQ.Backend == "inline" {
			return errors.New("mailer needs MQ_BACKEND=rabbitmq or MQ_BACKEND=pubsub")
		}
		logger := logging.New(cfg.Log)

		sender, err := notify.NewSender(cfg.Mail, logger)
		if err != nil {
			return err
		}
		backend, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer backend.Close()

		logger.Info().Str("backend", cfg.MQ.Backend).Str("queue", cfg.MQ.MailQueue).Msg("mailer started")
		return notify.NewWorker(backend, cfg.MQ.MailQueue, sender, logger).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}

/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/welisten/apiserver/config"
	"github.com/welisten/apiserver/internal/logger"
	"github.com/welisten/apiserver/internal/mq"
	"github.com/welisten/apiserver/internal/services"
)

// eventsCmd represents the events command
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail feedback events from the message queue",
	Long: `Subscribes to the configured events channel and logs every feedback
event until interrupted. Usage:

	MQ_BACKEND=rabbitmq welisten events
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New(cfg.Env)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open message queue: %w", err)
		}
		defer queue.Close()

		log.Info().Str("channel", cfg.MQ.EventsChannel).Msg("listening for feedback events")
		err = queue.Subscribe(ctx, cfg.MQ.EventsChannel, func(ctx context.Context, msg mq.Message) error {
			event, err := services.DecodeEvent(msg.Data)
			if err != nil {
				// Redelivering a malformed payload cannot succeed.
				log.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping undecodable event")
				return nil
			}
			log.Info().
				Str("message_id", msg.ID).
				Str("type", event.Type).
				Int64("feedback_id", event.FeedbackID).
				Int64("user_id", event.UserID).
				Str("status", event.Status).
				Int64("upvotes", event.Upvotes).
				Ints64("similar_to", event.SimilarTo).
				Time("occurred_at", event.OccurredAt).
				Msg("feedback event")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}

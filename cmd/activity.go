/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/softdesk/apiserver/config"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/logging"
	"github.com/softdesk/apiserver/internal/mq"
)

// activityCmd tails the activity feed published by the server.
var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Log activity events from the message broker",
	Long: `Subscribes to the activity topic and logs one line per event. Usage:

	softdesk activity
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer broker.Close()

		logger.WithField("topic", cfg.MQ.Topic).Info("waiting for activity events")
		err = broker.Subscribe(ctx, cfg.MQ.Topic, func(_ context.Context, msg mq.Message) error {
			event, err := events.Decode(msg)
			if err != nil {
				// Acked and dropped; redelivering would loop.
				logger.WithError(err).Warn("dropping malformed event")
				return nil
			}
			logger.WithFields(logrus.Fields{
				"event":       event.Type,
				"actor_id":    event.ActorID,
				"user_id":     event.UserID,
				"project_id":  event.ProjectID,
				"issue_id":    event.IssueID,
				"comment_id":  event.CommentID,
				"archive_key": event.ArchiveKey,
				"occurred_at": event.OccurredAt,
			}).Info("activity")
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
}

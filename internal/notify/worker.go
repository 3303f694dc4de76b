package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/vacationfavorites/apiserver/internal/mq"
)

// Worker drains the mail queue and delivers every job through a Sender.
type Worker struct {
	backend mq.Backend
	queue   string
	sender  Sender
	logger  zerolog.Logger
}

// NewWorker constructs a Worker that delivers jobs from queue through sender.
func NewWorker(backend mq.Backend, queue string, sender Sender, logger zerolog.Logger) *Worker {
	return &Worker{backend: backend, queue: queue, sender: sender, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("queue", w.queue).Msg("mail worker started")
	err := w.backend.Subscribe(ctx, w.queue, w.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle delivers one job. Malformed jobs are dropped since a retry cannot fix them.
func (w *Worker) Handle(ctx context.Context, msg mq.Message) error {
	email, err := DecodeJob(msg)
	if err != nil {
		w.logger.Error().Err(err).Msg("dropping mail job")
		return nil
	}
	if err := w.sender.Send(ctx, email); err != nil {
		w.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Str("kind", email.Kind).
			Bool("redelivered", msg.Redelivered).
			Msg("mail delivery failed")
		return err
	}
	w.logger.Debug().Str("message_id", msg.ID).Str("kind", email.Kind).Msg("mail delivered")
	return nil
}

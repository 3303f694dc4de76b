package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AsyncNotifier delivers through a Sender on a background goroutine so the
// caller never waits on the mail provider. Failures are only logged.
type AsyncNotifier struct {
	sender  Sender
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewAsyncNotifier constructs an AsyncNotifier. A non-positive timeout falls back to 10s.
func NewAsyncNotifier(sender Sender, timeout time.Duration, logger zerolog.Logger) *AsyncNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncNotifier{sender: sender, timeout: timeout, logger: logger}
}

func (n *AsyncNotifier) Send(ctx context.Context, email Email) error {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
		defer cancel()
		if err := n.sender.Send(sendCtx, email); err != nil {
			n.logger.Error().Err(err).Str("kind", email.Kind).Msg("email delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every in-flight delivery has finished.
func (n *AsyncNotifier) Wait() {
	n.wg.Wait()
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vacationfavorites/apiserver/internal/mq"
)

// QueueNotifier hands emails to the mail worker through a broker queue.
// Send returns once the broker accepted the job; delivery happens later.
type QueueNotifier struct {
	backend mq.Backend
	queue   string
}

// NewQueueNotifier constructs a QueueNotifier publishing to queue on backend.
func NewQueueNotifier(backend mq.Backend, queue string) *QueueNotifier {
	return &QueueNotifier{backend: backend, queue: queue}
}

func (n *QueueNotifier) Send(ctx context.Context, email Email) error {
	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}
	attrs := map[string]string{mq.AttrContentType: "application/json"}
	if email.Kind != "" {
		attrs[mq.AttrKind] = email.Kind
	}
	if _, err := n.backend.Publish(ctx, n.queue, data, attrs); err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}

// DecodeJob parses a mail job published by QueueNotifier.
func DecodeJob(msg mq.Message) (Email, error) {
	var email Email
	if err := json.Unmarshal(msg.Data, &email); err != nil {
		return Email{}, fmt.Errorf("decode mail job %s: %w", msg.ID, err)
	}
	if email.To == "" {
		return Email{}, fmt.Errorf("mail job %s has no recipient", msg.ID)
	}
	return email, nil
}

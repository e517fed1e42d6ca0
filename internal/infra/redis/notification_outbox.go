package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notification is the queued form of an outgoing email.
type Notification struct {
	From     string    `json:"from,omitempty"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queuedAt"`
}

// NotificationOutbox queues notifications on a Redis list for a mail worker.
// RPUSH {queue} {json}
type NotificationOutbox struct {
	client *redis.Client
	queue  string
	from   string
	now    func() time.Time
}

func NewNotificationOutbox(client *redis.Client, queue, from string) *NotificationOutbox {
	if queue == "" {
		queue = "notifications:email"
	}
	return &NotificationOutbox{client: client, queue: queue, from: from, now: time.Now}
}

func (o *NotificationOutbox) Send(ctx context.Context, email, subject, body string) error {
	payload, err := json.Marshal(Notification{
		From:     o.from,
		To:       email,
		Subject:  subject,
		Body:     body,
		QueuedAt: o.now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := o.client.RPush(ctx, o.queue, payload).Err(); err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	return nil
}

// Pop removes the oldest queued notification. ok is false when the queue is empty.
func (o *NotificationOutbox) Pop(ctx context.Context) (n Notification, ok bool, err error) {
	payload, err := o.client.LPop(ctx, o.queue).Bytes()
	if err == redis.Nil {
		return Notification{}, false, nil
	}
	if err != nil {
		return Notification{}, false, err
	}
	if err := json.Unmarshal(payload, &n); err != nil {
		return Notification{}, false, fmt.Errorf("decode notification: %w", err)
	}
	return n, true, nil
}

package events

import (
	"context"
	"fmt"
	"log"

	"tequest-attempts/internal/domain"
)

// AuditSink records one audit row per lifecycle event.
type AuditSink interface {
	Record(ctx context.Context, userID, action string, metadata map[string]any) error
}

// Notifier delivers a message to a user's email address.
type Notifier interface {
	Send(ctx context.Context, email, subject, body string) error
}

// AuditHandler writes every event to sink.
func AuditHandler(sink AuditSink) Handler {
	return HandlerFunc(func(ctx context.Context, event domain.Event) error {
		return sink.Record(ctx, event.UserID, event.Action, event.Metadata)
	})
}

// NotifyHandler emails the user the score of a finalized attempt. Users
// without an email address are skipped.
func NotifyHandler(notifier Notifier) Handler {
	return HandlerFunc(func(ctx context.Context, event domain.Event) error {
		if event.Action != domain.ActionAttemptFinalized || event.UserEmail == "" {
			return nil
		}
		subject, body := FinalizeMessage(event)
		return notifier.Send(ctx, event.UserEmail, subject, body)
	})
}

// FinalizeMessage renders the notification for a finalized attempt.
func FinalizeMessage(event domain.Event) (subject, body string) {
	title := event.QuizTitle
	if title == "" {
		title = event.QuizID
	}
	return "Attempt submitted: " + title, fmt.Sprintf("Your score: %d", event.Score)
}

// LogAuditSink writes audit rows to the process log.
type LogAuditSink struct{}

func (LogAuditSink) Record(_ context.Context, userID, action string, metadata map[string]any) error {
	log.Printf("audit: user=%s action=%s metadata=%v", userID, action, metadata)
	return nil
}

// LogNotifier logs notifications instead of sending them.
type LogNotifier struct {
	From string
}

func (n LogNotifier) Send(_ context.Context, email, subject, body string) error {
	log.Printf("notify: from=%s to=%s subject=%q body=%q", n.From, email, subject, body)
	return nil
}

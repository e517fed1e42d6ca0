package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AuditStream appends audit rows to a capped Redis stream.
// XADD {stream} MAXLEN {maxLen} * user_id .. action .. metadata {json} at {rfc3339}
type AuditStream struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewAuditStream(client *redis.Client, stream string, maxLen int64) *AuditStream {
	if stream == "" {
		stream = "audit:attempts"
	}
	return &AuditStream{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

func (s *AuditStream) Record(ctx context.Context, userID, action string, metadata map[string]any) error {
	payload, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]interface{}{
			"user_id":  userID,
			"action":   action,
			"metadata": string(payload),
			"at":       s.now().UTC().Format(time.RFC3339Nano),
		},
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", s.stream, err)
	}
	return nil
}

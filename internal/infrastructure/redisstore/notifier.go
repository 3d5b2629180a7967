package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"digitalwall/internal/ports"
)

const progressChannel = "digitalwall:progress"

// Notifier publishes pipeline progress events on a Redis pub/sub channel so
// live clients can render per-item progress.
type Notifier struct {
	client *redis.Client
}

var _ ports.ProgressNotifier = (*Notifier)(nil)

// NewNotifier reuses an existing Redis connection for publishing.
func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

// PublishUpdate fans the event out to the shared channel and, when the item
// has an owner, a per-user channel.
func (n *Notifier) PublishUpdate(ctx context.Context, update ports.ProgressUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("marshal progress update: %w", err)
	}

	if err := n.client.Publish(ctx, progressChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	if update.UserID != "" {
		channel := progressChannel + ":" + update.UserID
		if err := n.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("publish user progress: %w", err)
		}
	}
	return nil
}

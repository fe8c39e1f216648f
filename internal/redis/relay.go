package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/notify"
)

const RelayChannel = "routine:cache"

// Relay mirrors cache-change signals between instances sharing one Redis.
// Local publishes are announced on RelayChannel; announcements from other
// instances are delivered to the local hub only.
type Relay struct {
	client   *redis.Client
	hub      *notify.Hub
	instance string
}

func NewRelay(client *redis.Client, hub *notify.Hub, instance string) *Relay {
	return &Relay{client: client, hub: hub, instance: instance}
}

func encodeSignal(instance, department string) string {
	return instance + "|" + department
}

func decodeSignal(payload string) (instance, department string, ok bool) {
	instance, department, ok = strings.Cut(payload, "|")
	if !ok || department == "" {
		return "", "", false
	}
	return instance, department, true
}

// Start subscribes to RelayChannel and hooks the hub. It returns once the
// subscription is confirmed; forwarding stops when ctx is done.
func (r *Relay) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, RelayChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", RelayChannel, err)
	}

	r.hub.OnPublish(r.announce)
	go r.listen(ctx, sub)

	log.Info().Str("instance", r.instance).Msg("cache relay started")
	return nil
}

func (r *Relay) announce(department string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, RelayChannel, encodeSignal(r.instance, department)).Err(); err != nil {
		log.Warn().Err(err).Str("department", department).Msg("failed to relay cache change")
	}
}

func (r *Relay) listen(ctx context.Context, sub *redis.PubSub) {
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			origin, department, valid := decodeSignal(msg.Payload)
			if !valid {
				log.Warn().Str("payload", msg.Payload).Msg("ignoring malformed relay message")
				continue
			}
			if origin == r.instance {
				continue
			}
			r.hub.Deliver(department)
		}
	}
}

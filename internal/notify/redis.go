// README: Redis pub/sub transport so events published on one API instance reach subscribers on all of them.
package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/metrics"
)

const DefaultTopic = "homefix:notify"

type envelope struct {
	Channel Channel `json:"channel"`
	Event   Event   `json:"event"`
}

type RedisBus struct {
	client *redis.Client
	topic  string
	log    logrus.FieldLogger
}

func NewRedisBus(client *redis.Client, topic string, log logrus.FieldLogger) *RedisBus {
	if topic == "" {
		topic = DefaultTopic
	}
	return &RedisBus{client: client, topic: topic, log: logging.OrDiscard(log)}
}

// Publish sends the event to the shared topic. Failures are logged, never returned.
func (b *RedisBus) Publish(ctx context.Context, ch Channel, ev Event) {
	payload, err := json.Marshal(envelope{Channel: ch, Event: ev})
	if err != nil {
		metrics.IncNotification(metrics.NotifyFailed)
		b.log.WithError(err).Warn("notify: encode event")
		return
	}
	if err := b.client.Publish(context.WithoutCancel(ctx), b.topic, payload).Err(); err != nil {
		metrics.IncNotification(metrics.NotifyFailed)
		b.log.WithError(err).WithFields(logrus.Fields{
			"channel": ch,
			"type":    ev.Type,
		}).Warn("notify: redis publish")
	}
}

// Relay forwards every message on the topic to local until ctx is done.
func (b *RedisBus) Relay(ctx context.Context, local Publisher) error {
	sub := b.client.Subscribe(ctx, b.topic)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.log.WithError(err).Warn("notify: discard malformed relay payload")
				continue
			}
			local.Publish(ctx, env.Channel, env.Event)
		}
	}
}

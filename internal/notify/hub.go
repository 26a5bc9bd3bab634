// README: In-process fan-out hub; websocket connections subscribe here.
package notify

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"homefix/internal/logging"
	"homefix/internal/metrics"
)

// Delivery is what a subscriber receives.
type Delivery struct {
	Channel Channel `json:"channel"`
	Event   Event   `json:"event"`
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[Channel]map[*Subscription]struct{}
	buffer int
	log    logrus.FieldLogger
}

func NewHub(buffer int, log logrus.FieldLogger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[Channel]map[*Subscription]struct{}),
		buffer: buffer,
		log:    logging.OrDiscard(log),
	}
}

type Subscription struct {
	hub      *Hub
	channels []Channel
	events   chan Delivery
	once     sync.Once
}

func (h *Hub) Subscribe(channels ...Channel) *Subscription {
	s := &Subscription{
		hub:      h,
		channels: channels,
		events:   make(chan Delivery, h.buffer),
	}
	h.mu.Lock()
	for _, ch := range channels {
		set, ok := h.subs[ch]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subs[ch] = set
		}
		set[s] = struct{}{}
	}
	h.mu.Unlock()
	return s
}

func (s *Subscription) Events() <-chan Delivery {
	return s.events
}

func (s *Subscription) Channels() []Channel {
	return s.channels
}

// Close detaches the subscription and closes its event channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		for _, ch := range s.channels {
			if set, ok := s.hub.subs[ch]; ok {
				delete(set, s)
				if len(set) == 0 {
					delete(s.hub.subs, ch)
				}
			}
		}
		s.hub.mu.Unlock()
		close(s.events)
	})
}

// Publish never blocks: a subscriber whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ch Channel, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ch] {
		select {
		case s.events <- Delivery{Channel: ch, Event: ev}:
			metrics.IncNotification(metrics.NotifyDelivered)
		default:
			metrics.IncNotification(metrics.NotifyDropped)
			h.log.WithFields(logrus.Fields{
				"channel": ch,
				"type":    ev.Type,
			}).Debug("notification dropped: subscriber buffer full")
		}
	}
}

// Subscribers reports how many subscriptions listen on ch.
func (h *Hub) Subscribers(ch Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ch])
}

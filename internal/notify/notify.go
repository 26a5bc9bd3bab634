// README: Notification bus contract: channels, events and the publisher port injected into services.
package notify

import (
	"context"
	"time"

	"homefix/internal/types"
)

// Channel addresses a set of subscribers. Per-party channels are "<role>:<id>".
type Channel string

const (
	ChannelTechnicians Channel = "technicians"
	ChannelAdmins      Channel = "admins"
)

func For(role types.Role, id types.ID) Channel {
	return Channel(string(role) + ":" + string(id))
}

func Customer(id types.ID) Channel   { return For(types.RoleCustomer, id) }
func Technician(id types.ID) Channel { return For(types.RoleTechnician, id) }

// ChannelsFor lists what a connected actor listens on: its own channel plus its role broadcast.
func ChannelsFor(a types.Actor) []Channel {
	chs := []Channel{For(a.Role, a.ID)}
	switch a.Role {
	case types.RoleTechnician:
		chs = append(chs, ChannelTechnicians)
	case types.RoleAdmin:
		chs = append(chs, ChannelAdmins)
	}
	return chs
}

type Event struct {
	Type      string         `json:"type"`
	BookingID types.ID       `json:"booking_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	At        time.Time      `json:"at"`
}

// Publisher delivers an event to whoever is subscribed to ch right now.
// Delivery is best effort; a missing subscriber is not an error.
type Publisher interface {
	Publish(ctx context.Context, ch Channel, ev Event)
}

type discard struct{}

func (discard) Publish(context.Context, Channel, Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// Message is one addressed event, queued until a transaction commits.
type Message struct {
	Channel Channel
	Event   Event
}

// Batch collects messages produced by a transition and flushes them after commit.
// The zero value stamps events with the wall clock.
type Batch struct {
	now  func() time.Time
	msgs []Message
}

// NewBatch stamps events with now.
func NewBatch(now func() time.Time) *Batch {
	return &Batch{now: now}
}

func (b *Batch) Add(ch Channel, typ string, bookingID types.ID, data map[string]any) {
	at := time.Now().UTC()
	if b.now != nil {
		at = b.now()
	}
	b.msgs = append(b.msgs, Message{
		Channel: ch,
		Event:   Event{Type: typ, BookingID: bookingID, Data: data, At: at},
	})
}

func (b *Batch) Messages() []Message {
	return b.msgs
}

func (b *Batch) Flush(ctx context.Context, p Publisher) {
	if p == nil {
		return
	}
	for _, m := range b.msgs {
		p.Publish(ctx, m.Channel, m.Event)
	}
	b.msgs = nil
}

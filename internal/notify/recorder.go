package notify

import (
	"context"
	"sync"
)

// Recorder keeps every published message in order. Used by tests and the bench tooling.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Publish(_ context.Context, ch Channel, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Message{Channel: ch, Event: ev})
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// On returns the event types delivered to ch, oldest first.
func (r *Recorder) On(ch Channel) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.Channel == ch {
			out = append(out, m.Event.Type)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

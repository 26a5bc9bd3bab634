package notify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homefix/internal/types"
)

func TestChannelsFor(t *testing.T) {
	assert.Equal(t, []Channel{"customer:c1"}, ChannelsFor(types.Actor{ID: "c1", Role: types.RoleCustomer}))
	assert.Equal(t, []Channel{"technician:t1", ChannelTechnicians}, ChannelsFor(types.Actor{ID: "t1", Role: types.RoleTechnician}))
	assert.Equal(t, []Channel{"admin:a1", ChannelAdmins}, ChannelsFor(types.Actor{ID: "a1", Role: types.RoleAdmin}))
}

func TestBatchFlushesInOrder(t *testing.T) {
	var (
		b   Batch
		rec Recorder
	)
	b.Add(Customer("c1"), "first", "b1", nil)
	b.Add(ChannelAdmins, "second", "b1", map[string]any{"k": "v"})
	assert.Len(t, b.Messages(), 2)

	b.Flush(context.Background(), &rec)
	msgs := rec.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Event.Type)
	assert.Equal(t, ChannelAdmins, msgs[1].Channel)
	assert.Empty(t, b.Messages(), "flush empties the batch")

	b.Flush(context.Background(), &rec)
	assert.Len(t, rec.Messages(), 2)
}

func TestBatchUsesInjectedClock(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	b := NewBatch(func() time.Time { return at })
	b.Add(Customer("c1"), "booking:quoted", "b1", nil)
	require.Len(t, b.Messages(), 1)
	assert.Equal(t, at, b.Messages()[0].Event.At)

	var zero Batch
	zero.Add(Customer("c1"), "booking:quoted", "b1", nil)
	assert.WithinDuration(t, time.Now(), zero.Messages()[0].Event.At, time.Minute)
}

func TestHubDeliversToSubscribedChannels(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.Subscribe(Technician("t1"), ChannelTechnicians)
	defer sub.Close()
	other := h.Subscribe(Customer("c1"))
	defer other.Close()

	h.Publish(context.Background(), ChannelTechnicians, Event{Type: "booking:new", BookingID: "b1"})
	h.Publish(context.Background(), Technician("t2"), Event{Type: "ignored"})

	select {
	case d := <-sub.Events():
		assert.Equal(t, ChannelTechnicians, d.Channel)
		assert.Equal(t, "booking:new", d.Event.Type)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
	assert.Empty(t, sub.Events())
	assert.Empty(t, other.Events())
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(1, nil)
	sub := h.Subscribe(ChannelAdmins)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			h.Publish(context.Background(), ChannelAdmins, Event{Type: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, sub.Events(), 1)
}

func TestSubscriptionClose(t *testing.T) {
	h := NewHub(2, nil)
	sub := h.Subscribe(Customer("c1"))
	assert.Equal(t, 1, h.Subscribers(Customer("c1")))

	sub.Close()
	sub.Close()
	assert.Zero(t, h.Subscribers(Customer("c1")))

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// Publishing after close must not panic.
	h.Publish(context.Background(), Customer("c1"), Event{Type: "x"})
}

func TestRecorderOn(t *testing.T) {
	var rec Recorder
	ctx := context.Background()
	rec.Publish(ctx, Customer("c1"), Event{Type: "a"})
	rec.Publish(ctx, ChannelAdmins, Event{Type: "b"})
	rec.Publish(ctx, Customer("c1"), Event{Type: "c"})

	assert.Equal(t, []string{"a", "c"}, rec.On(Customer("c1")))
	assert.Nil(t, rec.On(Technician("t1")))

	rec.Reset()
	assert.Empty(t, rec.Messages())
}

// TestRedisRelay needs a live Redis; set HOMEFIX_TEST_REDIS=host:port to run it.
func TestRedisRelay(t *testing.T) {
	addr := os.Getenv("HOMEFIX_TEST_REDIS")
	if addr == "" {
		t.Skip("HOMEFIX_TEST_REDIS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	topic := "homefix:test:" + string(types.NewID())
	bus := NewRedisBus(client, topic, nil)
	hub := NewHub(4, nil)
	sub := hub.Subscribe(Customer("c1"))
	defer sub.Close()

	relayed := make(chan error, 1)
	go func() { relayed <- bus.Relay(ctx, hub) }()

	// Relay subscribes asynchronously; publish until the first event comes through.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case d := <-sub.Events():
			assert.Equal(t, "booking:quoted", d.Event.Type)
			assert.Equal(t, types.ID("b1"), d.Event.BookingID)
			cancel()
			require.NoError(t, <-relayed)
			return
		case <-tick.C:
			bus.Publish(ctx, Customer("c1"), Event{Type: "booking:quoted", BookingID: "b1"})
		case <-deadline:
			t.Fatal("relay did not deliver")
		}
	}
}

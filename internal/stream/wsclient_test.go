package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConsumerReceivesSubscribedChannels(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	consumer := NewConsumer(ConsumerConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Channels:       []string{"signals"},
		ReconnectDelay: 50 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event, 8)
	done := make(chan error, 1)
	go func() {
		done <- consumer.Run(ctx, func(e Event) { events <- e })
	}()

	waitFor(t, "consumer subscription", func() bool { return hub.SubscriberCount("signals") == 1 })

	hub.Broadcast("prices", map[string]float64{"price": 2})
	hub.Broadcast("signals", map[string]string{"id": "s1"})

	select {
	case e := <-events:
		if e.Channel != "signals" || string(e.Data) != `{"id":"s1"}` {
			t.Errorf("unexpected event %s %s", e.Channel, e.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestConsumerReconnectsAfterDrop(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	consumer := NewConsumer(ConsumerConfig{
		URL:            "ws" + strings.TrimPrefix(srv.URL, "http"),
		Channels:       []string{"patterns"},
		ReconnectDelay: 20 * time.Millisecond,
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go consumer.Run(ctx, func(Event) {})

	waitFor(t, "first subscription", func() bool { return hub.SubscriberCount("patterns") == 1 })

	// Server-side drop.
	hub.mu.Lock()
	for _, c := range hub.clients {
		hub.removeLocked(c)
	}
	hub.mu.Unlock()

	waitFor(t, "resubscription", func() bool { return hub.SubscriberCount("patterns") == 1 })
}

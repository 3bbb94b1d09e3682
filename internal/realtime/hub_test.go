package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// Subscription filtering
// ---------------------------------------------------------------------------

func TestWants_AllEvents(t *testing.T) {
	client := &Client{sub: Subscription{AllEvents: true}}

	if !client.wants(&Event{Type: EventIntercept}) {
		t.Error("AllEvents client should receive intercept events")
	}
	if !client.wants(&Event{Type: EventExecution}) {
		t.Error("AllEvents client should receive execution events")
	}
}

func TestWants_EmptyFilterMeansAll(t *testing.T) {
	client := &Client{sub: Subscription{}}

	if !client.wants(&Event{Type: EventIntercept}) {
		t.Error("client with no filter should receive all events")
	}
}

func TestWants_EventTypeFilter(t *testing.T) {
	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventExecution},
	}}

	if client.wants(&Event{Type: EventIntercept}) {
		t.Error("should not receive intercept events")
	}
	if !client.wants(&Event{Type: EventExecution}) {
		t.Error("should receive execution events")
	}
}

// ---------------------------------------------------------------------------
// Hub lifecycle and broadcast
// ---------------------------------------------------------------------------

func TestHubBroadcastDelivery(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	client := &Client{
		hub:  h,
		send: make(chan []byte, 16),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	h.Publish("intercept", map[string]any{"requestId": "req1"})

	select {
	case raw := <-client.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != EventIntercept {
			t.Errorf("expected intercept event, got %s", event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Error("event timestamp not set")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHubFiltersByType(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	executionsOnly := &Client{
		hub:  h,
		send: make(chan []byte, 16),
		sub:  Subscription{EventTypes: []EventType{EventExecution}},
	}
	h.register <- executionsOnly

	h.Publish("intercept", map[string]any{"requestId": "req1"})
	h.Publish("execution", map[string]any{"requestId": "req1", "status": "FORWARDED"})

	select {
	case raw := <-executionsOnly.send:
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if event.Type != EventExecution {
			t.Errorf("filtered client received %s", event.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("execution event not delivered")
	}

	select {
	case raw := <-executionsOnly.send:
		t.Fatalf("unexpected extra event: %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubEvictsSlowClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	// Unbuffered send channel with no reader: every delivery fails
	slow := &Client{
		hub:  h,
		send: make(chan []byte),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- slow

	h.Publish("intercept", map[string]any{"requestId": "req1"})

	deadline := time.After(time.Second)
	for {
		h.mu.RLock()
		_, present := h.clients[slow]
		h.mu.RUnlock()
		if !present {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow client was not evicted")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	client := &Client{
		hub:  h,
		send: make(chan []byte, 16),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	cancel()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected closed send channel after shutdown")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed on shutdown")
	}

	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}

	// Upgrades after shutdown are refused
	w := httptest.NewRecorder()
	h.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", w.Code)
	}
}

func TestHubStats(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	defer cancel()

	client := &Client{
		hub:  h,
		send: make(chan []byte, 16),
		sub:  Subscription{AllEvents: true},
	}
	h.register <- client

	h.Publish("intercept", nil)
	<-client.send

	stats := h.Stats()
	if got := stats["connectedClients"].(int); got != 1 {
		t.Errorf("expected 1 connected client, got %d", got)
	}
	if got := stats["totalEvents"].(int64); got < 1 {
		t.Errorf("expected at least 1 event, got %d", got)
	}
}

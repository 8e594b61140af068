package ws

import (
	"testing"
	"time"

	"github.com/jigardave8/icitizen-market/internal/logger"
)

func testClient(listingID, id string) *Client {
	return &Client{
		ID:        id,
		ListingID: listingID,
		Send:      make(chan []byte, 4),
	}
}

func TestBroadcastReachesOnlyWatchers(t *testing.T) {
	m := NewManager(logger.New("[ws-test] "))
	go m.Run()

	a := testClient("listing-1", "a")
	b := testClient("listing-1", "b")
	other := testClient("listing-2", "c")
	m.RegisterClient(a)
	m.RegisterClient(b)
	m.RegisterClient(other)

	waitForCount(t, m, "listing-1", 2)

	m.Broadcast("listing-1", []byte(`{"amount":120}`))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			if string(msg) != `{"amount":120}` {
				t.Fatalf("client %s got unexpected payload %s", c.ID, msg)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("client %s received nothing", c.ID)
		}
	}

	select {
	case msg := <-other.Send:
		t.Fatalf("client on another listing received %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	m := NewManager(logger.New("[ws-test] "))
	go m.Run()

	a := testClient("listing-1", "a")
	m.RegisterClient(a)
	waitForCount(t, m, "listing-1", 1)

	m.UnregisterClient(a)
	waitForCount(t, m, "listing-1", 0)

	// Channel is closed on unregister.
	select {
	case _, ok := <-a.Send:
		if ok {
			t.Fatal("expected closed send channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestSlowClientIsEvicted(t *testing.T) {
	m := NewManager(logger.New("[ws-test] "))
	go m.Run()

	slow := &Client{ID: "slow", ListingID: "listing-1", Send: make(chan []byte)} // unbuffered, never drained
	m.RegisterClient(slow)
	waitForCount(t, m, "listing-1", 1)

	m.Broadcast("listing-1", []byte("x"))
	waitForCount(t, m, "listing-1", 0)
}

func waitForCount(t *testing.T, m *Manager, listingID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.SubscriberCount(listingID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscriber count for %s never reached %d (have %d)", listingID, want, m.SubscriberCount(listingID))
}

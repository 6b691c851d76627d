package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID string) *Client {
	return &Client{
		hub:      hub,
		conn:     nil,
		familyID: familyID,
		send:     make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "fam1")
	c2 := mockClient(hub, "fam1")

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount("fam1"); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount("fam1"); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount("fam1"); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "fam1")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount("fam1"); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "fam1")
	c2 := mockClient(hub, "fam1")
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("fam1", "shopping_item", "created", "item42", map[string]any{"urgency": "urgent"})
	hub.Broadcast(msg)

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "shopping_item_created" {
				t.Errorf("expected type shopping_item_created, got %s", got.Type)
			}
			if got.Entity != "shopping_item" {
				t.Errorf("expected entity shopping_item, got %s", got.Entity)
			}
			if got.ID != "item42" {
				t.Errorf("expected id item42, got %s", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastScopedToFamily(t *testing.T) {
	hub := NewHub(slog.Default())

	parker := mockClient(hub, "parkers")
	chen := mockClient(hub, "chens")
	hub.Register(parker)
	hub.Register(chen)

	hub.Broadcast(NewMessage("parkers", "calendar_event", "created", "ev1", nil))

	select {
	case <-parker.send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for parker message")
	}

	select {
	case data := <-chen.send:
		t.Fatalf("chen family received another family's broadcast: %s", data)
	default:
	}

	hub.Unregister(parker)
	hub.Unregister(chen)
}

func TestBroadcastInstanceWide(t *testing.T) {
	hub := NewHub(slog.Default())

	parker := mockClient(hub, "parkers")
	chen := mockClient(hub, "chens")
	hub.Register(parker)
	hub.Register(chen)

	hub.Broadcast(NewMessage("", "backup", "running", "", nil))

	for _, c := range []*Client{parker, chen} {
		select {
		case <-c.send:
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for instance-wide message")
		}
	}

	hub.Unregister(parker)
	hub.Unregister(chen)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	msg := NewMessage("fam1", "calendar_event", "completed", "ev1", nil)
	hub.Broadcast(msg)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "fam1")
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("fam1", "test", "fill", "x", nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("fam1", "test", "dropped", "y", nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("fam1", "calendar_event", "updated", "ev5", nil)
	if msg.Type != "calendar_event_updated" {
		t.Errorf("expected type calendar_event_updated, got %s", msg.Type)
	}
	if msg.Entity != "calendar_event" {
		t.Errorf("expected entity calendar_event, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.FamilyID != "fam1" {
		t.Errorf("expected family fam1, got %s", msg.FamilyID)
	}
	if msg.ID != "ev5" {
		t.Errorf("expected id ev5, got %s", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "fam1")
			hub.Register(c)
			hub.Broadcast(NewMessage("fam1", "test", "concurrent", "", nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount("fam1"); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

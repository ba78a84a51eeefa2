package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aishura/aishura/internal/domain"
	"github.com/coder/websocket"
)

func TestEventQueueBoundedPerUser(t *testing.T) {
	q := newEventQueue(3)

	for i := 0; i < 5; i++ {
		q.enqueue("anon_1", Event{Type: "turn", SessionID: "s1"})
	}
	q.enqueue("anon_2", Event{Type: "nudge", SessionID: "s2"})

	// One user's burst never evicts another user's events.
	if got := q.drain("anon_2"); len(got) != 1 || got[0].Type != "nudge" {
		t.Fatalf("anon_2 events = %+v", got)
	}
	if got := q.drain("anon_1"); len(got) != 3 {
		t.Fatalf("anon_1 kept %d events, want 3", len(got))
	}

	// Drain empties the queue.
	if got := q.drain("anon_1"); got != nil {
		t.Fatalf("second drain = %+v, want nil", got)
	}
}

func TestEventQueueKeepsNewestOnOverflow(t *testing.T) {
	q := newEventQueue(2)
	for _, id := range []string{"a", "b", "c"} {
		q.enqueue("anon_1", Event{Type: "turn", SessionID: id})
	}

	got := q.drain("anon_1")
	if len(got) != 2 || got[0].SessionID != "b" || got[1].SessionID != "c" {
		t.Fatalf("drained = %+v, want sessions b then c", got)
	}
}

func TestTurnAppendedBuffersForOfflineUser(t *testing.T) {
	h := NewHub()

	h.TurnAppended("anon_1", "s1", domain.Turn{ID: "t1", Author: domain.AuthorUser, Text: "Hello"})
	h.TurnAppended("anon_1", "s1", domain.Turn{ID: "t2", Author: domain.AuthorAssistant, Text: "nudge", IsNudge: true})

	if h.Connected("anon_1") {
		t.Fatal("user should be offline")
	}

	events := h.queue.drain("anon_1")
	if len(events) != 2 {
		t.Fatalf("buffered %d events, want 2", len(events))
	}
	if events[0].Type != "turn" || events[1].Type != "nudge" {
		t.Fatalf("event types = %q, %q", events[0].Type, events[1].Type)
	}
}

func TestDropUserPrunesBufferedEvents(t *testing.T) {
	h := NewHub()
	h.TurnAppended("anon_1", "s1", domain.Turn{ID: "t1", Text: "Hello"})

	h.DropUser("anon_1")
	if got := h.queue.drain("anon_1"); got != nil {
		t.Fatalf("events survived DropUser: %+v", got)
	}
}

func TestHubDeliversToLiveConnection(t *testing.T) {
	h := NewHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		id := h.Register("anon_1", ws)
		defer h.Unregister("anon_1", id)

		// Hold the connection open until the client is done.
		ctx := r.Context()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Wait until the server side registered the connection.
	deadline := time.Now().Add(2 * time.Second)
	for !h.Connected("anon_1") {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.TurnAppended("anon_1", "s1", domain.Turn{ID: "t1", Author: domain.AuthorAssistant, Text: "Hi there"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if event.Type != "turn" || event.SessionID != "s1" || event.Turn == nil || event.Turn.Text != "Hi there" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

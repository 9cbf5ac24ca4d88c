package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gameVerifyServer/registry"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

type feedHarness struct {
	hub     *Hub
	server  *httptest.Server
	cancel  context.CancelFunc
	stopped chan struct{}
}

func startFeed(t *testing.T) *feedHarness {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	return &feedHarness{
		hub:     hub,
		server:  httptest.NewServer(http.HandlerFunc(hub.ServeWS)),
		cancel:  cancel,
		stopped: stopped,
	}
}

func (f *feedHarness) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case <-f.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop")
	}
	f.server.Close()
}

func (f *feedHarness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return msg
}

func subscribe(t *testing.T, conn *websocket.Conn, channel string) map[string]any {
	t.Helper()
	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Channel: channel}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	ack := readMessage(t, conn)
	if ack["type"] != "subscribed" || ack["channel"] != channel {
		t.Fatalf("Expected subscribed ack for %s, got %v", channel, ack)
	}
	return ack
}

func TestFeed_SubmissionsChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := startFeed(t)
	defer f.stop(t)

	conn := f.dial(t)
	defer conn.Close()
	subscribe(t, conn, ChannelSubmissions)

	// A flag is not delivered on the submissions channel, so the next
	// message read must be the submission.
	f.hub.Publish(registry.Event{Type: registry.EventFlag, Seed: "s1", Fingerprint: "aa"})
	f.hub.Publish(registry.Event{Type: registry.EventSubmission, Status: registry.StatusOriginal, Seed: "s1", Fingerprint: "bb", Score: 4200})

	msg := readMessage(t, conn)
	if msg["type"] != registry.EventSubmission {
		t.Fatalf("Expected submission event, got %v", msg)
	}
	if msg["verification_hash"] != "bb" || msg["status"] != "original" {
		t.Errorf("Unexpected event payload: %v", msg)
	}
	if msg["score"] != float64(4200) {
		t.Errorf("Expected score 4200, got %v", msg["score"])
	}
}

func TestFeed_SeedChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := startFeed(t)
	defer f.stop(t)

	conn := f.dial(t)
	defer conn.Close()
	subscribe(t, conn, "seed:weekly-7")

	f.hub.Publish(registry.Event{Type: registry.EventSubmission, Seed: "other", Fingerprint: "00"})
	f.hub.Publish(registry.Event{Type: registry.EventSubmission, Seed: "weekly-7", Fingerprint: "11"})
	f.hub.Publish(registry.Event{Type: registry.EventFlag, Seed: "weekly-7", Fingerprint: "11"})

	first := readMessage(t, conn)
	if first["verification_hash"] != "11" || first["type"] != registry.EventSubmission {
		t.Fatalf("Expected submission for weekly-7, got %v", first)
	}
	second := readMessage(t, conn)
	if second["type"] != registry.EventFlag {
		t.Fatalf("Expected flag for weekly-7, got %v", second)
	}
}

func TestFeed_HistoryOnSubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := startFeed(t)
	defer f.stop(t)

	early := f.dial(t)
	defer early.Close()
	subscribe(t, early, ChannelSubmissions)

	f.hub.Publish(registry.Event{Type: registry.EventSubmission, Seed: "s1", Fingerprint: "cc"})
	readMessage(t, early)

	late := f.dial(t)
	defer late.Close()
	ack := subscribe(t, late, ChannelSubmissions)
	history, ok := ack["history"].([]any)
	if !ok || len(history) != 1 {
		t.Fatalf("Expected 1 history event, got %v", ack["history"])
	}
}

func TestFeed_RejectsUnknownChannel(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := startFeed(t)
	defer f.stop(t)

	conn := f.dial(t)
	defer conn.Close()

	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Channel: "crash"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	msg := readMessage(t, conn)
	if msg["type"] != "error" {
		t.Fatalf("Expected error reply, got %v", msg)
	}
}

func TestFeed_StopDisconnectsClients(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := startFeed(t)

	conn := f.dial(t)
	defer conn.Close()
	subscribe(t, conn, ChannelFlags)

	f.stop(t)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("Expected the connection to be closed after the hub stopped")
	}

	// Publishing after stop must not block or panic.
	f.hub.Publish(registry.Event{Type: registry.EventSubmission})
}

func TestChannelsFor(t *testing.T) {
	got := channelsFor(registry.Event{Type: registry.EventFlag, Seed: "s1"})
	if len(got) != 2 || got[0] != ChannelFlags || got[1] != "seed:s1" {
		t.Errorf("Unexpected channels: %v", got)
	}
	got = channelsFor(registry.Event{Type: registry.EventSubmission})
	if len(got) != 1 || got[0] != ChannelSubmissions {
		t.Errorf("Unexpected channels: %v", got)
	}
	if validChannel("seed:") {
		t.Error("Expected empty seed channel to be invalid")
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func registered(hub *Hub) *Client {
	c := newClient("user-1")
	hub.Register(c)
	return c
}

func TestPatientTopic(t *testing.T) {
	id := uuid.NewString()
	topic := PatientTopic(id)
	if topic != "patient/"+id {
		t.Fatalf("unexpected topic %q", topic)
	}
	if !validTopic(topic) {
		t.Error("expected patient topic to be valid")
	}
	for _, bad := range []string{"patient/", "patient/not-a-uuid", "Encounter/" + id, id} {
		if validTopic(bad) {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestHub_SubscribeAndBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	topic := PatientTopic(uuid.NewString())

	sub := registered(hub)
	other := registered(hub)
	hub.Subscribe(sub, []string{topic})
	hub.Subscribe(other, []string{PatientTopic(uuid.NewString())})

	hub.Broadcast(topic, Event{Type: EventMessageCreated, Topic: topic, ResourceType: "ChatMessage", ResourceID: "m1"})

	select {
	case data := <-sub.Send:
		var got Event
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if got.Type != EventMessageCreated || got.ResourceID != "m1" {
			t.Errorf("unexpected event %+v", got)
		}
	default:
		t.Fatal("expected subscriber to receive the event")
	}

	select {
	case <-other.Send:
		t.Fatal("client on another topic must not receive the event")
	default:
	}
}

func TestHub_SubscribeRejectsInvalidTopics(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)
	good := PatientTopic(uuid.NewString())

	accepted := hub.Subscribe(c, []string{"Patient/123", good, "*"})
	if len(accepted) != 1 || accepted[0] != good {
		t.Fatalf("expected only %s accepted, got %v", good, accepted)
	}
	if hub.TopicCount("Patient/123") != 0 {
		t.Error("invalid topic must not be tracked")
	}
}

func TestHub_SubscribeUnregisteredClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := newClient("")
	if got := hub.Subscribe(c, []string{PatientTopic(uuid.NewString())}); got != nil {
		t.Errorf("expected no subscriptions for unregistered client, got %v", got)
	}
}

func TestHub_SubscribeCap(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)

	topics := make([]string, maxTopicsPerClient+5)
	for i := range topics {
		topics[i] = PatientTopic(uuid.NewString())
	}
	hub.Subscribe(c, topics)

	if n := len(hub.Subscriptions(c)); n != maxTopicsPerClient {
		t.Errorf("expected %d subscriptions, got %d", maxTopicsPerClient, n)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)
	a, b := PatientTopic(uuid.NewString()), PatientTopic(uuid.NewString())
	hub.Subscribe(c, []string{a, b})

	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{a}})

	if hub.TopicCount(a) != 0 {
		t.Errorf("expected no subscribers on %s", a)
	}
	if hub.TopicCount(b) != 1 {
		t.Errorf("expected one subscriber on %s", b)
	}
}

func TestHub_UnregisterClosesSendAndIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)
	topic := PatientTopic(uuid.NewString())
	hub.Subscribe(c, []string{topic})

	hub.Unregister(c)
	hub.Unregister(c)

	if hub.ClientCount() != 0 || hub.TopicCount(topic) != 0 {
		t.Fatalf("expected hub to be empty, clients=%d topic=%d", hub.ClientCount(), hub.TopicCount(topic))
	}
	if _, ok := <-c.Send; ok {
		t.Error("expected Send to be closed")
	}
}

func TestHub_BroadcastSkipsFullBuffer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)
	topic := PatientTopic(uuid.NewString())
	hub.Subscribe(c, []string{topic})

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast(topic, Event{Type: EventMessageCreated, Topic: topic})
	}
	if len(c.Send) != sendBuffer {
		t.Errorf("expected buffer to hold %d events, got %d", sendBuffer, len(c.Send))
	}
}

func TestHub_PublishUsesEventTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := registered(hub)
	topic := PatientTopic(uuid.NewString())
	hub.Subscribe(c, []string{topic})

	if err := hub.Publish(context.Background(), Event{Type: EventMessageCreated, Topic: topic}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(c.Send) != 1 {
		t.Errorf("expected one queued event, got %d", len(c.Send))
	}
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	check := originChecker([]string{"http://localhost:5173"})
	if !check(req("http://localhost:5173")) {
		t.Error("expected configured origin to pass")
	}
	if check(req("http://evil.test")) {
		t.Error("expected unknown origin to be rejected")
	}
	if !check(req("")) {
		t.Error("expected non-browser client without Origin to pass")
	}
	if !originChecker([]string{"*"})(req("http://any.test")) {
		t.Error("expected wildcard to accept any origin")
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, nil, func(echo.Context) string { return "staff-1" }).RegisterRoutes(e)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	topic := PatientTopic(uuid.NewString())
	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{topic}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.TopicCount(topic) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscription was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Broadcast(topic, Event{Type: EventMessageCreated, Topic: topic, ResourceType: "ChatMessage", ResourceID: "m-1", Timestamp: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.ResourceType != "ChatMessage" || got.ResourceID != "m-1" || got.Topic != topic {
		t.Errorf("unexpected event %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not unregistered after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	NewHandler(hub, []string{"http://localhost:5173"}, nil).RegisterRoutes(e)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %v", resp)
	}
	if hub.ClientCount() != 0 {
		t.Error("rejected connection must not be registered")
	}
}

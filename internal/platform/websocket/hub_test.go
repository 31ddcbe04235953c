package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
)

var admin = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}

func newClient(id string, actor auth.Actor, topics ...string) *Client {
	return &Client{ID: id, Topics: topics, Send: make(chan []byte, 16), Actor: actor}
}

func alertEvent(t *testing.T, patientID, doctorID string) events.Event {
	t.Helper()
	e, err := events.New(events.AlertCreated, map[string]string{"metric": "OXYGEN"})
	if err != nil {
		t.Fatalf("events.New: %v", err)
	}
	return e.ForPatient(patientID, &doctorID)
}

func receive(t *testing.T, c *Client) events.Event {
	t.Helper()
	select {
	case msg := <-c.Send:
		var e events.Event
		if err := json.Unmarshal(msg, &e); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		return e
	case <-time.After(time.Second):
		t.Fatalf("client %s did not receive event", c.ID)
	}
	return events.Event{}
}

func expectNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Send:
		t.Fatalf("client %s should not have received an event", c.ID)
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c1", admin, "patient:123")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("patient:123") != 1 {
		t.Fatalf("expected 1 client on patient:123, got %d", hub.TopicCount("patient:123"))
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 || hub.TopicCount("patient:123") != 0 {
		t.Fatal("expected hub to be empty after unregister")
	}
	if _, ok := <-client.Send; ok {
		t.Fatal("expected Send channel to be closed")
	}

	// A second unregister must not panic on the closed channel.
	hub.Unregister(client)
}

func TestHub_PublishToTopic(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	subscriber := newClient("sub", admin, "patient:p1")
	other := newClient("other", admin, "patient:p2")
	hub.Register(subscriber)
	hub.Register(other)

	if err := hub.Publish(context.Background(), alertEvent(t, "p1", "doc-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got := receive(t, subscriber); got.Type != events.AlertCreated {
		t.Errorf("expected alert.created, got %s", got.Type)
	}
	expectNothing(t, other)
}

func TestHub_PublishDeliversOncePerClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("both", admin, events.TopicAlerts, "patient:p1")
	hub.Register(client)

	if err := hub.Publish(context.Background(), alertEvent(t, "p1", "doc-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	receive(t, client)
	expectNothing(t, client)
}

func TestHub_DoctorScoping(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	own := newClient("own", auth.Actor{ID: "doc-1", Role: auth.RoleDoctor}, events.TopicAlerts)
	foreign := newClient("foreign", auth.Actor{ID: "doc-2", Role: auth.RoleDoctor}, events.TopicAlerts)
	hub.Register(own)
	hub.Register(foreign)

	if err := hub.Publish(context.Background(), alertEvent(t, "p1", "doc-1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	receive(t, own)
	expectNothing(t, foreign)
}

func TestHub_ThresholdsVisibleToDoctors(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	doc := newClient("doc", auth.Actor{ID: "doc-2", Role: auth.RoleDoctor}, events.TopicThresholds)
	hub.Register(doc)

	e, _ := events.New(events.ThresholdsUpdated, map[string]float64{"heartRateMaxLow": 95})
	if err := hub.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	receive(t, doc)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := newClient("c", admin)
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{"patient:a", "patient:b"}})
	hub.Subscribe(client, []string{"patient:a"})
	if len(client.Topics) != 2 {
		t.Fatalf("expected duplicate subscribe to be ignored, topics=%v", client.Topics)
	}
	if hub.TopicCount("patient:a") != 1 || hub.TopicCount("patient:b") != 1 {
		t.Fatal("expected one subscriber on each topic")
	}

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{"patient:a"}})
	if hub.TopicCount("patient:a") != 0 {
		t.Errorf("expected 0 on patient:a, got %d", hub.TopicCount("patient:a"))
	}
	if len(client.Topics) != 1 || client.Topics[0] != "patient:b" {
		t.Errorf("expected remaining topics [patient:b], got %v", client.Topics)
	}

	hub.ProcessMessage(client, ClientMessage{Action: "bogus", Topics: []string{"patient:c"}})
	if hub.TopicCount("patient:c") != 0 {
		t.Error("unknown actions must be ignored")
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	client := &Client{ID: "slow", Topics: []string{events.TopicAlerts}, Send: make(chan []byte, 1), Actor: admin}
	hub.Register(client)

	for i := 0; i < 5; i++ {
		if err := hub.Publish(context.Background(), alertEvent(t, "p1", "doc-1")); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if len(client.Send) != 1 {
		t.Fatalf("expected buffer of 1 to be full, got %d", len(client.Send))
	}
}

func TestHub_ConcurrentRegisterPublish(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := newClient("c", admin, events.TopicAlerts)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), alertEvent(t, "p1", "doc-1"))
		}()
	}
	wg.Wait()
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = NewHandler(NewHub(zerolog.Nop())).HandleConnect(c)
	if rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("plain HTTP request must not be upgraded")
	}
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	g := e.Group("", auth.DevAuthMiddleware())
	NewHandler(hub).RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topics=patient:p1"
	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	deadline := time.Now().Add(time.Second)
	for hub.TopicCount("patient:p1") != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.TopicCount("patient:p1") != 1 {
		t.Fatal("expected client subscribed to patient:p1 after connect")
	}

	if err := conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{events.TopicAlerts}}); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}
	deadline = time.Now().Add(time.Second)
	for hub.TopicCount(events.TopicAlerts) != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	sent := alertEvent(t, "p1", "doc-1")
	if err := hub.Publish(context.Background(), sent); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received events.Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.ID != sent.ID || received.PatientID != "p1" {
		t.Fatalf("unexpected event %+v", received)
	}
}

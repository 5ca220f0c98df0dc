package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const commsTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", commsTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", commsTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", commsTestPrefix, err)
	}

	return nc, func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) (<-chan *HubEvent, func()) {
	t.Helper()
	ch := make(chan *HubEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event HubEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", commsTestPrefix, err)
			return
		}
		ch <- &event
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe %s: %v", commsTestPrefix, subject, err)
	}
	return ch, func() { _ = sub.Unsubscribe() }
}

func waitEvent(t *testing.T, ch <-chan *HubEvent, what string) *HubEvent {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(5 * time.Second):
		t.Fatalf("%s - timeout waiting for %s", commsTestPrefix, what)
		return nil
	}
}

func TestCommsPublisher_DirectMessageFanOut(t *testing.T) {
	nc, cleanup := startTestServer(t, 14230)
	defer cleanup()

	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{FlushTimeout: 2 * time.Second})

	granular, unsub1 := subscribeEvents(t, nc, "hub.events.message.direct")
	defer unsub1()
	global, unsub2 := subscribeEvents(t, nc, "hub.events")
	defer unsub2()
	inbox, unsub3 := subscribeEvents(t, nc, "hub.events.agent.bob")
	defer unsub3()

	event := &HubEvent{
		Kind:      KindMessageDirect,
		HubID:     "hub",
		From:      "alice",
		To:        "bob",
		Operation: `M.💬("bob","review PR")`,
		Ref:       "m-1",
		Summary:   "review PR",
		Timestamp: "2026-01-01T00:00:00Z",
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("%s - Publish failed: %v", commsTestPrefix, err)
	}

	for what, ch := range map[string]<-chan *HubEvent{"granular": granular, "global": global, "inbox": inbox} {
		got := waitEvent(t, ch, what)
		if diff := cmp.Diff(event, got); diff != "" {
			t.Errorf("%s - %s event mismatch (-want +got):\n%s", commsTestPrefix, what, diff)
		}
	}
}

func TestCommsPublisher_BroadcastSkipsInbox(t *testing.T) {
	nc, cleanup := startTestServer(t, 14231)
	defer cleanup()

	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalSubject: "team.events"})

	want := []string{"team.events.message.broadcast", "team.events"}
	got := publisher.Subjects(&HubEvent{Kind: KindMessageBroadcast, From: "alice", To: "*"})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("%s - subjects mismatch (-want +got):\n%s", commsTestPrefix, diff)
	}

	global, unsub := subscribeEvents(t, nc, "team.events")
	defer unsub()
	if err := publisher.Publish(context.Background(), &HubEvent{Kind: KindMessageBroadcast, From: "alice", To: "*"}); err != nil {
		t.Fatalf("%s - Publish failed: %v", commsTestPrefix, err)
	}
	nc.Flush()
	if got := waitEvent(t, global, "global"); got.Kind != KindMessageBroadcast {
		t.Errorf("%s - Kind = %q, want %q", commsTestPrefix, got.Kind, KindMessageBroadcast)
	}
}

func TestCommsPublisher_ClosedConnection(t *testing.T) {
	nc, cleanup := startTestServer(t, 14232)
	defer cleanup()

	publisher := NewCommsPublisher(nc, nil)
	nc.Close()

	if err := publisher.Publish(context.Background(), &HubEvent{Kind: KindHandoffCreated}); err == nil {
		t.Fatalf("%s - expected error publishing on closed connection", commsTestPrefix)
	}
}

func TestNewCommsPublisher_Defaults(t *testing.T) {
	nc, cleanup := startTestServer(t, 14233)
	defer cleanup()

	for _, opts := range []*CommsPublisherOpts{nil, {GlobalSubject: ""}} {
		publisher := NewCommsPublisher(nc, opts)
		if publisher.globalSubject != "hub.events" {
			t.Errorf("%s - globalSubject = %q, want hub.events", commsTestPrefix, publisher.globalSubject)
		}
	}
}

//go:build integration

package server

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/piston-labs/coordination-hub/internal/config"
	"github.com/piston-labs/coordination-hub/pkg/commsutil"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/dispatcher"
	"github.com/piston-labs/coordination-hub/pkg/events"
)

const integrationTestPrefix = "server:integration_test"

// Integration tests use DATABASE_URL (e.g. .../coordination_hub_test).
// Create the database once with: coordhub ensure-db

func TestIntegration_HubOverCommsWithDB(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skipf("%s - DATABASE_URL not set (create one with 'coordhub ensure-db'), skipping", integrationTestPrefix)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, url, nil)
	if err != nil {
		t.Fatalf("%s - NewPool failed: %v", integrationTestPrefix, err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrations("../../migrations")
	if err != nil {
		t.Fatalf("%s - LoadMigrations: %v", integrationTestPrefix, err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		t.Fatalf("%s - RunMigrations: %v", integrationTestPrefix, err)
	}
	if err := db.ClearHub(ctx, pool); err != nil {
		t.Fatalf("%s - ClearHub: %v", integrationTestPrefix, err)
	}

	nc := startCommsServer(t, 14261)
	repo := db.NewRepository(pool, nil)
	bridge := dispatcher.NewBridge(repo, &dispatcher.Options{
		HubID:         "hub",
		PublishEvents: true,
		Publisher:     events.NewCommsPublisher(nc, &events.CommsPublisherOpts{FlushTimeout: 2 * time.Second}),
	})
	s := New(&config.Config{HubSubject: "hub.a2a.v1", RequestTimeout: 5 * time.Second}, dispatcher.NewDispatcher(bridge))
	subs, err := s.Subscribe(ctx, nc)
	if err != nil {
		t.Fatalf("%s - Subscribe: %v", integrationTestPrefix, err)
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	inbox := make(chan *comms.Msg, 4)
	inboxSub, err := nc.ChanSubscribe(commsutil.BuildAgentInbox(commsutil.SubjectHubEvents, "bob"), inbox)
	if err != nil {
		t.Fatalf("%s - inbox subscribe: %v", integrationTestPrefix, err)
	}
	defer inboxSub.Unsubscribe()

	send := func(envelope string) *dispatcher.SendResponse {
		t.Helper()
		params, _ := json.Marshal(dispatcher.SendParams{Envelope: envelope})
		var resp struct {
			Ok     bool                     `json:"ok"`
			Result *dispatcher.SendResponse `json:"result"`
		}
		req := &dispatcher.HubRequest{ID: "it", Method: "send", Params: params}
		if err := commsutil.RequestJSON(nc, "hub.a2a.v1", req, &resp, commsutil.WithTimeout(5*time.Second)); err != nil {
			t.Fatalf("%s - send %s: %v", integrationTestPrefix, envelope, err)
		}
		if !resp.Ok {
			t.Fatalf("%s - transport error for %s", integrationTestPrefix, envelope)
		}
		return resp.Result
	}

	// Claim, then a competing claim from another agent.
	if out := send(`Ω{alice|hub|2|S.⚡(10,"api")→C.🔒("src/api.go","refactor")}`); out.ResponseEnvelope != "Ω{hub|alice|1|M.✓(2)}" {
		t.Fatalf("%s - alice chain reply = %q", integrationTestPrefix, out.ResponseEnvelope)
	}
	conflict := send(`Ω{bob|hub|1|C.🔒("src/api.go")}`)
	if conflict.Ok || conflict.ResponseEnvelope != `Ω{hub|bob|1|E.❌("CONFLICT: resource src/api.go is claimed by alice")}` {
		t.Errorf("%s - competing claim reply = %q", integrationTestPrefix, conflict.ResponseEnvelope)
	}

	// A handoff to bob reaches bob's inbox.
	if out := send(`Ω{alice|hub|1|H.📦("API tests","bob","branch feat/api")}`); !out.Ok {
		t.Fatalf("%s - handoff failed: %q", integrationTestPrefix, out.ResponseEnvelope)
	}
	select {
	case msg := <-inbox:
		var ev events.HubEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("%s - decode event: %v", integrationTestPrefix, err)
		}
		if ev.Kind != events.KindHandoffCreated || ev.From != "alice" || ev.Summary != "API tests" {
			t.Errorf("%s - event = %+v", integrationTestPrefix, ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("%s - no handoff event on bob's inbox", integrationTestPrefix)
	}

	// Release and re-claim by bob succeeds.
	if out := send(`Ω{alice|hub|1|C.🔓("src/api.go")}`); !out.Ok {
		t.Errorf("%s - release failed: %q", integrationTestPrefix, out.ResponseEnvelope)
	}
	if out := send(`Ω{bob|hub|1|C.🔒("src/api.go")}`); !out.Ok {
		t.Errorf("%s - bob claim after release failed: %q", integrationTestPrefix, out.ResponseEnvelope)
	}

	agents, err := repo.ListAgents(ctx)
	if err != nil {
		t.Fatalf("%s - ListAgents: %v", integrationTestPrefix, err)
	}
	if len(agents) != 1 || agents[0].ID != "alice" || agents[0].Status != db.AgentActive {
		t.Errorf("%s - agents = %+v", integrationTestPrefix, agents)
	}
}

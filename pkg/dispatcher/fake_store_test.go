package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/piston-labs/coordination-hub/pkg/db"
)

// storeCall records one invocation of the fake store.
type storeCall struct {
	Method string
	Args   []any
}

// fakeStore is an in-memory CoordinationStore that records every call.
// failOn maps a method name to the error it should return; panicOn makes
// the method panic instead.
type fakeStore struct {
	mu      sync.Mutex
	calls   []storeCall
	failOn  map[string]error
	panicOn map[string]bool
	delay   time.Duration
	peers   []db.Peer
	pingErr error
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{failOn: map[string]error{}, panicOn: map[string]bool{}}
}

func (f *fakeStore) record(method string, args ...any) error {
	f.mu.Lock()
	f.calls = append(f.calls, storeCall{Method: method, Args: args})
	f.seq++
	err := f.failOn[method]
	p := f.panicOn[method]
	d := f.delay
	f.mu.Unlock()

	if d > 0 {
		time.Sleep(d)
	}
	if p {
		panic(fmt.Sprintf("%s exploded", method))
	}
	return err
}

func (f *fakeStore) nextID(prefix string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeStore) Calls() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeStore) Claim(_ context.Context, resource, agentID, description string) (*db.Claim, error) {
	if err := f.record("Claim", resource, agentID, description); err != nil {
		return nil, err
	}
	return &db.Claim{Resource: resource, AgentID: agentID, Description: description}, nil
}

func (f *fakeStore) Release(_ context.Context, resource, agentID string) (*db.Claim, error) {
	if err := f.record("Release", resource, agentID); err != nil {
		return nil, err
	}
	return &db.Claim{Resource: resource, AgentID: agentID}, nil
}

func (f *fakeStore) CheckClaim(_ context.Context, resource string) (*db.ClaimStatus, error) {
	if err := f.record("CheckClaim", resource); err != nil {
		return nil, err
	}
	return &db.ClaimStatus{Resource: resource}, nil
}

func (f *fakeStore) CreateTask(_ context.Context, p db.CreateTaskParams) (*db.Task, error) {
	if err := f.record("CreateTask", p); err != nil {
		return nil, err
	}
	return &db.Task{ID: f.nextID("task"), Title: p.Title, Description: p.Description, Priority: p.Priority, Status: db.TaskTodo, CreatedBy: p.CreatedBy}, nil
}

func (f *fakeStore) UpdateTaskStatus(_ context.Context, taskID, status, agentID string) (*db.Task, error) {
	if err := f.record("UpdateTaskStatus", taskID, status, agentID); err != nil {
		return nil, err
	}
	return &db.Task{ID: taskID, Status: status, ModifiedBy: agentID}, nil
}

func (f *fakeStore) UpdateAgentStatus(_ context.Context, p db.AgentStatusUpdate) (*db.Agent, error) {
	if err := f.record("UpdateAgentStatus", p); err != nil {
		return nil, err
	}
	return &db.Agent{ID: p.AgentID, Status: p.Status, CurrentTask: p.CurrentTask, Progress: p.Progress}, nil
}

func (f *fakeStore) SendDirectMessage(_ context.Context, fromID, toID, body string) (*db.Message, error) {
	if err := f.record("SendDirectMessage", fromID, toID, body); err != nil {
		return nil, err
	}
	return &db.Message{ID: f.nextID("msg"), Kind: db.MessageDirect, FromAgent: fromID, ToAgent: toID, Body: body}, nil
}

func (f *fakeStore) PostBroadcastMessage(_ context.Context, fromID, body string) (*db.Message, error) {
	if err := f.record("PostBroadcastMessage", fromID, body); err != nil {
		return nil, err
	}
	return &db.Message{ID: f.nextID("msg"), Kind: db.MessageBroadcast, FromAgent: fromID, ToAgent: "*", Body: body}, nil
}

func (f *fakeStore) Acknowledge(_ context.Context, ref, agentID string) (*db.AckResult, error) {
	if err := f.record("Acknowledge", ref, agentID); err != nil {
		return nil, err
	}
	return &db.AckResult{Ref: ref, Acknowledged: 1}, nil
}

func (f *fakeStore) LockResource(_ context.Context, path, agentID, reason string) (*db.Lock, error) {
	if err := f.record("LockResource", path, agentID, reason); err != nil {
		return nil, err
	}
	return &db.Lock{Path: path, AgentID: agentID, Reason: reason}, nil
}

func (f *fakeStore) UnlockResource(_ context.Context, path, agentID string) (*db.Lock, error) {
	if err := f.record("UnlockResource", path, agentID); err != nil {
		return nil, err
	}
	return &db.Lock{Path: path, AgentID: agentID}, nil
}

func (f *fakeStore) CreateHandoff(_ context.Context, p db.CreateHandoffParams) (*db.Handoff, error) {
	if err := f.record("CreateHandoff", p); err != nil {
		return nil, err
	}
	return &db.Handoff{ID: f.nextID("handoff"), Title: p.Title, FromAgent: p.FromAgent, ToAgent: p.ToAgent, Context: p.Context, Status: db.HandoffPending}, nil
}

func (f *fakeStore) ClaimHandoff(_ context.Context, handoffID, agentID string) (*db.Handoff, error) {
	if err := f.record("ClaimHandoff", handoffID, agentID); err != nil {
		return nil, err
	}
	return &db.Handoff{ID: handoffID, Title: "work", FromAgent: "alice", ToAgent: agentID, Status: db.HandoffClaimed, ClaimedBy: &agentID}, nil
}

func (f *fakeStore) CompleteHandoff(_ context.Context, handoffID, agentID string) (*db.Handoff, error) {
	if err := f.record("CompleteHandoff", handoffID, agentID); err != nil {
		return nil, err
	}
	return &db.Handoff{ID: handoffID, Title: "work", FromAgent: "alice", ToAgent: agentID, Status: db.HandoffCompleted, ClaimedBy: &agentID}, nil
}

func (f *fakeStore) UpsertPeer(_ context.Context, p db.PeerParams) (*db.Peer, error) {
	if err := f.record("UpsertPeer", p); err != nil {
		return nil, err
	}
	peer := db.Peer{ID: p.ID, Endpoint: p.Endpoint, Version: p.Version, Capabilities: p.Capabilities}
	f.mu.Lock()
	f.peers = append(f.peers, peer)
	f.mu.Unlock()
	return &peer, nil
}

func (f *fakeStore) ListPeers(_ context.Context) ([]db.Peer, error) {
	if err := f.record("ListPeers"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.Peer(nil), f.peers...), nil
}

func (f *fakeStore) Ping(_ context.Context) error {
	_ = f.record("Ping")
	return f.pingErr
}

var errStoreDown = errors.New("connection refused")

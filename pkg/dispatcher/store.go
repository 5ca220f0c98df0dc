package dispatcher

import (
	"context"

	"github.com/piston-labs/coordination-hub/pkg/db"
)

// CoordinationStore is the persistence the bridge executes operations
// against. *db.Repository implements it.
type CoordinationStore interface {
	Claim(ctx context.Context, resource, agentID, description string) (*db.Claim, error)
	Release(ctx context.Context, resource, agentID string) (*db.Claim, error)
	CheckClaim(ctx context.Context, resource string) (*db.ClaimStatus, error)

	CreateTask(ctx context.Context, params db.CreateTaskParams) (*db.Task, error)
	UpdateTaskStatus(ctx context.Context, taskID, status, agentID string) (*db.Task, error)

	UpdateAgentStatus(ctx context.Context, params db.AgentStatusUpdate) (*db.Agent, error)

	SendDirectMessage(ctx context.Context, fromID, toID, body string) (*db.Message, error)
	PostBroadcastMessage(ctx context.Context, fromID, body string) (*db.Message, error)
	Acknowledge(ctx context.Context, ref, agentID string) (*db.AckResult, error)

	LockResource(ctx context.Context, path, agentID, reason string) (*db.Lock, error)
	UnlockResource(ctx context.Context, path, agentID string) (*db.Lock, error)

	CreateHandoff(ctx context.Context, params db.CreateHandoffParams) (*db.Handoff, error)
	ClaimHandoff(ctx context.Context, handoffID, agentID string) (*db.Handoff, error)
	CompleteHandoff(ctx context.Context, handoffID, agentID string) (*db.Handoff, error)

	UpsertPeer(ctx context.Context, params db.PeerParams) (*db.Peer, error)
	ListPeers(ctx context.Context) ([]db.Peer, error)

	Ping(ctx context.Context) error
}

var _ CoordinationStore = (*db.Repository)(nil)

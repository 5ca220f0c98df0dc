package dispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/piston-labs/coordination-hub/pkg/a2a"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/events"
)

// call is one operation bound to the agent it runs as.
type call struct {
	op    *a2a.Operation
	actor string
}

// ActionFunc executes one operation against the store.
type ActionFunc func(ctx context.Context, store CoordinationStore, c call) (any, error)

// eventFunc builds the hub event announcing a successful action.
type eventFunc func(c call, result any) *events.HubEvent

type action struct {
	run   ActionFunc
	event eventFunc
}

// ParamError reports a missing or malformed operation parameter.
type ParamError struct {
	Op     string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("param: %s %s", e.Op, e.Reason)
}

func required(c call, i int, name string) (string, error) {
	v := strings.TrimSpace(c.op.Param(i))
	if v == "" {
		return "", &ParamError{Op: c.op.Key().String(), Reason: name + " is required"}
	}
	return v, nil
}

// progressParam coerces an optional progress value to an int in [0, 100].
func progressParam(c call, i int) (*int, error) {
	raw := strings.TrimSpace(c.op.Param(i))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 100 {
		return nil, &ParamError{Op: c.op.Key().String(), Reason: fmt.Sprintf("progress %q must be an integer 0-100", raw)}
	}
	return &n, nil
}

func priorityParam(c call, i int) (string, error) {
	p := strings.ToLower(strings.TrimSpace(c.op.Param(i)))
	if p == "" {
		return db.PriorityMedium, nil
	}
	if !db.IsValidPriority(p) {
		return "", &ParamError{Op: c.op.Key().String(), Reason: fmt.Sprintf("priority %q must be low, medium, high or urgent", p)}
	}
	return p, nil
}

// defaultActions is the registration table. Operations missing from it are
// answered with E.❓ and never reach the store.
func defaultActions() map[a2a.OpKey]action {
	return map[a2a.OpKey]action{
		a2a.OpClaim: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			resource, err := required(c, 0, "resource")
			if err != nil {
				return nil, err
			}
			return s.Claim(ctx, resource, c.actor, c.op.Param(1))
		}},
		a2a.OpRelease: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			resource, err := required(c, 0, "resource")
			if err != nil {
				return nil, err
			}
			return s.Release(ctx, resource, c.actor)
		}},
		a2a.OpCheckClaim: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			resource, err := required(c, 0, "resource")
			if err != nil {
				return nil, err
			}
			return s.CheckClaim(ctx, resource)
		}},

		a2a.OpCreateTask: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			title, err := required(c, 0, "title")
			if err != nil {
				return nil, err
			}
			priority, err := priorityParam(c, 2)
			if err != nil {
				return nil, err
			}
			return s.CreateTask(ctx, db.CreateTaskParams{
				Title:       title,
				Description: c.op.Param(1),
				Priority:    priority,
				CreatedBy:   c.actor,
			})
		}},
		a2a.OpUpdateTask: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			id, err := required(c, 0, "taskId")
			if err != nil {
				return nil, err
			}
			status, err := required(c, 1, "status")
			if err != nil {
				return nil, err
			}
			return s.UpdateTaskStatus(ctx, id, status, c.actor)
		}},
		a2a.OpCompleteTask: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			id, err := required(c, 0, "taskId")
			if err != nil {
				return nil, err
			}
			return s.UpdateTaskStatus(ctx, id, db.TaskDone, c.actor)
		}},

		a2a.OpActive: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			progress, err := progressParam(c, 0)
			if err != nil {
				return nil, err
			}
			return s.UpdateAgentStatus(ctx, db.AgentStatusUpdate{
				AgentID:     c.actor,
				Status:      db.AgentActive,
				CurrentTask: c.op.Param(1),
				Progress:    progress,
			})
		}},
		a2a.OpIdle:    {run: statusAction(db.AgentIdle)},
		a2a.OpBlocked: {run: statusAction(db.AgentBlocked)},
		a2a.OpOffline: {run: statusAction(db.AgentOffline)},

		a2a.OpDirect: {
			run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
				to, err := required(c, 0, "to")
				if err != nil {
					return nil, err
				}
				body, err := required(c, 1, "body")
				if err != nil {
					return nil, err
				}
				return s.SendDirectMessage(ctx, c.actor, to, body)
			},
			event: messageEvent(events.KindMessageDirect),
		},
		a2a.OpBroadcast: {
			run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
				body, err := required(c, 0, "body")
				if err != nil {
					return nil, err
				}
				return s.PostBroadcastMessage(ctx, c.actor, body)
			},
			event: messageEvent(events.KindMessageBroadcast),
		},
		a2a.OpAck: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			return s.Acknowledge(ctx, strings.TrimSpace(c.op.Param(0)), c.actor)
		}},

		a2a.OpLock: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			path, err := required(c, 0, "path")
			if err != nil {
				return nil, err
			}
			return s.LockResource(ctx, path, c.actor, c.op.Param(1))
		}},
		a2a.OpUnlock: {run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
			path, err := required(c, 0, "path")
			if err != nil {
				return nil, err
			}
			return s.UnlockResource(ctx, path, c.actor)
		}},

		a2a.OpHandoff: {
			run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
				title, err := required(c, 0, "title")
				if err != nil {
					return nil, err
				}
				to, err := required(c, 1, "toAgent")
				if err != nil {
					return nil, err
				}
				return s.CreateHandoff(ctx, db.CreateHandoffParams{
					Title:     title,
					FromAgent: c.actor,
					ToAgent:   to,
					Context:   c.op.Param(2),
				})
			},
			event: handoffEvent(events.KindHandoffCreated),
		},
		a2a.OpClaimHandoff: {
			run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
				id, err := required(c, 0, "handoffId")
				if err != nil {
					return nil, err
				}
				return s.ClaimHandoff(ctx, id, c.actor)
			},
			event: handoffEvent(events.KindHandoffClaimed),
		},
		a2a.OpCompleteHandoff: {
			run: func(ctx context.Context, s CoordinationStore, c call) (any, error) {
				id, err := required(c, 0, "handoffId")
				if err != nil {
					return nil, err
				}
				return s.CompleteHandoff(ctx, id, c.actor)
			},
			event: handoffEvent(events.KindHandoffCompleted),
		},
	}
}

// statusAction records a presence change; the first param is a free-text
// description of what the agent is doing or waiting on.
func statusAction(status string) ActionFunc {
	return func(ctx context.Context, s CoordinationStore, c call) (any, error) {
		return s.UpdateAgentStatus(ctx, db.AgentStatusUpdate{
			AgentID:     c.actor,
			Status:      status,
			CurrentTask: c.op.Param(0),
		})
	}
}

func messageEvent(kind string) eventFunc {
	return func(c call, result any) *events.HubEvent {
		ev := &events.HubEvent{Kind: kind, From: c.actor, Operation: c.op.String()}
		if m, ok := result.(*db.Message); ok && m != nil {
			ev.To = m.ToAgent
			ev.Ref = m.ID
			ev.Summary = m.Body
		}
		return ev
	}
}

func handoffEvent(kind string) eventFunc {
	return func(c call, result any) *events.HubEvent {
		ev := &events.HubEvent{Kind: kind, From: c.actor, Operation: c.op.String()}
		if h, ok := result.(*db.Handoff); ok && h != nil {
			ev.Ref = h.ID
			ev.Summary = h.Title
			// Notify the other side of the handoff.
			if c.actor == h.ToAgent {
				ev.To = h.FromAgent
			} else {
				ev.To = h.ToAgent
			}
		}
		return ev
	}
}

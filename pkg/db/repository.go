package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

const (
	defaultClaimTTL = 30 * time.Minute
	defaultLockTTL  = 2 * time.Hour
)

// RepositoryOpts configures Repository. Nil or zero values use defaults.
type RepositoryOpts struct {
	ClaimTTL time.Duration
	LockTTL  time.Duration
	// Now overrides the clock used for timestamps and expiry checks.
	Now func() time.Time
}

// Repository is the Postgres-backed coordination store: agents, tasks,
// messages, claims, locks, handoffs, and negotiated peers.
type Repository struct {
	pool     *pgxpool.Pool
	claimTTL time.Duration
	lockTTL  time.Duration
	now      func() time.Time
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(pool *pgxpool.Pool, opts *RepositoryOpts) *Repository {
	r := &Repository{
		pool:     pool,
		claimTTL: defaultClaimTTL,
		lockTTL:  defaultLockTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if opts != nil {
		if opts.ClaimTTL > 0 {
			r.claimTTL = opts.ClaimTTL
		}
		if opts.LockTTL > 0 {
			r.lockTTL = opts.LockTTL
		}
		if opts.Now != nil {
			r.now = opts.Now
		}
	}
	return r
}

// Ping checks database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%s - ping failed: %w", repoLogPrefix, err)
	}
	return nil
}

// =========================================================================
// AGENTS
// =========================================================================

// AgentStatusUpdate holds parameters for UpdateAgentStatus.
type AgentStatusUpdate struct {
	AgentID     string
	Status      string
	CurrentTask string
	Progress    *int
}

const agentColumns = `id, COALESCE(name, ''), COALESCE(role, ''), status, COALESCE(current_task, ''), progress, last_seen, created`

// UpdateAgentStatus records an agent's presence, creating the agent on first sight.
func (r *Repository) UpdateAgentStatus(ctx context.Context, params AgentStatusUpdate) (*Agent, error) {
	slog.Debug(fmt.Sprintf("%s - UpdateAgentStatus agent=%s status=%s", repoLogPrefix, params.AgentID, params.Status))

	if strings.TrimSpace(params.AgentID) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "agent id is required")
	}
	if !IsValidAgentStatus(params.Status) {
		return nil, NewStoreError(CodeInvalidArgument, "unknown agent status %q", params.Status)
	}

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO agents (id, status, current_task, progress, last_seen, created)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   current_task = EXCLUDED.current_task,
		   progress = EXCLUDED.progress,
		   last_seen = EXCLUDED.last_seen
		 RETURNING `+agentColumns,
		params.AgentID, params.Status, params.CurrentTask, params.Progress, now)

	return scanAgent(row)
}

// UpsertAgentParams holds parameters for UpsertAgent.
type UpsertAgentParams struct {
	ID   string
	Name string
	Role string
}

// UpsertAgent registers an agent's identity without touching its presence.
func (r *Repository) UpsertAgent(ctx context.Context, params UpsertAgentParams) (*Agent, error) {
	slog.Info(fmt.Sprintf("%s - UpsertAgent id=%s role=%s", repoLogPrefix, params.ID, params.Role))

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO agents (id, name, role, status, last_seen, created)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   name = COALESCE(EXCLUDED.name, agents.name),
		   role = COALESCE(EXCLUDED.role, agents.role)
		 RETURNING `+agentColumns,
		params.ID, params.Name, params.Role, AgentOffline, now)

	return scanAgent(row)
}

// ListAgents returns all known agents, most recently seen first.
func (r *Repository) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY last_seen DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s - ListAgents failed: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var agents []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

func scanAgent(row pgx.Row) (*Agent, error) {
	var a Agent
	if err := row.Scan(&a.ID, &a.Name, &a.Role, &a.Status, &a.CurrentTask, &a.Progress, &a.LastSeen, &a.Created); err != nil {
		return nil, fmt.Errorf("%s - scan agent failed: %w", repoLogPrefix, err)
	}
	return &a, nil
}

// =========================================================================
// TASKS
// =========================================================================

// CreateTaskParams holds parameters for CreateTask.
type CreateTaskParams struct {
	Title       string
	Description string
	Priority    string
	CreatedBy   string
}

const taskColumns = `id, title, COALESCE(description, ''), priority, status, created_by, created, modified, modified_by`

// CreateTask inserts a new task in the todo state.
func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (*Task, error) {
	slog.Info(fmt.Sprintf("%s - CreateTask title=%q by=%s", repoLogPrefix, params.Title, params.CreatedBy))

	if strings.TrimSpace(params.Title) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "task title is required")
	}
	priority := params.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !IsValidPriority(priority) {
		return nil, NewStoreError(CodeInvalidArgument, "unknown priority %q", priority)
	}

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO tasks (id, title, description, priority, status, created_by, modified_by, created, modified)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $6, $7, $7)
		 RETURNING `+taskColumns,
		uuid.NewString(), params.Title, params.Description, priority, TaskTodo, params.CreatedBy, now)

	return scanTask(row)
}

// UpdateTaskStatus moves a task to a new status.
func (r *Repository) UpdateTaskStatus(ctx context.Context, taskID, status, agentID string) (*Task, error) {
	slog.Info(fmt.Sprintf("%s - UpdateTaskStatus id=%s status=%s by=%s", repoLogPrefix, taskID, status, agentID))

	if !IsValidTaskStatus(status) {
		return nil, NewStoreError(CodeInvalidArgument, "unknown task status %q", status)
	}

	row := r.pool.QueryRow(ctx,
		`UPDATE tasks SET status = $2, modified = $3, modified_by = $4
		 WHERE id = $1
		 RETURNING `+taskColumns,
		taskID, status, r.now(), agentID)

	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewStoreError(CodeNotFound, "task %s not found", taskID)
	}
	return task, err
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status,
		&t.CreatedBy, &t.Created, &t.Modified, &t.ModifiedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s - scan task failed: %w", repoLogPrefix, err)
	}
	return &t, nil
}

// =========================================================================
// MESSAGES
// =========================================================================

const messageColumns = `id, kind, from_agent, to_agent, body, created, acked_at, acked_by`

// SendDirectMessage stores a message from one agent to another.
func (r *Repository) SendDirectMessage(ctx context.Context, fromID, toID, body string) (*Message, error) {
	if strings.TrimSpace(toID) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "recipient is required")
	}
	return r.insertMessage(ctx, MessageDirect, fromID, toID, body)
}

// PostBroadcastMessage stores a message addressed to every agent.
func (r *Repository) PostBroadcastMessage(ctx context.Context, fromID, body string) (*Message, error) {
	return r.insertMessage(ctx, MessageBroadcast, fromID, "*", body)
}

func (r *Repository) insertMessage(ctx context.Context, kind, fromID, toID, body string) (*Message, error) {
	slog.Debug(fmt.Sprintf("%s - insertMessage kind=%s from=%s to=%s", repoLogPrefix, kind, fromID, toID))

	if strings.TrimSpace(body) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "message body is required")
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO messages (id, kind, from_agent, to_agent, body, created)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+messageColumns,
		uuid.NewString(), kind, fromID, toID, body, r.now())

	var m Message
	if err := row.Scan(&m.ID, &m.Kind, &m.FromAgent, &m.ToAgent, &m.Body, &m.Created, &m.AckedAt, &m.AckedBy); err != nil {
		return nil, fmt.Errorf("%s - insert message failed: %w", repoLogPrefix, err)
	}
	return &m, nil
}

// Acknowledge marks a message as read by agentID. An empty ref acknowledges
// every pending direct message addressed to the agent. A broadcast ref is
// recorded for agentID alone; other agents still see it as unread.
func (r *Repository) Acknowledge(ctx context.Context, ref, agentID string) (*AckResult, error) {
	slog.Debug(fmt.Sprintf("%s - Acknowledge ref=%s agent=%s", repoLogPrefix, ref, agentID))

	now := r.now()
	if ref == "" {
		tag, err := r.pool.Exec(ctx,
			`UPDATE messages SET acked_at = $2, acked_by = $1
			 WHERE to_agent = $1 AND kind = $3 AND acked_at IS NULL`,
			agentID, now, MessageDirect)
		if err != nil {
			return nil, fmt.Errorf("%s - Acknowledge failed: %w", repoLogPrefix, err)
		}
		return &AckResult{Acknowledged: tag.RowsAffected()}, nil
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET acked_at = $3, acked_by = $2
		 WHERE id = $1 AND kind = $4 AND to_agent = $2`,
		ref, agentID, now, MessageDirect)
	if err != nil {
		return nil, fmt.Errorf("%s - Acknowledge failed: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() > 0 {
		return &AckResult{Ref: ref, Acknowledged: tag.RowsAffected()}, nil
	}

	tag, err = r.pool.Exec(ctx,
		`INSERT INTO message_acks (message_id, agent_id, acked_at)
		 SELECT id, $2, $3 FROM messages WHERE id = $1 AND kind = $4
		 ON CONFLICT (message_id, agent_id) DO UPDATE SET acked_at = EXCLUDED.acked_at`,
		ref, agentID, now, MessageBroadcast)
	if err != nil {
		return nil, fmt.Errorf("%s - Acknowledge broadcast failed: %w", repoLogPrefix, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, NewStoreError(CodeNotFound, "message %s not found for %s", ref, agentID)
	}
	return &AckResult{Ref: ref, Acknowledged: tag.RowsAffected()}, nil
}

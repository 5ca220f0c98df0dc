package db

import "time"

// Agent represents a row in the agents table.
type Agent struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Role        string    `json:"role,omitempty"`
	Status      string    `json:"status"`
	CurrentTask string    `json:"currentTask,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	LastSeen    time.Time `json:"lastSeen"`
	Created     time.Time `json:"created"`
}

// Task represents a row in the tasks table.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	CreatedBy   string    `json:"createdBy"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	ModifiedBy  string    `json:"modifiedBy"`
}

// Message represents a row in the messages table. Broadcasts are stored
// with ToAgent set to "*".
type Message struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	FromAgent string     `json:"from"`
	ToAgent   string     `json:"to"`
	Body      string     `json:"body"`
	Created   time.Time  `json:"created"`
	AckedAt   *time.Time `json:"ackedAt,omitempty"`
	AckedBy   *string    `json:"ackedBy,omitempty"`
}

// AckResult reports how many messages an acknowledgement covered.
type AckResult struct {
	Ref          string `json:"ref,omitempty"`
	Acknowledged int64  `json:"acknowledged"`
}

// Claim represents a row in the claims table.
type Claim struct {
	Resource    string    `json:"resource"`
	AgentID     string    `json:"agentId"`
	Description string    `json:"description,omitempty"`
	ClaimedAt   time.Time `json:"claimedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ClaimStatus is the result of checking a resource claim.
type ClaimStatus struct {
	Resource string `json:"resource"`
	Claimed  bool   `json:"claimed"`
	Claim    *Claim `json:"claim,omitempty"`
}

// Lock represents a row in the locks table.
type Lock struct {
	Path      string    `json:"path"`
	AgentID   string    `json:"agentId"`
	Reason    string    `json:"reason,omitempty"`
	LockedAt  time.Time `json:"lockedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Handoff represents a row in the handoffs table.
type Handoff struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	FromAgent   string     `json:"from"`
	ToAgent     string     `json:"to"`
	Context     string     `json:"context,omitempty"`
	Status      string     `json:"status"`
	ClaimedBy   *string    `json:"claimedBy,omitempty"`
	Created     time.Time  `json:"created"`
	ClaimedAt   *time.Time `json:"claimedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Peer represents a row in the peers table, written by protocol negotiation.
type Peer struct {
	ID           string    `json:"id"`
	Endpoint     string    `json:"endpoint,omitempty"`
	Version      string    `json:"version"`
	Capabilities []string  `json:"capabilities"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Agent statuses.
const (
	AgentActive  = "active"
	AgentIdle    = "idle"
	AgentBlocked = "blocked"
	AgentOffline = "offline"
)

// Task statuses and priorities.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in-progress"
	TaskBlocked    = "blocked"
	TaskDone       = "done"
	TaskCancelled  = "cancelled"

	PriorityMedium = "medium"
)

// Handoff statuses.
const (
	HandoffPending   = "pending"
	HandoffClaimed   = "claimed"
	HandoffCompleted = "completed"
)

// Message kinds.
const (
	MessageDirect    = "direct"
	MessageBroadcast = "broadcast"
)

var validTaskStatuses = []string{TaskTodo, TaskInProgress, TaskBlocked, TaskDone, TaskCancelled}

var validPriorities = []string{"low", PriorityMedium, "high", "urgent"}

var validAgentStatuses = []string{AgentActive, AgentIdle, AgentBlocked, AgentOffline}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s string) bool { return containsString(validTaskStatuses, s) }

// IsValidPriority reports whether p is a known task priority.
func IsValidPriority(p string) bool { return containsString(validPriorities, p) }

// IsValidAgentStatus reports whether s is a known agent status.
func IsValidAgentStatus(s string) bool { return containsString(validAgentStatuses, s) }

func containsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

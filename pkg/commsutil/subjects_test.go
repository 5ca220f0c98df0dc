package commsutil

import "testing"

func TestBuildEventSubject(t *testing.T) {
	tests := []struct {
		name string
		base string
		kind string
		want string
	}{
		{"simple", "hub.events", "handoff.created", "hub.events.handoff.created"},
		{"custom base", "team.events", "message.broadcast", "team.events.message.broadcast"},
		{"wildcards stripped", "hub.events", "message.*", "hub.events.message._"},
		{"empty kind", "hub.events", "", "hub.events"},
		{"empty tokens dropped", "hub.events", "message..direct", "hub.events.message.direct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildEventSubject(tt.base, tt.kind); got != tt.want {
				t.Errorf("BuildEventSubject(%q, %q) = %q, want %q", tt.base, tt.kind, got, tt.want)
			}
		})
	}
}

func TestBuildRawSubject(t *testing.T) {
	if got := BuildRawSubject(SubjectHub); got != "hub.a2a.v1.raw" {
		t.Errorf("BuildRawSubject = %q, want hub.a2a.v1.raw", got)
	}
}

func TestBuildAgentInbox(t *testing.T) {
	tests := []struct {
		agent string
		want  string
	}{
		{"alice", "hub.events.agent.alice"},
		{"team.lead", "hub.events.agent.team_lead"},
		{" bob > ", "hub.events.agent.bob__"},
	}
	for _, tt := range tests {
		if got := BuildAgentInbox(SubjectHubEvents, tt.agent); got != tt.want {
			t.Errorf("BuildAgentInbox(%q) = %q, want %q", tt.agent, got, tt.want)
		}
	}
}

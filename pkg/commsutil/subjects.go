package commsutil

import "strings"

// Default COMMS subjects.
const (
	SubjectHub       = "hub.a2a.v1"
	SubjectHubEvents = "hub.events"
)

const rawSuffix = ".raw"

// BuildRawSubject returns the subject that carries bare envelope text for
// the given hub subject.
func BuildRawSubject(hubSubject string) string {
	return hubSubject + rawSuffix
}

// BuildEventSubject builds a granular event subject under base, e.g.
// "hub.events" + "message.direct" -> "hub.events.message.direct".
// Tokens are sanitized so agent-chosen values cannot inject wildcards.
func BuildEventSubject(base, kind string) string {
	parts := strings.Split(kind, ".")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := SanitizeToken(p); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return base
	}
	return base + "." + strings.Join(clean, ".")
}

// BuildAgentInbox builds the per-agent subject for direct message fan-out.
func BuildAgentInbox(base, agentID string) string {
	return base + ".agent." + SanitizeToken(agentID)
}

// SanitizeToken replaces characters that are not valid inside a single
// subject token (separators, wildcards, whitespace) with '_'.
func SanitizeToken(token string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, strings.TrimSpace(token))
}

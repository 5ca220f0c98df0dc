package a2a

import "sort"

// Domain is the single-letter category of an operation.
type Domain string

const (
	DomainClaims    Domain = "C"
	DomainTasks     Domain = "T"
	DomainStatus    Domain = "S"
	DomainMessages  Domain = "M"
	DomainResources Domain = "R"
	DomainErrors    Domain = "E"
	DomainHandoffs  Domain = "H"
	DomainQuery     Domain = "Q"
	DomainProtocol  Domain = "P"
	DomainExecute   Domain = "X"
)

// Known reports whether d is one of the closed domain set.
func (d Domain) Known() bool {
	_, ok := domainNames[d]
	return ok
}

var domainNames = map[Domain]string{
	DomainClaims:    "claims",
	DomainTasks:     "tasks",
	DomainStatus:    "status",
	DomainMessages:  "messages",
	DomainResources: "resources",
	DomainErrors:    "errors",
	DomainHandoffs:  "handoffs",
	DomainQuery:     "query",
	DomainProtocol:  "protocol",
	DomainExecute:   "execute",
}

// Operation codes known to this build.
var (
	OpClaim           = OpKey{DomainClaims, "🔒"}
	OpRelease         = OpKey{DomainClaims, "🔓"}
	OpCheckClaim      = OpKey{DomainQuery, "🔍"}
	OpCreateTask      = OpKey{DomainTasks, "📋"}
	OpUpdateTask      = OpKey{DomainTasks, "🔄"}
	OpCompleteTask    = OpKey{DomainTasks, "✅"}
	OpActive          = OpKey{DomainStatus, "⚡"}
	OpIdle            = OpKey{DomainStatus, "💤"}
	OpBlocked         = OpKey{DomainStatus, "🚫"}
	OpOffline         = OpKey{DomainStatus, "👋"}
	OpDirect          = OpKey{DomainMessages, "💬"}
	OpBroadcast       = OpKey{DomainMessages, "📢"}
	OpAck             = OpKey{DomainMessages, "✓"}
	OpLock            = OpKey{DomainResources, "🔒"}
	OpUnlock          = OpKey{DomainResources, "🔓"}
	OpHandoff         = OpKey{DomainHandoffs, "📦"}
	OpClaimHandoff    = OpKey{DomainHandoffs, "✋"}
	OpCompleteHandoff = OpKey{DomainHandoffs, "✅"}
	OpHello           = OpKey{DomainProtocol, "🤝"}
	OpAccept          = OpKey{DomainProtocol, "!"}
	OpReject          = OpKey{DomainProtocol, "?"}
	OpUnknown         = OpKey{DomainErrors, "❓"}
	OpFailure         = OpKey{DomainErrors, "❌"}
	OpExecute         = OpKey{DomainExecute, "▶"}
)

var operationNames = map[OpKey]string{
	OpClaim:           "claim",
	OpRelease:         "release",
	OpCheckClaim:      "check-claim",
	OpCreateTask:      "create-task",
	OpUpdateTask:      "update-task",
	OpCompleteTask:    "complete-task",
	OpActive:          "active",
	OpIdle:            "idle",
	OpBlocked:         "blocked",
	OpOffline:         "offline",
	OpDirect:          "direct-message",
	OpBroadcast:       "broadcast",
	OpAck:             "acknowledge",
	OpLock:            "lock",
	OpUnlock:          "unlock",
	OpHandoff:         "create-handoff",
	OpClaimHandoff:    "claim-handoff",
	OpCompleteHandoff: "complete-handoff",
	OpHello:           "hello",
	OpAccept:          "accept",
	OpReject:          "reject",
	OpUnknown:         "unknown",
	OpFailure:         "failure",
	OpExecute:         "execute",
}

// VocabEntry is one row of the introspection table.
type VocabEntry struct {
	Domain     Domain `json:"domain"`
	DomainName string `json:"domainName"`
	Op         string `json:"op"`
	Name       string `json:"name"`
	Code       string `json:"code"`
}

// Vocabulary maps domain letters and operation codes to readable names.
// It is immutable once built and safe for concurrent reads.
type Vocabulary struct {
	domains map[Domain]string
	ops     map[OpKey]string
	entries []VocabEntry
}

// NewVocabulary copies the given tables into an immutable Vocabulary.
func NewVocabulary(domains map[Domain]string, ops map[OpKey]string) *Vocabulary {
	v := &Vocabulary{
		domains: make(map[Domain]string, len(domains)),
		ops:     make(map[OpKey]string, len(ops)),
	}
	for d, name := range domains {
		v.domains[d] = name
	}
	for k, name := range ops {
		v.ops[k] = name
		v.entries = append(v.entries, VocabEntry{
			Domain:     k.Domain,
			DomainName: v.DomainName(k.Domain),
			Op:         k.Op,
			Name:       name,
			Code:       k.String(),
		})
	}
	sort.Slice(v.entries, func(i, j int) bool {
		if v.entries[i].Domain != v.entries[j].Domain {
			return v.entries[i].Domain < v.entries[j].Domain
		}
		return v.entries[i].Op < v.entries[j].Op
	})
	return v
}

// DefaultVocabulary returns the vocabulary shipped with this build.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(domainNames, operationNames)
}

// DomainName returns the readable domain name, or the raw letter.
func (v *Vocabulary) DomainName(d Domain) string {
	if name, ok := v.domains[d]; ok {
		return name
	}
	return string(d)
}

// OperationName returns the readable operation name, or the raw op code.
func (v *Vocabulary) OperationName(d Domain, op string) string {
	if name, ok := v.ops[OpKey{Domain: d, Op: op}]; ok {
		return name
	}
	return op
}

// Describe returns "domain.operation" in readable form.
func (v *Vocabulary) Describe(k OpKey) string {
	return v.DomainName(k.Domain) + "." + v.OperationName(k.Domain, k.Op)
}

// Entries lists the table, optionally limited to one domain letter.
func (v *Vocabulary) Entries(domainFilter string) []VocabEntry {
	out := make([]VocabEntry, 0, len(v.entries))
	for _, e := range v.entries {
		if domainFilter != "" && string(e.Domain) != domainFilter {
			continue
		}
		out = append(out, e)
	}
	return out
}

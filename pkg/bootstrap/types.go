// Package bootstrap loads the hub's identity and seed data: hub id,
// protocol version, advertised capabilities, and the agents and peers
// known before any traffic arrives.
package bootstrap

// HubIdentity describes this hub to negotiating peers.
type HubIdentity struct {
	ID              string   `json:"id" yaml:"id" toml:"id"`
	ProtocolVersion string   `json:"protocolVersion" yaml:"protocolVersion" toml:"protocolVersion"`
	CompatPrefix    string   `json:"compatPrefix,omitempty" yaml:"compatPrefix,omitempty" toml:"compatPrefix,omitempty"`
	Endpoint        string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Capabilities    []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
}

// AgentSeed is an agent registered at seed time.
type AgentSeed struct {
	ID   string `json:"id" yaml:"id" toml:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Role string `json:"role,omitempty" yaml:"role,omitempty" toml:"role,omitempty"`
}

// PeerSeed is a hub peer known ahead of negotiation.
type PeerSeed struct {
	ID           string   `json:"id" yaml:"id" toml:"id"`
	Endpoint     string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Version      string   `json:"version" yaml:"version" toml:"version"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
}

// EventSubjects defines hub event subject patterns.
type EventSubjects struct {
	Global  string `json:"global" yaml:"global" toml:"global"`
	Pattern string `json:"pattern" yaml:"pattern" toml:"pattern"`
}

// BootstrapConfig is the root bootstrap configuration.
type BootstrapConfig struct {
	Name          string        `json:"name" yaml:"name" toml:"name"`
	Version       string        `json:"version" yaml:"version" toml:"version"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Hub           HubIdentity   `json:"hub" yaml:"hub" toml:"hub"`
	Agents        []AgentSeed   `json:"agents,omitempty" yaml:"agents,omitempty" toml:"agents,omitempty"`
	Peers         []PeerSeed    `json:"peers,omitempty" yaml:"peers,omitempty" toml:"peers,omitempty"`
	EventSubjects EventSubjects `json:"eventSubjects" yaml:"eventSubjects" toml:"eventSubjects"`
}

// ResolvedBootstrap provides fast lookup over a BootstrapConfig.
type ResolvedBootstrap struct {
	name    string
	version string
	hub     HubIdentity
	caps    map[string]struct{}
	agents  map[string]*AgentSeed
	peers   map[string]*PeerSeed
	events  EventSubjects
}

// Name returns the bootstrap config name.
func (rb *ResolvedBootstrap) Name() string { return rb.name }

// Version returns the bootstrap config version.
func (rb *ResolvedBootstrap) Version() string { return rb.version }

// Hub returns the hub identity.
func (rb *ResolvedBootstrap) Hub() HubIdentity { return rb.hub }

// HasCapability reports whether the hub advertises capability c.
func (rb *ResolvedBootstrap) HasCapability(c string) bool {
	_, ok := rb.caps[c]
	return ok
}

// Agent returns a seeded agent by id, or nil.
func (rb *ResolvedBootstrap) Agent(id string) *AgentSeed { return rb.agents[id] }

// Peer returns a seeded peer by id, or nil.
func (rb *ResolvedBootstrap) Peer(id string) *PeerSeed { return rb.peers[id] }

// GlobalEventSubject returns the global hub event subject.
func (rb *ResolvedBootstrap) GlobalEventSubject() string { return rb.events.Global }

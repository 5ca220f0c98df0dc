package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const logPrefix = "bootstrap:loader"

// EnvBootstrapFile names the environment variable holding a bootstrap path.
const EnvBootstrapFile = "HUB_BOOTSTRAP_FILE"

// LoadBootstrapConfig loads bootstrap config from the first readable path.
// Explicit paths are tried first, then HUB_BOOTSTRAP_FILE, then
// config/bootstrap.{json,yaml,toml} and bootstrap.json. Unreadable or
// unparseable files are skipped; the built-in default is the last resort.
func LoadBootstrapConfig(paths ...string) (*BootstrapConfig, error) {
	all := make([]string, 0, len(paths)+5)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv(EnvBootstrapFile); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/bootstrap.json", "config/bootstrap.yaml", "config/bootstrap.toml", "bootstrap.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		cfg, err := ParseBootstrapConfig(p, data)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse bootstrap file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded bootstrap config from %s", logPrefix, p))
		return MergeBootstrapConfigs(GetDefaultBootstrapConfig(), cfg), nil
	}

	slog.Info(fmt.Sprintf("%s - Using default bootstrap config", logPrefix))
	return GetDefaultBootstrapConfig(), nil
}

// ParseBootstrapConfig decodes data using the format implied by the file
// extension of name: .yaml/.yml, .toml, otherwise JSON.
func ParseBootstrapConfig(name string, data []byte) (*BootstrapConfig, error) {
	var cfg BootstrapConfig
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - yaml: %w", logPrefix, err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%s - toml: %w", logPrefix, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - json: %w", logPrefix, err)
		}
	}
	return &cfg, nil
}

// DefaultCapabilities are the operation families every hub serves.
var DefaultCapabilities = []string{
	"a2a.envelope", "a2a.chain", "coord.claims", "coord.tasks",
	"coord.status", "coord.messages", "coord.locks", "coord.handoffs",
}

// GetDefaultBootstrapConfig returns the built-in bootstrap configuration.
func GetDefaultBootstrapConfig() *BootstrapConfig {
	caps := make([]string, len(DefaultCapabilities))
	copy(caps, DefaultCapabilities)
	return &BootstrapConfig{
		Name:        "coordhub-bootstrap",
		Version:     "1.0.0",
		Description: "Default coordination hub bootstrap configuration",
		Hub: HubIdentity{
			ID:              "hub",
			ProtocolVersion: "v0.2",
			Capabilities:    caps,
		},
		EventSubjects: EventSubjects{
			Global:  "hub.events",
			Pattern: "hub.events.{kind}",
		},
	}
}

// CreateResolvedBootstrap builds a ResolvedBootstrap for fast lookups.
func CreateResolvedBootstrap(cfg *BootstrapConfig) *ResolvedBootstrap {
	hub := cfg.Hub
	hub.Capabilities = append([]string(nil), cfg.Hub.Capabilities...)

	caps := make(map[string]struct{}, len(hub.Capabilities))
	for _, c := range hub.Capabilities {
		caps[c] = struct{}{}
	}
	agents := make(map[string]*AgentSeed, len(cfg.Agents))
	for i := range cfg.Agents {
		a := cfg.Agents[i]
		agents[a.ID] = &a
	}
	peers := make(map[string]*PeerSeed, len(cfg.Peers))
	for i := range cfg.Peers {
		p := cfg.Peers[i]
		peers[p.ID] = &p
	}

	return &ResolvedBootstrap{
		name:    cfg.Name,
		version: cfg.Version,
		hub:     hub,
		caps:    caps,
		agents:  agents,
		peers:   peers,
		events:  cfg.EventSubjects,
	}
}

// MergeBootstrapConfigs overlays override on base. Set scalar fields win;
// agents and peers are merged by id with override taking precedence.
func MergeBootstrapConfigs(base, override *BootstrapConfig) *BootstrapConfig {
	merged := *base

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if override.Hub.ID != "" {
		merged.Hub.ID = override.Hub.ID
	}
	if override.Hub.ProtocolVersion != "" {
		merged.Hub.ProtocolVersion = override.Hub.ProtocolVersion
	}
	if override.Hub.CompatPrefix != "" {
		merged.Hub.CompatPrefix = override.Hub.CompatPrefix
	}
	if override.Hub.Endpoint != "" {
		merged.Hub.Endpoint = override.Hub.Endpoint
	}
	if len(override.Hub.Capabilities) > 0 {
		merged.Hub.Capabilities = append([]string(nil), override.Hub.Capabilities...)
	}

	merged.Agents = mergeByID(base.Agents, override.Agents, func(a AgentSeed) string { return a.ID })
	merged.Peers = mergeByID(base.Peers, override.Peers, func(p PeerSeed) string { return p.ID })

	if override.EventSubjects.Global != "" {
		merged.EventSubjects.Global = override.EventSubjects.Global
	}
	if override.EventSubjects.Pattern != "" {
		merged.EventSubjects.Pattern = override.EventSubjects.Pattern
	}

	return &merged
}

func mergeByID[T any](base, override []T, id func(T) string) []T {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make([]T, 0, len(base)+len(override))
	index := make(map[string]int, len(base)+len(override))
	for _, item := range base {
		index[id(item)] = len(out)
		out = append(out, item)
	}
	for _, item := range override {
		if i, ok := index[id(item)]; ok {
			out[i] = item
			continue
		}
		index[id(item)] = len(out)
		out = append(out, item)
	}
	return out
}

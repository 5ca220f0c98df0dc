package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/piston-labs/coordination-hub/pkg/bootstrap"
)

const seedLogPrefix = "db:seed"

// SeedResult counts the rows SeedBootstrap wrote.
type SeedResult struct {
	Agents int `json:"agents"`
	Peers  int `json:"peers"`
}

// SeedBootstrap upserts the agents and peers listed in cfg. Entries without
// an id are skipped. Running it twice is harmless.
func SeedBootstrap(ctx context.Context, repo *Repository, cfg *bootstrap.BootstrapConfig) (*SeedResult, error) {
	res := &SeedResult{}
	if cfg == nil {
		return res, nil
	}
	slog.Info(fmt.Sprintf("%s - Seeding %d agents and %d peers from %s", seedLogPrefix, len(cfg.Agents), len(cfg.Peers), cfg.Name))

	for _, a := range cfg.Agents {
		if a.ID == "" {
			slog.Warn(fmt.Sprintf("%s - skip agent without id (name=%q)", seedLogPrefix, a.Name))
			continue
		}
		if _, err := repo.UpsertAgent(ctx, UpsertAgentParams{ID: a.ID, Name: a.Name, Role: a.Role}); err != nil {
			return res, fmt.Errorf("%s - seed agent %s: %w", seedLogPrefix, a.ID, err)
		}
		res.Agents++
	}

	for _, p := range cfg.Peers {
		if p.ID == "" {
			slog.Warn(fmt.Sprintf("%s - skip peer without id (endpoint=%q)", seedLogPrefix, p.Endpoint))
			continue
		}
		_, err := repo.UpsertPeer(ctx, PeerParams{ID: p.ID, Endpoint: p.Endpoint, Version: p.Version, Capabilities: p.Capabilities})
		if err != nil {
			return res, fmt.Errorf("%s - seed peer %s: %w", seedLogPrefix, p.ID, err)
		}
		res.Peers++
	}

	slog.Info(fmt.Sprintf("%s - Seeded %d agents, %d peers", seedLogPrefix, res.Agents, res.Peers))
	return res, nil
}

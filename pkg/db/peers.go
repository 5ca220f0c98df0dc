package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
)

const peersLogPrefix = "db:peers"

const peerColumns = `id, COALESCE(endpoint, ''), version, capabilities, connected_at, last_seen`

// PeerParams holds parameters for UpsertPeer.
type PeerParams struct {
	ID           string
	Endpoint     string
	Version      string
	Capabilities []string
}

// UpsertPeer records a negotiated peer. ConnectedAt is kept from the first
// handshake; LastSeen and the advertised fields are refreshed.
func (r *Repository) UpsertPeer(ctx context.Context, params PeerParams) (*Peer, error) {
	slog.Debug(fmt.Sprintf("%s - UpsertPeer id=%s version=%s", peersLogPrefix, params.ID, params.Version))

	if strings.TrimSpace(params.ID) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "peer id is required")
	}
	caps := params.Capabilities
	if caps == nil {
		caps = []string{}
	}

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO peers (id, endpoint, version, capabilities, connected_at, last_seen)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   endpoint = COALESCE(EXCLUDED.endpoint, peers.endpoint),
		   version = EXCLUDED.version,
		   capabilities = EXCLUDED.capabilities,
		   last_seen = EXCLUDED.last_seen
		 RETURNING `+peerColumns,
		params.ID, params.Endpoint, params.Version, caps, now)

	return scanPeer(row)
}

// ListPeers returns every peer that has negotiated with this hub.
func (r *Repository) ListPeers(ctx context.Context) ([]Peer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+peerColumns+` FROM peers ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s - ListPeers failed: %w", peersLogPrefix, err)
	}
	defer rows.Close()

	var peers []Peer
	for rows.Next() {
		p, err := scanPeer(rows)
		if err != nil {
			return nil, err
		}
		peers = append(peers, *p)
	}
	return peers, rows.Err()
}

func scanPeer(row pgx.Row) (*Peer, error) {
	var p Peer
	if err := row.Scan(&p.ID, &p.Endpoint, &p.Version, &p.Capabilities, &p.ConnectedAt, &p.LastSeen); err != nil {
		return nil, fmt.Errorf("%s - scan peer failed: %w", peersLogPrefix, err)
	}
	return &p, nil
}

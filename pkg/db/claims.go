package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
)

const claimsLogPrefix = "db:claims"

const claimColumns = `resource, agent_id, COALESCE(description, ''), claimed_at, expires_at`

// Claim takes or refreshes a claim on resource for agentID. It fails with
// CONFLICT while another agent holds an unexpired claim.
func (r *Repository) Claim(ctx context.Context, resource, agentID, description string) (*Claim, error) {
	slog.Info(fmt.Sprintf("%s - Claim resource=%s agent=%s", claimsLogPrefix, resource, agentID))

	if strings.TrimSpace(resource) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "resource is required")
	}

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO claims (resource, agent_id, description, claimed_at, expires_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		 ON CONFLICT (resource) DO UPDATE SET
		   agent_id = EXCLUDED.agent_id,
		   description = EXCLUDED.description,
		   claimed_at = EXCLUDED.claimed_at,
		   expires_at = EXCLUDED.expires_at
		 WHERE claims.agent_id = EXCLUDED.agent_id OR claims.expires_at <= EXCLUDED.claimed_at
		 RETURNING `+claimColumns,
		resource, agentID, description, now, now.Add(r.claimTTL))

	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		holder, herr := r.currentClaim(ctx, resource)
		if herr != nil {
			return nil, herr
		}
		if holder == nil {
			return nil, NewStoreError(CodeConflict, "resource %s is claimed", resource)
		}
		return nil, NewStoreError(CodeConflict, "resource %s is claimed by %s", resource, holder.AgentID)
	}
	return claim, err
}

// Release drops agentID's claim on resource.
func (r *Repository) Release(ctx context.Context, resource, agentID string) (*Claim, error) {
	slog.Info(fmt.Sprintf("%s - Release resource=%s agent=%s", claimsLogPrefix, resource, agentID))

	row := r.pool.QueryRow(ctx,
		`DELETE FROM claims WHERE resource = $1 AND agent_id = $2 RETURNING `+claimColumns,
		resource, agentID)

	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		holder, herr := r.currentClaim(ctx, resource)
		if herr != nil {
			return nil, herr
		}
		if holder != nil {
			return nil, NewStoreError(CodeConflict, "resource %s is claimed by %s", resource, holder.AgentID)
		}
		return nil, NewStoreError(CodeNotFound, "no claim on %s", resource)
	}
	return claim, err
}

// CheckClaim reports the unexpired claim on resource, if any.
func (r *Repository) CheckClaim(ctx context.Context, resource string) (*ClaimStatus, error) {
	holder, err := r.currentClaim(ctx, resource)
	if err != nil {
		return nil, err
	}
	return &ClaimStatus{Resource: resource, Claimed: holder != nil, Claim: holder}, nil
}

func (r *Repository) currentClaim(ctx context.Context, resource string) (*Claim, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE resource = $1 AND expires_at > $2`,
		resource, r.now())
	claim, err := scanClaim(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return claim, err
}

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	if err := row.Scan(&c.Resource, &c.AgentID, &c.Description, &c.ClaimedAt, &c.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s - scan claim failed: %w", claimsLogPrefix, err)
	}
	return &c, nil
}

// =========================================================================
// LOCKS
// =========================================================================

const lockColumns = `path, agent_id, COALESCE(reason, ''), locked_at, expires_at`

// LockResource locks path for agentID. Re-locking by the holder refreshes
// the expiry; anyone else gets CONFLICT until the lock expires.
func (r *Repository) LockResource(ctx context.Context, path, agentID, reason string) (*Lock, error) {
	slog.Info(fmt.Sprintf("%s - LockResource path=%s agent=%s", claimsLogPrefix, path, agentID))

	if strings.TrimSpace(path) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "path is required")
	}

	now := r.now()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO locks (path, agent_id, reason, locked_at, expires_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		 ON CONFLICT (path) DO UPDATE SET
		   agent_id = EXCLUDED.agent_id,
		   reason = EXCLUDED.reason,
		   locked_at = EXCLUDED.locked_at,
		   expires_at = EXCLUDED.expires_at
		 WHERE locks.agent_id = EXCLUDED.agent_id OR locks.expires_at <= EXCLUDED.locked_at
		 RETURNING `+lockColumns,
		path, agentID, reason, now, now.Add(r.lockTTL))

	lock, err := scanLock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewStoreError(CodeConflict, "%s is locked by another agent", path)
	}
	return lock, err
}

// UnlockResource removes agentID's lock on path.
func (r *Repository) UnlockResource(ctx context.Context, path, agentID string) (*Lock, error) {
	slog.Info(fmt.Sprintf("%s - UnlockResource path=%s agent=%s", claimsLogPrefix, path, agentID))

	row := r.pool.QueryRow(ctx,
		`DELETE FROM locks WHERE path = $1 AND agent_id = $2 RETURNING `+lockColumns,
		path, agentID)

	lock, err := scanLock(row)
	if !errors.Is(err, pgx.ErrNoRows) {
		return lock, err
	}

	// An expired lock held by someone else counts as no lock at all.
	var holder string
	err = r.pool.QueryRow(ctx,
		`SELECT agent_id FROM locks WHERE path = $1 AND expires_at > $2`,
		path, r.now()).Scan(&holder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewStoreError(CodeNotFound, "%s is not locked", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s - UnlockResource lookup failed: %w", claimsLogPrefix, err)
	}
	return nil, NewStoreError(CodeConflict, "%s is locked by %s", path, holder)
}

func scanLock(row pgx.Row) (*Lock, error) {
	var l Lock
	if err := row.Scan(&l.Path, &l.AgentID, &l.Reason, &l.LockedAt, &l.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s - scan lock failed: %w", claimsLogPrefix, err)
	}
	return &l, nil
}

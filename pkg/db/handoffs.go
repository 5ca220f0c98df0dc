package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const handoffsLogPrefix = "db:handoffs"

const handoffColumns = `id, title, from_agent, to_agent, COALESCE(context, ''), status, claimed_by, created, claimed_at, completed_at`

// CreateHandoffParams holds parameters for CreateHandoff.
type CreateHandoffParams struct {
	Title     string
	FromAgent string
	ToAgent   string
	Context   string
}

// CreateHandoff records a pending handoff of work from one agent to another.
func (r *Repository) CreateHandoff(ctx context.Context, params CreateHandoffParams) (*Handoff, error) {
	slog.Info(fmt.Sprintf("%s - CreateHandoff title=%q from=%s to=%s", handoffsLogPrefix, params.Title, params.FromAgent, params.ToAgent))

	if strings.TrimSpace(params.Title) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "handoff title is required")
	}
	if strings.TrimSpace(params.ToAgent) == "" {
		return nil, NewStoreError(CodeInvalidArgument, "handoff recipient is required")
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO handoffs (id, title, from_agent, to_agent, context, status, created)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		 RETURNING `+handoffColumns,
		uuid.NewString(), params.Title, params.FromAgent, params.ToAgent, params.Context, HandoffPending, r.now())

	return scanHandoff(row)
}

// ClaimHandoff moves a pending handoff to claimed by agentID.
func (r *Repository) ClaimHandoff(ctx context.Context, handoffID, agentID string) (*Handoff, error) {
	slog.Info(fmt.Sprintf("%s - ClaimHandoff id=%s agent=%s", handoffsLogPrefix, handoffID, agentID))

	row := r.pool.QueryRow(ctx,
		`UPDATE handoffs SET status = $3, claimed_by = $2, claimed_at = $4
		 WHERE id = $1 AND status = $5
		 RETURNING `+handoffColumns,
		handoffID, agentID, HandoffClaimed, r.now(), HandoffPending)

	h, err := scanHandoff(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionError(ctx, handoffID, "claim")
	}
	return h, err
}

// CompleteHandoff moves a handoff claimed by agentID to completed.
func (r *Repository) CompleteHandoff(ctx context.Context, handoffID, agentID string) (*Handoff, error) {
	slog.Info(fmt.Sprintf("%s - CompleteHandoff id=%s agent=%s", handoffsLogPrefix, handoffID, agentID))

	row := r.pool.QueryRow(ctx,
		`UPDATE handoffs SET status = $3, completed_at = $4
		 WHERE id = $1 AND status = $5 AND claimed_by = $2
		 RETURNING `+handoffColumns,
		handoffID, agentID, HandoffCompleted, r.now(), HandoffClaimed)

	h, err := scanHandoff(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.transitionError(ctx, handoffID, "complete")
	}
	return h, err
}

// transitionError explains why a handoff state change matched no row.
func (r *Repository) transitionError(ctx context.Context, handoffID, action string) error {
	var status string
	var claimedBy *string
	err := r.pool.QueryRow(ctx, `SELECT status, claimed_by FROM handoffs WHERE id = $1`, handoffID).Scan(&status, &claimedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewStoreError(CodeNotFound, "handoff %s not found", handoffID)
	}
	if err != nil {
		return fmt.Errorf("%s - lookup handoff %s failed: %w", handoffsLogPrefix, handoffID, err)
	}
	if claimedBy != nil && status == HandoffClaimed {
		return NewStoreError(CodeConflict, "cannot %s handoff %s: claimed by %s", action, handoffID, *claimedBy)
	}
	return NewStoreError(CodeConflict, "cannot %s handoff %s: status is %s", action, handoffID, status)
}

func scanHandoff(row pgx.Row) (*Handoff, error) {
	var h Handoff
	err := row.Scan(&h.ID, &h.Title, &h.FromAgent, &h.ToAgent, &h.Context, &h.Status,
		&h.ClaimedBy, &h.Created, &h.ClaimedAt, &h.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s - scan handoff failed: %w", handoffsLogPrefix, err)
	}
	return &h, nil
}

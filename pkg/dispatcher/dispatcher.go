package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const logPrefix = "dispatcher:dispatch"

// Dispatcher routes HubRequests to Bridge methods.
type Dispatcher struct {
	bridge *Bridge
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(bridge *Bridge) *Dispatcher {
	return &Dispatcher{bridge: bridge}
}

// Bridge returns the underlying bridge.
func (d *Dispatcher) Bridge() *Bridge { return d.bridge }

// SendParams are the params of the "send" method.
type SendParams struct {
	Envelope    string `json:"envelope"`
	RequesterID string `json:"requesterId,omitempty"`
}

// ParseParams are the params of the "parse" method.
type ParseParams struct {
	Envelope string `json:"envelope"`
}

// VocabParams are the params of the "vocab" method.
type VocabParams struct {
	Domain string `json:"domain,omitempty"`
}

// HealthResult is returned by the "health" method.
type HealthResult struct {
	Status          string `json:"status"`
	HubID           string `json:"hubId"`
	ProtocolVersion string `json:"protocolVersion"`
	Store           string `json:"store"`
}

// Dispatch routes a request to the appropriate bridge method and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *HubRequest) *HubResponse {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	switch req.Method {
	case "send":
		return d.handleSend(ctx, req)
	case "parse":
		return d.handleParse(req)
	case "vocab":
		return d.handleVocab(req)
	case "negotiate":
		return d.handleNegotiate(ctx, req)
	case "peers":
		return d.handlePeers(ctx, req)
	case "health":
		return d.handleHealth(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

func (d *Dispatcher) handleSend(ctx context.Context, req *HubRequest) *HubResponse {
	var p SendParams
	if err := decodeParams(req.Params, &p); err != nil || strings.TrimSpace(p.Envelope) == "" {
		return errorResponse(req.ID, CodeInvalidArgument, "send requires params.envelope", false)
	}
	requester := p.RequesterID
	if requester == "" && req.Ctx != nil {
		requester = req.Ctx.AgentID
	}

	out := d.bridge.Send(ctx, p.Envelope, requester)
	if out.Error != nil {
		return &HubResponse{ID: req.ID, Ok: false, Error: out.Error}
	}
	// A failed operation is still a well-formed protocol exchange: the
	// caller gets ok=true and reads success from the result.
	return &HubResponse{ID: req.ID, Ok: true, Result: out}
}

func (d *Dispatcher) handleParse(req *HubRequest) *HubResponse {
	var p ParseParams
	if err := decodeParams(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse parse params", false)
	}
	return &HubResponse{ID: req.ID, Ok: true, Result: d.bridge.Parse(p.Envelope)}
}

func (d *Dispatcher) handleVocab(req *HubRequest) *HubResponse {
	var p VocabParams
	if err := decodeParams(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse vocab params", false)
	}
	return &HubResponse{ID: req.ID, Ok: true, Result: d.bridge.Vocabulary(p.Domain)}
}

func (d *Dispatcher) handleNegotiate(ctx context.Context, req *HubRequest) *HubResponse {
	var in NegotiateInput
	if err := decodeParams(req.Params, &in); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse negotiate params", false)
	}
	if in.PeerID == "" && req.Ctx != nil {
		in.PeerID = req.Ctx.AgentID
	}
	if strings.TrimSpace(in.PeerID) == "" || strings.ContainsAny(in.PeerID, "|}") {
		return errorResponse(req.ID, CodeInvalidArgument, "negotiate requires a valid params.peerId", false)
	}
	return &HubResponse{ID: req.ID, Ok: true, Result: d.bridge.Negotiate(ctx, &in)}
}

func (d *Dispatcher) handlePeers(ctx context.Context, req *HubRequest) *HubResponse {
	peers, err := d.bridge.Peers(ctx)
	if err != nil {
		return errorResponse(req.ID, CodeInternal, err.Error(), true)
	}
	return &HubResponse{ID: req.ID, Ok: true, Result: peers}
}

func (d *Dispatcher) handleHealth(ctx context.Context, req *HubRequest) *HubResponse {
	return &HubResponse{ID: req.ID, Ok: true, Result: d.Health(ctx)}
}

// Health reports hub identity and store reachability.
func (d *Dispatcher) Health(ctx context.Context) *HealthResult {
	h := &HealthResult{
		Status:          "ok",
		HubID:           d.bridge.hubID,
		ProtocolVersion: d.bridge.version,
		Store:           "ok",
	}
	if err := d.bridge.store.Ping(ctx); err != nil {
		h.Status = "degraded"
		h.Store = err.Error()
	}
	return h
}

// --- helpers ---

// decodeParams treats absent params as an empty object.
func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func errorResponse(id, code, message string, retryable bool) *HubResponse {
	return &HubResponse{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/piston-labs/coordination-hub/pkg/a2a"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/semver"
)

const negotiateLogPrefix = "dispatcher:negotiate"

// NegotiateInput is a peer's hello.
type NegotiateInput struct {
	PeerID           string   `json:"peerId"`
	PeerVersion      string   `json:"peerVersion,omitempty"`
	PeerCapabilities []string `json:"peerCapabilities,omitempty"`
	Endpoint         string   `json:"endpoint,omitempty"`
}

// NegotiationResult is the handshake outcome.
type NegotiationResult struct {
	Accepted           bool     `json:"accepted"`
	SelfID             string   `json:"selfId"`
	PeerID             string   `json:"peerId"`
	SelfVersion        string   `json:"selfVersion"`
	PeerVersion        string   `json:"peerVersion,omitempty"`
	PeerNewer          bool     `json:"peerNewer,omitempty"`
	SelfCapabilities   []string `json:"selfCapabilities"`
	PeerCapabilities   []string `json:"peerCapabilities"`
	SharedCapabilities []string `json:"sharedCapabilities"`
	ResponseEnvelope   string   `json:"responseEnvelope"`
	RegistryError      string   `json:"registryError,omitempty"`
}

// Negotiate answers a peer's hello. The peer is accepted when its version
// equals ours or starts with the compatibility prefix. The peer is recorded
// in the store either way; a failed write is reported but does not change
// the answer.
func (b *Bridge) Negotiate(ctx context.Context, in *NegotiateInput) *NegotiationResult {
	peerCaps := nonNil(in.PeerCapabilities)
	res := &NegotiationResult{
		Accepted:           b.compatible(in.PeerVersion),
		SelfID:             b.hubID,
		PeerID:             in.PeerID,
		SelfVersion:        b.version,
		PeerVersion:        in.PeerVersion,
		PeerNewer:          semver.Newer(in.PeerVersion, b.version),
		SelfCapabilities:   nonNil(b.capabilities),
		PeerCapabilities:   peerCaps,
		SharedCapabilities: intersect(b.capabilities, peerCaps),
	}

	reply := a2a.OpReject
	if res.Accepted {
		reply = a2a.OpAccept
	}
	res.ResponseEnvelope = a2a.Encode(b.hubID, in.PeerID, a2a.LayerTransport,
		a2a.EncodeOperation(reply.Domain, reply.Op, a2a.Number(b.version)))

	slog.Info(fmt.Sprintf("%s - peer=%s version=%q accepted=%v shared=%v",
		negotiateLogPrefix, in.PeerID, in.PeerVersion, res.Accepted, res.SharedCapabilities))

	if strings.TrimSpace(in.PeerID) == "" {
		res.RegistryError = "peer id is required"
		return res
	}
	_, err := b.store.UpsertPeer(ctx, db.PeerParams{
		ID:           in.PeerID,
		Endpoint:     in.Endpoint,
		Version:      in.PeerVersion,
		Capabilities: peerCaps,
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - record peer %s failed: %v", negotiateLogPrefix, in.PeerID, err))
		res.RegistryError = err.Error()
	}
	return res
}

// executeTransport handles a layer-0 envelope. Only the hello is accepted;
// everything else is answered with E.❓("layer").
func (b *Bridge) executeTransport(ctx context.Context, env *a2a.Envelope) *ExecuteResult {
	op, ok := a2a.ParseOperation(env.Payload)
	if !ok || op.Key() != a2a.OpHello {
		return &ExecuteResult{
			Layer:            env.Layer,
			Error:            ErrUnsupportedLayer,
			ResponseEnvelope: env.Reply(b.hubID, a2a.LayerAtomic, unknownPayload("layer")),
		}
	}

	in := &NegotiateInput{PeerID: env.From, PeerVersion: op.Param(0)}
	if len(op.Params) > 1 {
		in.PeerCapabilities = op.Params[1:]
	}
	neg := b.Negotiate(ctx, in)
	res := &ExecuteResult{
		Success:          neg.Accepted,
		Layer:            env.Layer,
		Result:           neg,
		ResponseEnvelope: neg.ResponseEnvelope,
	}
	if !neg.Accepted {
		res.Error = "incompatible version"
	}
	return res
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := []string{}
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
			delete(set, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// PeerView is a stored peer annotated with whether its last advertised
// version is still compatible with this hub.
type PeerView struct {
	db.Peer
	Compatible bool `json:"compatible"`
}

func (b *Bridge) compatible(version string) bool {
	return semver.IsCompatible(b.version, version, b.compatPrefix)
}

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/piston-labs/coordination-hub/pkg/a2a"
)

const sendLogPrefix = "dispatcher:send"

// SendResponse is the outcome of Send. Exactly one of ResponseEnvelope or
// Error is set.
type SendResponse struct {
	Ok               bool           `json:"ok"`
	ResponseEnvelope string         `json:"responseEnvelope,omitempty"`
	Result           *ExecuteResult `json:"result,omitempty"`
	Error            *ErrorDetail   `json:"error,omitempty"`
}

// Send decodes envelope text and executes it. Malformed text is reported
// as a structured error without touching the store.
func (b *Bridge) Send(ctx context.Context, text, requesterID string) *SendResponse {
	env, err := a2a.Decode(text)
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - rejected envelope: %v", sendLogPrefix, err))
		return &SendResponse{Error: malformedDetail(err)}
	}
	res := b.Execute(ctx, env, requesterID)
	return &SendResponse{Ok: res.Success, ResponseEnvelope: res.ResponseEnvelope, Result: res}
}

func malformedDetail(err error) *ErrorDetail {
	detail := &ErrorDetail{Code: CodeMalformedMessage, Message: err.Error()}
	var pe *a2a.ParseError
	if errors.As(err, &pe) {
		detail.Details = map[string]string{"kind": string(pe.Kind), "reason": pe.Reason}
	}
	return detail
}

// ExplainedOperation is a parsed operation annotated with vocabulary names.
type ExplainedOperation struct {
	Code       string   `json:"code"`
	Domain     string   `json:"domain"`
	DomainName string   `json:"domainName"`
	Op         string   `json:"op"`
	Name       string   `json:"name"`
	Params     []string `json:"params"`
	Executable bool     `json:"executable"`
}

// Explanation is the non-mutating breakdown returned by Parse.
type Explanation struct {
	Valid      bool                 `json:"valid"`
	Error      string               `json:"error,omitempty"`
	From       string               `json:"from,omitempty"`
	To         string               `json:"to,omitempty"`
	Recipient  a2a.RecipientKind    `json:"recipient,omitempty"`
	Layer      a2a.Layer            `json:"layer"`
	LayerName  string               `json:"layerName,omitempty"`
	Operations []ExplainedOperation `json:"operations"`
	Connectors []string             `json:"connectors,omitempty"`
}

// Parse explains envelope text without executing it.
func (b *Bridge) Parse(text string) *Explanation {
	ex := &Explanation{Operations: []ExplainedOperation{}}
	env, err := a2a.Decode(text)
	if err != nil {
		ex.Error = err.Error()
		return ex
	}
	ex.Valid = true
	ex.From = env.From
	ex.To = env.To
	ex.Recipient = env.Recipient()
	ex.Layer = env.Layer
	ex.LayerName = env.Layer.String()

	switch env.Layer {
	case a2a.LayerChain:
		chain := a2a.ParseChain(env.Payload)
		for i := range chain.Operations {
			ex.Operations = append(ex.Operations, b.explain(&chain.Operations[i]))
		}
		for _, c := range chain.Connectors {
			ex.Connectors = append(ex.Connectors, c.Name())
		}
	default:
		if op, ok := a2a.ParseOperation(env.Payload); ok {
			ex.Operations = append(ex.Operations, b.explain(op))
		}
	}
	if len(ex.Operations) == 0 && env.Layer != a2a.LayerReasoning {
		ex.Error = ErrParse
	}
	return ex
}

func (b *Bridge) explain(op *a2a.Operation) ExplainedOperation {
	key := op.Key()
	_, executable := b.actions[key]
	if key == a2a.OpHello {
		executable = true
	}
	params := op.Params
	if params == nil {
		params = []string{}
	}
	return ExplainedOperation{
		Code:       key.String(),
		Domain:     string(op.Domain),
		DomainName: b.vocab.DomainName(op.Domain),
		Op:         op.Op,
		Name:       b.vocab.OperationName(op.Domain, op.Op),
		Params:     params,
		Executable: executable,
	}
}

// Vocabulary returns the operation table, optionally for one domain letter.
func (b *Bridge) Vocabulary(domainFilter string) []a2a.VocabEntry {
	return b.vocab.Entries(domainFilter)
}

// Peers lists negotiated peers.
func (b *Bridge) Peers(ctx context.Context) ([]PeerView, error) {
	peers, err := b.store.ListPeers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]PeerView, 0, len(peers))
	for _, p := range peers {
		out = append(out, PeerView{Peer: p, Compatible: b.compatible(p.Version)})
	}
	return out, nil
}

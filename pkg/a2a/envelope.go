// Package a2a implements the compact agent-to-agent text protocol: the
// Ω{from|to|layer|payload} envelope, Domain.Op(params) operations, connector
// chains, and the symbol vocabulary.
package a2a

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	envelopePrefix = "Ω{"
	envelopeSuffix = "}"

	// Broadcast is the recipient sentinel addressing every agent.
	Broadcast = "*"
	// RolePrefix marks a recipient that names a role rather than an agent.
	RolePrefix = "@"
)

// Layer is the semantic level of an envelope payload.
type Layer int

const (
	LayerTransport Layer = 0
	LayerAtomic    Layer = 1
	LayerChain     Layer = 2
	LayerReasoning Layer = 3
)

// String returns the readable layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "transport"
	case LayerAtomic:
		return "atomic"
	case LayerChain:
		return "chain"
	case LayerReasoning:
		return "reasoning"
	default:
		return "layer-" + strconv.Itoa(int(l))
	}
}

// RecipientKind classifies the "to" field of an envelope.
type RecipientKind string

const (
	RecipientAgent     RecipientKind = "agent"
	RecipientRole      RecipientKind = "role"
	RecipientBroadcast RecipientKind = "broadcast"
)

// Envelope is one decoded transport message.
type Envelope struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Layer   Layer  `json:"layer"`
	Payload string `json:"payload"`
	Raw     string `json:"raw"`
}

// Recipient reports whether To names an agent, a role, or everyone.
func (e *Envelope) Recipient() RecipientKind {
	switch {
	case e.To == Broadcast:
		return RecipientBroadcast
	case strings.HasPrefix(e.To, RolePrefix):
		return RecipientRole
	default:
		return RecipientAgent
	}
}

// Decode parses raw envelope text. The payload runs to the final "}" and may
// contain "|" but not "}".
func Decode(raw string) (*Envelope, error) {
	if !strings.HasPrefix(raw, envelopePrefix) || !strings.HasSuffix(raw, envelopeSuffix) ||
		len(raw) < len(envelopePrefix)+len(envelopeSuffix) {
		return nil, newParseError(ErrKindEnvelope, raw, "missing Ω{ ... } wrapper")
	}
	body := raw[len(envelopePrefix) : len(raw)-len(envelopeSuffix)]

	fields := strings.SplitN(body, "|", 4)
	if len(fields) != 4 {
		return nil, newParseError(ErrKindEnvelope, raw, "expected from|to|layer|payload")
	}
	from, to, layerText, payload := fields[0], fields[1], fields[2], fields[3]

	if from == "" || strings.Contains(from, "}") {
		return nil, newParseError(ErrKindEnvelope, raw, "empty or invalid sender")
	}
	if to == "" || strings.Contains(to, "}") {
		return nil, newParseError(ErrKindEnvelope, raw, "empty or invalid recipient")
	}
	layer, err := parseLayer(layerText)
	if err != nil {
		return nil, newParseError(ErrKindEnvelope, raw, err.Error())
	}
	if payload == "" {
		return nil, newParseError(ErrKindEnvelope, raw, "empty payload")
	}
	// No escaping rule exists for a literal "}" inside the payload.
	if strings.Contains(payload, "}") {
		return nil, newParseError(ErrKindEnvelope, raw, "payload contains unescaped }")
	}

	return &Envelope{
		From:    from,
		To:      to,
		Layer:   layer,
		Payload: payload,
		Raw:     raw,
	}, nil
}

func parseLayer(s string) (Layer, error) {
	if s == "" {
		return 0, fmt.Errorf("empty layer")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("layer %q is not a decimal number", s)
		}
	}
	// Only canonical digits are accepted so that Raw re-encodes exactly.
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("layer %q has leading zeros", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("layer %q out of range", s)
	}
	return Layer(n), nil
}

// Encode formats the fields into envelope text. Callers must keep "|" out of
// from and to, and "}" out of payload.
func Encode(from, to string, layer Layer, payload string) string {
	var b strings.Builder
	b.Grow(len(envelopePrefix) + len(from) + len(to) + len(payload) + 8)
	b.WriteString(envelopePrefix)
	b.WriteString(from)
	b.WriteByte('|')
	b.WriteString(to)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(int(layer)))
	b.WriteByte('|')
	b.WriteString(payload)
	b.WriteString(envelopeSuffix)
	return b.String()
}

// Reply builds the response envelope text from sender back to e.From.
func (e *Envelope) Reply(sender string, layer Layer, payload string) string {
	return Encode(sender, e.From, layer, payload)
}

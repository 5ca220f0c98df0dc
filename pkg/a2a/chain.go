package a2a

import "strings"

// Connector joins two operations in a chain.
type Connector string

const (
	// Sequential runs the next step only after the previous one succeeded.
	Sequential Connector = "→"
	// Conditional marks a branch point.
	Conditional Connector = "|"
	// Parallel marks steps with no ordering dependency.
	Parallel Connector = "&"
)

var connectors = []Connector{Sequential, Conditional, Parallel}

// Name returns the readable connector name.
func (c Connector) Name() string {
	switch c {
	case Sequential:
		return "sequential"
	case Conditional:
		return "conditional"
	case Parallel:
		return "parallel"
	default:
		return string(c)
	}
}

// Chain is an ordered list of operations and the connectors between them.
type Chain struct {
	Operations []Operation `json:"operations"`
	Connectors []Connector `json:"connectors"`
}

// ParseChain splits a layer-2 payload on connectors while keeping them.
// Tokens that are not valid operations are dropped but every connector is
// still recorded, so len(Connectors) == len(Operations)-1 holds only for
// well-formed input.
func ParseChain(payload string) *Chain {
	chain := &Chain{Operations: []Operation{}, Connectors: []Connector{}}
	for _, tok := range tokenize(payload) {
		if c, ok := asConnector(tok); ok {
			chain.Connectors = append(chain.Connectors, c)
			continue
		}
		if op, ok := ParseOperation(tok); ok {
			chain.Operations = append(chain.Operations, *op)
		}
	}
	return chain
}

// tokenize splits s on connector symbols, keeping each connector as its own
// token and discarding empty ones.
func tokenize(s string) []string {
	var tokens []string
	start := 0
	flush := func(end int) {
		if t := strings.TrimSpace(s[start:end]); t != "" {
			tokens = append(tokens, t)
		}
	}
	for i := 0; i < len(s); {
		matched := false
		for _, c := range connectors {
			if strings.HasPrefix(s[i:], string(c)) {
				flush(i)
				tokens = append(tokens, string(c))
				i += len(c)
				start = i
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	flush(len(s))
	return tokens
}

func asConnector(tok string) (Connector, bool) {
	for _, c := range connectors {
		if tok == string(c) {
			return c, true
		}
	}
	return "", false
}

// EncodeChain joins pre-encoded operations with one repeated connector.
func EncodeChain(ops []string, c Connector) string {
	return strings.Join(ops, string(c))
}

// Groups returns the chain's operations split into maximal runs joined by
// Parallel. Every other connector starts a new group.
func (c *Chain) Groups() [][]Operation {
	if len(c.Operations) == 0 {
		return nil
	}
	groups := [][]Operation{{c.Operations[0]}}
	for i := 1; i < len(c.Operations); i++ {
		if i-1 < len(c.Connectors) && c.Connectors[i-1] == Parallel {
			last := len(groups) - 1
			groups[last] = append(groups[last], c.Operations[i])
			continue
		}
		groups = append(groups, []Operation{c.Operations[i]})
	}
	return groups
}

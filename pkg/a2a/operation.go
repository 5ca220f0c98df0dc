package a2a

import (
	"encoding/json"
	"strconv"
	"strings"
)

// OpKey identifies an operation independent of its parameters.
type OpKey struct {
	Domain Domain
	Op     string
}

// String returns the "D.op" form used in diagnostics.
func (k OpKey) String() string {
	return string(k.Domain) + "." + k.Op
}

// Operation is one atomic Domain.Op(params) instruction. Params are kept as
// untyped strings; coercion belongs to whoever consumes them.
type Operation struct {
	Domain Domain   `json:"domain"`
	Op     string   `json:"op"`
	Params []string `json:"params"`
}

// Key returns the operation's domain/op pair.
func (o *Operation) Key() OpKey {
	return OpKey{Domain: o.Domain, Op: o.Op}
}

// Param returns the i-th parameter or "" when absent.
func (o *Operation) Param(i int) string {
	if i < 0 || i >= len(o.Params) {
		return ""
	}
	return o.Params[i]
}

// String re-encodes the operation.
func (o *Operation) String() string {
	params := make([]any, len(o.Params))
	for i, p := range o.Params {
		params[i] = p
	}
	return EncodeOperation(o.Domain, o.Op, params...)
}

// ParseOperation parses "D.op" or "D.op(p1,p2,...)". It reports false for
// text that does not match the grammar.
func ParseOperation(text string) (*Operation, bool) {
	text = strings.TrimSpace(text)
	if len(text) < 3 || text[1] != '.' || text[0] < 'A' || text[0] > 'Z' {
		return nil, false
	}
	domain := Domain(text[:1])
	rest := text[2:]

	op := rest
	params := []string{}
	if open := strings.IndexByte(rest, '('); open >= 0 {
		if !strings.HasSuffix(rest, ")") {
			return nil, false
		}
		op = rest[:open]
		params = splitParams(rest[open+1 : len(rest)-1])
	}
	if op == "" || strings.ContainsAny(op, "()") {
		return nil, false
	}

	return &Operation{Domain: domain, Op: op, Params: params}, true
}

func splitParams(inner string) []string {
	if strings.TrimSpace(inner) == "" {
		return []string{}
	}
	parts := strings.Split(inner, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, unquote(strings.TrimSpace(p)))
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' || first == '\'') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Number marks a string parameter that should be emitted bare.
type Number string

// EncodeOperation formats an operation. Strings are double-quoted; integers,
// floats, and Number values are emitted bare. No parentheses are written
// when params is empty.
func EncodeOperation(domain Domain, op string, params ...any) string {
	head := string(domain) + "." + op
	if len(params) == 0 {
		return head
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatParam(p)
	}
	return head + "(" + strings.Join(parts, ",") + ")"
}

func formatParam(p any) string {
	switch v := p.(type) {
	case Number:
		return string(v)
	case json.Number:
		return v.String()
	case string:
		return `"` + v + `"`
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return `""`
		}
		return `"` + strings.Trim(string(b), `"`) + `"`
	}
}

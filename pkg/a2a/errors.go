package a2a

// ErrorKind classifies a protocol parse failure.
type ErrorKind string

const (
	ErrKindEnvelope  ErrorKind = "envelope"
	ErrKindOperation ErrorKind = "operation"
)

// ParseError describes input that does not match the protocol grammar.
type ParseError struct {
	Kind   ErrorKind `json:"kind"`
	Input  string    `json:"input"`
	Reason string    `json:"reason"`
}

func (e *ParseError) Error() string {
	return "a2a: malformed " + string(e.Kind) + ": " + e.Reason
}

func newParseError(kind ErrorKind, input, reason string) *ParseError {
	return &ParseError{Kind: kind, Input: input, Reason: reason}
}

// Package dispatcher bridges A2A envelopes to the coordination store: it
// executes operations and chains, negotiates with peers, and routes JSON
// transport requests to those entry points.
package dispatcher

import "encoding/json"

// HubRequest is the JSON envelope for incoming COMMS and HTTP hub requests.
type HubRequest struct {
	ID     string             `json:"id"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// HubResponse is the JSON envelope for hub responses.
type HubResponse struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result any          `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	AgentID       string `json:"agentId,omitempty"`
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	DeadlineMs    int64  `json:"deadlineMs,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// Error codes used in ErrorDetail.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeMalformedMessage = "MALFORMED_ENVELOPE"
	CodeMethodNotFound   = "METHOD_NOT_FOUND"
	CodeInternal         = "INTERNAL_ERROR"
	CodeTimeout          = "TIMEOUT"
)

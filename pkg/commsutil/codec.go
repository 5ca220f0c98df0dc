package commsutil

import (
	"encoding/json"
	"fmt"

	comms "github.com/nats-io/nats.go"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodePayload deserializes JSON bytes into the given target.
func DecodePayload(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// RespondJSON encodes v and sends it as the reply to msg.
func RespondJSON(msg *comms.Msg, v any) error {
	data, err := EncodePayload(v)
	if err != nil {
		return fmt.Errorf("commsutil:codec - encode reply: %w", err)
	}
	return msg.Respond(data)
}

// RequestJSON sends req on subject and decodes the reply into resp.
func RequestJSON(nc *comms.Conn, subject string, req, resp any, opts ...RequestOpt) error {
	data, err := EncodePayload(req)
	if err != nil {
		return fmt.Errorf("commsutil:codec - encode request: %w", err)
	}
	o := requestOpts{}
	for _, fn := range opts {
		fn(&o)
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	msg, err := nc.Request(subject, data, timeout)
	if err != nil {
		return fmt.Errorf("commsutil:codec - request %s: %w", subject, err)
	}
	if err := DecodePayload(msg.Data, resp); err != nil {
		return fmt.Errorf("commsutil:codec - decode reply: %w", err)
	}
	return nil
}

package commsutil

import "time"

const defaultRequestTimeout = 30 * time.Second

type requestOpts struct {
	timeout time.Duration
}

// RequestOpt configures RequestJSON.
type RequestOpt func(*requestOpts)

// WithTimeout sets the reply deadline for RequestJSON.
func WithTimeout(d time.Duration) RequestOpt {
	return func(o *requestOpts) { o.timeout = d }
}

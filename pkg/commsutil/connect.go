// Package commsutil provides COMMS (NATS) connection helpers, subject
// naming, and the JSON payload codec shared by the hub's transports.
package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"
)

const logPrefix = "commsutil:connect"

// ConnectOpts tunes the COMMS connection. Zero values use defaults.
type ConnectOpts struct {
	Timeout       time.Duration
	ReconnectWait time.Duration
	MaxReconnects int
}

func (o *ConnectOpts) withDefaults() ConnectOpts {
	out := ConnectOpts{Timeout: 10 * time.Second, ReconnectWait: 2 * time.Second, MaxReconnects: 60}
	if o == nil {
		return out
	}
	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}
	if o.ReconnectWait > 0 {
		out.ReconnectWait = o.ReconnectWait
	}
	if o.MaxReconnects != 0 {
		out.MaxReconnects = o.MaxReconnects
	}
	return out
}

// Connect creates a COMMS connection to the given URL.
func Connect(url, name string, opts *ConnectOpts) (*comms.Conn, error) {
	o := opts.withDefaults()
	slog.Info(fmt.Sprintf("%s - Connecting to COMMS at %s as %s", logPrefix, url, name))

	nc, err := comms.Connect(url,
		comms.Name(name),
		comms.Timeout(o.Timeout),
		comms.ReconnectWait(o.ReconnectWait),
		comms.MaxReconnects(o.MaxReconnects),
		comms.DisconnectErrHandler(func(_ *comms.Conn, err error) {
			slog.Warn(fmt.Sprintf("%s - COMMS disconnected: %v", logPrefix, err))
		}),
		comms.ReconnectHandler(func(nc *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS reconnected to %s", logPrefix, nc.ConnectedUrl()))
		}),
		comms.ClosedHandler(func(_ *comms.Conn) {
			slog.Info(fmt.Sprintf("%s - COMMS connection closed", logPrefix))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, nc.ConnectedUrl()))
	return nc, nil
}

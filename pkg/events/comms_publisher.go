package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/piston-labs/coordination-hub/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the global event subject (HUB_EVENT_SUBJECT).
	GlobalSubject string
	// FlushTimeout, when positive, makes Publish wait up to this long for
	// the server to acknowledge the writes.
	FlushTimeout time.Duration
}

// CommsPublisher publishes hub events to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
	flushTimeout  time.Duration
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{nc: nc, globalSubject: commsutil.SubjectHubEvents}
	if opts != nil {
		if opts.GlobalSubject != "" {
			p.globalSubject = opts.GlobalSubject
		}
		p.flushTimeout = opts.FlushTimeout
	}
	return p
}

// Subjects returns every subject event is delivered to: the granular kind
// subject, the global subject, and the recipient's inbox for targeted events.
func (p *CommsPublisher) Subjects(event *HubEvent) []string {
	subjects := []string{commsutil.BuildEventSubject(p.globalSubject, event.Kind), p.globalSubject}
	if event.Targeted() {
		subjects = append(subjects, commsutil.BuildAgentInbox(p.globalSubject, event.To))
	}
	return subjects
}

// Publish sends event to every subject returned by Subjects.
func (p *CommsPublisher) Publish(_ context.Context, event *HubEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	for _, subject := range p.Subjects(event) {
		if err := p.nc.Publish(subject, data); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
			return fmt.Errorf("%s - publish %s: %w", commsPublisherLogPrefix, subject, err)
		}
	}

	if p.flushTimeout > 0 {
		if err := p.nc.FlushTimeout(p.flushTimeout); err != nil {
			return fmt.Errorf("%s - flush failed: %w", commsPublisherLogPrefix, err)
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published %s event from %s", commsPublisherLogPrefix, event.Kind, event.From))
	return nil
}

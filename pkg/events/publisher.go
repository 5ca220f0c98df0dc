package events

import "context"

// EventPublisher publishes hub events.
type EventPublisher interface {
	Publish(ctx context.Context, event *HubEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for in-process usage without events).
type NoOpPublisher struct{}

// Publish is a no-op.
func (p *NoOpPublisher) Publish(_ context.Context, _ *HubEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls a callback function (for testing).
type CallbackPublisher struct {
	callback func(ctx context.Context, event *HubEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *HubEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// Publish calls the callback.
func (p *CallbackPublisher) Publish(ctx context.Context, event *HubEvent) error {
	return p.callback(ctx, event)
}

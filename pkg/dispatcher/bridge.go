package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/piston-labs/coordination-hub/pkg/a2a"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/events"
	"github.com/piston-labs/coordination-hub/pkg/semver"
)

const bridgeLogPrefix = "dispatcher:bridge"

// maxErrorRunes bounds the error text embedded in an E.❌ payload.
const maxErrorRunes = 120

// Step errors reported in StepResult.Error.
const (
	ErrParse            = "parse"
	ErrUnknownOperation = "unknown operation"
	ErrUnsupportedLayer = "unsupported layer"
)

// Options configures a Bridge. Nil or zero values use defaults.
type Options struct {
	HubID           string
	ProtocolVersion string
	// CompatPrefix overrides the version prefix peers must share; derived
	// from ProtocolVersion when empty.
	CompatPrefix string
	Capabilities []string
	Vocab        *a2a.Vocabulary
	// ParallelGroups runs each run of &-joined chain steps concurrently.
	ParallelGroups bool
	// PublishEvents enables hub events for message and handoff steps.
	PublishEvents bool
	Publisher     events.EventPublisher
	Now           func() time.Time
}

// Bridge executes A2A envelopes against a CoordinationStore.
type Bridge struct {
	store        CoordinationStore
	hubID        string
	version      string
	compatPrefix string
	capabilities []string
	vocab        *a2a.Vocabulary
	actions      map[a2a.OpKey]action
	parallel     bool
	publish      bool
	publisher    events.EventPublisher
	now          func() time.Time
}

// NewBridge creates a Bridge over store.
func NewBridge(store CoordinationStore, opts *Options) *Bridge {
	if opts == nil {
		opts = &Options{}
	}
	b := &Bridge{
		store:        store,
		hubID:        opts.HubID,
		version:      opts.ProtocolVersion,
		compatPrefix: opts.CompatPrefix,
		capabilities: append([]string(nil), opts.Capabilities...),
		vocab:        opts.Vocab,
		actions:      defaultActions(),
		parallel:     opts.ParallelGroups,
		publish:      opts.PublishEvents,
		publisher:    opts.Publisher,
		now:          opts.Now,
	}
	if b.hubID == "" {
		b.hubID = "hub"
	}
	if b.version == "" {
		b.version = "v0.2"
	}
	if b.compatPrefix == "" {
		b.compatPrefix = semver.CompatPrefix(b.version)
	}
	if b.vocab == nil {
		b.vocab = a2a.DefaultVocabulary()
	}
	if b.publisher == nil {
		b.publisher = &events.NoOpPublisher{}
	}
	if b.now == nil {
		b.now = func() time.Time { return time.Now().UTC() }
	}
	return b
}

// HubID returns the identity used as the sender of response envelopes.
func (b *Bridge) HubID() string { return b.hubID }

// StepResult is the outcome of one operation.
type StepResult struct {
	Operation  string `json:"operation"`
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
	EventError string `json:"eventError,omitempty"`
	// payload is the response payload this step alone would produce.
	payload string
}

// ExecuteResult is the outcome of one envelope.
type ExecuteResult struct {
	Success          bool         `json:"success"`
	Layer            a2a.Layer    `json:"layer"`
	Result           any          `json:"result,omitempty"`
	Error            string       `json:"error,omitempty"`
	Results          []StepResult `json:"results,omitempty"`
	ResponseEnvelope string       `json:"responseEnvelope"`
}

// Execute runs a decoded envelope. requesterID is the agent the operations
// run as; when empty the envelope sender is used.
func (b *Bridge) Execute(ctx context.Context, env *a2a.Envelope, requesterID string) *ExecuteResult {
	actor := requesterID
	if actor == "" {
		actor = env.From
	}
	slog.Debug(fmt.Sprintf("%s - Execute from=%s actor=%s layer=%d", bridgeLogPrefix, env.From, actor, env.Layer))

	switch env.Layer {
	case a2a.LayerAtomic:
		return b.executeAtomic(ctx, env, actor)
	case a2a.LayerChain:
		return b.executeChain(ctx, env, actor)
	case a2a.LayerTransport:
		return b.executeTransport(ctx, env)
	default:
		return &ExecuteResult{
			Layer:            env.Layer,
			Error:            ErrUnsupportedLayer,
			ResponseEnvelope: env.Reply(b.hubID, a2a.LayerAtomic, unknownPayload("layer")),
		}
	}
}

func (b *Bridge) executeAtomic(ctx context.Context, env *a2a.Envelope, actor string) *ExecuteResult {
	op, ok := a2a.ParseOperation(env.Payload)
	if !ok {
		return &ExecuteResult{
			Layer:            env.Layer,
			Error:            ErrParse,
			ResponseEnvelope: env.Reply(b.hubID, a2a.LayerAtomic, unknownPayload("parse")),
		}
	}

	step := b.runStep(ctx, op, actor)
	res := &ExecuteResult{
		Success: step.Success,
		Layer:   env.Layer,
		Result:  step.Result,
		Error:   step.Error,
		Results: []StepResult{step},
	}
	if step.Success {
		res.ResponseEnvelope = env.Reply(b.hubID, a2a.LayerAtomic, a2a.EncodeOperation(a2a.DomainMessages, a2a.OpAck.Op))
	} else {
		res.ResponseEnvelope = env.Reply(b.hubID, a2a.LayerAtomic, step.payload)
	}
	return res
}

func (b *Bridge) executeChain(ctx context.Context, env *a2a.Envelope, actor string) *ExecuteResult {
	chain := a2a.ParseChain(env.Payload)
	if len(chain.Operations) == 0 {
		return &ExecuteResult{
			Layer:            env.Layer,
			Error:            ErrParse,
			ResponseEnvelope: env.Reply(b.hubID, a2a.LayerAtomic, unknownPayload("parse")),
		}
	}

	var results []StepResult
	if b.parallel {
		results = b.runGroups(ctx, chain, actor)
	} else {
		results = b.runSequential(ctx, chain.Operations, actor)
	}

	res := &ExecuteResult{Success: true, Layer: env.Layer, Results: results}
	for _, r := range results {
		if !r.Success {
			res.Success = false
			res.Error = r.Error
			res.ResponseEnvelope = env.Reply(b.hubID, a2a.LayerAtomic, r.payload)
			break
		}
	}
	if res.Success {
		res.ResponseEnvelope = env.Reply(b.hubID, a2a.LayerAtomic,
			a2a.EncodeOperation(a2a.DomainMessages, a2a.OpAck.Op, len(results)))
	}
	return res
}

// runSequential executes ops in order and stops after the first failure.
func (b *Bridge) runSequential(ctx context.Context, ops []a2a.Operation, actor string) []StepResult {
	results := make([]StepResult, 0, len(ops))
	for i := range ops {
		step := b.runStep(ctx, &ops[i], actor)
		results = append(results, step)
		if !step.Success {
			break
		}
	}
	return results
}

// runGroups executes each &-group concurrently. Every step in a group runs;
// the chain stops after a group that contains a failure.
func (b *Bridge) runGroups(ctx context.Context, chain *a2a.Chain, actor string) []StepResult {
	var results []StepResult
	for _, group := range chain.Groups() {
		groupResults := make([]StepResult, len(group))
		var g errgroup.Group
		for i := range group {
			i := i
			g.Go(func() error {
				groupResults[i] = b.runStep(ctx, &group[i], actor)
				return nil
			})
		}
		_ = g.Wait()

		results = append(results, groupResults...)
		for _, r := range groupResults {
			if !r.Success {
				return results
			}
		}
	}
	return results
}

// runStep executes one operation. Store errors and panics become a failed
// step; nothing escapes.
func (b *Bridge) runStep(ctx context.Context, op *a2a.Operation, actor string) (step StepResult) {
	key := op.Key()
	step = StepResult{Operation: op.String(), Name: b.vocab.Describe(key)}

	act, ok := b.actions[key]
	if !ok {
		step.Error = ErrUnknownOperation
		step.payload = unknownPayload(key.String())
		return step
	}

	c := call{op: op, actor: actor}
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - panic in %s: %v", bridgeLogPrefix, key, r))
			step.Success = false
			step.Result = nil
			step.Error = fmt.Sprint(r)
			step.ErrorCode = CodeInternal
			step.payload = failurePayload(step.Error)
		}
	}()

	result, err := act.run(ctx, b.store, c)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - %s by %s failed: %v", bridgeLogPrefix, key, actor, err))
		step.Error = err.Error()
		step.ErrorCode = stepErrorCode(err)
		step.payload = failurePayload(step.Error)
		return step
	}

	step.Success = true
	step.Result = result
	if act.event != nil && b.publish {
		if err := b.publishEvent(ctx, act.event(c, result)); err != nil {
			step.EventError = err.Error()
		}
	}
	return step
}

func (b *Bridge) publishEvent(ctx context.Context, ev *events.HubEvent) error {
	ev.HubID = b.hubID
	ev.Timestamp = b.now().Format(time.RFC3339)
	if err := b.publisher.Publish(ctx, ev); err != nil {
		slog.Error(fmt.Sprintf("%s - publish %s event failed: %v", bridgeLogPrefix, ev.Kind, err))
		return err
	}
	return nil
}

func stepErrorCode(err error) string {
	var pe *ParamError
	if errors.As(err, &pe) {
		return CodeInvalidArgument
	}
	return db.ErrorCode(err)
}

func unknownPayload(what string) string {
	return a2a.EncodeOperation(a2a.DomainErrors, a2a.OpUnknown.Op, what)
}

// failurePayload builds E.❌("<msg>") with msg stripped of characters that
// would break the envelope, the quoting or the param list, truncated to
// maxErrorRunes. The result always parses back as a single param.
func failurePayload(msg string) string {
	return a2a.EncodeOperation(a2a.DomainErrors, a2a.OpFailure.Op, sanitizeError(msg))
}

func sanitizeError(msg string) string {
	msg = strings.Map(func(r rune) rune {
		switch r {
		case '"', '}':
			return -1
		case '\n', '\r', '\t', ',', '(', ')':
			return ' '
		}
		return r
	}, msg)
	if utf8.RuneCountInString(msg) > maxErrorRunes {
		msg = string([]rune(msg)[:maxErrorRunes])
	}
	return msg
}

// Package server orchestrates all components: NATS client, DB, bridge, dispatcher, HTTP surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/piston-labs/coordination-hub/internal/config"
	"github.com/piston-labs/coordination-hub/pkg/a2a"
	"github.com/piston-labs/coordination-hub/pkg/bootstrap"
	"github.com/piston-labs/coordination-hub/pkg/commsutil"
	"github.com/piston-labs/coordination-hub/pkg/db"
	"github.com/piston-labs/coordination-hub/pkg/dispatcher"
	"github.com/piston-labs/coordination-hub/pkg/events"
)

const logPrefix = "server:server"

const shutdownTimeout = 10 * time.Second

// Server exposes a Dispatcher over NATS and HTTP.
type Server struct {
	cfg  *config.Config
	disp *dispatcher.Dispatcher
}

// New creates a Server for disp.
func New(cfg *config.Config, disp *dispatcher.Dispatcher) *Server {
	return &Server{cfg: cfg, disp: disp}
}

// SetupLogging installs the default slog text handler at the named level.
func SetupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

// BridgeOptions combines environment overrides with the bootstrap identity.
func BridgeOptions(cfg *config.Config, resolved *bootstrap.ResolvedBootstrap) *dispatcher.Options {
	hub := resolved.Hub()
	opts := &dispatcher.Options{
		HubID:           hub.ID,
		ProtocolVersion: hub.ProtocolVersion,
		CompatPrefix:    hub.CompatPrefix,
		Capabilities:    hub.Capabilities,
		ParallelGroups:  cfg.ChainParallel,
		PublishEvents:   cfg.PublishEvents,
	}
	if cfg.HubID != "" {
		opts.HubID = cfg.HubID
	}
	if cfg.ProtocolVersion != "" {
		opts.ProtocolVersion = cfg.ProtocolVersion
	}
	if cfg.ProtocolCompatPrefix != "" {
		opts.CompatPrefix = cfg.ProtocolCompatPrefix
	}
	return opts
}

// EventSubject returns HUB_EVENT_SUBJECT, then the bootstrap global subject,
// then the built-in default.
func EventSubject(cfg *config.Config, resolved *bootstrap.ResolvedBootstrap) string {
	if cfg.HubEventSubject != "" {
		return cfg.HubEventSubject
	}
	if s := resolved.GlobalEventSubject(); s != "" {
		return s
	}
	return commsutil.SubjectHubEvents
}

// Run starts the server, blocks until shutdown signal, then cleans up.
func Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}
	SetupLogging(cfg.LogLevel)

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("%s - Starting coordination hub", logPrefix))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Load bootstrap config
	bootstrapCfg, err := bootstrap.LoadBootstrapConfig(cfg.BootstrapFile)
	if err != nil {
		return fmt.Errorf("%s - failed to load bootstrap config: %w", logPrefix, err)
	}
	resolved := bootstrap.CreateResolvedBootstrap(bootstrapCfg)

	// Step 2: Connect to NATS
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName, nil)
	if err != nil {
		return fmt.Errorf("%s - failed to connect to NATS: %w", logPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", logPrefix, cfg.COMMSURL))

	// Step 3: Connect to database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		nc.Close()
		return fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	repo := db.NewRepository(pool, &db.RepositoryOpts{ClaimTTL: cfg.ClaimTTL, LockTTL: cfg.LockTTL})

	// Step 3b: Run migrations and seed if enabled
	if cfg.RunMigrations {
		migrations, err := db.LoadMigrations(cfg.MigrationPath)
		if err == nil {
			err = db.RunMigrations(ctx, pool, migrations)
		}
		if err == nil {
			_, err = db.SeedBootstrap(ctx, repo, bootstrapCfg)
		}
		if err != nil {
			pool.Close()
			nc.Close()
			return fmt.Errorf("%s - failed to prepare database: %w", logPrefix, err)
		}
	}

	// Step 4: Bridge and dispatcher
	opts := BridgeOptions(cfg, resolved)
	opts.Publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{
		GlobalSubject: EventSubject(cfg, resolved),
	})
	bridge := dispatcher.NewBridge(repo, opts)
	s := New(cfg, dispatcher.NewDispatcher(bridge))
	slog.Info(fmt.Sprintf("%s - Hub %s speaking %s (parallel=%v events=%v)",
		logPrefix, bridge.HubID(), opts.ProtocolVersion, opts.ParallelGroups, opts.PublishEvents))

	// Step 5: Subscribe
	subs, err := s.Subscribe(ctx, nc)
	if err != nil {
		pool.Close()
		nc.Close()
		return err
	}

	// Step 6: Expiry sweeper
	if cfg.ExpirySweepInterval > 0 {
		go runExpirySweeper(ctx, repo, cfg.ExpirySweepInterval)
	}

	// Step 7: HTTP surface
	httpServer := &http.Server{Addr: cfg.ListenAddr(), Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info(fmt.Sprintf("%s - HTTP server listening on %s", logPrefix, httpServer.Addr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error(fmt.Sprintf("%s - HTTP server error: %v", logPrefix, err))
		}
	}()

	slog.Info(fmt.Sprintf("%s - Coordination hub is ready", logPrefix))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info(fmt.Sprintf("%s - Received signal %s, shutting down", logPrefix, sig))

	// Graceful shutdown
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn(fmt.Sprintf("%s - HTTP shutdown: %v", logPrefix, err))
	}
	cancel()
	if err := nc.Drain(); err != nil {
		slog.Warn(fmt.Sprintf("%s - NATS drain: %v", logPrefix, err))
	}
	pool.Close()

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

// Subscribe registers the JSON request handler on HUB_SUBJECT and the
// raw envelope handler on its ".raw" sibling.
func (s *Server) Subscribe(ctx context.Context, nc *comms.Conn) ([]*comms.Subscription, error) {
	subject := s.cfg.HubSubject
	if subject == "" {
		subject = commsutil.SubjectHub
	}

	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		resp := s.HandleRequest(ctx, msg.Data)
		if err := commsutil.RespondJSON(msg, resp); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", logPrefix, subject, err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, subject))

	rawSubject := commsutil.BuildRawSubject(subject)
	rawSub, err := nc.Subscribe(rawSubject, func(msg *comms.Msg) {
		reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout())
		defer cancel()
		if err := msg.Respond([]byte(s.HandleRaw(reqCtx, string(msg.Data)))); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to respond on %s: %v", logPrefix, rawSubject, err))
		}
	})
	if err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", logPrefix, rawSubject, err)
	}
	slog.Info(fmt.Sprintf("%s - Subscribed to %s", logPrefix, rawSubject))

	return []*comms.Subscription{sub, rawSub}, nil
}

// HandleRequest decodes a HubRequest, dispatches it under the request
// timeout, and returns the response. Undecodable input gets INVALID_REQUEST.
func (s *Server) HandleRequest(ctx context.Context, data []byte) *dispatcher.HubResponse {
	var req dispatcher.HubRequest
	if err := commsutil.DecodePayload(data, &req); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
		return &dispatcher.HubResponse{
			Ok: false,
			Error: &dispatcher.ErrorDetail{
				Code:    dispatcher.CodeInvalidRequest,
				Message: "Failed to decode request",
			},
		}
	}

	reqCtx, cancel := requestContext(ctx, s.requestTimeout(), req.Ctx, time.Now())
	defer cancel()

	resp := s.disp.Dispatch(reqCtx, &req)
	if !resp.Ok && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		resp.Error = &dispatcher.ErrorDetail{Code: dispatcher.CodeTimeout, Message: "request timed out", Retryable: true}
	}
	return resp
}

// HandleRaw executes bare envelope text and returns the response envelope.
// Text that is not an envelope is answered with a broadcast E.❓("envelope").
func (s *Server) HandleRaw(ctx context.Context, text string) string {
	out := s.disp.Bridge().Send(ctx, text, "")
	if out.Error != nil {
		return a2a.Encode(s.disp.Bridge().HubID(), a2a.Broadcast, a2a.LayerAtomic,
			a2a.EncodeOperation(a2a.DomainErrors, a2a.OpUnknown.Op, "envelope"))
	}
	return out.ResponseEnvelope
}

func (s *Server) requestTimeout() time.Duration {
	if s.cfg.RequestTimeout > 0 {
		return s.cfg.RequestTimeout
	}
	return 25 * time.Second
}

// requestContext bounds a request by the configured timeout, tightened by
// the caller's timeoutMs or absolute deadlineMs (unix milliseconds).
func requestContext(parent context.Context, limit time.Duration, ictx *dispatcher.InvocationContext, now time.Time) (context.Context, context.CancelFunc) {
	timeout := limit
	if ictx != nil {
		if ictx.TimeoutMs > 0 {
			if d := time.Duration(ictx.TimeoutMs) * time.Millisecond; d < timeout {
				timeout = d
			}
		}
		if ictx.DeadlineMs > 0 {
			if d := time.UnixMilli(ictx.DeadlineMs).Sub(now); d < timeout {
				timeout = d
			}
		}
	}
	return context.WithTimeout(parent, timeout)
}

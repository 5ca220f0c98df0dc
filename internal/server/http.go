package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/piston-labs/coordination-hub/pkg/commsutil"
	"github.com/piston-labs/coordination-hub/pkg/dispatcher"
)

const httpLogPrefix = "server:http"

// maxBodyBytes caps HTTP request bodies.
const maxBodyBytes = 1 << 20

// Handler returns the HTTP surface: the /a2a endpoints plus health,
// readiness, and connection discovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/a2a/send", s.methodHandler("send", http.MethodPost))
	mux.HandleFunc("/a2a/parse", s.methodHandler("parse", http.MethodPost))
	mux.HandleFunc("/a2a/negotiate", s.methodHandler("negotiate", http.MethodPost))
	mux.HandleFunc("/a2a/vocab", s.handleVocab())
	mux.HandleFunc("/a2a/peers", s.methodHandler("peers", http.MethodGet))
	mux.HandleFunc("/health", s.handleHealth())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/connection", s.handleConnection())
	return mux
}

// methodHandler adapts a dispatcher method to HTTP. The body, if any, is
// passed through as the request params.
func (s *Server) methodHandler(method, httpMethod string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != httpMethod {
			w.Header().Set("Allow", httpMethod)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req := &dispatcher.HubRequest{ID: r.Header.Get("X-Request-Id"), Method: method}
		if httpMethod == http.MethodPost {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
			if err != nil || (len(body) > 0 && !json.Valid(body)) {
				writeJSON(w, http.StatusBadRequest, &dispatcher.HubResponse{
					ID: req.ID,
					Error: &dispatcher.ErrorDetail{
						Code:    dispatcher.CodeInvalidRequest,
						Message: "request body must be a JSON object",
					},
				})
				return
			}
			req.Params = body
		}
		if agent := r.Header.Get("X-Agent-Id"); agent != "" {
			req.Ctx = &dispatcher.InvocationContext{AgentID: agent}
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
		defer cancel()
		resp := s.disp.Dispatch(ctx, req)
		writeJSON(w, statusFor(resp), resp)
	}
}

func (s *Server) handleVocab() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		params, _ := json.Marshal(dispatcher.VocabParams{Domain: r.URL.Query().Get("domain")})
		resp := s.disp.Dispatch(r.Context(), &dispatcher.HubRequest{Method: "vocab", Params: params})
		writeJSON(w, statusFor(resp), resp)
	}
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.HealthCheckTimeout)
		defer cancel()
		h := s.disp.Health(ctx)
		status := http.StatusOK
		if h.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, h)
	}
}

// handleConnection tells agents where to reach the hub over NATS.
func (s *Server) handleConnection() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		subject := s.cfg.HubSubject
		if subject == "" {
			subject = commsutil.SubjectHub
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"natsUrl":    s.cfg.ClientURL(),
			"hubSubject": subject,
			"rawSubject": commsutil.BuildRawSubject(subject),
			"hubId":      s.disp.Bridge().HubID(),
		})
	}
}

// statusFor maps a dispatcher response to an HTTP status. Caller mistakes
// are 400; store outages are 503.
func statusFor(resp *dispatcher.HubResponse) int {
	if resp.Ok {
		return http.StatusOK
	}
	switch resp.Error.Code {
	case dispatcher.CodeMethodNotFound:
		return http.StatusNotFound
	case dispatcher.CodeInternal, dispatcher.CodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := commsutil.EncodePayload(v)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - encode response: %v", httpLogPrefix, err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

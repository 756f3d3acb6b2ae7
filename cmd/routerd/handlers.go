package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	modelrouter "github.com/arc-labs/model-router"
	"github.com/arc-labs/model-router/dispatch"
	"github.com/arc-labs/model-router/internal/logging"
	"github.com/arc-labs/model-router/internal/version"
	"github.com/arc-labs/model-router/routing"
)

type server struct {
	router *modelrouter.Router
	echo   bool
}

// executeRequest wraps the routing features with the raw payload forwarded
// to the winning provider handle.
type executeRequest struct {
	routing.RequestFeatures
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Short(),
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	reg := s.router.Registry()
	snap := s.router.HealthSnapshot()
	type entry struct {
		ID     string `json:"id"`
		Models int    `json:"models"`
		State  string `json:"state"`
	}
	out := make([]entry, 0)
	for _, id := range reg.List() {
		h, err := reg.Get(id)
		if err != nil {
			continue
		}
		out = append(out, entry{
			ID:     id,
			Models: len(h.Describe().Models),
			State:  snap[id].State.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": s.router.Catalog().All()})
}

func (s *server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req routing.RequestFeatures
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	decision, err := s.router.Select(r.Context(), req)
	if err != nil {
		writeError(w, selectStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	invoke := s.handleInvoker(req.Payload)
	if s.echo {
		invoke = echoInvoker(req.Payload)
	}

	result, err := s.router.Execute(r.Context(), req.RequestFeatures, invoke)
	if err != nil {
		status := selectStatus(err)
		var failed *dispatch.AllProvidersFailedError
		if errors.As(err, &failed) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleInvoker forwards the payload to the registered provider handle for
// the winning candidate.
func (s *server) handleInvoker(payload json.RawMessage) dispatch.InvokeFunc {
	return func(ctx context.Context, cand routing.Candidate) (any, error) {
		h, err := s.router.Registry().Get(cand.Provider)
		if err != nil {
			return nil, err
		}
		return h.Invoke(ctx, cand.Model, payload)
	}
}

// echoInvoker answers locally without touching any backend.
func echoInvoker(payload json.RawMessage) dispatch.InvokeFunc {
	return func(_ context.Context, cand routing.Candidate) (any, error) {
		return map[string]any{
			"echo":     true,
			"provider": cand.Provider,
			"model":    cand.Model,
			"payload":  payload,
		}, nil
	}
}

func selectStatus(err error) int {
	var noEligible *routing.NoEligibleProviderError
	var mismatch *routing.CapabilityMismatchError
	var unknown *routing.UnknownModelError
	switch {
	case errors.As(err, &unknown), errors.As(err, &mismatch):
		return http.StatusBadRequest
	case errors.As(err, &noEligible):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Error("response encode failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

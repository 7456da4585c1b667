package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/gateflow/pkg/observability"
	"github.com/kadirpekel/gateflow/pkg/pipeline"
	"github.com/kadirpekel/gateflow/pkg/session"
	"github.com/kadirpekel/gateflow/pkg/workflows"
)

type startRunRequest struct {
	Input string `json:"input"`

	// Rounds applies to round-based workflows only; zero selects the
	// server default.
	Rounds int `json:"rounds,omitempty"`
}

type decisionRequest struct {
	RequestID string `json:"request_id"`
	Decision  string `json:"decision"`
}

type runResponse struct {
	RunID    string                   `json:"run_id"`
	Workflow string                   `json:"workflow"`
	State    pipeline.State           `json:"state"`
	Pending  *pipeline.PendingRequest `json:"pending,omitempty"`
	Result   string                   `json:"result,omitempty"`
	Events   []pipeline.Event         `json:"events,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": workflows.Catalog()})
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "workflow")
	def, err := workflows.Lookup(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, errors.New("input is required"))
		return
	}

	rounds := req.Rounds
	if def.Rounds && rounds == 0 {
		rounds = s.cfg.DefaultRounds
	}

	provider := observability.InstrumentProvider(s.provider, s.metrics)
	p, err := def.Build(provider, rounds)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess := session.New(p,
		session.WithLogger(s.logger),
		session.WithStageObserver(func(stage string, round int, d time.Duration) {
			s.metrics.RecordStage(r.Context(), stage, d)
		}),
	)
	entry := s.registry.add(def.Name, sess)
	s.metrics.RecordRunStarted(r.Context(), def.Name)

	events, err := sess.Start(r.Context(), req.Input)
	s.recordRunState(r.Context(), def.Name, sess.State())
	writeJSON(w, http.StatusCreated, s.runResponseFor(entry, events, err))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.runResponseFor(entry, nil, nil))
}

func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entry.session.Events()})
}

func (s *Server) handleSubmitDecision(w http.ResponseWriter, r *http.Request) {
	entry, err := s.registry.get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Decision == "" {
		writeError(w, http.StatusBadRequest, errors.New("decision is required"))
		return
	}

	events, err := entry.session.SubmitDecision(r.Context(), req.RequestID, req.Decision)
	if err != nil && entry.session.State() != pipeline.StateFailed {
		writeError(w, decisionStatus(err), err)
		return
	}
	s.recordRunState(r.Context(), entry.workflow, entry.session.State())
	writeJSON(w, http.StatusOK, s.runResponseFor(entry, events, err))
}

// decisionStatus maps session errors to HTTP statuses: missing things
// are 404, protocol violations are 409.
func decisionStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoPendingRequest),
		errors.Is(err, session.ErrAlreadyResumed),
		errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrAlreadyStarted),
		errors.Is(err, session.ErrConcurrentAccess):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// runResponseFor snapshots the session into a response. A failed run is
// reported in-band: the run is a resource whose state is Failed, not a
// transport error.
func (s *Server) runResponseFor(entry *runEntry, events []pipeline.Event, runErr error) runResponse {
	sess := entry.session
	resp := runResponse{
		RunID:    sess.ID(),
		Workflow: entry.workflow,
		State:    sess.State(),
		Pending:  sess.Pending(),
		Events:   events,
	}
	if result, ok := sess.Result(); ok {
		resp.Result = result
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}
	return resp
}

// recordRunState counts the state a run segment landed in.
func (s *Server) recordRunState(ctx context.Context, workflow string, state pipeline.State) {
	switch state {
	case pipeline.StateSuspended:
		s.metrics.RecordRunSuspended(ctx, workflow)
	case pipeline.StateCompleted:
		s.metrics.RecordRunCompleted(ctx, workflow)
	case pipeline.StateFailed:
		s.metrics.RecordRunFailed(ctx, workflow)
	}
}

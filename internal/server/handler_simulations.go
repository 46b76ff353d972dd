package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/pkg/model"
)

const (
	maxBodyBytes = 1 << 20
	maxTickBatch = 10_000
)

type simulationSummary struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Policy   string        `json:"policy"`
	Tick     int           `json:"tick"`
	Finished bool          `json:"finished"`
	Auto     bool          `json:"auto"`
	Summary  model.Summary `json:"summary"`
}

func summarize(s *sim.Session) simulationSummary {
	snap := s.Snapshot()
	return simulationSummary{
		ID:       snap.ID,
		Name:     snap.Name,
		Policy:   snap.Policy,
		Tick:     snap.Tick,
		Finished: snap.Finished,
		Auto:     snap.Auto,
		Summary:  snap.Summary,
	}
}

// decodeScenario reads a scenario from a JSON body, or a YAML body when the
// content type says so.
func decodeScenario(r *http.Request) (*config.Scenario, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, model.NewValidationError("reading body: " + err.Error())
	}
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return config.Parse(body)
	}

	var sc config.Scenario
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sc); err != nil {
		return nil, model.NewValidationError("Invalid JSON body: " + err.Error())
	}
	return &sc, nil
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*sim.Session, bool) {
	sess, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, RequestIDFromContext(r.Context()), err)
		return nil, false
	}
	return sess, true
}

// intParam reads a non-negative integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, model.NewValidationError("invalid query parameter",
			model.FieldError{Field: name, Message: "must be a non-negative integer"})
	}
	return n, nil
}

func (s *Server) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	auto := r.URL.Query().Get("auto") == "true"
	if auto && s.loop == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code:    model.ErrCodeUnavailable,
			Message: "automatic mode is not running on this server",
		})
		return
	}

	sc, err := decodeScenario(r)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	sess, err := s.manager.Create(sc)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if auto {
		sess.SetAuto(true)
	}
	respondCreated(w, reqID, sess.Snapshot())
}

func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sessions := s.manager.List()
	out := make([]simulationSummary, len(sessions))
	for i, sess := range sessions {
		out[i] = summarize(sess)
	}
	respondOK(w, reqID, out)
}

func (s *Server) handleGetSimulation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), sess.Snapshot())
}

func (s *Server) handleDeleteSimulation(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if err := s.manager.Delete(id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

type tickResponse struct {
	Ticks    []sim.TickResult `json:"ticks"`
	Tick     int              `json:"tick"`
	Finished bool             `json:"finished"`
}

// handleTick advances a simulation by ?n= ticks (default 1).
func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	n, err := intParam(r, "n", 1)
	if err == nil && (n < 1 || n > maxTickBatch) {
		err = model.NewValidationError("invalid query parameter",
			model.FieldError{Field: "n", Message: "must be between 1 and " + strconv.Itoa(maxTickBatch)})
	}
	if err != nil {
		respondErr(w, reqID, err)
		return
	}

	results, err := sess.Advance(r.Context(), n)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if results == nil {
		results = []sim.TickResult{}
	}
	respondOK(w, reqID, tickResponse{Ticks: results, Tick: sess.Now(), Finished: sess.Finished()})
}

// handleRun drives a simulation to completion within ?max_ticks=.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	maxTicks, err := intParam(r, "max_ticks", 0)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if _, err := sess.RunToCompletion(r.Context(), maxTicks); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, sess.Snapshot())
}

func (s *Server) handleSetAuto(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondErr(w, reqID, model.NewValidationError("Invalid JSON body: "+err.Error()))
		return
	}
	if req.Enabled && s.loop == nil {
		respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
			Code:    model.ErrCodeUnavailable,
			Message: "automatic mode is not running on this server",
		})
		return
	}
	sess.SetAuto(req.Enabled)
	respondOK(w, reqID, summarize(sess))
}

// handleFinish records the simulation as a run.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	run, err := s.manager.Finish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	segments := sess.Segments()
	if segments == nil {
		segments = []model.Segment{}
	}
	respondOK(w, RequestIDFromContext(r.Context()), segments)
}

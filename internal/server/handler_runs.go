package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/queuesim/pkg/model"
)

func (s *Server) requireStore(w http.ResponseWriter, r *http.Request) bool {
	if s.store != nil {
		return true
	}
	respondError(w, RequestIDFromContext(r.Context()), http.StatusServiceUnavailable, &model.APIError{
		Code:    model.ErrCodeUnavailable,
		Message: "run persistence is disabled on this server",
	})
	return false
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, r) {
		return
	}

	opts := model.DefaultListOptions()
	var err error
	if opts.Limit, err = intParam(r, "limit", opts.Limit); err != nil {
		respondErr(w, reqID, err)
		return
	}
	if opts.Offset, err = intParam(r, "offset", opts.Offset); err != nil {
		respondErr(w, reqID, err)
		return
	}
	opts.Policy = r.URL.Query().Get("policy")
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondList(w, reqID, runs, model.NewPagination(opts, len(runs), total))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if run == nil {
		respondErr(w, reqID, model.NewNotFoundError("Run", id))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if run == nil {
		respondErr(w, reqID, model.NewNotFoundError("Run", id))
		return
	}
	results, err := s.store.ListResults(r.Context(), id)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	if results == nil {
		results = []model.ClientResult{}
	}
	respondOK(w, reqID, results)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.DeleteRun(r.Context(), id); err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]string{"id": id, "deleted": "true"})
}

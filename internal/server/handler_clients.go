package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sim"
	"github.com/me/queuesim/pkg/model"
)

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	respondOK(w, RequestIDFromContext(r.Context()), sess.Snapshot().Clients)
}

func (s *Server) handleAddClient(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var spec config.ClientSpec
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		respondErr(w, reqID, model.NewValidationError("Invalid JSON body: "+err.Error()))
		return
	}
	if err := sess.AddClient(spec); err != nil {
		respondErr(w, reqID, err)
		return
	}
	view, err := sess.Client(spec.ID)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondCreated(w, reqID, view)
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	view, err := sess.Client(chi.URLParam(r, "cid"))
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, view)
}

func (s *Server) handleBlockClient(w http.ResponseWriter, r *http.Request) {
	s.changeClient(w, r, (*sim.Session).Block)
}

func (s *Server) handleResumeClient(w http.ResponseWriter, r *http.Request) {
	s.changeClient(w, r, (*sim.Session).Resume)
}

func (s *Server) changeClient(w http.ResponseWriter, r *http.Request, change func(*sim.Session, string) error) {
	reqID := RequestIDFromContext(r.Context())
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cid := chi.URLParam(r, "cid")
	if err := change(sess, cid); err != nil {
		respondErr(w, reqID, err)
		return
	}
	view, err := sess.Client(cid)
	if err != nil {
		respondErr(w, reqID, err)
		return
	}
	respondOK(w, reqID, view)
}

package server

import (
	"net/http"
	"runtime"
	"time"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

type healthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	GoVersion   string `json:"go_version"`
	Uptime      string `json:"uptime"`
	Sessions    int    `json:"sessions"`
	MaxSessions int    `json:"max_sessions"`
	Loop        string `json:"loop"`
	Store       string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	loop := "disabled"
	if s.loop != nil {
		loop = "every " + s.config.TickInterval.String()
	}
	storeStatus := "disabled"
	if s.store != nil {
		storeStatus = "sqlite"
	}

	respondOK(w, reqID, healthResponse{
		Status:      "healthy",
		Version:     Version,
		GoVersion:   runtime.Version(),
		Uptime:      time.Since(s.startTime).Round(time.Second).String(),
		Sessions:    len(s.manager.List()),
		MaxSessions: s.config.MaxSessions,
		Loop:        loop,
		Store:       storeStatus,
	})
}

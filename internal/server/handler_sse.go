package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// handleSSESimulation streams snapshots via Server-Sent Events whenever the
// simulation advances, until it finishes or the client disconnects.
// GET /api/v1/simulations/{id}/events
func (s *Server) handleSSESimulation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	snap := sess.Snapshot()
	if err := sendSSEEvent(w, flusher, "init", snap); err != nil {
		s.logger.Debug("sse client disconnected", "sim_id", sess.ID, "error", err)
		return
	}
	if snap.Finished {
		sendSSEEvent(w, flusher, "complete", snap)
		return
	}

	interval := s.config.TickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTick := snap.Tick
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			snap = sess.Snapshot()
			if snap.Tick != lastTick {
				if err := sendSSEEvent(w, flusher, "update", snap); err != nil {
					s.logger.Debug("sse client disconnected", "sim_id", sess.ID)
					return
				}
				lastTick = snap.Tick
			} else {
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}

			if snap.Finished {
				sendSSEEvent(w, flusher, "complete", snap)
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}

package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "queuesim API",
		Version:     "v1",
		Description: "Tick-driven simulation of single-server queue scheduling policies",
		Endpoints: []endpointInfo{
			{"/api/v1/simulations", []string{"GET", "POST"}, "Live simulations. POST takes a scenario (JSON, or YAML with a yaml content type); ?auto=true starts automatic mode"},
			{"/api/v1/simulations/{id}", []string{"GET", "DELETE"}, "Snapshot of one simulation"},
			{"/api/v1/simulations/{id}/tick", []string{"POST"}, "Advance by ?n= ticks"},
			{"/api/v1/simulations/{id}/run", []string{"POST"}, "Run to completion within ?max_ticks="},
			{"/api/v1/simulations/{id}/auto", []string{"PUT"}, "Turn automatic advancing on or off"},
			{"/api/v1/simulations/{id}/finish", []string{"POST"}, "Record the simulation as a run"},
			{"/api/v1/simulations/{id}/segments", []string{"GET"}, "Gantt timeline of service"},
			{"/api/v1/simulations/{id}/events", []string{"GET"}, "Server-sent snapshots while the simulation advances"},
			{"/api/v1/simulations/{id}/clients", []string{"GET", "POST"}, "Clients of a simulation; POST adds one"},
			{"/api/v1/simulations/{id}/clients/{cid}", []string{"GET"}, "Single client"},
			{"/api/v1/simulations/{id}/clients/{cid}/block", []string{"POST"}, "Take a client out of its queue"},
			{"/api/v1/simulations/{id}/clients/{cid}/resume", []string{"POST"}, "Put a blocked client back"},
			{"/api/v1/runs", []string{"GET"}, "Recorded runs (?limit, ?offset, ?policy)"},
			{"/api/v1/runs/{id}", []string{"GET", "DELETE"}, "Single recorded run"},
			{"/api/v1/runs/{id}/results", []string{"GET"}, "Per-client results of a run"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}

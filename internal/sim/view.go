package sim

import (
	"github.com/me/queuesim/internal/sched"
	"github.com/me/queuesim/pkg/model"
)

// ClientView is a client as shown to API and CLI users.
type ClientView struct {
	ID           string            `json:"id"`
	State        model.ClientState `json:"state"`
	Position     int               `json:"position"` // in service order; -1 when not queued
	Work         int               `json:"work"`
	Remaining    int               `json:"remaining"`
	Served       int               `json:"served"`
	Priority     *int              `json:"priority,omitempty"`
	Level        int               `json:"level"`
	Age          int               `json:"age"`
	Arrival      int               `json:"arrival"`
	FirstService int               `json:"first_service"`
	Finish       int               `json:"finish"`
}

// LevelView is one level of a multi-level scheduler.
type LevelView struct {
	sched.LevelInfo
	Clients []string `json:"clients"`
}

// Snapshot is the full observable state of a session.
type Snapshot struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Policy   string          `json:"policy"`
	Tick     int             `json:"tick"`
	Finished bool            `json:"finished"`
	Auto     bool            `json:"auto"`
	RunID    string          `json:"run_id,omitempty"`
	Queue    []string        `json:"queue"`
	Levels   []LevelView     `json:"levels,omitempty"`
	Clients  []ClientView    `json:"clients"`
	Segments []model.Segment `json:"segments"`
	Summary  model.Summary   `json:"summary"`
}

func (s *Session) positions() map[*sched.Client]int {
	pos := make(map[*sched.Client]int, s.engine.Len())
	i := 0
	for c := range s.engine.All() {
		pos[c] = i
		i++
	}
	return pos
}

func (s *Session) view(t *tracked, pos map[*sched.Client]int) ClientView {
	c := t.client
	v := ClientView{
		ID:           c.ID,
		State:        t.state,
		Position:     -1,
		Work:         c.Work(),
		Remaining:    c.Remaining(),
		Served:       c.Served(),
		Level:        c.Level(),
		Age:          c.Age(),
		Arrival:      c.Arrival(),
		FirstService: t.firstService,
		Finish:       t.finish,
	}
	if p, ok := c.Priority(); ok {
		v.Priority = &p
	}
	if i, ok := pos[c]; ok {
		v.Position = i
	}
	return v
}

// Client returns the view of one client.
func (s *Session) Client(id string) (ClientView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(id)
	if err != nil {
		return ClientView{}, err
	}
	return s.view(t, s.positions()), nil
}

// Snapshot captures the session without changing it.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:       s.ID,
		Name:     s.scenario.Name,
		Policy:   s.scenario.Policy,
		Tick:     s.tick,
		Finished: s.finished(),
		Auto:     s.auto,
		Queue:    []string{},
		Segments: append([]model.Segment{}, s.segments...),
		Summary:  s.summary(),
	}
	if s.run != nil {
		snap.RunID = s.run.ID
	}
	for c := range s.engine.All() {
		snap.Queue = append(snap.Queue, c.ID)
	}

	if s.multi != nil {
		for i := range s.multi.NumLevels() {
			info, _ := s.multi.Level(i)
			lv := LevelView{LevelInfo: info, Clients: []string{}}
			for c := range s.multi.LevelClients(i) {
				lv.Clients = append(lv.Clients, c.ID)
			}
			snap.Levels = append(snap.Levels, lv)
		}
	}

	pos := s.positions()
	snap.Clients = make([]ClientView, len(s.order))
	for i, t := range s.order {
		snap.Clients[i] = s.view(t, pos)
	}
	return snap
}

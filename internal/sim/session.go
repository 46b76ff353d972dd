// Package sim drives schedulers through simulated time. A Session owns one
// scheduler and the clients of a scenario; each Tick admits the clients
// arriving at that tick, serves the head of the scheduler for one unit of
// work and, for multi-level schedulers, ages the waiting clients.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/internal/sched"
	"github.com/me/queuesim/pkg/model"
)

// DefaultMaxTicks bounds RunToCompletion when neither the caller nor the
// scenario sets a limit.
const DefaultMaxTicks = 100_000

// ErrTickLimit is returned when a run does not drain within its tick limit.
var ErrTickLimit = errors.New("tick limit reached")

// TickResult reports what happened during one tick.
type TickResult struct {
	Tick      int      `json:"tick"`
	Arrived   []string `json:"arrived,omitempty"`
	Served    string   `json:"served,omitempty"`
	Completed string   `json:"completed,omitempty"`
	Promoted  []string `json:"promoted,omitempty"`
	Idle      bool     `json:"idle,omitempty"`
}

type tracked struct {
	client       *sched.Client
	level        *int // requested multi-level placement
	state        model.ClientState
	firstService int
	finish       int
}

// Session is one live simulation. It is safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	scenario config.Scenario
	engine   sched.Scheduler
	multi    *sched.MultiLevel
	logger   *slog.Logger

	tick       int
	clients    map[string]*tracked
	order      []*tracked
	segments   []model.Segment
	current    *tracked // client whose visit is in progress
	lastServed *tracked

	idleTicks  int
	switches   int
	promotions int

	auto bool
	run  *model.Run // set once the session has been recorded
}

// NewSession validates sc and builds a session at tick 0. The session keeps
// its own copy of the scenario.
func NewSession(sc *config.Scenario, logger *slog.Logger) (*Session, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		ID:        "sim_" + uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		scenario:  *sc,
		clients:   make(map[string]*tracked, len(sc.Clients)),
	}
	s.scenario.Clients = slices.Clone(sc.Clients)
	s.logger = logger.With("component", "sim", "sim_id", s.ID)

	engine, err := sc.NewScheduler(sched.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("build scheduler: %w", err)
	}
	s.engine = engine
	s.multi, _ = engine.(*sched.MultiLevel)

	for _, spec := range sc.Clients {
		if err := s.track(spec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) track(spec config.ClientSpec) error {
	if _, ok := s.clients[spec.ID]; ok {
		return fmt.Errorf("client %s already exists: %w", spec.ID, model.ErrInvalidArgument)
	}
	c, err := spec.NewClient()
	if err != nil {
		return err
	}
	t := &tracked{
		client:       c,
		level:        spec.Level,
		state:        model.ClientStatePending,
		firstService: -1,
		finish:       -1,
	}
	s.clients[spec.ID] = t
	s.order = append(s.order, t)
	return nil
}

// Name returns the scenario name.
func (s *Session) Name() string { return s.scenario.Name }

// Policy returns the scenario policy.
func (s *Session) Policy() string { return s.scenario.Policy }

// Now returns the next tick to be simulated.
func (s *Session) Now() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// AddClient adds a client while the simulation runs. An arrival in the past
// means the current tick; a client arriving now is admitted immediately.
func (s *Session) AddClient(spec config.ClientSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec.Arrival = max(spec.Arrival, s.tick)
	probe := s.scenario
	probe.Clients = []config.ClientSpec{spec}
	if err := probe.Validate(); err != nil {
		return err
	}
	if err := s.track(spec); err != nil {
		return err
	}
	t := s.clients[spec.ID]

	if spec.Arrival == s.tick {
		if err := s.admit(t); err != nil {
			delete(s.clients, spec.ID)
			s.order = s.order[:len(s.order)-1]
			return err
		}
	}
	s.scenario.Clients = append(s.scenario.Clients, spec)
	s.logger.Debug("client added", "client", spec.ID, "arrival", spec.Arrival)
	return nil
}

func (s *Session) admits(t *tracked) error {
	if s.multi != nil && t.level != nil {
		return s.multi.AdmitsAt(t.client, *t.level)
	}
	return s.engine.Admits(t.client)
}

func (s *Session) admit(t *tracked) error {
	var err error
	if s.multi != nil && t.level != nil {
		err = s.multi.EnqueueAt(t.client, *t.level)
	} else {
		err = s.engine.Enqueue(t.client)
	}
	if err != nil {
		return err
	}
	t.state = model.ClientStateQueued
	return nil
}

// Tick simulates one tick.
func (s *Session) Tick(ctx context.Context) (TickResult, error) {
	if err := ctx.Err(); err != nil {
		return TickResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step()
}

func (s *Session) step() (TickResult, error) {
	res := TickResult{Tick: s.tick}

	// Arrivals are admitted all or none; a rejected one leaves the tick
	// unplayed.
	var due []*tracked
	for _, t := range s.order {
		if t.state == model.ClientStatePending && t.client.Arrival() <= s.tick {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if err := s.admits(t); err != nil {
			return res, fmt.Errorf("tick %d: admit %s: %w", s.tick, t.client.ID, err)
		}
	}
	defer func() { s.tick++ }()

	for _, t := range due {
		if err := s.admit(t); err != nil {
			return res, fmt.Errorf("tick %d: admit %s: %w", s.tick, t.client.ID, err)
		}
		res.Arrived = append(res.Arrived, t.client.ID)
	}

	head, err := s.engine.Get(0)
	if err != nil {
		res.Idle = true
		s.idleTicks++
		return res, nil
	}
	ht := s.clients[head.ID]
	if s.current != nil && s.current != ht && s.current.state == model.ClientStateInService {
		s.current.state = model.ClientStateQueued
	}
	if s.lastServed != nil && s.lastServed != ht {
		s.switches++
	}
	s.lastServed = ht
	if ht.firstService < 0 {
		ht.firstService = s.tick
	}
	ht.state = model.ClientStateInService
	s.current = ht
	level := head.Level()

	done, err := s.engine.Dequeue()
	if err != nil {
		return res, fmt.Errorf("tick %d: %w", s.tick, err)
	}
	res.Served = head.ID
	s.record(head.ID, level)

	switch {
	case done != nil:
		ht.state = model.ClientStateDone
		ht.finish = s.tick + 1
		s.current = nil
		res.Completed = done.ID
		s.logger.Debug("completed", "client", done.ID, "tick", s.tick)
	default:
		if next, err := s.engine.Get(0); err != nil || next != head {
			ht.state = model.ClientStateQueued
			s.current = nil
		}
	}

	if s.multi != nil {
		promoted, err := s.multi.Age(s.multi.MaxAge())
		if err != nil {
			return res, fmt.Errorf("tick %d: %w", s.tick, err)
		}
		for _, c := range promoted {
			res.Promoted = append(res.Promoted, c.ID)
		}
		s.promotions += len(promoted)
	}
	return res, nil
}

// record extends the Gantt timeline with one tick of service.
func (s *Session) record(id string, level int) {
	if n := len(s.segments); n > 0 {
		last := &s.segments[n-1]
		if last.ClientID == id && last.Level == level && last.End == s.tick {
			last.End++
			return
		}
	}
	s.segments = append(s.segments, model.Segment{ClientID: id, Level: level, Start: s.tick, End: s.tick + 1})
}

// Advance simulates up to n ticks, stopping early once nothing is left to
// schedule.
func (s *Session) Advance(ctx context.Context, n int) ([]TickResult, error) {
	if n < 1 {
		return nil, fmt.Errorf("advance %d ticks: %w", n, model.ErrInvalidArgument)
	}
	var results []TickResult
	for range n {
		if s.Finished() {
			break
		}
		res, err := s.Tick(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// RunToCompletion ticks until nothing is left to schedule. maxTicks of 0
// falls back to the scenario limit, then DefaultMaxTicks.
func (s *Session) RunToCompletion(ctx context.Context, maxTicks int) (int, error) {
	limit := maxTicks
	if limit <= 0 {
		limit = s.scenario.MaxTicks
	}
	if limit <= 0 {
		limit = DefaultMaxTicks
	}

	ran := 0
	for !s.Finished() {
		if ran == limit {
			return ran, fmt.Errorf("%s after %d ticks: %w", s.scenario.Name, ran, ErrTickLimit)
		}
		if _, err := s.Tick(ctx); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

// Finished reports whether no client is pending or queued. Blocked clients
// do not keep a session running.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished()
}

func (s *Session) finished() bool {
	if s.engine.Len() > 0 {
		return false
	}
	for _, t := range s.order {
		if t.state == model.ClientStatePending {
			return false
		}
	}
	return true
}

func (s *Session) lookup(id string) (*tracked, error) {
	t, ok := s.clients[id]
	if !ok {
		return nil, model.NewNotFoundError("Client", id)
	}
	return t, nil
}

// Block takes a queued client out of the scheduler, keeping its progress.
func (s *Session) Block(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if !t.state.CanTransitionTo(model.ClientStateBlocked) {
		return &model.InvalidTransitionError{ID: id, From: t.state, To: model.ClientStateBlocked}
	}
	if err := s.engine.Remove(t.client); err != nil {
		return err
	}
	t.state = model.ClientStateBlocked
	if s.current == t {
		s.current = nil
	}
	s.logger.Debug("blocked", "client", id, "remaining", t.client.Remaining())
	return nil
}

// Resume puts a blocked client back. A single queue re-inserts it ahead of
// any in-service head it outranks; a multi-level scheduler returns it to
// the level it left.
func (s *Session) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(id)
	if err != nil {
		return err
	}
	if t.state != model.ClientStateBlocked {
		return &model.InvalidTransitionError{ID: id, From: t.state, To: model.ClientStateQueued}
	}

	switch e := s.engine.(type) {
	case *sched.MultiLevel:
		err = e.EnqueueAt(t.client, t.client.Level())
	case *sched.Queue:
		err = e.Reinsert(t.client)
	default:
		err = s.engine.Enqueue(t.client)
	}
	if err != nil {
		return err
	}
	t.state = model.ClientStateQueued
	s.logger.Debug("resumed", "client", id)
	return nil
}

// SetAuto turns automatic advancing by a Loop on or off.
func (s *Session) SetAuto(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auto = on
}

// Auto reports whether a Loop advances the session.
func (s *Session) Auto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auto
}

func (s *Session) result(t *tracked) model.ClientResult {
	c := t.client
	r := model.ClientResult{
		ClientID:     c.ID,
		Work:         c.Work(),
		Remaining:    c.Remaining(),
		Level:        c.Level(),
		Arrival:      c.Arrival(),
		FirstService: t.firstService,
		Finish:       t.finish,
		Turnaround:   -1,
		Waiting:      -1,
		Response:     -1,
		State:        t.state,
	}
	if p, ok := c.Priority(); ok {
		r.Priority = &p
	}
	if t.finish >= 0 {
		r.Turnaround = t.finish - c.Arrival()
		r.Waiting = r.Turnaround - c.Work()
	}
	if t.firstService >= 0 {
		r.Response = t.firstService - c.Arrival()
	}
	return r
}

// Results returns per-client results in the order clients were added.
func (s *Session) Results() []model.ClientResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results()
}

func (s *Session) results() []model.ClientResult {
	out := make([]model.ClientResult, len(s.order))
	for i, t := range s.order {
		out[i] = s.result(t)
	}
	return out
}

// Summary aggregates the results so far.
func (s *Session) Summary() model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary()
}

func (s *Session) summary() model.Summary {
	sum := Summarize(s.results(), s.tick)
	sum.IdleTicks = s.idleTicks
	sum.ContextSwitches = s.switches
	sum.Promotions = s.promotions
	return sum
}

// Segments returns the Gantt timeline so far.
func (s *Session) Segments() []model.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.segments)
}

// Record builds the persisted form of the session. Calling it again returns
// the same run.
func (s *Session) Record() (*model.Run, []model.ClientResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.results()
	if s.run == nil {
		doc, err := yaml.Marshal(&s.scenario)
		if err != nil {
			return nil, nil, fmt.Errorf("encode scenario: %w", err)
		}
		now := time.Now().UTC()
		s.run = &model.Run{
			ID:         "run_" + uuid.New().String(),
			Name:       s.scenario.Name,
			Policy:     s.scenario.Policy,
			Ticks:      s.tick,
			Summary:    s.summary(),
			Segments:   slices.Clone(s.segments),
			Scenario:   string(doc),
			StartedAt:  s.CreatedAt,
			FinishedAt: &now,
		}
	}
	for i := range results {
		results[i].RunID = s.run.ID
	}
	run := *s.run
	return &run, results, nil
}

package sim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"testing"

	"github.com/me/queuesim/internal/config"
	"github.com/me/queuesim/pkg/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSession(t *testing.T, doc string) *Session {
	t.Helper()
	sc, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := NewSession(sc, testLogger())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}

func runAll(t *testing.T, s *Session) int {
	t.Helper()
	n, err := s.RunToCompletion(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunToCompletion: %v", err)
	}
	return n
}

func resultsByID(s *Session) map[string]model.ClientResult {
	out := map[string]model.ClientResult{}
	for _, r := range s.Results() {
		out[r.ClientID] = r
	}
	return out
}

const threeTellers = `
name: three-tellers
policy: rr
quantum: 1
clients:
  - {id: A, work: 3}
  - {id: B, work: 3}
  - {id: C, work: 3}
`

func TestSession_RoundRobinMetrics(t *testing.T) {
	s := newSession(t, threeTellers)
	if n := runAll(t, s); n != 9 {
		t.Fatalf("ran %d ticks, want 9", n)
	}

	want := map[string]struct{ finish, turnaround, waiting, response int }{
		"A": {7, 7, 4, 0},
		"B": {8, 8, 5, 1},
		"C": {9, 9, 6, 2},
	}
	for id, r := range resultsByID(s) {
		w := want[id]
		if r.Finish != w.finish || r.Turnaround != w.turnaround || r.Waiting != w.waiting || r.Response != w.response {
			t.Errorf("%s = finish %d turnaround %d waiting %d response %d, want %+v",
				id, r.Finish, r.Turnaround, r.Waiting, r.Response, w)
		}
		if r.State != model.ClientStateDone || r.Remaining != 0 {
			t.Errorf("%s state %s remaining %d", id, r.State, r.Remaining)
		}
	}

	sum := s.Summary()
	if sum.Completed != 3 || sum.AvgTurnaround != 8 || sum.AvgWaiting != 5 || sum.AvgResponse != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.ContextSwitches != 8 || sum.IdleTicks != 0 {
		t.Errorf("switches=%d idle=%d, want 8, 0", sum.ContextSwitches, sum.IdleTicks)
	}
	if len(s.Segments()) != 9 {
		t.Errorf("got %d segments, want 9", len(s.Segments()))
	}
}

func TestSession_IdleUntilArrival(t *testing.T) {
	s := newSession(t, "policy: fifo\nclients: [{id: A, work: 2, arrival: 3}]\n")

	res, err := s.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if !res.Idle || res.Served != "" {
		t.Errorf("tick 0 = %+v, want idle", res)
	}
	if v, _ := s.Client("A"); v.State != model.ClientStatePending {
		t.Errorf("A state = %s before arrival, want PENDING", v.State)
	}

	if n := runAll(t, s); n != 4 {
		t.Errorf("ran %d more ticks, want 4", n)
	}
	r := resultsByID(s)["A"]
	if r.Finish != 5 || r.Turnaround != 2 || r.Response != 0 {
		t.Errorf("A = %+v", r)
	}
	if sum := s.Summary(); sum.IdleTicks != 3 || sum.Throughput != 0.2 {
		t.Errorf("idle=%d throughput=%v, want 3, 0.2", sum.IdleTicks, sum.Throughput)
	}
}

func TestSession_SegmentsMerge(t *testing.T) {
	s := newSession(t, "policy: fifo\nclients: [{id: A, work: 2}, {id: B, work: 1}]\n")
	runAll(t, s)

	want := []model.Segment{
		{ClientID: "A", Start: 0, End: 2},
		{ClientID: "B", Start: 2, End: 3},
	}
	if got := s.Segments(); !slices.Equal(got, want) {
		t.Errorf("segments = %+v, want %+v", got, want)
	}
	if sw := s.Summary().ContextSwitches; sw != 1 {
		t.Errorf("ContextSwitches = %d, want 1", sw)
	}
}

func TestSession_SRTFPreemptsOnArrival(t *testing.T) {
	s := newSession(t, "policy: srtf\nclients: [{id: A, work: 5}, {id: B, work: 2, arrival: 1}]\n")
	ctx := context.Background()

	results, err := s.Advance(ctx, 3)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := results[1]; !slices.Equal(got.Arrived, []string{"B"}) || got.Served != "B" {
		t.Errorf("tick 1 = %+v, want B to arrive and be served", got)
	}
	if results[2].Completed != "B" {
		t.Errorf("tick 2 completed %q, want B", results[2].Completed)
	}

	runAll(t, s)
	r := resultsByID(s)
	if r["A"].Finish != 7 || r["B"].Finish != 3 || r["B"].Response != 0 {
		t.Errorf("A=%+v B=%+v", r["A"], r["B"])
	}
	if sw := s.Summary().ContextSwitches; sw != 2 {
		t.Errorf("ContextSwitches = %d, want 2", sw)
	}
}

func TestSession_MultiLevelPromotion(t *testing.T) {
	s := newSession(t, `
policy: multilevel
max_age: 3
levels: [{policy: rr, quantum: 1}, {policy: rr, quantum: 1}, {policy: rr, quantum: 1}]
clients:
  - {id: busy, work: 100, level: 0}
  - {id: w, work: 1, level: 2}
`)
	results, err := s.Advance(context.Background(), 3)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if !slices.Equal(results[2].Promoted, []string{"w"}) {
		t.Errorf("tick 2 promoted %v, want [w]", results[2].Promoted)
	}
	v, err := s.Client("w")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if v.Level != 1 || v.Age != 0 {
		t.Errorf("w level=%d age=%d, want 1, 0", v.Level, v.Age)
	}

	snap := s.Snapshot()
	if len(snap.Levels) != 3 || !slices.Equal(snap.Levels[1].Clients, []string{"w"}) {
		t.Errorf("levels = %+v", snap.Levels)
	}
	if snap.Summary.Promotions != 1 {
		t.Errorf("Promotions = %d, want 1", snap.Summary.Promotions)
	}
}

func TestSession_BlockResume(t *testing.T) {
	s := newSession(t, "policy: rr\nquantum: 1\nclients: [{id: A, work: 3}, {id: B, work: 3}]\n")
	ctx := context.Background()
	if _, err := s.Tick(ctx); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if err := s.Block("A"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	if q := s.Snapshot().Queue; !slices.Equal(q, []string{"B"}) {
		t.Errorf("queue = %v, want [B]", q)
	}
	v, _ := s.Client("A")
	if v.State != model.ClientStateBlocked || v.Remaining != 2 || v.Position != -1 {
		t.Errorf("A = %+v", v)
	}

	var transErr *model.InvalidTransitionError
	if err := s.Block("A"); !errors.As(err, &transErr) {
		t.Errorf("second Block err = %v, want InvalidTransitionError", err)
	}
	if err := s.Resume("B"); !errors.As(err, &transErr) {
		t.Errorf("Resume of queued client err = %v, want InvalidTransitionError", err)
	}
	if err := s.Block("nobody"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Block unknown err = %v, want ErrNotFound", err)
	}

	if err := s.Resume("A"); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if q := s.Snapshot().Queue; !slices.Equal(q, []string{"B", "A"}) {
		t.Errorf("queue = %v, want [B A]", q)
	}
	runAll(t, s)
	if sum := s.Summary(); sum.Completed != 2 {
		t.Errorf("Completed = %d, want 2", sum.Completed)
	}
}

func TestSession_BlockedClientDoesNotKeepRunning(t *testing.T) {
	s := newSession(t, "policy: rr\nquantum: 1\nclients: [{id: A, work: 1}, {id: B, work: 5}]\n")
	if err := s.Block("B"); err == nil {
		t.Fatal("blocked a client that has not arrived yet")
	}
	if _, err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if err := s.Block("B"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	runAll(t, s)
	sum := s.Summary()
	if sum.Completed != 1 || sum.Blocked != 1 {
		t.Errorf("completed=%d blocked=%d, want 1, 1", sum.Completed, sum.Blocked)
	}
}

func TestSession_AddClient(t *testing.T) {
	s := newSession(t, "policy: rr\nquantum: 1\nclients: [{id: A, work: 4}]\n")
	if _, err := s.Advance(context.Background(), 2); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	if err := s.AddClient(config.ClientSpec{ID: "L", Work: 1}); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	v, _ := s.Client("L")
	if v.State != model.ClientStateQueued || v.Arrival != 2 || v.Position != 1 {
		t.Errorf("L = %+v, want queued at position 1 arriving at tick 2", v)
	}

	if err := s.AddClient(config.ClientSpec{ID: "F", Work: 1, Arrival: 10}); err != nil {
		t.Fatalf("AddClient future: %v", err)
	}
	if v, _ := s.Client("F"); v.State != model.ClientStatePending {
		t.Errorf("F state = %s, want PENDING", v.State)
	}

	prio := 1
	bad := []config.ClientSpec{
		{ID: "L", Work: 1},
		{ID: "Z", Work: 0},
		{ID: "P", Work: 1, Priority: &prio},
	}
	for _, spec := range bad {
		if err := s.AddClient(spec); !errors.Is(err, model.ErrInvalidArgument) {
			t.Errorf("AddClient(%+v) err = %v, want ErrInvalidArgument", spec, err)
		}
	}
	if _, err := s.Client("P"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("rejected client is tracked: %v", err)
	}

	runAll(t, s)
	if r := resultsByID(s)["F"]; r.Finish != 11 {
		t.Errorf("F finish = %d, want 11", r.Finish)
	}
}

func TestSession_TickLimit(t *testing.T) {
	s := newSession(t, "policy: fifo\nmax_ticks: 2\nclients: [{id: A, work: 5}]\n")
	n, err := s.RunToCompletion(context.Background(), 0)
	if !errors.Is(err, ErrTickLimit) {
		t.Fatalf("err = %v, want ErrTickLimit", err)
	}
	if n != 2 {
		t.Errorf("ran %d ticks, want 2", n)
	}
}

func TestSession_ContextCancelled(t *testing.T) {
	s := newSession(t, threeTellers)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Tick(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Tick err = %v, want context.Canceled", err)
	}
	if s.Now() != 0 {
		t.Errorf("cancelled tick advanced time to %d", s.Now())
	}
}

func TestSession_AdvanceRejectsZero(t *testing.T) {
	s := newSession(t, threeTellers)
	if _, err := s.Advance(context.Background(), 0); !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("Advance(0) err = %v, want ErrInvalidArgument", err)
	}
}

func TestSession_SnapshotIsIdempotent(t *testing.T) {
	s := newSession(t, threeTellers)
	if _, err := s.Advance(context.Background(), 4); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	first := s.Snapshot()
	second := s.Snapshot()
	if !reflect.DeepEqual(first, second) {
		t.Errorf("snapshots differ:\n%+v\n%+v", first, second)
	}
	if first.Tick != 4 || !slices.Equal(first.Queue, []string{"B", "C", "A"}) {
		t.Errorf("tick=%d queue=%v, want 4 [B C A]", first.Tick, first.Queue)
	}
}

func TestSession_Record(t *testing.T) {
	s := newSession(t, threeTellers)
	runAll(t, s)

	run, results, err := s.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(run.ID, "run_") || run.Ticks != 9 || run.FinishedAt == nil {
		t.Errorf("run = %+v", run)
	}
	if !strings.Contains(run.Scenario, "policy: rr") {
		t.Errorf("scenario YAML = %q", run.Scenario)
	}
	for _, r := range results {
		if r.RunID != run.ID {
			t.Errorf("result %s has run id %q", r.ClientID, r.RunID)
		}
	}

	again, _, _ := s.Record()
	if again.ID != run.ID {
		t.Errorf("second Record id %s, want %s", again.ID, run.ID)
	}
}

func TestSession_RejectedArrivalLeavesTickUnplayed(t *testing.T) {
	s := newSession(t, "policy: fifo\nclients: [{id: A, work: 2}, {id: B, work: 2}]\n")
	if err := s.clients["B"].client.Consume(2); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	for range 2 {
		if _, err := s.Tick(context.Background()); !errors.Is(err, model.ErrInvalidArgument) {
			t.Fatalf("Tick error = %v, want ErrInvalidArgument", err)
		}
		if s.Now() != 0 {
			t.Errorf("Now() = %d after rejected arrival, want 0", s.Now())
		}
		if n := s.engine.Len(); n != 0 {
			t.Errorf("engine holds %d clients, want 0", n)
		}
		if v, _ := s.Client("A"); v.State != model.ClientStatePending {
			t.Errorf("A state = %s, want PENDING", v.State)
		}
	}
}

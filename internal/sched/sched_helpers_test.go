package sched

import (
	"iter"
	"slices"
	"testing"
)

func plain(t *testing.T, id string, work int) *Client {
	t.Helper()
	c, err := NewClient(id, work, 0)
	if err != nil {
		t.Fatalf("NewClient(%s): %v", id, err)
	}
	return c
}

func prio(t *testing.T, id string, work, priority int) *Client {
	t.Helper()
	c, err := NewPriorityClient(id, work, 0, priority)
	if err != nil {
		t.Fatalf("NewPriorityClient(%s): %v", id, err)
	}
	return c
}

// mustQueue wraps a queue constructor: mustQueue(t)(NewRoundRobin(1)).
func mustQueue(t *testing.T) func(*Queue, error) *Queue {
	return func(q *Queue, err error) *Queue {
		t.Helper()
		if err != nil {
			t.Fatalf("new queue: %v", err)
		}
		return q
	}
}

func enqueueAll(t *testing.T, s Scheduler, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		if err := s.Enqueue(c); err != nil {
			t.Fatalf("Enqueue(%s): %v", c.ID, err)
		}
	}
}

// run dequeues until s is empty, returning the head served on every tick
// and the completion order.
func run(t *testing.T, s Scheduler, maxTicks int) (served, done []string) {
	t.Helper()
	for tick := 0; s.Len() > 0; tick++ {
		if tick == maxTicks {
			t.Fatalf("not drained after %d ticks: served %v", maxTicks, served)
		}
		head, err := s.Get(0)
		if err != nil {
			t.Fatalf("Get(0): %v", err)
		}
		served = append(served, head.ID)
		c, err := s.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if c != nil {
			done = append(done, c.ID)
		}
	}
	return served, done
}

func ids(s Scheduler) []string { return collect(s.All()) }

func assertIDs(t *testing.T, what string, got, want []string) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("%s = %v, want %v", what, got, want)
	}
}

func collect(seq iter.Seq[*Client]) []string {
	var out []string
	for c := range seq {
		out = append(out, c.ID)
	}
	return out
}

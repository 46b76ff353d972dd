package sched

import (
	"fmt"
	"iter"

	"github.com/me/queuesim/internal/queue"
	"github.com/me/queuesim/pkg/model"
)

// Queue is a single-server queue. Its head receives one unit of service per
// Dequeue for up to quantum consecutive ticks per visit; a quantum of 0 runs
// the head to completion. Where clients stand is decided by the Policy when
// they are inserted.
type Queue struct {
	clients *queue.Circular[*Client]
	policy  Policy
	quantum int
	counter int // ticks given to the head during its current visit
}

// NewQueue returns an empty queue ordered by p.
func NewQueue(p Policy, quantum int) (*Queue, error) {
	if p == nil {
		return nil, fmt.Errorf("nil policy: %w", model.ErrInvalidArgument)
	}
	if quantum < 0 {
		return nil, fmt.Errorf("quantum %d: %w", quantum, model.ErrInvalidArgument)
	}
	return &Queue{clients: queue.NewCircular[*Client](), policy: p, quantum: quantum}, nil
}

// NewRoundRobin returns a FIFO queue that rotates its head every quantum ticks.
func NewRoundRobin(quantum int) (*Queue, error) {
	return NewQueue(FIFO{}, quantum)
}

// NewPriority returns a queue ordered by ascending (priority, id).
func NewPriority(quantum int) (*Queue, error) {
	return NewQueue(StaticPriority{}, quantum)
}

// NewSRTF returns a preemptive queue ordered by ascending remaining work.
func NewSRTF(quantum int) (*Queue, error) {
	return NewQueue(ShortestRemaining{}, quantum)
}

func (q *Queue) Policy() Policy { return q.policy }
func (q *Queue) Quantum() int   { return q.quantum }
func (q *Queue) Len() int       { return q.clients.Len() }

// Counter returns how many ticks the head has received in its current visit.
func (q *Queue) Counter() int { return q.counter }

// InService reports whether the head is partway through a visit.
func (q *Queue) InService() bool { return q.counter > 0 }

// Enqueue admits an arriving client. While the head is in service a
// non-preemptive policy never places the newcomer in front of it.
func (q *Queue) Enqueue(c *Client) error {
	if err := q.admit(c); err != nil {
		return err
	}
	q.insert(c, true)
	c.held = true
	return nil
}

// Reinsert admits a client coming back after an external interruption, such
// as a multi-level promotion. It skips the head protection of Enqueue and may
// take the front directly.
func (q *Queue) Reinsert(c *Client) error {
	if err := q.admit(c); err != nil {
		return err
	}
	q.insert(c, false)
	c.held = true
	return nil
}

// Admits reports whether Enqueue would accept c.
func (q *Queue) Admits(c *Client) error { return q.admit(c) }

func (q *Queue) admit(c *Client) error {
	if c == nil {
		return fmt.Errorf("enqueue nil client: %w", model.ErrInvalidArgument)
	}
	if c.held {
		return fmt.Errorf("client %s is already queued: %w", c.ID, model.ErrInvalidArgument)
	}
	if c.IsDone() {
		return fmt.Errorf("client %s has no work left: %w", c.ID, model.ErrInvalidArgument)
	}
	return q.policy.Admit(c)
}

func (q *Queue) insert(c *Client, protectHead bool) {
	pos, i := q.clients.Len(), 0
	for other := range q.clients.All() {
		if q.policy.Less(c, other) {
			pos = i
			break
		}
		i++
	}

	if pos == 0 && q.InService() {
		if protectHead && !q.policy.Preemptive() {
			pos = 1
		} else {
			q.counter = 0
		}
	}
	// pos is within [0, Len] by construction
	_ = q.clients.Insert(pos, c)
}

// Dequeue serves the head for one tick. It returns the head once its work
// is done; otherwise nil, rotating the head when its quantum is used up.
func (q *Queue) Dequeue() (*Client, error) {
	head, err := q.clients.Front()
	if err != nil {
		return nil, fmt.Errorf("%s queue: %w", q.policy.Name(), err)
	}

	_ = head.Consume(1)
	q.counter++
	if !head.IsDone() && (q.quantum == 0 || q.counter < q.quantum) {
		return nil, nil
	}

	q.counter = 0
	_, _ = q.clients.Dequeue()
	if head.IsDone() {
		head.held = false
		return head, nil
	}
	q.insert(head, false)
	return nil, nil
}

// Remove evicts c wherever it stands. Evicting the head ends its visit.
func (q *Queue) Remove(c *Client) error {
	pos, ok := q.clients.Index(c)
	if !ok {
		id := "<nil>"
		if c != nil {
			id = c.ID
		}
		return fmt.Errorf("remove client %s: %w", id, model.ErrNotFound)
	}
	if pos == 0 {
		q.counter = 0
	}
	_, _ = q.clients.RemoveAt(pos)
	c.held = false
	return nil
}

// Contains reports whether c is queued here.
func (q *Queue) Contains(c *Client) bool {
	_, ok := q.clients.Index(c)
	return ok
}

// Head returns the client that the next Dequeue will serve.
func (q *Queue) Head() (*Client, bool) {
	c, err := q.clients.Front()
	return c, err == nil
}

func (q *Queue) Get(pos int) (*Client, error) {
	return q.clients.Get(pos)
}

func (q *Queue) All() iter.Seq[*Client] {
	return q.clients.All()
}

func (q *Queue) String() string {
	return fmt.Sprintf("%s(q=%d)%s", q.policy.Name(), q.quantum, q.clients)
}

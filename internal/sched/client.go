package sched

import (
	"fmt"

	"github.com/markphelps/optional"

	"github.com/me/queuesim/internal/keyexpr"
	"github.com/me/queuesim/pkg/model"
)

// Kind tags which shape of client a policy accepts.
type Kind int

const (
	KindPlain       Kind = iota // no priority
	KindPrioritized             // always carries a priority
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindPrioritized:
		return "prioritized"
	default:
		return "unknown"
	}
}

// Client is a waiting customer/process. Its remaining work, age and level
// change only through the schedulers that hold it.
type Client struct {
	ID string

	work      int
	remaining int
	arrival   int
	priority  optional.Int
	kind      Kind

	age   int
	level int

	held bool // owned by a scheduler right now
}

// NewClient creates a client without a priority, for FIFO and SRTF policies.
func NewClient(id string, work, arrival int) (*Client, error) {
	if work < 0 {
		return nil, fmt.Errorf("client %s: work %d: %w", id, work, model.ErrInvalidArgument)
	}
	return &Client{ID: id, work: work, remaining: work, arrival: arrival, kind: KindPlain}, nil
}

// NewPriorityClient creates a client for priority-ordered policies. Lower
// priority values are served first.
func NewPriorityClient(id string, work, arrival, priority int) (*Client, error) {
	c, err := NewClient(id, work, arrival)
	if err != nil {
		return nil, err
	}
	c.priority = optional.NewInt(priority)
	c.kind = KindPrioritized
	return c, nil
}

// Consume takes up to quantity units of work from the client.
func (c *Client) Consume(quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("client %s: consume %d: %w", c.ID, quantity, model.ErrInvalidArgument)
	}
	quantity = min(quantity, c.remaining)
	c.remaining -= quantity
	return nil
}

// IsDone reports whether no work remains.
func (c *Client) IsDone() bool { return c.remaining == 0 }

func (c *Client) Work() int      { return c.work }
func (c *Client) Remaining() int { return c.remaining }
func (c *Client) Served() int    { return c.work - c.remaining }
func (c *Client) Arrival() int   { return c.arrival }
func (c *Client) Kind() Kind     { return c.kind }
func (c *Client) Age() int       { return c.age }

// Level is the multi-level index currently holding the client.
func (c *Client) Level() int { return c.level }

// Priority returns the client's priority, if it has one.
func (c *Client) Priority() (int, bool) {
	p, err := c.priority.Get()
	return p, err == nil
}

func (c *Client) String() string {
	if p, ok := c.Priority(); ok {
		return fmt.Sprintf("%s(%d,p%d)", c.ID, c.remaining, p)
	}
	return fmt.Sprintf("%s(%d)", c.ID, c.remaining)
}

func (c *Client) keyVars() keyexpr.Vars {
	v := keyexpr.Vars{
		ID:        c.ID,
		Work:      c.work,
		Remaining: c.remaining,
		Served:    c.Served(),
		Arrival:   c.arrival,
		Age:       c.age,
		Level:     c.level,
	}
	if p, ok := c.Priority(); ok {
		v.Priority = &p
	}
	return v
}

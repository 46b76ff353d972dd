package sched

import (
	"cmp"
	"fmt"
	"math"

	"github.com/me/queuesim/internal/keyexpr"
	"github.com/me/queuesim/pkg/model"
)

// Policy decides admission and ordering for a Queue.
type Policy interface {
	// Name identifies the policy in logs and reports.
	Name() string
	// Admit rejects clients whose shape the policy cannot order.
	Admit(c *Client) error
	// Less reports whether a is served before b. A policy whose Less is
	// always false keeps arrival order.
	Less(a, b *Client) bool
	// Preemptive policies let a newcomer take the front from an in-service
	// head; the others protect the head for the rest of its visit.
	Preemptive() bool
}

func admitKind(p Policy, c *Client, want Kind) error {
	if c.Kind() != want {
		return fmt.Errorf("%s policy needs a %s client, %s is %s: %w",
			p.Name(), want, c.ID, c.Kind(), model.ErrInvalidArgument)
	}
	return nil
}

// FIFO keeps arrival order.
type FIFO struct{}

func (FIFO) Name() string            { return "fifo" }
func (p FIFO) Admit(c *Client) error { return admitKind(p, c, KindPlain) }
func (FIFO) Less(a, b *Client) bool  { return false }
func (FIFO) Preemptive() bool        { return false }

// StaticPriority orders by (priority, id) ascending.
type StaticPriority struct{}

func (StaticPriority) Name() string            { return "priority" }
func (p StaticPriority) Admit(c *Client) error { return admitKind(p, c, KindPrioritized) }
func (StaticPriority) Preemptive() bool        { return false }

func (StaticPriority) Less(a, b *Client) bool {
	pa, _ := a.Priority()
	pb, _ := b.Priority()
	if pa != pb {
		return pa < pb
	}
	return a.ID < b.ID
}

// ShortestRemaining orders by (remaining work, id) ascending and preempts.
type ShortestRemaining struct{}

func (ShortestRemaining) Name() string            { return "srtf" }
func (p ShortestRemaining) Admit(c *Client) error { return admitKind(p, c, KindPlain) }
func (ShortestRemaining) Preemptive() bool        { return true }

func (ShortestRemaining) Less(a, b *Client) bool {
	return cmp.Or(cmp.Compare(a.Remaining(), b.Remaining()), cmp.Compare(a.ID, b.ID)) < 0
}

// Scripted orders by a JavaScript key expression, ties broken by id. Clients
// of either kind are accepted; the expression sees a null priority for plain
// clients.
type Scripted struct {
	expr       *keyexpr.Expr
	preemptive bool
}

// NewScripted compiles src into a policy.
func NewScripted(src string, preemptive bool) (*Scripted, error) {
	expr, err := keyexpr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	return &Scripted{expr: expr, preemptive: preemptive}, nil
}

func (p *Scripted) Name() string     { return "script" }
func (p *Scripted) Preemptive() bool { return p.preemptive }

// Expr returns the key expression source.
func (p *Scripted) Expr() string { return p.expr.String() }

// Admit evaluates the key once so clients the expression cannot handle are
// rejected up front.
func (p *Scripted) Admit(c *Client) error {
	if _, err := p.expr.Eval(c.keyVars()); err != nil {
		return fmt.Errorf("client %s: %w: %v", c.ID, model.ErrInvalidArgument, err)
	}
	return nil
}

func (p *Scripted) Less(a, b *Client) bool {
	ka, kb := p.key(a), p.key(b)
	if ka != kb {
		return ka < kb
	}
	return a.ID < b.ID
}

// key sorts clients whose key stops evaluating after admission last.
func (p *Scripted) key(c *Client) float64 {
	k, err := p.expr.Eval(c.keyVars())
	if err != nil {
		return math.Inf(1)
	}
	return k
}

// PolicyByName returns the built-in policy for name. "rr" is an alias of
// "fifo". Scripted policies are built with NewScripted.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "fifo", "rr", "":
		return FIFO{}, nil
	case "priority":
		return StaticPriority{}, nil
	case "srtf":
		return ShortestRemaining{}, nil
	}
	return nil, fmt.Errorf("unknown policy %q: %w", name, model.ErrInvalidArgument)
}

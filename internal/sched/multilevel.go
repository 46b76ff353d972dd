package sched

import (
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"

	"github.com/me/queuesim/pkg/model"
)

// DefaultMaxAge is the number of Age calls a client waits below the top
// level before it is promoted.
const DefaultMaxAge = 5

// RandomLevel makes Enqueue pick a level uniformly among the non-top levels.
const RandomLevel = -1

// MultiLevel is a multi-level feedback queue. Level 0 is served first; a
// lower level only receives service while every level above it is empty.
// Clients waiting below level 0 age on every Age call and are promoted one
// level up when their age reaches the limit.
type MultiLevel struct {
	levels       []*Queue
	maxAge       int
	defaultLevel int
	rng          *rand.Rand
	logger       *slog.Logger

	lastServed *Client // client given service by the latest Dequeue
}

// Option configures a MultiLevel.
type Option func(*MultiLevel)

// WithMaxAge sets the age at which clients are promoted.
func WithMaxAge(n int) Option {
	return func(m *MultiLevel) { m.maxAge = n }
}

// WithDefaultLevel sets the level used by Enqueue. RandomLevel picks one of
// the non-top levels at random.
func WithDefaultLevel(level int) Option {
	return func(m *MultiLevel) { m.defaultLevel = level }
}

// WithSeed seeds the generator used for random level placement.
func WithSeed(seed uint64) Option {
	return func(m *MultiLevel) { m.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithLogger sets the logger for promotions.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MultiLevel) { m.logger = logger }
}

// NewMultiLevel composes levels, highest priority first.
func NewMultiLevel(levels []*Queue, opts ...Option) (*MultiLevel, error) {
	if len(levels) == 0 {
		return nil, fmt.Errorf("multilevel needs at least one level: %w", model.ErrInvalidArgument)
	}
	for i, lv := range levels {
		if lv == nil {
			return nil, fmt.Errorf("level %d is nil: %w", i, model.ErrInvalidArgument)
		}
	}

	m := &MultiLevel{
		levels:       levels,
		maxAge:       DefaultMaxAge,
		defaultLevel: RandomLevel,
		logger:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		WithSeed(1)(m)
	}

	if m.maxAge <= 0 {
		return nil, fmt.Errorf("max age %d: %w", m.maxAge, model.ErrInvalidArgument)
	}
	if m.defaultLevel != RandomLevel && (m.defaultLevel < 0 || m.defaultLevel >= len(levels)) {
		return nil, fmt.Errorf("default level %d of %d: %w", m.defaultLevel, len(levels), model.ErrOutOfRange)
	}
	m.logger = m.logger.With("component", "multilevel")
	return m, nil
}

func (m *MultiLevel) MaxAge() int    { return m.maxAge }
func (m *MultiLevel) NumLevels() int { return len(m.levels) }

// LevelInfo describes one level for display.
type LevelInfo struct {
	Index     int    `json:"index"`
	Policy    string `json:"policy"`
	Quantum   int    `json:"quantum"`
	Len       int    `json:"len"`
	InService bool   `json:"in_service"`
}

// Level describes level i.
func (m *MultiLevel) Level(i int) (LevelInfo, error) {
	if i < 0 || i >= len(m.levels) {
		return LevelInfo{}, fmt.Errorf("level %d of %d: %w", i, len(m.levels), model.ErrOutOfRange)
	}
	lv := m.levels[i]
	return LevelInfo{
		Index:     i,
		Policy:    lv.Policy().Name(),
		Quantum:   lv.Quantum(),
		Len:       lv.Len(),
		InService: lv.InService(),
	}, nil
}

// LevelClients yields the clients of level i in service order; nothing for
// an unknown level.
func (m *MultiLevel) LevelClients(i int) iter.Seq[*Client] {
	if i < 0 || i >= len(m.levels) {
		return func(func(*Client) bool) {}
	}
	return m.levels[i].All()
}

// Enqueue admits c at the default level.
func (m *MultiLevel) Enqueue(c *Client) error {
	level := m.defaultLevel
	if level == RandomLevel {
		level = 0
		if len(m.levels) > 1 {
			level = 1 + m.rng.IntN(len(m.levels)-1)
		}
	}
	return m.EnqueueAt(c, level)
}

// EnqueueAt admits c at level using that level's ordering. The client must
// also be acceptable to every level above, since aging may promote it there.
func (m *MultiLevel) EnqueueAt(c *Client, level int) error {
	if level < 0 || level >= len(m.levels) {
		return fmt.Errorf("enqueue at level %d of %d: %w", level, len(m.levels), model.ErrOutOfRange)
	}
	if c == nil {
		return fmt.Errorf("enqueue nil client: %w", model.ErrInvalidArgument)
	}

	prevAge, prevLevel := c.age, c.level
	c.age, c.level = 0, level
	err := m.admitUpTo(c, level)
	if err == nil {
		err = m.levels[level].Enqueue(c)
	}
	if err != nil {
		c.age, c.level = prevAge, prevLevel
		return fmt.Errorf("level %d: %w", level, err)
	}
	return nil
}

// Admits reports whether Enqueue would accept c. Without a default level it
// checks the deepest level, which covers every level Enqueue may pick.
func (m *MultiLevel) Admits(c *Client) error {
	level := m.defaultLevel
	if level == RandomLevel {
		level = len(m.levels) - 1
	}
	return m.AdmitsAt(c, level)
}

// AdmitsAt reports whether EnqueueAt(c, level) would accept c. It changes
// nothing.
func (m *MultiLevel) AdmitsAt(c *Client, level int) error {
	if level < 0 || level >= len(m.levels) {
		return fmt.Errorf("enqueue at level %d of %d: %w", level, len(m.levels), model.ErrOutOfRange)
	}
	if c == nil {
		return fmt.Errorf("enqueue nil client: %w", model.ErrInvalidArgument)
	}

	prevAge, prevLevel := c.age, c.level
	c.age, c.level = 0, level
	defer func() { c.age, c.level = prevAge, prevLevel }()
	err := m.admitUpTo(c, level)
	if err == nil {
		err = m.levels[level].Admits(c)
	}
	if err != nil {
		return fmt.Errorf("level %d: %w", level, err)
	}
	return nil
}

func (m *MultiLevel) admitUpTo(c *Client, level int) error {
	for i := level - 1; i >= 0; i-- {
		if err := m.levels[i].Policy().Admit(c); err != nil {
			return fmt.Errorf("not promotable to level %d: %w", i, err)
		}
	}
	return nil
}

// Dequeue serves the first non-empty level for one tick.
func (m *MultiLevel) Dequeue() (*Client, error) {
	for _, lv := range m.levels {
		head, ok := lv.Head()
		if !ok {
			continue
		}
		m.lastServed = head
		return lv.Dequeue()
	}
	return nil, fmt.Errorf("multilevel dequeue: %w", model.ErrEmpty)
}

// Age advances the age of every client waiting below level 0 and promotes
// those reaching maxAge one level up, returning them. The client served by
// the Dequeue just before this call is not waiting; its age restarts
// instead. That exemption lasts for one Age call.
func (m *MultiLevel) Age(maxAge int) ([]*Client, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("age with max age %d: %w", maxAge, model.ErrInvalidArgument)
	}
	if m.lastServed != nil {
		m.lastServed.age = 0
	}
	defer func() { m.lastServed = nil }()

	var promoted []*Client
	for i := 1; i < len(m.levels); i++ {
		var due []*Client
		for c := range m.levels[i].All() {
			if c == m.lastServed {
				continue
			}
			c.age++
			if c.age >= maxAge {
				due = append(due, c)
			}
		}

		for _, c := range due {
			c.age = 0
			if err := m.promote(c, i); err != nil {
				m.logger.Warn("promotion refused", "client", c.ID, "from", i, "error", err)
				continue
			}
			promoted = append(promoted, c)
		}
	}
	return promoted, nil
}

func (m *MultiLevel) promote(c *Client, from int) error {
	to := m.levels[from-1]
	c.level = from - 1
	if err := to.Policy().Admit(c); err != nil {
		c.level = from
		return err
	}
	if err := m.levels[from].Remove(c); err != nil {
		c.level = from
		return err
	}
	if err := to.Reinsert(c); err != nil {
		// admission was checked above; put it back where it was
		c.level = from
		_ = m.levels[from].Reinsert(c)
		return err
	}
	m.logger.Debug("promoted", "client", c.ID, "from", from, "to", from-1)
	return nil
}

// Remove evicts c from whichever level holds it.
func (m *MultiLevel) Remove(c *Client) error {
	for _, lv := range m.levels {
		if lv.Contains(c) {
			if c == m.lastServed {
				m.lastServed = nil
			}
			return lv.Remove(c)
		}
	}
	id := "<nil>"
	if c != nil {
		id = c.ID
	}
	return fmt.Errorf("remove client %s: %w", id, model.ErrNotFound)
}

// Get returns the client at pos, counting levels in order.
func (m *MultiLevel) Get(pos int) (*Client, error) {
	if pos < 0 || pos >= m.Len() {
		return nil, fmt.Errorf("get %d of %d: %w", pos, m.Len(), model.ErrOutOfRange)
	}
	for _, lv := range m.levels {
		if pos < lv.Len() {
			return lv.Get(pos)
		}
		pos -= lv.Len()
	}
	return nil, fmt.Errorf("get %d: %w", pos, model.ErrOutOfRange)
}

// Len returns the number of clients across all levels.
func (m *MultiLevel) Len() int {
	n := 0
	for _, lv := range m.levels {
		n += lv.Len()
	}
	return n
}

// All yields every client, level 0 first.
func (m *MultiLevel) All() iter.Seq[*Client] {
	return func(yield func(*Client) bool) {
		for _, lv := range m.levels {
			for c := range lv.All() {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Package config loads scenario documents and server settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/queuesim/internal/keyexpr"
	"github.com/me/queuesim/internal/sched"
	"github.com/me/queuesim/pkg/model"
)

// Policy names accepted in scenario documents.
const (
	PolicyFIFO       = "fifo"
	PolicyRR         = "rr"
	PolicyPriority   = "priority"
	PolicySRTF       = "srtf"
	PolicyScript     = "script"
	PolicyMultiLevel = "multilevel"
)

var queuePolicies = []string{PolicyFIFO, PolicyRR, PolicyPriority, PolicySRTF, PolicyScript}

// Scenario describes one simulation: the scheduler to build and the clients
// that arrive over time.
type Scenario struct {
	Name   string `yaml:"name" json:"name"`
	Policy string `yaml:"policy" json:"policy"`

	// Single-queue settings.
	Quantum    int    `yaml:"quantum,omitempty" json:"quantum,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Preemptive bool   `yaml:"preemptive,omitempty" json:"preemptive,omitempty"`

	// Multi-level settings.
	Levels       []Level `yaml:"levels,omitempty" json:"levels,omitempty"`
	MaxAge       int     `yaml:"max_age,omitempty" json:"max_age,omitempty"`
	DefaultLevel *int    `yaml:"default_level,omitempty" json:"default_level,omitempty"`
	Seed         uint64  `yaml:"seed,omitempty" json:"seed,omitempty"`

	MaxTicks int          `yaml:"max_ticks,omitempty" json:"max_ticks,omitempty"`
	Clients  []ClientSpec `yaml:"clients" json:"clients"`
}

// Level configures one queue of a multi-level scenario.
type Level struct {
	Policy     string `yaml:"policy" json:"policy"`
	Quantum    int    `yaml:"quantum,omitempty" json:"quantum,omitempty"`
	Key        string `yaml:"key,omitempty" json:"key,omitempty"`
	Preemptive bool   `yaml:"preemptive,omitempty" json:"preemptive,omitempty"`
}

// ClientSpec is a client arriving at tick Arrival.
type ClientSpec struct {
	ID       string `yaml:"id" json:"id"`
	Work     int    `yaml:"work" json:"work"`
	Arrival  int    `yaml:"arrival,omitempty" json:"arrival,omitempty"`
	Priority *int   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Level    *int   `yaml:"level,omitempty" json:"level,omitempty"`
}

// Load reads a YAML (or JSON) scenario file. The file name without its
// extension names scenarios that have none.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes and validates a scenario document. Unknown fields are errors.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, model.NewValidationError("empty scenario document")
		}
		return nil, model.NewValidationError(fmt.Sprintf("parsing scenario: %v", err))
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the whole document and reports every problem at once as
// a validation *model.APIError.
func (s *Scenario) Validate() error {
	var errs []model.FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if s.MaxTicks < 0 {
		add("max_ticks", "must be >= 0")
	}

	switch {
	case s.Policy == PolicyMultiLevel:
		if len(s.Levels) == 0 {
			add("levels", "multilevel needs at least one level")
		}
		for i, lv := range s.Levels {
			for _, fe := range lv.validate() {
				add(fmt.Sprintf("levels[%d].%s", i, fe.Field), "%s", fe.Message)
			}
		}
		if s.MaxAge < 0 {
			add("max_age", "must be >= 0")
		}
		if d := s.DefaultLevel; d != nil && (*d < 0 || *d >= len(s.Levels)) {
			add("default_level", "must be a level index in [0, %d)", len(s.Levels))
		}
		if s.Quantum != 0 || s.Key != "" || s.Preemptive {
			add("policy", "quantum, key and preemptive belong to levels in a multilevel scenario")
		}
	case slices.Contains(queuePolicies, s.Policy):
		for _, fe := range s.queueLevel().validate() {
			add(fe.Field, "%s", fe.Message)
		}
		if len(s.Levels) > 0 || s.MaxAge != 0 || s.DefaultLevel != nil {
			add("levels", "only used by the multilevel policy")
		}
	default:
		add("policy", "must be one of %s, %s", strings.Join(queuePolicies, ", "), PolicyMultiLevel)
	}

	seen := make(map[string]bool, len(s.Clients))
	for i, c := range s.Clients {
		field := fmt.Sprintf("clients[%d]", i)
		switch {
		case c.ID == "":
			add(field+".id", "is required")
		case seen[c.ID]:
			add(field+".id", "duplicate id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Work < 1 {
			add(field+".work", "must be >= 1")
		}
		if c.Arrival < 0 {
			add(field+".arrival", "must be >= 0")
		}
		if c.Level != nil {
			if s.Policy != PolicyMultiLevel {
				add(field+".level", "only used by the multilevel policy")
			} else if *c.Level < 0 || *c.Level >= len(s.Levels) {
				add(field+".level", "must be a level index in [0, %d)", len(s.Levels))
			}
		}
	}

	if len(errs) > 0 {
		return model.NewValidationError("invalid scenario", errs...)
	}
	// Admission depends on compiled policies, so it is checked last.
	if errs := s.validateAdmission(); len(errs) > 0 {
		return model.NewValidationError("invalid scenario", errs...)
	}
	return nil
}

func (s *Scenario) queueLevel() Level {
	return Level{Policy: s.Policy, Quantum: s.Quantum, Key: s.Key, Preemptive: s.Preemptive}
}

func (l Level) validate() []model.FieldError {
	var errs []model.FieldError
	if !slices.Contains(queuePolicies, l.Policy) {
		errs = append(errs, model.FieldError{Field: "policy", Message: "must be one of " + strings.Join(queuePolicies, ", ")})
	}
	if l.Quantum < 0 {
		errs = append(errs, model.FieldError{Field: "quantum", Message: "must be >= 0"})
	}
	switch {
	case l.Policy == PolicyScript && l.Key == "":
		errs = append(errs, model.FieldError{Field: "key", Message: "is required by the script policy"})
	case l.Policy == PolicyScript:
		if _, err := keyexpr.Compile(l.Key); err != nil {
			errs = append(errs, model.FieldError{Field: "key", Message: err.Error()})
		}
	case l.Key != "" || l.Preemptive:
		errs = append(errs, model.FieldError{Field: "key", Message: "key and preemptive are only used by the script policy"})
	}
	return errs
}

// validateAdmission checks every client against every level it may reach.
func (s *Scenario) validateAdmission() []model.FieldError {
	levels := []Level{s.queueLevel()}
	if s.Policy == PolicyMultiLevel {
		levels = s.Levels
	}
	policies := make([]sched.Policy, len(levels))
	for i, lv := range levels {
		p, err := lv.NewPolicy()
		if err != nil {
			return []model.FieldError{{Field: "policy", Message: err.Error()}}
		}
		policies[i] = p
	}

	var errs []model.FieldError
	for i, cs := range s.Clients {
		c, err := cs.NewClient()
		if err != nil {
			errs = append(errs, model.FieldError{Field: fmt.Sprintf("clients[%d]", i), Message: err.Error()})
			continue
		}
		top := len(policies) - 1
		switch {
		case cs.Level != nil:
			top = *cs.Level
		case s.DefaultLevel != nil:
			top = *s.DefaultLevel
		}
		for lv := top; lv >= 0; lv-- {
			if err := policies[lv].Admit(c); err != nil {
				field := fmt.Sprintf("clients[%d].priority", i)
				errs = append(errs, model.FieldError{Field: field, Message: fmt.Sprintf("not accepted by %s policy: %v", policies[lv].Name(), err)})
				break
			}
		}
	}
	return errs
}

// NewPolicy builds the ordering policy of l.
func (l Level) NewPolicy() (sched.Policy, error) {
	if l.Policy == PolicyScript {
		return sched.NewScripted(l.Key, l.Preemptive)
	}
	return sched.PolicyByName(l.Policy)
}

// NewQueue builds the queue described by l.
func (l Level) NewQueue() (*sched.Queue, error) {
	p, err := l.NewPolicy()
	if err != nil {
		return nil, err
	}
	return sched.NewQueue(p, l.Quantum)
}

// NewClient builds the client; one with a priority is a prioritized client.
func (c ClientSpec) NewClient() (*sched.Client, error) {
	if c.Priority != nil {
		return sched.NewPriorityClient(c.ID, c.Work, c.Arrival, *c.Priority)
	}
	return sched.NewClient(c.ID, c.Work, c.Arrival)
}

// NewScheduler builds the empty scheduler the scenario describes.
func (s *Scenario) NewScheduler(opts ...sched.Option) (sched.Scheduler, error) {
	if s.Policy != PolicyMultiLevel {
		return s.queueLevel().NewQueue()
	}

	levels := make([]*sched.Queue, len(s.Levels))
	for i, lv := range s.Levels {
		q, err := lv.NewQueue()
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		levels[i] = q
	}
	mlOpts := []sched.Option{sched.WithSeed(s.Seed)}
	if s.MaxAge > 0 {
		mlOpts = append(mlOpts, sched.WithMaxAge(s.MaxAge))
	}
	if s.DefaultLevel != nil {
		mlOpts = append(mlOpts, sched.WithDefaultLevel(*s.DefaultLevel))
	}
	return sched.NewMultiLevel(levels, append(mlOpts, opts...)...)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/me/queuesim/internal/sched"
	"github.com/me/queuesim/pkg/model"
)

func TestLoad_RoundRobin(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "round_robin.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "three-tellers" || s.Policy != PolicyRR || s.Quantum != 1 {
		t.Errorf("scenario = %+v", s)
	}
	if len(s.Clients) != 3 || s.Clients[2].ID != "C" || s.Clients[2].Work != 3 {
		t.Errorf("clients = %+v", s.Clients)
	}

	q, err := s.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if _, ok := q.(*sched.Queue); !ok {
		t.Errorf("NewScheduler returned %T, want *sched.Queue", q)
	}
}

func TestLoad_MultiLevel(t *testing.T) {
	s, err := Load(filepath.Join("testdata", "multilevel.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "multilevel" {
		t.Errorf("Name = %q, want file name", s.Name)
	}

	engine, err := s.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	m, ok := engine.(*sched.MultiLevel)
	if !ok {
		t.Fatalf("NewScheduler returned %T, want *sched.MultiLevel", engine)
	}
	if m.NumLevels() != 3 || m.MaxAge() != 3 {
		t.Errorf("levels=%d maxAge=%d, want 3, 3", m.NumLevels(), m.MaxAge())
	}
	info, _ := m.Level(1)
	if info.Policy != "script" {
		t.Errorf("level 1 policy = %q, want script", info.Policy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load of a missing file succeeded")
	}
}

func TestParse_JSON(t *testing.T) {
	s, err := Parse([]byte(`{"name":"j","policy":"priority","clients":[{"id":"A","work":2,"priority":1}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p := s.Clients[0].Priority; p == nil || *p != 1 {
		t.Errorf("priority = %v, want 1", p)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		field string
	}{
		{"empty", ``, ""},
		{"unknown field", "policy: rr\nquantm: 2\n", ""},
		{"unknown policy", "policy: lottery\n", "policy"},
		{"negative quantum", "policy: rr\nquantum: -1\n", "quantum"},
		{"script without key", "policy: script\n", "key"},
		{"bad key", "policy: script\nkey: 'client.('\n", "key"},
		{"key on rr", "policy: rr\nkey: client.work\n", "key"},
		{"levels on rr", "policy: rr\nlevels: [{policy: rr}]\n", "levels"},
		{"no levels", "policy: multilevel\n", "levels"},
		{"bad level policy", "policy: multilevel\nlevels: [{policy: x}]\n", "levels[0].policy"},
		{"default level", "policy: multilevel\ndefault_level: 2\nlevels: [{policy: rr}]\n", "default_level"},
		{"missing id", "policy: rr\nclients: [{work: 1}]\n", "clients[0].id"},
		{"duplicate id", "policy: rr\nclients: [{id: A, work: 1}, {id: A, work: 1}]\n", "clients[1].id"},
		{"zero work", "policy: rr\nclients: [{id: A, work: 0}]\n", "clients[0].work"},
		{"negative arrival", "policy: rr\nclients: [{id: A, work: 1, arrival: -2}]\n", "clients[0].arrival"},
		{"level on rr", "policy: rr\nclients: [{id: A, work: 1, level: 0}]\n", "clients[0].level"},
		{"level out of range", "policy: multilevel\nlevels: [{policy: rr}]\nclients: [{id: A, work: 1, level: 1}]\n", "clients[0].level"},
		{"priority missing", "policy: priority\nclients: [{id: A, work: 1}]\n", "clients[0].priority"},
		{"priority on rr", "policy: rr\nclients: [{id: A, work: 1, priority: 1}]\n", "clients[0].priority"},
		{
			"not promotable",
			"policy: multilevel\nlevels: [{policy: priority}, {policy: rr}]\nclients: [{id: A, work: 1, level: 1}]\n",
			"clients[0].priority",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !errors.Is(err, model.ErrInvalidArgument) {
				t.Errorf("err = %v, want a validation error", err)
			}
			if tt.field == "" {
				return
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err is %T, want *model.APIError", err)
			}
			for _, d := range apiErr.Details {
				if d.Field == tt.field {
					return
				}
			}
			t.Errorf("details %+v have no field %q", apiErr.Details, tt.field)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	s := &Scenario{
		Policy:   PolicyRR,
		Quantum:  -1,
		MaxTicks: -5,
		Clients:  []ClientSpec{{ID: "", Work: 0}},
	}
	var apiErr *model.APIError
	if !errors.As(s.Validate(), &apiErr) {
		t.Fatal("Validate did not return an APIError")
	}
	if len(apiErr.Details) != 4 {
		t.Errorf("got %d details, want 4: %+v", len(apiErr.Details), apiErr.Details)
	}
}

func TestLoad_NameDefaultsToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank-morning.yml")
	if err := os.WriteFile(path, []byte("policy: fifo\nclients: [{id: A, work: 1}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "bank-morning" {
		t.Errorf("Name = %q, want bank-morning", s.Name)
	}
}

func TestLoad_ErrorNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("policy: nope\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "broken.yaml") {
		t.Errorf("err = %v, want it to name the file", err)
	}
}

func TestNewScheduler_MultiLevelOptions(t *testing.T) {
	zero := 0
	s := &Scenario{
		Policy:       PolicyMultiLevel,
		Levels:       []Level{{Policy: PolicyRR, Quantum: 1}, {Policy: PolicySRTF}},
		DefaultLevel: &zero,
	}
	engine, err := s.NewScheduler()
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	m := engine.(*sched.MultiLevel)
	if m.MaxAge() != sched.DefaultMaxAge {
		t.Errorf("MaxAge() = %d, want default %d", m.MaxAge(), sched.DefaultMaxAge)
	}
	c, _ := sched.NewClient("A", 1, 0)
	if err := m.Enqueue(c); err != nil || c.Level() != 0 {
		t.Errorf("Enqueue: level %d, err %v; want default level 0", c.Level(), err)
	}
}

package keyexpr

import "testing"

func intp(v int) *int { return &v }

func TestExpr_Eval(t *testing.T) {
	vars := Vars{ID: "A", Work: 8, Remaining: 5, Served: 3, Arrival: 2, Age: 1, Level: 2, Priority: intp(4)}

	tests := []struct {
		name string
		src  string
		want float64
	}{
		{"remaining", "client.remaining", 5},
		{"arithmetic", "client.remaining * 2 + client.age", 11},
		{"priority", "client.priority", 4},
		{"fraction", "client.served / client.work", 0.375},
		{"code block", "${ if (client.priority === null) return 99; return -client.priority; }", -4},
		{"level weighting", "client.level * 100 + client.arrival", 202},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.src, err)
			}
			got, err := e.Eval(vars)
			if err != nil {
				t.Fatalf("Eval: %v", err)
			}
			if got != tt.want {
				t.Errorf("Eval = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpr_NullPriority(t *testing.T) {
	e, err := Compile("${ return client.priority === null ? 99 : client.priority; }")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got, err := e.Eval(Vars{ID: "B", Work: 1, Remaining: 1})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if got != 99 {
		t.Errorf("Eval = %v, want 99", got)
	}
}

func TestCompile_Errors(t *testing.T) {
	for _, src := range []string{"", "   ", "client.remaining +"} {
		if _, err := Compile(src); err == nil {
			t.Errorf("Compile(%q) succeeded, want error", src)
		}
	}
}

func TestExpr_EvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"string result", "client.id"},
		{"undefined", "client.nothing"},
		{"null", "client.priority"},
		{"division by zero", "client.remaining / 0"},
		{"throws", "${ throw new Error('boom'); }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Compile(tt.src)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if _, err := e.Eval(Vars{ID: "A", Work: 1, Remaining: 1}); err == nil {
				t.Errorf("Eval(%q) succeeded, want error", tt.src)
			}
		})
	}
}

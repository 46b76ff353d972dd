package queue

import (
	"errors"
	"slices"
	"testing"

	"github.com/me/queuesim/pkg/model"
)

func collect[T comparable](q *Circular[T]) []T {
	return slices.Collect(q.All())
}

func TestCircular_EmptyPeek(t *testing.T) {
	q := NewCircular[int]()
	if _, err := q.Front(); !errors.Is(err, model.ErrEmpty) {
		t.Errorf("Front() err = %v, want ErrEmpty", err)
	}
	if _, err := q.Back(); !errors.Is(err, model.ErrEmpty) {
		t.Errorf("Back() err = %v, want ErrEmpty", err)
	}
	if _, err := q.Dequeue(); !errors.Is(err, model.ErrEmpty) {
		t.Errorf("Dequeue() err = %v, want ErrEmpty", err)
	}
	if got := collect(q); len(got) != 0 {
		t.Errorf("All() = %v, want empty", got)
	}
}

func TestCircular_FrontBackGet(t *testing.T) {
	q := NewCircular(10, 20, 30)
	if v, _ := q.Front(); v != 10 {
		t.Errorf("Front() = %d, want 10", v)
	}
	if v, _ := q.Back(); v != 30 {
		t.Errorf("Back() = %d, want 30", v)
	}
	for pos, want := range []int{10, 20, 30} {
		got, err := q.Get(pos)
		if err != nil || got != want {
			t.Errorf("Get(%d) = %d, %v; want %d", pos, got, err, want)
		}
	}
	for _, pos := range []int{-1, 3} {
		if _, err := q.Get(pos); !errors.Is(err, model.ErrOutOfRange) {
			t.Errorf("Get(%d) err = %v, want ErrOutOfRange", pos, err)
		}
	}
}

func TestCircular_Insert(t *testing.T) {
	tests := []struct {
		name string
		pos  int
		want []int
	}{
		{"front", 0, []int{9, 1, 2, 3}},
		{"middle", 1, []int{1, 9, 2, 3}},
		{"before back", 2, []int{1, 2, 9, 3}},
		{"append", 3, []int{1, 2, 3, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewCircular(1, 2, 3)
			if err := q.Insert(tt.pos, 9); err != nil {
				t.Fatalf("Insert(%d): %v", tt.pos, err)
			}
			if got := collect(q); !slices.Equal(got, tt.want) {
				t.Errorf("All() = %v, want %v", got, tt.want)
			}
			if q.Len() != 4 {
				t.Errorf("Len() = %d, want 4", q.Len())
			}
			back, _ := q.Back()
			if back != tt.want[3] {
				t.Errorf("Back() = %d, want %d", back, tt.want[3])
			}
		})
	}
}

func TestCircular_InsertOutOfRange(t *testing.T) {
	q := NewCircular(1, 2)
	for _, pos := range []int{-1, 3} {
		if err := q.Insert(pos, 7); !errors.Is(err, model.ErrOutOfRange) {
			t.Errorf("Insert(%d) err = %v, want ErrOutOfRange", pos, err)
		}
	}
	if got := collect(q); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("failed insert changed queue: %v", got)
	}
}

func TestCircular_RemoveAt(t *testing.T) {
	q := NewCircular(1, 2, 3, 4)

	if v, err := q.RemoveAt(3); err != nil || v != 4 {
		t.Fatalf("RemoveAt(3) = %d, %v; want 4", v, err)
	}
	if back, _ := q.Back(); back != 3 {
		t.Errorf("Back() after removing back = %d, want 3", back)
	}
	if v, err := q.RemoveAt(1); err != nil || v != 2 {
		t.Fatalf("RemoveAt(1) = %d, %v; want 2", v, err)
	}
	if v, err := q.Dequeue(); err != nil || v != 1 {
		t.Fatalf("Dequeue() = %d, %v; want 1", v, err)
	}
	if got := collect(q); !slices.Equal(got, []int{3}) {
		t.Errorf("All() = %v, want [3]", got)
	}
	if _, err := q.RemoveAt(1); !errors.Is(err, model.ErrOutOfRange) {
		t.Errorf("RemoveAt(1) err = %v, want ErrOutOfRange", err)
	}
	if v, _ := q.Dequeue(); v != 3 || q.Len() != 0 {
		t.Errorf("last Dequeue() = %d, Len() = %d", v, q.Len())
	}
	q.Enqueue(5)
	if f, _ := q.Front(); f != 5 {
		t.Errorf("reuse after drain: Front() = %d, want 5", f)
	}
}

func TestCircular_IdentitySearch(t *testing.T) {
	type item struct{ name string }
	a, b, c := &item{"x"}, &item{"x"}, &item{"y"}
	q := NewCircular(a, b)

	if i, ok := q.Index(b); !ok || i != 1 {
		t.Errorf("Index(b) = %d, %v; want 1, true", i, ok)
	}
	if _, ok := q.Index(c); ok {
		t.Error("Index(c) found an element never enqueued")
	}
	if n, ok := q.Next(a); !ok || n != b {
		t.Errorf("Next(a) = %v, %v; want b", n, ok)
	}
	if n, ok := q.Next(b); !ok || n != a {
		t.Errorf("Next(back) = %v, %v; want front", n, ok)
	}
	if _, ok := q.Next(c); ok {
		t.Error("Next(c) found an element never enqueued")
	}
}

func TestCircular_IterationIsLiveAndRestartable(t *testing.T) {
	q := NewCircular(1, 2, 3)
	first := collect(q)
	second := collect(q)
	if !slices.Equal(first, second) {
		t.Errorf("iterations differ without mutation: %v vs %v", first, second)
	}

	q.Dequeue()
	q.Enqueue(4)
	if got := collect(q); !slices.Equal(got, []int{2, 3, 4}) {
		t.Errorf("All() after mutation = %v, want [2 3 4]", got)
	}

	// early break leaves the queue intact
	for v := range q.All() {
		if v == 2 {
			break
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len() = %d after partial iteration", q.Len())
	}
}

func TestCircular_String(t *testing.T) {
	if got := NewCircular("a", "b").String(); got != "[a b]" {
		t.Errorf("String() = %q, want %q", got, "[a b]")
	}
}

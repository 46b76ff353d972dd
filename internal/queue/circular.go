// Package queue provides a policy-free circular sequence container.
package queue

import (
	"fmt"
	"iter"
	"strings"

	"github.com/me/queuesim/pkg/model"
)

type node[T comparable] struct {
	value      T
	prev, next *node[T]
}

// Circular is a doubly-linked circular sequence indexed from its logical
// front. Positional operations walk from the front and cost O(pos).
// Elements are compared by ==, which for pointer types is identity.
//
// The zero value is an empty queue ready to use.
type Circular[T comparable] struct {
	front *node[T] // back is front.prev
	size  int
}

// NewCircular returns a queue holding values in order.
func NewCircular[T comparable](values ...T) *Circular[T] {
	q := &Circular[T]{}
	for _, v := range values {
		q.Enqueue(v)
	}
	return q
}

// Len returns the number of elements.
func (q *Circular[T]) Len() int {
	return q.size
}

// Front returns the first element.
func (q *Circular[T]) Front() (T, error) {
	if q.front == nil {
		var zero T
		return zero, fmt.Errorf("front: %w", model.ErrEmpty)
	}
	return q.front.value, nil
}

// Back returns the last element.
func (q *Circular[T]) Back() (T, error) {
	if q.front == nil {
		var zero T
		return zero, fmt.Errorf("back: %w", model.ErrEmpty)
	}
	return q.front.prev.value, nil
}

// Get returns the element at pos.
func (q *Circular[T]) Get(pos int) (T, error) {
	if pos < 0 || pos >= q.size {
		var zero T
		return zero, fmt.Errorf("get %d of %d: %w", pos, q.size, model.ErrOutOfRange)
	}
	return q.walk(pos).value, nil
}

// Enqueue appends v at the back.
func (q *Circular[T]) Enqueue(v T) {
	// pos == size is always in range
	_ = q.Insert(q.size, v)
}

// Insert places v before the element currently at pos; pos == Len appends.
func (q *Circular[T]) Insert(pos int, v T) error {
	if pos < 0 || pos > q.size {
		return fmt.Errorf("insert at %d of %d: %w", pos, q.size, model.ErrOutOfRange)
	}

	n := &node[T]{value: v}
	if q.front == nil {
		n.prev, n.next = n, n
		q.front = n
		q.size = 1
		return nil
	}

	// Inserting before the front at pos == size lands at the back.
	at := q.front
	if pos < q.size {
		at = q.walk(pos)
	}
	n.prev, n.next = at.prev, at
	at.prev.next = n
	at.prev = n
	if pos == 0 {
		q.front = n
	}
	q.size++
	return nil
}

// Dequeue removes and returns the front element.
func (q *Circular[T]) Dequeue() (T, error) {
	if q.front == nil {
		var zero T
		return zero, fmt.Errorf("dequeue: %w", model.ErrEmpty)
	}
	return q.unlink(q.front), nil
}

// RemoveAt removes and returns the element at pos.
func (q *Circular[T]) RemoveAt(pos int) (T, error) {
	if pos < 0 || pos >= q.size {
		var zero T
		return zero, fmt.Errorf("remove at %d of %d: %w", pos, q.size, model.ErrOutOfRange)
	}
	return q.unlink(q.walk(pos)), nil
}

// Index returns the position of v.
func (q *Circular[T]) Index(v T) (int, bool) {
	i := 0
	for n := range q.nodes() {
		if n.value == v {
			return i, true
		}
		i++
	}
	return -1, false
}

// Next returns the element that follows v. The front follows the back.
func (q *Circular[T]) Next(v T) (T, bool) {
	for n := range q.nodes() {
		if n.value == v {
			return n.next.value, true
		}
	}
	var zero T
	return zero, false
}

// All yields the elements front to back. Each call starts over from the
// current front.
func (q *Circular[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for n := range q.nodes() {
			if !yield(n.value) {
				return
			}
		}
	}
}

func (q *Circular[T]) String() string {
	parts := make([]string, 0, q.size)
	for v := range q.All() {
		parts = append(parts, fmt.Sprint(v))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (q *Circular[T]) nodes() iter.Seq[*node[T]] {
	return func(yield func(*node[T]) bool) {
		if q.front == nil {
			return
		}
		n := q.front
		for {
			// read next first so a consumer may unlink n
			next := n.next
			last := next == q.front
			if !yield(n) || last {
				return
			}
			n = next
		}
	}
}

func (q *Circular[T]) walk(pos int) *node[T] {
	n := q.front
	for range pos {
		n = n.next
	}
	return n
}

func (q *Circular[T]) unlink(n *node[T]) T {
	q.size--
	if q.size == 0 {
		q.front = nil
	} else {
		n.prev.next = n.next
		n.next.prev = n.prev
		if n == q.front {
			q.front = n.next
		}
	}
	n.prev, n.next = nil, nil
	return n.value
}

// Package sched implements the scheduling engine: single-server queues
// ordered by an injectable Policy (round robin, static priority, SRTF,
// scripted keys) and a multi-level feedback queue with aging.
//
// The engine is synchronous and not safe for concurrent use. A driver calls
// Enqueue on arrivals and Dequeue once per simulated tick; Dequeue returns the
// client that completed on that tick, or nil while service continues.
package sched

import (
	"iter"
)

// Scheduler is the driver-facing surface shared by Queue and MultiLevel.
type Scheduler interface {
	// Enqueue admits a new client.
	Enqueue(c *Client) error
	// Admits reports whether Enqueue would accept c. It changes nothing.
	Admits(c *Client) error
	// Dequeue gives one unit of service and returns the client it completed,
	// or nil if none did.
	Dequeue() (*Client, error)
	// Remove evicts c out of band, keeping its partial progress.
	Remove(c *Client) error
	// Get returns the client at pos in service order.
	Get(pos int) (*Client, error)
	// Len returns the number of queued clients.
	Len() int
	// All yields queued clients in service order.
	All() iter.Seq[*Client]
}

var (
	_ Scheduler = (*Queue)(nil)
	_ Scheduler = (*MultiLevel)(nil)
)

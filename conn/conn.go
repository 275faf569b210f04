// Package conn provides the channel the scheduler uses to reach a worker
// process. Payloads are opaque; their format belongs to the node-manager
// protocol, not to this package.
package conn

import (
	"sync"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"

	"github.com/taskfleet/nodesched/common"
)

type Id string

var ErrClosed = errors.New("connection closed")

// Connection is an addressable channel to a worker process. It is shared
// between the scheduler's worker record and the I/O layer; neither side owns
// teardown, which happens externally when the underlying channel closes.
type Connection interface {
	// A unique connection identifier.
	Id() Id

	// Send queues an assignment payload for delivery to the worker.
	Send(payload []byte) error

	// Close tears down the connection. Idempotent.
	Close() error

	// Closed is closed once the connection has been torn down.
	Closed() <-chan struct{}
}

// MemoryConnection delivers payloads over an in-process buffered channel.
// Used by tests and simulations in place of a real transport.
type MemoryConnection struct {
	id       Id
	payloads chan []byte
	closedCh chan struct{}

	mu     sync.Mutex
	closed bool
}

var _ Connection = (*MemoryConnection)(nil)

func NewMemoryConnection(bufferSize int) *MemoryConnection {
	return &MemoryConnection{
		id:       Id(common.GenUUID()),
		payloads: make(chan []byte, bufferSize),
		closedCh: make(chan struct{}),
	}
}

func (c *MemoryConnection) Id() Id {
	return c.id
}

// Send queues the payload without blocking. Returns ErrClosed on a closed
// connection, or a retryable error if the receiver isn't keeping up.
func (c *MemoryConnection) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.payloads <- payload:
		return nil
	default:
		return errors.Errorf("connection %s: send buffer full", c.id)
	}
}

// Recv exposes the worker-process side of the channel.
func (c *MemoryConnection) Recv() <-chan []byte {
	return c.payloads
}

func (c *MemoryConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.closedCh)
	}
	return nil
}

func (c *MemoryConnection) Closed() <-chan struct{} {
	return c.closedCh
}

// SendWithRetry retries transient send failures per the given backoff.
// A closed connection fails immediately.
func SendWithRetry(c Connection, payload []byte, b backoff.BackOff) error {
	return backoff.Retry(func() error {
		err := c.Send(payload)
		if errors.Cause(err) == ErrClosed {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

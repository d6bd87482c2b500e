package consumer

import (
	"context"
	"errors"

	"github.com/baldanca/demand-writer/sink"
)

// ErrWriteWithoutRequest is returned by Write when the producer pushes data
// while demand is exhausted. It is the only error the consumer surfaces;
// sink failures and short writes are absorbed into demand/buffer bookkeeping
// so the producer-facing contract stays a simple grant-then-write protocol.
var ErrWriteWithoutRequest = errors.New("write without request")

// Consumer is the pull-based flow-control contract between a driver and a
// sink: the driver may call Write only as often as the consumer has granted
// via Request events.
type Consumer interface {
	Write(ctx context.Context, data []byte) error
	Emit(ev Event)
	NextEvent() (Event, bool)
	Update()
}

// WriteAdapter enforces the demand protocol in front of a single, exclusively
// owned Sink.
//
// It tracks three pieces of state: outstanding demand (how many writes it
// currently permits), a single-slot buffer holding the undelivered remainder
// of the most recent short or failed write, and a FIFO queue of outbound
// protocol events. A new adapter starts with demand 1 and one queued
// Request(1). Demand is spent by short or failed deliveries and is never
// replenished by the adapter itself; a fully accepted write leaves demand
// untouched and queues a fresh Request(1) for the driver.
//
// WriteAdapter is not safe for concurrent use; it is meant to be owned by a
// single driver loop.
type WriteAdapter struct {
	snk      sink.Sink
	demand   int
	events   eventQueue
	buffered []byte
}

var _ Consumer = (*WriteAdapter)(nil)

// New returns a WriteAdapter that owns snk. The adapter starts willing to
// accept one write and announces it with a queued Request(1).
func New(snk sink.Sink) *WriteAdapter {
	if snk == nil {
		panic("sink is required")
	}

	const initialDemand = 1

	c := &WriteAdapter{
		snk:    snk,
		demand: initialDemand,
	}
	c.Emit(Request(initialDemand))
	return c
}

// Write offers data to the sink, provided demand has been granted.
//
// With demand exhausted it fails immediately with ErrWriteWithoutRequest and
// changes nothing. Otherwise it makes exactly one delivery attempt:
//
//   - full acceptance queues a new Request(1) and leaves demand unchanged;
//   - partial acceptance stores the unaccepted suffix in the buffer slot
//     (overwriting any prior remainder) and spends one demand unit;
//   - a sink error stores the whole payload and spends one demand unit.
//
// Sink errors are not surfaced; all three delivery outcomes report success.
func (c *WriteAdapter) Write(ctx context.Context, data []byte) error {
	if c.demand <= 0 {
		return ErrWriteWithoutRequest
	}

	n, err := c.snk.Accept(ctx, data)
	if err != nil {
		c.buffered = append([]byte(nil), data...)
		c.demand--
		return nil
	}

	if n < len(data) {
		c.buffered = append([]byte(nil), data[n:]...)
		c.demand--
		return nil
	}

	c.Emit(Request(1))
	return nil
}

// Emit appends ev to the tail of the event queue. No validation is performed;
// drivers use it to inject Finish/Termination into their own event loop.
func (c *WriteAdapter) Emit(ev Event) {
	c.events.push(ev)
}

// NextEvent removes and returns the head of the event queue. It never blocks;
// ok is false when no event is pending.
func (c *WriteAdapter) NextEvent() (Event, bool) {
	return c.events.pop()
}

// Update is a periodic hook reserved for timer and retry logic. It performs
// no state change and is safe to call at any point.
func (c *WriteAdapter) Update() {}

// Demand reports how many writes the adapter currently permits.
func (c *WriteAdapter) Demand() int { return c.demand }

// Buffered returns the undelivered remainder of the most recent short or
// failed write, or nil. The slice is owned by the adapter; callers must not
// modify it.
func (c *WriteAdapter) Buffered() []byte { return c.buffered }

// PendingEvents reports how many events are queued and not yet observed.
func (c *WriteAdapter) PendingEvents() int { return c.events.len() }

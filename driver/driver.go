package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/baldanca/demand-writer/consumer"
	"github.com/baldanca/demand-writer/source"
)

var (
	// ErrDemandExhausted is returned when the consumer spent its demand on a
	// short or failed delivery and the protocol grants no further credit.
	ErrDemandExhausted = errors.New("demand exhausted")

	// ErrTerminated is returned when a Termination event reaches the driver.
	ErrTerminated = errors.New("stream terminated")
)

// Driver pumps messages from a source through a demand-driven consumer.
//
// It keeps its own credit ledger fed exclusively by the consumer's Request
// events: a message is received and written only when at least one credit is
// available, so the producer side never outruns what the consumer granted.
// The consumer confirms full acceptance of a write with a fresh Request;
// silence after a write means the payload was cut short or the sink failed,
// in which case the driver fails the message back to its source for
// redelivery. Delivery is therefore at-least-once; a partially accepted
// payload may be seen by the sink again in full.
//
// When the source is exhausted the driver emits Finish through the consumer's
// own event queue and stops on observing it; a receive failure is turned into
// Termination the same way.
type Driver struct {
	cons consumer.Consumer
	src  source.Sourcer

	credits int
	pending source.Message
	cause   error
}

func New(cons consumer.Consumer, src source.Sourcer) *Driver {
	if cons == nil {
		panic("consumer is required")
	}
	if src == nil {
		panic("source is required")
	}
	return &Driver{cons: cons, src: src}
}

// Run pumps until the stream finishes, demand runs out, or the context is
// canceled. It returns nil on a clean finish (source exhausted, everything
// acknowledged).
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			d.dropPending(ctx, err)
			return err
		}

		granted, stop, evErr := d.drainEvents()

		if err := d.settlePending(ctx, granted); err != nil {
			return err
		}
		if stop || evErr != nil {
			return evErr
		}

		if d.credits == 0 {
			return ErrDemandExhausted
		}

		msg, err := d.src.Receive(ctx)
		if err != nil {
			switch {
			case errors.Is(err, source.ErrClosed):
				d.cons.Emit(consumer.Finish())
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			default:
				d.cause = err
				d.cons.Emit(consumer.Termination())
			}
			continue
		}

		d.credits--
		if err := d.cons.Write(ctx, msg.Body()); err != nil {
			_ = msg.Fail(ctx, err)
			return fmt.Errorf("write: %w", err)
		}
		d.pending = msg

		d.cons.Update()
	}
}

// drainEvents empties the consumer's queue. granted reports whether at least
// one Request was seen; stop is set by Finish and Termination.
func (d *Driver) drainEvents() (granted, stop bool, err error) {
	for {
		ev, ok := d.cons.NextEvent()
		if !ok {
			return granted, false, nil
		}

		switch ev.Kind {
		case consumer.KindRequest:
			d.credits += ev.Count
			granted = true
		case consumer.KindFinish:
			return granted, true, nil
		case consumer.KindTermination:
			if d.cause != nil {
				return granted, true, fmt.Errorf("%w: %v", ErrTerminated, d.cause)
			}
			return granted, true, ErrTerminated
		default:
			return granted, true, fmt.Errorf("unexpected event kind %s", ev.Kind)
		}
	}
}

// settlePending resolves the message written on the previous iteration. A
// grant means the sink took the whole payload, so the message is
// acknowledged; no grant means a short or failed delivery and the message
// goes back to the source.
func (d *Driver) settlePending(ctx context.Context, granted bool) error {
	if d.pending == nil {
		return nil
	}
	msg := d.pending
	d.pending = nil

	if granted {
		if err := msg.Ack(ctx); err != nil {
			return fmt.Errorf("ack message: %w", err)
		}
		return nil
	}

	_ = msg.Fail(ctx, ErrDemandExhausted)
	return nil
}

func (d *Driver) dropPending(ctx context.Context, reason error) {
	if d.pending == nil {
		return
	}
	// Best effort: keep values but ignore the canceled context.
	_ = d.pending.Fail(context.WithoutCancel(ctx), reason)
	d.pending = nil
}

// Credits reports the driver-side credit balance accumulated from Request
// events and not yet spent on writes.
func (d *Driver) Credits() int { return d.credits }

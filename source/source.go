package source

import (
	"context"
	"errors"
)

// ErrClosed is returned by Receive once a source has no more messages to
// deliver.
var ErrClosed = errors.New("source closed")

// Message is one unit of producer data flowing toward a consumer.
//
// Ack must be called only after the payload was fully accepted downstream.
// Fail returns the message to the source so it can be redelivered later;
// sources without redelivery may treat it as a no-op.
type Message interface {
	Body() []byte
	Ack(ctx context.Context) error
	Fail(ctx context.Context, reason error) error
}

// Sourcer hands out messages one at a time.
//
// Receive blocks until a message is available, the context is canceled, or
// the source is exhausted (ErrClosed).
type Sourcer interface {
	Receive(ctx context.Context) (Message, error)
}

// AckGroup accumulates messages whose fate is decided together, typically the
// members of one coalesced frame.
type AckGroup struct {
	msgs []Message
}

// Add appends a message to the group.
func (g *AckGroup) Add(m Message) {
	g.msgs = append(g.msgs, m)
}

// Len reports how many messages are in the group.
func (g *AckGroup) Len() int { return len(g.msgs) }

// Ack acknowledges every message in the group, stopping at the first error.
func (g *AckGroup) Ack(ctx context.Context) error {
	for _, m := range g.msgs {
		if err := m.Ack(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Fail fails every message in the group with the same reason. Every message
// is attempted; the first error wins.
func (g *AckGroup) Fail(ctx context.Context, reason error) error {
	var first error
	for _, m := range g.msgs {
		if err := m.Fail(ctx, reason); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Clear resets the group and releases message references.
func (g *AckGroup) Clear() {
	for i := range g.msgs {
		g.msgs[i] = nil
	}
	g.msgs = g.msgs[:0]
}

// Static delivers a fixed set of payloads in order, then ErrClosed. Acks and
// fails are no-ops; it exists for tests and examples.
type Static struct {
	payloads [][]byte
	next     int
}

func NewStatic(payloads ...[]byte) *Static {
	return &Static{payloads: payloads}
}

func (s *Static) Receive(ctx context.Context) (Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.payloads) {
		return nil, ErrClosed
	}
	m := staticMsg{body: s.payloads[s.next]}
	s.next++
	return m, nil
}

type staticMsg struct {
	body []byte
}

func (m staticMsg) Body() []byte                      { return m.body }
func (m staticMsg) Ack(context.Context) error         { return nil }
func (m staticMsg) Fail(context.Context, error) error { return nil }

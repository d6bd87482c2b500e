package source

import (
	"context"
	"errors"
	"time"
)

type CoalescingConfig struct {
	// MaxFrameBytes closes a frame once the merged payload reaches this size.
	MaxFrameBytes int
	// FlushInterval closes a partially filled frame after this much time has
	// passed since its first message.
	FlushInterval time.Duration
}

var DefaultCoalescingConfig = CoalescingConfig{
	MaxFrameBytes: 256 * 1024,
	FlushInterval: 5 * time.Second,
}

func (c CoalescingConfig) Validate() error {
	if c.MaxFrameBytes <= 0 {
		return errors.New("MaxFrameBytes must be > 0")
	}
	if c.FlushInterval <= 0 {
		return errors.New("FlushInterval must be > 0")
	}
	return nil
}

// Coalescing wraps a Sourcer and merges consecutive message bodies into one
// frame bounded by MaxFrameBytes and FlushInterval. Acking or failing a frame
// acks or fails every member message.
type Coalescing struct {
	cfg CoalescingConfig
	src Sourcer

	now func() time.Time
}

var _ Sourcer = (*Coalescing)(nil)

func NewCoalescing(src Sourcer, cfg CoalescingConfig) (*Coalescing, error) {
	if src == nil {
		return nil, errors.New("source is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coalescing{cfg: cfg, src: src, now: time.Now}, nil
}

// Receive blocks until a full frame is assembled, the flush deadline passes
// with a partial frame, or the inner source ends. A partial frame left over
// when the inner source reports ErrClosed is delivered before ErrClosed is
// surfaced on the next call.
func (s *Coalescing) Receive(ctx context.Context) (Message, error) {
	var (
		group    AckGroup
		buf      []byte
		deadline time.Time
	)

	for {
		recvCtx := ctx
		var cancel context.CancelFunc
		if !deadline.IsZero() {
			recvCtx, cancel = context.WithDeadline(ctx, deadline)
		}
		m, err := s.src.Receive(recvCtx)
		if cancel != nil {
			cancel()
		}

		if err != nil {
			// Deadline hit => time-based flush of the partial frame.
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && len(buf) > 0 {
				return &frame{body: buf, acks: group}, nil
			}
			if errors.Is(err, ErrClosed) && len(buf) > 0 {
				return &frame{body: buf, acks: group}, nil
			}
			return nil, err
		}

		if deadline.IsZero() {
			deadline = s.now().Add(s.cfg.FlushInterval)
		}

		buf = append(buf, m.Body()...)
		group.Add(m)

		if len(buf) >= s.cfg.MaxFrameBytes {
			return &frame{body: buf, acks: group}, nil
		}
	}
}

type frame struct {
	body []byte
	acks AckGroup
}

func (f *frame) Body() []byte { return f.body }

func (f *frame) Ack(ctx context.Context) error { return f.acks.Ack(ctx) }

func (f *frame) Fail(ctx context.Context, reason error) error { return f.acks.Fail(ctx, reason) }

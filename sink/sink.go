package sink

import (
	"context"
	"io"
)

// Sink accepts byte payloads on behalf of a consumer.
//
// Accept makes a single delivery attempt and reports how many bytes were
// taken, which may be fewer than offered. Implementations must not retain p.
type Sink interface {
	Accept(ctx context.Context, p []byte) (n int, err error)
}

// Buffer is an in-memory Sink that accepts everything offered to it.
type Buffer struct {
	data []byte
}

func (b *Buffer) Accept(_ context.Context, p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

// Bytes returns everything accepted so far. The slice is owned by the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// Chunked wraps a Sink and caps how many bytes a single Accept may take,
// surfacing partial acceptance to the consumer above it. A Max of zero or
// less means no cap.
type Chunked struct {
	Next Sink
	Max  int
}

func (c Chunked) Accept(ctx context.Context, p []byte) (int, error) {
	if c.Next == nil {
		panic("chunked sink requires Next")
	}
	if c.Max > 0 && len(p) > c.Max {
		p = p[:c.Max]
	}
	return c.Next.Accept(ctx, p)
}

// FromWriter adapts an io.Writer (files, pipes, network connections) into a
// Sink. The writer's short-write and error semantics pass through untouched.
func FromWriter(w io.Writer) Sink {
	if w == nil {
		panic("writer is required")
	}
	return writerSink{w: w}
}

type writerSink struct {
	w io.Writer
}

func (s writerSink) Accept(_ context.Context, p []byte) (int, error) {
	return s.w.Write(p)
}

package consumer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/baldanca/demand-writer/sink"
)

// ---- fakes ----

type failSink struct {
	calls int
}

func (s *failSink) Accept(_ context.Context, _ []byte) (int, error) {
	s.calls++
	return 0, errors.New("sink down")
}

// shortSink accepts exactly one byte per attempt.
type shortSink struct {
	got []byte
}

func (s *shortSink) Accept(_ context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	s.got = append(s.got, p[0])
	return 1, nil
}

func TestNew_EmitsInitialRequest(t *testing.T) {
	c := New(&sink.Buffer{})

	if got := c.Demand(); got != 1 {
		t.Fatalf("Demand()=%d want=1", got)
	}

	ev, ok := c.NextEvent()
	if !ok {
		t.Fatal("expected a queued event")
	}
	if ev.Kind != KindRequest || ev.Count != 1 {
		t.Fatalf("event=%+v want Request(1)", ev)
	}

	if _, ok := c.NextEvent(); ok {
		t.Fatal("expected exactly one initial event")
	}
}

func TestNew_NilSinkPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil sink")
		}
	}()
	New(nil)
}

func TestWrite_FullAcceptance(t *testing.T) {
	ctx := context.Background()
	buf := &sink.Buffer{}
	c := New(buf)
	c.NextEvent() // initial Request(1)

	for i := 0; i < 3; i++ {
		if err := c.Write(ctx, []byte{65}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if got := c.Demand(); got != 1 {
			t.Fatalf("write %d: Demand()=%d want=1", i, got)
		}

		ev, ok := c.NextEvent()
		if !ok || ev != Request(1) {
			t.Fatalf("write %d: event=%+v ok=%v want Request(1)", i, ev, ok)
		}
	}

	if c.Buffered() != nil {
		t.Fatalf("Buffered()=%v want nil", c.Buffered())
	}
	if !bytes.Equal(buf.Bytes(), []byte{65, 65, 65}) {
		t.Fatalf("sink got %v", buf.Bytes())
	}
}

func TestWrite_SinkFailureIsAbsorbed(t *testing.T) {
	ctx := context.Background()
	s := &failSink{}
	c := New(s)

	if err := c.Write(ctx, []byte{65}); err != nil {
		t.Fatalf("write should absorb the sink failure, got %v", err)
	}
	if got := c.Demand(); got != 0 {
		t.Fatalf("Demand()=%d want=0", got)
	}
	if !bytes.Equal(c.Buffered(), []byte{65}) {
		t.Fatalf("Buffered()=%v want [65]", c.Buffered())
	}

	// Only the construction Request(1) should be queued.
	if got := c.PendingEvents(); got != 1 {
		t.Fatalf("PendingEvents()=%d want=1", got)
	}

	if err := c.Write(ctx, []byte{65}); !errors.Is(err, ErrWriteWithoutRequest) {
		t.Fatalf("second write err=%v want ErrWriteWithoutRequest", err)
	}
	if s.calls != 1 {
		t.Fatalf("sink calls=%d want=1", s.calls)
	}
}

func TestWrite_PartialAcceptance(t *testing.T) {
	ctx := context.Background()
	s := &shortSink{}
	c := New(s)

	if err := c.Write(ctx, []byte{65, 66}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := c.Demand(); got != 0 {
		t.Fatalf("Demand()=%d want=0", got)
	}
	if !bytes.Equal(c.Buffered(), []byte{66}) {
		t.Fatalf("Buffered()=%v want [66]", c.Buffered())
	}
	if !bytes.Equal(s.got, []byte{65}) {
		t.Fatalf("sink got %v want [65]", s.got)
	}

	if err := c.Write(ctx, []byte{65}); !errors.Is(err, ErrWriteWithoutRequest) {
		t.Fatalf("err=%v want ErrWriteWithoutRequest", err)
	}
}

func TestWrite_WithoutRequestLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s := &failSink{}
	c := New(s)

	if err := c.Write(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	wantBuffered := append([]byte(nil), c.Buffered()...)
	wantEvents := c.PendingEvents()

	for i := 0; i < 3; i++ {
		if err := c.Write(ctx, []byte{9}); !errors.Is(err, ErrWriteWithoutRequest) {
			t.Fatalf("err=%v want ErrWriteWithoutRequest", err)
		}
	}

	if got := c.Demand(); got != 0 {
		t.Fatalf("Demand()=%d want=0", got)
	}
	if !bytes.Equal(c.Buffered(), wantBuffered) {
		t.Fatalf("Buffered()=%v want %v", c.Buffered(), wantBuffered)
	}
	if got := c.PendingEvents(); got != wantEvents {
		t.Fatalf("PendingEvents()=%d want=%d", got, wantEvents)
	}
	if s.calls != 1 {
		t.Fatalf("sink calls=%d want=1", s.calls)
	}
}

// scriptSink replays a fixed script of per-call byte counts; -1 means fail.
type scriptSink struct {
	script []int
	call   int
}

func (s *scriptSink) Accept(_ context.Context, p []byte) (int, error) {
	n := s.script[s.call]
	s.call++
	if n < 0 {
		return 0, errors.New("scripted failure")
	}
	if n > len(p) {
		n = len(p)
	}
	return n, nil
}

func TestWrite_BufferHoldsOnlyLatestRemainder(t *testing.T) {
	ctx := context.Background()

	// Fully accept first, then cut the second write short. The slot must
	// hold exactly the second write's remainder.
	s := &scriptSink{script: []int{3, 1}}
	c := New(s)

	if err := c.Write(ctx, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if c.Buffered() != nil {
		t.Fatalf("Buffered()=%v want nil after full acceptance", c.Buffered())
	}

	if err := c.Write(ctx, []byte{65, 66, 67}); err != nil {
		t.Fatalf("write 2: %v", err)
	}
	if !bytes.Equal(c.Buffered(), []byte{66, 67}) {
		t.Fatalf("Buffered()=%v want [66 67]", c.Buffered())
	}
}

func TestWrite_BufferCopiesCallerData(t *testing.T) {
	ctx := context.Background()
	c := New(&failSink{})

	data := []byte{65, 66}
	if err := c.Write(ctx, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	data[0] = 99

	if !bytes.Equal(c.Buffered(), []byte{65, 66}) {
		t.Fatalf("Buffered()=%v; buffered slice must not alias caller data", c.Buffered())
	}
}

func TestEmit_AppendsInFIFOOrder(t *testing.T) {
	c := New(&sink.Buffer{})
	c.Emit(Request(3))
	c.Emit(Termination())
	c.Emit(Finish())

	want := []Event{Request(1), Request(3), Termination(), Finish()}
	for i, w := range want {
		ev, ok := c.NextEvent()
		if !ok {
			t.Fatalf("event %d missing", i)
		}
		if ev != w {
			t.Fatalf("event %d = %+v want %+v", i, ev, w)
		}
	}
	if _, ok := c.NextEvent(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestUpdate_IsANoOp(t *testing.T) {
	c := New(&sink.Buffer{})

	c.Update()
	if got := c.Demand(); got != 1 {
		t.Fatalf("Demand()=%d want=1", got)
	}
	if got := c.PendingEvents(); got != 1 {
		t.Fatalf("PendingEvents()=%d want=1", got)
	}

	if err := c.Write(context.Background(), []byte{65}); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.Update()
	if got := c.Demand(); got != 1 {
		t.Fatalf("Demand()=%d want=1 after write+update", got)
	}
}

func TestDriverLoop_PumpsWhileSinkAccepts(t *testing.T) {
	ctx := context.Background()
	buf := &sink.Buffer{}
	c := New(buf)

	const numLines = 10
	line := []byte{65, 67, 65, 67, 10}

	written := 0
	for written < numLines {
		ev, ok := c.NextEvent()
		if !ok {
			break
		}
		if ev.Kind != KindRequest {
			t.Fatalf("unhandled event: %+v", ev)
		}
		if err := c.Write(ctx, line); err != nil {
			t.Fatalf("write %d: %v", written, err)
		}
		written++
	}

	if written != numLines {
		t.Fatalf("written=%d want=%d", written, numLines)
	}
	if got := len(buf.Bytes()); got != numLines*len(line) {
		t.Fatalf("sink bytes=%d want=%d", got, numLines*len(line))
	}
}

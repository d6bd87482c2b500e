package consumer

import "fmt"

// EventKind tags an outbound protocol message.
type EventKind uint8

const (
	// KindRequest grants the producer permission for Count more writes.
	KindRequest EventKind = iota + 1
	// KindTermination signals an abnormal end of the stream.
	KindTermination
	// KindFinish signals a normal end of the stream.
	KindFinish
)

func (k EventKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindTermination:
		return "termination"
	case KindFinish:
		return "finish"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Event is a protocol message the consumer queues for its driver.
//
// Events are values with no identity beyond their kind and payload; a driver
// observes each one exactly once via NextEvent. Count is meaningful only for
// KindRequest.
type Event struct {
	Kind  EventKind
	Count int
}

// Request grants the producer permission for n more writes.
func Request(n int) Event { return Event{Kind: KindRequest, Count: n} }

// Termination signals an abnormal end of the stream.
func Termination() Event { return Event{Kind: KindTermination} }

// Finish signals a normal end of the stream.
func Finish() Event { return Event{Kind: KindFinish} }

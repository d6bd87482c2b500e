package consumer

// eventQueue is a FIFO of protocol events backed by a growable ring.
// push and pop are O(1); events come back out in exact insertion order.
type eventQueue struct {
	buf  []Event
	head int
	n    int
}

func (q *eventQueue) push(ev Event) {
	if q.n == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.n)%len(q.buf)] = ev
	q.n++
}

func (q *eventQueue) pop() (Event, bool) {
	if q.n == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return ev, true
}

func (q *eventQueue) len() int { return q.n }

func (q *eventQueue) grow() {
	next := make([]Event, max(2*len(q.buf), 4))
	for i := 0; i < q.n; i++ {
		next[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = next
	q.head = 0
}

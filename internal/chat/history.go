package chat

// ring is a fixed-capacity FIFO over messages. Pushing past capacity
// evicts the oldest entry.
type ring struct {
	buf   []Message
	start int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Message, capacity)}
}

func (r *ring) push(msg Message) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = msg
		r.count++
		return
	}
	r.buf[r.start] = msg
	r.start = (r.start + 1) % len(r.buf)
}

// last returns the most recent min(count, len) messages in chronological
// order.
func (r *ring) last(count int) []Message {
	if count > r.count {
		count = r.count
	}
	if count <= 0 {
		return nil
	}
	out := make([]Message, count)
	for i := 0; i < count; i++ {
		out[i] = r.buf[(r.start+r.count-count+i)%len(r.buf)]
	}
	return out
}

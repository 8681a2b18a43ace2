package session

import "github.com/muurk/husky/internal/protocol"

// Window is the number of sends after which the next enqueue collapses the
// queue to just the new entry.
const Window = 10

// Entry is one drained queue position.
type Entry struct {
	Index int
	Frame string
}

// SendQueue is the ordered outbound buffer. It is not safe for concurrent
// use; the Machine owns it.
type SendQueue struct {
	entries []string
	sent    int
	epoch   uint64
}

// Enqueue appends msg. Once a full window has been sent, older entries are
// discarded and the queue restarts with msg alone.
func (q *SendQueue) Enqueue(msg string) {
	if q.sent >= Window {
		q.entries = []string{msg}
		q.sent = 0
		q.epoch++
		return
	}
	q.entries = append(q.entries, msg)
}

// DrainWindow returns the entries not yet sent. It does not change the queue.
func (q *SendQueue) DrainWindow() []Entry {
	if q.sent >= len(q.entries) {
		return nil
	}
	out := make([]Entry, 0, len(q.entries)-q.sent)
	for i := q.sent; i < len(q.entries); i++ {
		out = append(out, Entry{Index: i, Frame: q.entries[i]})
	}
	return out
}

// Advance marks n more entries as sent. When the drop-session sentinel was
// among them, the queue is cleared and terminate is true.
func (q *SendQueue) Advance(n int) (terminate bool) {
	if n <= 0 {
		return false
	}
	from := q.sent
	q.sent += n
	if q.sent > len(q.entries) {
		q.sent = len(q.entries)
	}
	for _, e := range q.entries[from:q.sent] {
		if e == protocol.DropSession {
			q.Clear()
			return true
		}
	}
	return false
}

// Clear empties the queue.
func (q *SendQueue) Clear() {
	q.entries = nil
	q.sent = 0
	q.epoch++
}

// Len returns the number of entries, sent or not.
func (q *SendQueue) Len() int { return len(q.entries) }

// Sent returns the sent cursor.
func (q *SendQueue) Sent() int { return q.sent }

// Epoch changes whenever entries are discarded by a collapse or clear, so a
// drained window can be recognised as stale.
func (q *SendQueue) Epoch() uint64 { return q.epoch }

// Pending returns a copy of the unsent frames.
func (q *SendQueue) Pending() []string {
	if q.sent >= len(q.entries) {
		return nil
	}
	return append([]string(nil), q.entries[q.sent:]...)
}

// Package pending correlates in-flight oneshot requests with their replies.
// The requester registers a sink under the outgoing message id; when the
// matching response arrives the sink is taken from the table and the reply
// delivered. Abandoning the table closes every remaining sink, which waiters
// observe as a cancelled outcome.
package pending

import (
	"fmt"
	"sync"

	"suteravr/internal/wire"
)

// Table maps outstanding message ids to their reply sinks.
type Table struct {
	mu    sync.Mutex
	sinks map[wire.MessageID]chan *wire.ReceivedMessage
}

func NewTable() *Table {
	return &Table{sinks: make(map[wire.MessageID]chan *wire.ReceivedMessage)}
}

// Register creates a sink for id and returns its receive side. Registering an
// id that is already pending is an invariant breach: callers allocate ids
// monotonically per connection, so it panics.
func (t *Table) Register(id wire.MessageID) <-chan *wire.ReceivedMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, occupied := t.sinks[id]; occupied {
		panic(fmt.Sprintf("pending: message id %#x is already occupied", uint64(id)))
	}
	sink := make(chan *wire.ReceivedMessage, 1)
	t.sinks[id] = sink
	return sink
}

// Resolve delivers msg to the sink registered under id and removes it.
// It reports whether a sink was pending for the id.
func (t *Table) Resolve(id wire.MessageID, msg *wire.ReceivedMessage) bool {
	t.mu.Lock()
	sink, ok := t.sinks[id]
	if ok {
		delete(t.sinks, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	sink <- msg
	close(sink)
	return true
}

// Forget drops the sink for id without delivering anything. Used when the
// requester gives up (context cancellation); a late reply then resolves to
// nothing, and Resolve reports false for it.
func (t *Table) Forget(id wire.MessageID) {
	t.mu.Lock()
	delete(t.sinks, id)
	t.mu.Unlock()
}

// Abandon closes every pending sink. Waiters receive the closed-channel zero
// value, the cancelled outcome.
func (t *Table) Abandon() {
	t.mu.Lock()
	for id, sink := range t.sinks {
		close(sink)
		delete(t.sinks, id)
	}
	t.mu.Unlock()
}

// Len returns the number of outstanding requests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sinks)
}

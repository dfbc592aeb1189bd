package engine

import (
	"sync"

	"github.com/danmuck/csta/internal/protocol/tree"
)

// Event is one matched inbound message. Payload is built per frame and may
// be retained by the receiver.
type Event struct {
	Name     string
	Command  string
	Sequence int
	Payload  tree.Record
}

type Handler func(Event)

type subscription struct {
	id uint64
	fn Handler
}

// broadcaster is a copy-on-write observer list: publish iterates a snapshot,
// so subscribe and unsubscribe never wait for delivery to finish.
type broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscription
}

func (b *broadcaster) subscribe(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	next := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *broadcaster) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs = next
}

func (b *broadcaster) publish(ev Event) {
	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()
	for _, s := range snapshot {
		s.fn(ev)
	}
}

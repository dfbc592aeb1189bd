package engine

import "sync"

// MaxSequence is never emitted: the counter wraps to 1 when it reaches it.
const MaxSequence = 9999

// Sequencer hands out outbound sequence numbers in [1, MaxSequence-1].
type Sequencer struct {
	mu sync.Mutex
	n  int
}

func (s *Sequencer) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.n >= MaxSequence {
		s.n = 1
	}
	return s.n
}

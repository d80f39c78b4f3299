package session

import "sync/atomic"

// Sequencer numbers generation requests so only the latest one may apply
// its result.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new ticket; every earlier ticket becomes stale.
func (q *Sequencer) Next() uint64 {
	return q.latest.Add(1)
}

func (q *Sequencer) IsLatest(ticket uint64) bool {
	return q.latest.Load() == ticket
}

package eventstore

import (
	"time"

	"github.com/rzbill/tide/pkg/log"
)

// runCleaner periodically detaches tailing consumers whose position is older
// than anything the cache still retains. Trimming alone drops the chain's
// references to evicted nodes; detaching breaks the laggard's lastNode
// reference so the evicted prefix becomes garbage.
func (s *Store) runCleaner() {
	ticker := time.NewTicker(s.cleanupDelay)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.detachLaggards()
		}
	}
}

// detachLaggards removes from the tailing set every consumer strictly behind
// the cache floor. A detached consumer observes the change on its next read
// and recovers through a private stream.
func (s *Store) detachLaggards() {
	oldest := s.oldest.Load()
	if oldest == nil || oldest.previousToken == nil {
		return
	}
	for _, c := range s.tailingSnapshot() {
		last := c.lastTokenValue()
		if last == nil || oldest.previousToken.IsAfter(last) {
			s.logger.Warn("consumer fell behind the tail end of the event cache; detaching it",
				log.Str("consumer", c.id))
			s.removeTailing(c)
			c.lastNode.Store(nil)
			s.monitor.ConsumerDetached()
		}
	}
}

package app

import (
	"sync"

	"quiz-assessment-service/internal/domain"
)

type partition struct {
	subject string
	grade   string
}

// feed fans leaderboard snapshots out to subscribers of one partition.
type feed struct {
	mu          sync.Mutex
	subscribers map[partition]map[chan domain.Leaderboard]struct{}
}

func newFeed() *feed {
	return &feed{subscribers: make(map[partition]map[chan domain.Leaderboard]struct{})}
}

func (f *feed) subscribe(p partition, initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	subs, ok := f.subscribers[p]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		f.subscribers[p] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs := f.subscribers[p]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(f.subscribers, p)
		}
	}
	return ch, cancel
}

func (f *feed) watched(p partition) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[p]) > 0
}

func (f *feed) broadcast(p partition, lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[p] {
		select {
		case ch <- lb:
		default:
			// Slow subscriber: replace its oldest pending snapshot.
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

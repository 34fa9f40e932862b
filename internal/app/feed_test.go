package app

import (
	"testing"
	"time"

	"quiz-assessment-service/internal/domain"
)

func TestFeedDropsStaleSnapshots(t *testing.T) {
	f := newFeed()
	p := partition{subject: "math", grade: "5"}
	ch, cancel := f.subscribe(p, domain.Leaderboard{})
	defer cancel()

	base := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= 20; i++ {
		f.broadcast(p, domain.Leaderboard{UpdatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	var last domain.Leaderboard
	for len(ch) > 0 {
		last = <-ch
	}
	if want := base.Add(20 * time.Second); !last.UpdatedAt.Equal(want) {
		t.Fatalf("expected newest snapshot %v, got %v", want, last.UpdatedAt)
	}
}

func TestFeedCancelClosesAndForgets(t *testing.T) {
	f := newFeed()
	p := partition{subject: "math", grade: "5"}
	other := partition{subject: "math", grade: "6"}

	ch, cancel := f.subscribe(p, domain.Leaderboard{Subject: "math"})
	if !f.watched(p) || f.watched(other) {
		t.Fatalf("unexpected watch state")
	}
	f.broadcast(other, domain.Leaderboard{Subject: "other"})

	if initial := <-ch; initial.Subject != "math" {
		t.Fatalf("expected initial snapshot, got %+v", initial)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if f.watched(p) {
		t.Fatalf("expected partition to be forgotten")
	}
}

package grading

import "quiz-assessment-service/internal/scoring"

// buckets accumulates per-answer score ratios under a key, remembering the
// order in which keys first appeared.
type buckets[K comparable] struct {
	order []K
	sums  map[K]float64
	count map[K]int
}

func newBuckets[K comparable]() *buckets[K] {
	return &buckets[K]{sums: make(map[K]float64), count: make(map[K]int)}
}

func (b *buckets[K]) add(key K, ratio float64) {
	if _, ok := b.count[key]; !ok {
		b.order = append(b.order, key)
	}
	b.sums[key] += ratio
	b.count[key]++
}

func (b *buckets[K]) average(key K) (float64, bool) {
	n, ok := b.count[key]
	if !ok || n == 0 {
		return 0, false
	}
	return b.sums[key] / float64(n), true
}

// percentage is the bucket average as a 2-dp percentage, nil when empty.
func (b *buckets[K]) percentage(key K) *float64 {
	avg, ok := b.average(key)
	if !ok {
		return nil
	}
	pct := scoring.Round(avg*100, 2)
	return &pct
}

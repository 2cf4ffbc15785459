package logging

import "strings"

// ProgressSampler suppresses repetitive progress logs while preserving signal
// when the run changes or the percentage crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize int
	lastScope  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) or when the scope (usually a run ID) changes.
func NewProgressSampler(bucketSize int) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress report should be logged. A nil
// sampler logs everything.
func (s *ProgressSampler) ShouldLog(percent int, scope string) bool {
	if s == nil {
		return true
	}
	emit := false
	if scope = strings.TrimSpace(scope); scope != s.lastScope {
		s.lastScope = scope
		s.lastBucket = -1
		emit = true
	}
	if percent < 0 {
		return emit
	}
	if percent > 100 {
		percent = 100
	}
	if bucket := percent / s.bucketSize; bucket > s.lastBucket {
		s.lastBucket = bucket
		emit = true
	}
	return emit
}

// Reset clears the sampler state (e.g. when a new run starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastScope = ""
	s.lastBucket = -1
}

package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize int
		want       int
	}{
		{"zero falls back to five", 0, 5},
		{"negative falls back to five", -3, 5},
		{"custom", 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.want {
				t.Errorf("bucketSize = %d, want %d", s.bucketSize, tt.want)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilLogsEverything(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "run") {
		t.Error("nil sampler should always log")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5)
	steps := []struct {
		percent int
		want    bool
	}{
		{0, true},
		{3, false},
		{5, true},
		{9, false},
		{10, true},
		{100, true},
		{120, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent, "run-a"); got != step.want {
			t.Fatalf("ShouldLog(%d) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerScopeChangeResetsBucket(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "run-a")
	if !s.ShouldLog(10, "run-b") {
		t.Fatal("new scope should log")
	}
	if s.ShouldLog(12, "run-b") {
		t.Fatal("same bucket in same scope should not log")
	}
	if !s.ShouldLog(-1, " run-c ") {
		t.Fatal("scope change should log even without a percent")
	}
	if s.lastScope != "run-c" {
		t.Fatalf("lastScope = %q, want trimmed run-c", s.lastScope)
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(50, "run-a")
	s.Reset()
	if s.lastScope != "" || s.lastBucket != -1 {
		t.Fatalf("unexpected state after reset: %+v", s)
	}
	if !s.ShouldLog(50, "run-a") {
		t.Fatal("should log after reset")
	}
}

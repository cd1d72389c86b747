package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	maxIdle time.Duration
	now     time.Time
	closed  int
}

func (f *fakePruner) PruneIdle(maxIdle time.Duration, now time.Time) int {
	f.maxIdle = maxIdle
	f.now = now
	return f.closed
}

type fakeCleaner struct {
	before  time.Time
	deleted int64
	err     error
}

func (f *fakeCleaner) DeleteFinishedJobs(ctx context.Context, before time.Time) (int64, error) {
	f.before = before
	return f.deleted, f.err
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNew_RegistersEntries(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want int
	}{
		{"both", Config{Sessions: &fakePruner{}, Jobs: &fakeCleaner{}, SessionIdle: time.Minute, JobRetention: time.Hour}, 2},
		{"sessions only", Config{Sessions: &fakePruner{}, SessionIdle: time.Minute}, 1},
		{"zero retention", Config{Jobs: &fakeCleaner{}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			if got := len(s.cron.Entries()); got != tt.want {
				t.Errorf("entries = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPruneSessions(t *testing.T) {
	p := &fakePruner{closed: 3}
	s, err := New(Config{Sessions: p, SessionIdle: 30 * time.Minute, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatal(err)
	}

	if got := s.PruneSessions(); got != 3 {
		t.Errorf("PruneSessions() = %d, want 3", got)
	}
	if p.maxIdle != 30*time.Minute || !p.now.Equal(fixedNow) {
		t.Errorf("pruner called with %v, %v", p.maxIdle, p.now)
	}
}

func TestCleanJobs(t *testing.T) {
	c := &fakeCleaner{deleted: 5}
	s, err := New(Config{Jobs: c, JobRetention: 7 * 24 * time.Hour, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.CleanJobs(context.Background())
	if err != nil {
		t.Fatalf("CleanJobs() error: %v", err)
	}
	if n != 5 {
		t.Errorf("deleted = %d, want 5", n)
	}
	if want := fixedNow.Add(-7 * 24 * time.Hour); !c.before.Equal(want) {
		t.Errorf("cutoff = %v, want %v", c.before, want)
	}
}

func TestCleanJobs_Error(t *testing.T) {
	boom := errors.New("boom")
	s, err := New(Config{Jobs: &fakeCleaner{err: boom}, JobRetention: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.CleanJobs(context.Background()); !errors.Is(err, boom) {
		t.Errorf("CleanJobs() error = %v, want boom", err)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New(Config{Sessions: &fakePruner{}, SessionIdle: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Stop waited for the deadline")
	}
}

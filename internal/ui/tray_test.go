package ui

import (
	"context"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/player"
)

func TestSnapshotLines(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		snap     Snapshot
		status   string
		sessions string
		jobs     string
	}{
		{
			name:     "idle",
			snap:     Snapshot{},
			status:   "Status: Idle",
			sessions: "Sessions: none open",
			jobs:     "Workflows: none running",
		},
		{
			name:     "editing",
			snap:     Snapshot{Sessions: 2, LastActive: now.Add(-3 * time.Minute)},
			status:   "Status: Editing",
			sessions: "Sessions: 2 (last edit 3 minutes ago)",
			jobs:     "Workflows: none running",
		},
		{
			name:     "processing",
			snap:     Snapshot{Sessions: 1, LastActive: now, ActiveJobs: 1200},
			status:   "Status: Processing",
			sessions: "Sessions: 1 (last edit now)",
			jobs:     "Workflows: 1,200 running",
		},
		{
			name:   "paused wins",
			snap:   Snapshot{ActiveJobs: 1, Paused: true},
			status: "Status: Paused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.StatusLine(); got != tt.status {
				t.Errorf("StatusLine() = %q, want %q", got, tt.status)
			}
			if tt.sessions != "" {
				if got := tt.snap.SessionsLine(now); got != tt.sessions {
					t.Errorf("SessionsLine() = %q, want %q", got, tt.sessions)
				}
			}
			if tt.jobs != "" {
				if got := tt.snap.JobsLine(); got != tt.jobs {
					t.Errorf("JobsLine() = %q, want %q", got, tt.jobs)
				}
			}
		})
	}
}

func TestTraySnapshot(t *testing.T) {
	m := editor.NewManager(logging.Discard())
	defer m.CloseAll()

	active := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := m.Open(context.Background(), editor.Config{
		Load:   editor.LoadResponse{Duration: 10000},
		Player: player.NewClock(player.ClockConfig{Duration: 10}),
		Now:    func() time.Time { return active },
	})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	tray := NewTray(TrayConfig{Sessions: m, Logger: logging.Discard()})
	snap := tray.snapshot(context.Background())

	if snap.Sessions != 1 || !snap.LastActive.Equal(active) {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.ActiveJobs != 0 || snap.Paused {
		t.Errorf("snapshot without runner = %+v", snap)
	}
}

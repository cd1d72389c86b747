package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/getlantern/systray"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/editor"
)

const refreshInterval = 5 * time.Second

type Tray struct {
	sessions *editor.Manager
	runner   *catalog.Runner
	logger   *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem
	jobsItem     *systray.MenuItem
	pauseItem    *systray.MenuItem

	mu sync.Mutex

	onCloseSessions func()
	onQuit          func()
}

type TrayConfig struct {
	Sessions *editor.Manager
	Runner   *catalog.Runner
	Logger   *slog.Logger
	// OnCloseSessions is called from the "Close all sessions" item.
	OnCloseSessions func()
	OnQuit          func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		sessions:        cfg.Sessions,
		runner:          cfg.Runner,
		logger:          cfg.Logger,
		onCloseSessions: cfg.OnCloseSessions,
		onQuit:          cfg.OnQuit,
	}
}

// Snapshot is what the tray shows.
type Snapshot struct {
	Sessions   int
	LastActive time.Time
	ActiveJobs int
	Paused     bool
}

// StatusLine renders the top menu line.
func (s Snapshot) StatusLine() string {
	switch {
	case s.Paused:
		return "Status: Paused"
	case s.ActiveJobs > 0:
		return "Status: Processing"
	case s.Sessions > 0:
		return "Status: Editing"
	default:
		return "Status: Idle"
	}
}

// SessionsLine renders the open session count and the latest activity.
func (s Snapshot) SessionsLine(now time.Time) string {
	if s.Sessions == 0 {
		return "Sessions: none open"
	}
	return fmt.Sprintf("Sessions: %d (last edit %s)", s.Sessions, humanize.RelTime(s.LastActive, now, "ago", "from now"))
}

func (s Snapshot) JobsLine() string {
	if s.ActiveJobs == 0 {
		return "Workflows: none running"
	}
	return fmt.Sprintf("Workflows: %s running", humanize.Comma(int64(s.ActiveJobs)))
}

func (t *Tray) snapshot(ctx context.Context) Snapshot {
	var snap Snapshot
	if t.sessions != nil {
		for _, s := range t.sessions.List() {
			snap.Sessions++
			if la := s.LastActive(); la.After(snap.LastActive) {
				snap.LastActive = la
			}
		}
	}
	if t.runner != nil {
		snap.ActiveJobs = t.runner.GetActiveJobCount(ctx)
		snap.Paused = t.runner.IsPaused()
	}
	return snap
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Heimdex")
	systray.SetTooltip("Heimdex Editor Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: none open", "Open editing sessions")
	t.sessionsItem.Disable()

	t.jobsItem = systray.AddMenuItem("Workflows: none running", "Post-processing workflows")
	t.jobsItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause workflows", "Pause post-processing")
	closeItem := systray.AddMenuItem("Close all sessions", "Close every open editing session")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Heimdex Editor Agent")

	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-closeItem.ClickedCh:
				if t.onCloseSessions != nil {
					t.onCloseSessions()
				}
				t.refresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.refresh()
	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap := t.snapshot(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.statusItem.SetTitle(snap.StatusLine())
	t.sessionsItem.SetTitle(snap.SessionsLine(time.Now()))
	t.jobsItem.SetTitle(snap.JobsLine())
}

func (t *Tray) togglePause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runner == nil {
		return
	}

	if t.runner.IsPaused() {
		t.runner.Resume()
		t.pauseItem.SetTitle("Pause workflows")
		t.statusItem.SetTitle("Status: Idle")
		t.logger.Info("workflow runner resumed from tray")
	} else {
		t.runner.Pause()
		t.pauseItem.SetTitle("Resume workflows")
		t.statusItem.SetTitle("Status: Paused")
		t.logger.Info("workflow runner paused from tray")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

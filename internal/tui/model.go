// Package tui is the terminal segment editor. It drives an editor.Session
// backed by a player.Clock and saves through the agent API.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/player"
	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/timeline"
)

const (
	// BoundaryStep is how far [ and ] move the start of the selected segment.
	BoundaryStep = 500
	zoomStep     = 10
	requestLimit = 30 * time.Second
)

// Loader fetches the editor payload of a media item.
type Loader interface {
	Load(ctx context.Context, mediaID string) (editor.LoadResponse, error)
}

// Options configures a Model.
type Options struct {
	MediaID  string
	Title    string
	Loader   Loader
	Saver    editor.Saver
	Workflow string
	Preview  bool
	Logger   *slog.Logger
	Now      func() time.Time
}

type loadedMsg struct {
	load editor.LoadResponse
}

type savedMsg struct {
	result editor.SaveResult
}

type errorMsg struct {
	err error
}

type tickMsg time.Time

// Model is the bubbletea model of one editing session.
type Model struct {
	opts    Options
	keys    keyMap
	help    help.Model
	spinner spinner.Model

	session *editor.Session
	clock   *player.Clock

	loading    bool
	loadingMsg string
	saving     bool
	status     string
	errorMsg   string
	width      int
	quitting   bool
}

// New returns a model that starts by loading the media item.
func New(opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Title == "" {
		opts.Title = opts.MediaID
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return Model{
		opts:       opts,
		keys:       defaultKeys(),
		help:       help.New(),
		spinner:    s,
		loading:    true,
		loadingMsg: "Loading " + opts.Title + "...",
	}
}

// Session returns the running session, nil while loading.
func (m Model) Session() *editor.Session { return m.session }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadCmd(m.opts.Loader, m.opts.MediaID))
}

func loadCmd(loader Loader, mediaID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestLimit)
		defer cancel()
		load, err := loader.Load(ctx, mediaID)
		if err != nil {
			return errorMsg{fmt.Errorf("load %s: %w", mediaID, err)}
		}
		return loadedMsg{load}
	}
}

func saveCmd(s *editor.Session, saver editor.Saver, workflow string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestLimit)
		defer cancel()
		res, err := s.Save(ctx, saver, workflow)
		if err != nil {
			return errorMsg{err}
		}
		return savedMsg{res}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(editor.TickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			if m.session != nil {
				m.session.Close()
			}
			return m, tea.Quit
		}
		if m.loading || m.session == nil {
			return m, nil
		}
		return m.handleKey(msg)

	case loadedMsg:
		return m.start(msg.load)

	case savedMsg:
		m.saving = false
		m.errorMsg = ""
		m.status = "Saved cut " + msg.result.CutID
		if msg.result.JobID != "" {
			m.status += ", workflow job " + msg.result.JobID
		}
		return m, nil

	case errorMsg:
		m.loading = false
		m.saving = false
		m.errorMsg = msg.err.Error()
		return m, nil

	case tickMsg:
		if m.session == nil {
			return m, nil
		}
		m.session.Tick()
		return m, tickCmd()

	case spinner.TickMsg:
		if m.loading || m.saving {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	return m, nil
}

func (m Model) start(load editor.LoadResponse) (tea.Model, tea.Cmd) {
	m.clock = player.NewClock(player.ClockConfig{
		Duration: float64(load.Duration) / 1000,
		Now:      m.opts.Now,
	})
	s, err := editor.NewSession(editor.Config{
		ID:      "tui",
		MediaID: m.opts.MediaID,
		Load:    load,
		Player:  m.clock,
		Preview: m.opts.Preview,
		Logger:  m.opts.Logger,
		Now:     m.opts.Now,
	})
	m.loading = false
	if err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	m.session = s
	m.session.Tick()
	return m, tickCmd()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	sel := s.Segments().SelectedIndex()

	var err error
	m.status = ""

	switch {
	case key.Matches(msg, m.keys.PlayPause):
		if m.clock.Status() == player.Playing {
			s.Pause()
		} else {
			err = s.Play()
		}
	case key.Matches(msg, m.keys.PrevFrame):
		s.PreviousFrame()
	case key.Matches(msg, m.keys.NextFrame):
		s.NextFrame()
	case key.Matches(msg, m.keys.PrevSegment):
		if sel > 0 {
			err = s.SkipToSegment(sel - 1)
		}
	case key.Matches(msg, m.keys.NextSegment):
		if sel < s.Segments().Len()-1 {
			err = s.SkipToSegment(sel + 1)
		}
	case key.Matches(msg, m.keys.Split):
		if _, err = s.SplitAtPlayhead(); err == nil {
			m.status = "Split " + ordinal(sel) + " segment"
		}
	case key.Matches(msg, m.keys.Toggle):
		var l segments.List
		if l, err = s.ToggleAt(sel); err == nil {
			verb := "Restored "
			if l.Segments[sel].Deleted {
				verb = "Deleted "
			}
			m.status = verb + ordinal(sel) + " segment"
		}
	case key.Matches(msg, m.keys.Merge):
		if _, err = s.MergeAt(sel); err == nil {
			m.status = "Merged " + ordinal(sel) + " segment"
		}
	case key.Matches(msg, m.keys.StartEarlier):
		err = m.nudgeStart(sel, -BoundaryStep)
	case key.Matches(msg, m.keys.StartLater):
		err = m.nudgeStart(sel, BoundaryStep)
	case key.Matches(msg, m.keys.ZoomIn):
		s.SetZoomLevel(s.Timeline().ZoomLevel + zoomStep)
	case key.Matches(msg, m.keys.ZoomOut):
		s.SetZoomLevel(s.Timeline().ZoomLevel - zoomStep)
	case key.Matches(msg, m.keys.Preview):
		if s.TogglePreviewMode() {
			m.status = "Preview mode on: deleted segments are skipped"
		} else {
			m.status = "Preview mode off"
		}
	case key.Matches(msg, m.keys.Replay):
		err = s.ReplaySegment(sel)
	case key.Matches(msg, m.keys.Save):
		if m.saving {
			return m, nil
		}
		m.saving = true
		m.errorMsg = ""
		return m, tea.Batch(m.spinner.Tick, saveCmd(s, m.opts.Saver, m.opts.Workflow))
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	if err != nil {
		m.errorMsg = editError(err)
	} else {
		m.errorMsg = ""
	}
	s.Tick()
	return m, nil
}

// nudgeStart drags the start handle of segment i by delta ms.
func (m Model) nudgeStart(i int, delta int64) error {
	s := m.session
	l := s.Segments()
	if i < 0 || i >= l.Len() {
		return nil
	}
	if err := s.BeginBoundaryDrag(i, segments.EdgeStart); err != nil {
		return err
	}
	s.MoveDrag(l.Segments[i].Start + delta)
	_, err := s.EndDrag()
	return err
}

func ordinal(i int) string {
	return humanize.Ordinal(i + 1)
}

func editError(err error) string {
	var rejected *segments.RejectedError
	if errors.As(err, &rejected) {
		return "Can't " + rejected.Op + ": " + rejected.Reason
	}
	return err.Error()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(BulletStyle.Render("┌") + TitleStyle.Render(m.opts.Title) + "\n")

	if m.loading {
		b.WriteString(BulletStyle.Render("└") + m.spinner.View() + m.loadingMsg + "\n")
		return b.String()
	}
	if m.session == nil {
		b.WriteString(BulletStyle.Render("└") + ErrorStyle.Render(m.errorMsg) + "\n")
		return b.String()
	}

	s := m.session
	l := s.Segments()
	tl := s.Timeline()
	pos := s.Position()

	width := 64
	if m.width > 0 && m.width-4 < width {
		width = max(m.width-4, 20)
	}

	b.WriteString(BulletStyle.Render("│") + "\n")
	b.WriteString("  " + renderPlayhead(tl, pos, width) + "\n")
	b.WriteString("  " + renderBar(l, tl, width) + "\n")
	b.WriteString("  " + DimTextStyle.Render(rulerLabels(tl, width)) + "\n\n")

	b.WriteString(m.statusLine(pos, l.Duration, tl) + "\n\n")

	for i, seg := range l.Segments {
		line := fmt.Sprintf("%2d  %s - %s  %s", i+1,
			segments.FormatTime(seg.Start, true),
			segments.FormatTime(seg.End, true),
			timeline.DisplayZoomLevel(seg.Len()))
		if seg.Deleted {
			line += "  deleted"
		}
		if seg.Selected {
			b.WriteString(selectedItemStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(itemStyle.Render(line) + "\n")
		}
	}
	b.WriteString("\n")

	switch {
	case m.saving:
		b.WriteString(m.spinner.View() + "Saving...\n")
	case m.errorMsg != "":
		b.WriteString(ErrorStyle.Render(m.errorMsg) + "\n")
	case m.status != "":
		b.WriteString(SuccessStyle.Render(m.status) + "\n")
	default:
		b.WriteString("\n")
	}

	if !m.quitting {
		b.WriteString("\n" + m.help.View(m.keys) + "\n")
	}
	return b.String()
}

func (m Model) statusLine(pos, duration int64, tl timeline.Timeline) string {
	state := "paused"
	if m.clock.Status() == player.Playing {
		state = "playing"
	}
	preview := "off"
	if m.session.PreviewMode() {
		preview = "on"
	}
	return TextStyle.Render(fmt.Sprintf("  %s / %s", segments.FormatTime(pos, true), segments.FormatTime(duration, false))) +
		DimTextStyle.Render(fmt.Sprintf("  %s  zoom %s  preview %s", state, timeline.DisplayZoomLevel(int64(tl.ZoomValue)), preview))
}

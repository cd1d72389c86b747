// Command trim is the terminal segment editor for media served by the local
// Heimdex editor agent.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-editor/internal/client"
	"github.com/heimdex/heimdex-editor/internal/config"
	"github.com/heimdex/heimdex-editor/internal/logging"
	"github.com/heimdex/heimdex-editor/internal/segments"
	"github.com/heimdex/heimdex-editor/internal/tui"
)

var (
	serverURL string
	logFile   string
	workflow  string
	preview   bool
	noPrompt  bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, tui.BulletStyle.Render("└")+tui.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "trim",
		Short:         "Cut recordings served by a local Heimdex agent",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "Agent base URL")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "Write debug logs to this file")
	root.PersistentFlags().BoolVar(&noPrompt, "no-prompt", false, "Fail instead of asking for a token")

	edit := &cobra.Command{
		Use:   "edit <media-id>",
		Short: "Open the segment editor for a media item",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}
	edit.Flags().StringVar(&workflow, "workflow", "", "Workflow to start after saving (e.g. publish-edl, render-cut)")
	edit.Flags().BoolVar(&preview, "preview", true, "Skip deleted segments during playback")

	show := &cobra.Command{
		Use:   "show <media-id>",
		Short: "Print the saved segments of a media item",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Store the agent token in the system keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := newTokenSource(cmd.OutOrStdout()).Login()
			return err
		},
	}

	root.AddCommand(edit, show, login)
	return root
}

func defaultServer() string {
	if s := os.Getenv("HEIMDEX_SERVER"); s != "" {
		return s
	}
	return fmt.Sprintf("http://127.0.0.1:%d", config.DefaultPort)
}

func newLogger() (*slog.Logger, func(), error) {
	if logFile == "" {
		return logging.Discard(), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logging.NewLoggerTo(f, "debug"), func() { f.Close() }, nil
}

func newClient(out io.Writer, logger *slog.Logger) (*client.Client, error) {
	ts := newTokenSource(out)
	ts.noPrompt = noPrompt
	token, err := ts.Token()
	if err != nil {
		return nil, err
	}
	logger.Debug("using agent", "server", serverURL, "token", logging.SanitizeToken(token))
	return client.New(serverURL, token, logger), nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := newClient(cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	mediaID := args[0]
	title := mediaID
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	m, err := c.GetMedia(ctx, mediaID)
	cancel()
	if err != nil {
		return describe(err)
	}
	if m.Title != "" {
		title = m.Title
	}

	model := tui.New(tui.Options{
		MediaID:  mediaID,
		Title:    title,
		Loader:   c,
		Saver:    c,
		Workflow: workflow,
		Preview:  preview,
		Logger:   logger,
	})
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

func runShow(cmd *cobra.Command, args []string) error {
	logger, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	c, err := newClient(cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	m, err := c.GetMedia(ctx, args[0])
	if err != nil {
		return describe(err)
	}
	load, err := c.Load(ctx, args[0])
	if err != nil {
		return describe(err)
	}
	l, err := load.List()
	if err != nil {
		return err
	}

	printList(cmd.OutOrStdout(), m.Title, l)
	if len(load.Workflows) > 0 {
		names := make([]string, 0, len(load.Workflows))
		for _, w := range load.Workflows {
			names = append(names, w.ID)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.BulletStyle.Render("└")+tui.DimTextStyle.Render("Workflows: "+strings.Join(names, ", ")))
	}
	return nil
}

func printList(w io.Writer, title string, l segments.List) {
	fmt.Fprintln(w, tui.BulletStyle.Render("┌")+tui.TitleStyle.Render(title))
	fmt.Fprintln(w, tui.BulletStyle.Render("├")+tui.TextStyle.Render("Duration: "+segments.FormatTime(l.Duration, true)))
	for i, seg := range l.Segments {
		state := "kept"
		if seg.Deleted {
			state = "deleted"
		}
		line := fmt.Sprintf("%2d  %s - %s  %s", i+1,
			segments.FormatTime(seg.Start, true), segments.FormatTime(seg.End, true), state)
		style := tui.TextStyle
		if seg.Deleted {
			style = tui.DimTextStyle
		}
		fmt.Fprintln(w, tui.BulletStyle.Render("├────")+style.Render(line))
	}
}

// describe turns API failures into a short hint.
func describe(err error) error {
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) {
		return fmt.Errorf("agent unreachable at %s: %w", serverURL, err)
	}
	switch reqErr.StatusCode {
	case 401:
		return fmt.Errorf("the agent rejected the token, run 'trim login': %w", err)
	case 404:
		return fmt.Errorf("media not found: %w", err)
	}
	return err
}

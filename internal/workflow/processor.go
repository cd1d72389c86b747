// Package workflow runs the post-processing attached to a saved cut: an EDL
// for every workflow, plus an ffmpeg render of each track for render workflows.
package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/heimdex-editor/internal/catalog"
	"github.com/heimdex/heimdex-editor/internal/export"
	"github.com/heimdex/heimdex-editor/internal/render"
)

// Processor implements catalog.JobHandler.
type Processor struct {
	repo      catalog.Repository
	renderer  render.Renderer
	exportDir string
	logger    *slog.Logger
}

func NewProcessor(repo catalog.Repository, renderer render.Renderer, exportDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		repo:      repo,
		renderer:  renderer,
		exportDir: filepath.Clean(exportDir),
		logger:    logger,
	}
}

func (p *Processor) Handle(ctx context.Context, job *catalog.Job) error {
	cut, err := p.repo.GetCut(ctx, job.CutID)
	if err != nil {
		return fmt.Errorf("load cut %s: %w", job.CutID, err)
	}
	media, err := p.repo.GetMedia(ctx, cut.MediaID)
	if err != nil {
		return fmt.Errorf("load media %s: %w", cut.MediaID, err)
	}
	wf, err := p.repo.GetWorkflow(ctx, job.WorkflowID)
	if err != nil {
		return fmt.Errorf("load workflow %s: %w", job.WorkflowID, err)
	}

	tracks, err := cutTracks(media, cut)
	if err != nil {
		return err
	}

	clips := export.Consolidate(cut.Kept, export.MinClipMs)
	if len(clips) == 0 {
		return fmt.Errorf("no kept segment is longer than %d ms", export.MinClipMs)
	}
	if dropped := len(cut.Kept) - len(clips); dropped > 0 {
		p.logger.Info("consolidated clips", "job_id", job.ID, "kept", len(cut.Kept), "clips", len(clips))
	}

	if err := os.MkdirAll(p.exportDir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	edlPath, err := export.OutputPath(p.exportDir, media.ID, cut.ID, ".edl")
	if err != nil {
		return err
	}
	edl := export.GenerateEDL(export.ClipsFor(media.Title, tracks[0].Path, clips), media.Title, export.DefaultFrameRate)
	if err := os.WriteFile(edlPath, []byte(edl), 0644); err != nil {
		return fmt.Errorf("write edl: %w", err)
	}
	outputs := []string{edlPath}

	steps := 1
	if wf.Kind == catalog.WorkflowKindRender {
		steps += len(tracks)
	}
	p.repo.UpdateJobProgress(ctx, job.ID, 100/steps)

	if wf.Kind == catalog.WorkflowKindRender {
		for i, t := range tracks {
			out, err := export.OutputPath(p.exportDir, media.ID, renderName(cut.ID, t), filepath.Ext(t.Path))
			if err != nil {
				return err
			}
			res, err := p.renderer.Render(ctx, t.Path, clips, out)
			if err != nil {
				return fmt.Errorf("render %s: %w", t.Flavor, err)
			}
			if !res.IsSuccess() {
				return fmt.Errorf("render %s: ffmpeg exited %d: %s", t.Flavor, res.ExitCode, tail(res.StderrTail, 512))
			}
			outputs = append(outputs, out)
			p.repo.UpdateJobProgress(ctx, job.ID, (i+2)*100/steps)
		}
	}

	if err := p.repo.SetJobOutput(ctx, job.ID, strings.Join(outputs, "\n")); err != nil {
		return fmt.Errorf("record output: %w", err)
	}
	p.logger.Info("workflow finished", "job_id", job.ID, "workflow", wf.ID, "outputs", len(outputs),
		"runtime_ms", export.Total(clips))
	return nil
}

// cutTracks resolves the cut's track ids against the media, in cut order.
func cutTracks(m *catalog.Media, cut *catalog.Cut) ([]catalog.Track, error) {
	byID := make(map[string]catalog.Track, len(m.Tracks))
	for _, t := range m.Tracks {
		byID[t.ID] = t
	}
	var out []catalog.Track
	for _, id := range cut.Tracks {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("cut %s references unknown track %s", cut.ID, id)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("cut %s has no tracks", cut.ID)
	}
	return out, nil
}

func renderName(cutID string, t catalog.Track) string {
	return cutID + "-" + strings.ReplaceAll(t.Flavor, "/", "-")
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

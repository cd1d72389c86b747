// Package render cuts a source recording down to its kept ranges with an
// ffmpeg subprocess.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

var ErrNoClips = errors.New("nothing to render")

// Renderer produces a cut of a source file.
type Renderer interface {
	// Render writes the concatenation of clips of source to output.
	Render(ctx context.Context, source string, clips []segments.Range, output string) (RunResult, error)

	// Probe reports whether ffmpeg is usable and which version it is.
	Probe(ctx context.Context) (*Capabilities, error)
}

// RunResult is the structured outcome of an ffmpeg run.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	OutputPath string        `json:"output_path,omitempty"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// Capabilities is what a probe of the ffmpeg binary found.
type Capabilities struct {
	Available bool      `json:"available"`
	Path      string    `json:"path,omitempty"`
	Version   string    `json:"version,omitempty"`
	ProbedAt  time.Time `json:"probed_at"`
}

type Config struct {
	FFmpegPath string        // binary name or path, default "ffmpeg"
	Timeout    time.Duration // per render
	Logger     *slog.Logger
	DebugPaths bool // if true, log full file paths; otherwise sanitise
}

func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		FFmpegPath: "ffmpeg",
		Timeout:    2 * time.Hour,
		Logger:     logger,
	}
}

// FFmpeg is the subprocess implementation of Renderer.
type FFmpeg struct {
	cfg    Config
	binary string
}

// New resolves the ffmpeg binary. A missing binary is not an error: renders
// fail and Probe reports it unavailable.
func New(cfg Config) *FFmpeg {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Hour
	}
	binary, err := exec.LookPath(cfg.FFmpegPath)
	if err != nil {
		cfg.Logger.Warn("ffmpeg not found, renders will fail", "ffmpeg", cfg.FFmpegPath)
		binary = ""
	}
	return &FFmpeg{cfg: cfg, binary: binary}
}

func (f *FFmpeg) Render(ctx context.Context, source string, clips []segments.Range, output string) (RunResult, error) {
	if len(clips) == 0 {
		return RunResult{}, ErrNoClips
	}
	if f.binary == "" {
		return RunResult{}, fmt.Errorf("ffmpeg %q not found on PATH", f.cfg.FFmpegPath)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return RunResult{}, fmt.Errorf("cannot create output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	return f.exec(ctx, output, BuildArgs(source, clips, output)...), nil
}

func (f *FFmpeg) Probe(ctx context.Context) (*Capabilities, error) {
	caps := &Capabilities{ProbedAt: time.Now()}
	if f.binary == "" {
		return caps, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, f.binary, "-hide_banner", "-version").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -version: %w", err)
	}
	caps.Available = true
	caps.Path = f.binary
	caps.Version = parseVersion(string(out))
	return caps, nil
}

// parseVersion picks the version word from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}

// BuildArgs returns the ffmpeg arguments that trim each clip out of source and
// concatenate them, video and audio, into output.
func BuildArgs(source string, clips []segments.Range, output string) []string {
	var filters []string
	var inputs strings.Builder
	for i, c := range clips {
		start := seconds(c.Start)
		end := seconds(c.End)
		filters = append(filters,
			fmt.Sprintf("[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d]", start, end, i),
			fmt.Sprintf("[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]", start, end, i),
		)
		fmt.Fprintf(&inputs, "[v%d][a%d]", i, i)
	}
	filters = append(filters, fmt.Sprintf("%sconcat=n=%d:v=1:a=1[ov][oa]", inputs.String(), len(clips)))

	return []string{
		"-y", "-nostats", "-hide_banner",
		"-i", source,
		"-filter_complex", strings.Join(filters, ";"),
		"-map", "[ov]", "-map", "[oa]",
		output,
	}
}

func seconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

func (f *FFmpeg) exec(ctx context.Context, output string, args ...string) RunResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, f.binary, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	f.cfg.Logger.Info("executing ffmpeg", "output", f.safePath(output), "args", len(args))

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 {
		f.cfg.Logger.Warn("ffmpeg failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		f.cfg.Logger.Info("ffmpeg succeeded",
			"duration_ms", elapsed.Milliseconds(),
			"output", f.safePath(output),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: output,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func (f *FFmpeg) safePath(path string) string {
	if f.cfg.DebugPaths {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Base(path)
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return filepath.Base(path)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

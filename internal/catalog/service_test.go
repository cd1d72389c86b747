package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/heimdex/heimdex-editor/internal/db"
	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/segments"
)

func setupTestDB(t *testing.T) (*db.DB, Repository) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := db.New(dbPath, nil)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := NewRepository(database.Conn())
	return database, repo
}

func writeTrack(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("write track: %v", err)
	}
	return path
}

type fakeDispatcher struct {
	jobs []*Job
	err  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, job *Job) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func registerLecture(t *testing.T, svc *Service, tracks ...NewTrack) *Media {
	t.Helper()
	if len(tracks) == 0 {
		tracks = []NewTrack{{Flavor: "presenter/source", Path: writeTrack(t, "presenter.mp4")}}
	}
	m, err := svc.RegisterMedia(context.Background(), NewMedia{
		Title:      "Lecture 1",
		DurationMs: 100000,
		Tracks:     tracks,
	})
	if err != nil {
		t.Fatalf("RegisterMedia() error = %v", err)
	}
	return m
}

func TestService_RegisterMedia(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)

	m := registerLecture(t, svc)
	if m.ID == "" || len(m.Tracks) != 1 {
		t.Fatalf("unexpected media: %+v", m)
	}

	got, err := svc.GetMedia(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMedia() error = %v", err)
	}
	if got.Title != "Lecture 1" || got.DurationMs != 100000 {
		t.Errorf("GetMedia() = %+v", got)
	}
	if got.Tracks[0].Flavor != "presenter/source" {
		t.Errorf("track flavor = %s", got.Tracks[0].Flavor)
	}

	all, err := svc.ListMedia(context.Background())
	if err != nil || len(all) != 1 {
		t.Errorf("ListMedia() = %d items, err %v", len(all), err)
	}
}

func TestService_RegisterMedia_Invalid(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	file := writeTrack(t, "a.mp4")

	tests := []struct {
		name string
		in   NewMedia
	}{
		{"no title", NewMedia{DurationMs: 1000, Tracks: []NewTrack{{Flavor: "a/b", Path: file}}}},
		{"no duration", NewMedia{Title: "x", Tracks: []NewTrack{{Flavor: "a/b", Path: file}}}},
		{"no tracks", NewMedia{Title: "x", DurationMs: 1000}},
		{"missing file", NewMedia{Title: "x", DurationMs: 1000, Tracks: []NewTrack{{Flavor: "a/b", Path: "/does/not/exist.mp4"}}}},
		{"directory", NewMedia{Title: "x", DurationMs: 1000, Tracks: []NewTrack{{Flavor: "a/b", Path: t.TempDir()}}}},
		{"segment past end", NewMedia{Title: "x", DurationMs: 1000, Tracks: []NewTrack{{
			Flavor: "a/b", Path: file, Segments: []segments.Range{{Start: 0, End: 2000}},
		}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RegisterMedia(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidMedia) {
				t.Errorf("RegisterMedia() error = %v, want ErrInvalidMedia", err)
			}
		})
	}
}

func TestService_LoadEditor_Fresh(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	m := registerLecture(t, svc)

	resp, err := svc.LoadEditor(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("LoadEditor() error = %v", err)
	}
	if resp.Duration != 100000 {
		t.Errorf("Duration = %d", resp.Duration)
	}
	if len(resp.Segments) != 0 {
		t.Errorf("Segments = %v, want none", resp.Segments)
	}
	if len(resp.Workflows) != 2 {
		t.Errorf("Workflows = %v, want the two seeded ones", resp.Workflows)
	}
	if len(resp.Tracks) != 1 || resp.Tracks[0].URL != TrackURL(m.ID, m.Tracks[0].ID) {
		t.Errorf("Tracks = %+v", resp.Tracks)
	}
	if len(resp.Previews) != 1 || resp.Previews[0].URL != resp.Tracks[0].URL {
		t.Errorf("Previews = %+v", resp.Previews)
	}
}

func TestService_LoadEditor_IntersectsTrackSegments(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	m := registerLecture(t, svc,
		NewTrack{Flavor: "presenter/source", Path: writeTrack(t, "p.mp4"), Segments: []segments.Range{{Start: 0, End: 60000}}},
		NewTrack{Flavor: "presentation/source", Path: writeTrack(t, "s.mp4"), Segments: []segments.Range{{Start: 20000, End: 100000}}},
		NewTrack{Flavor: "presenter/preview", Path: writeTrack(t, "pv.mp4")},
	)

	resp, err := svc.LoadEditor(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("LoadEditor() error = %v", err)
	}
	want := []segments.Range{{Start: 20000, End: 60000}}
	if !reflect.DeepEqual(resp.Segments, want) {
		t.Errorf("Segments = %v, want %v", resp.Segments, want)
	}
	if len(resp.Previews) != 1 || !strings.HasSuffix(resp.Previews[0].URL, m.Tracks[2].ID+"/play") {
		t.Errorf("Previews = %+v, want the preview track", resp.Previews)
	}
}

func TestService_LoadEditor_NotFound(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)

	if _, err := svc.LoadEditor(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadEditor() error = %v, want ErrNotFound", err)
	}
}

func TestService_SaveThenLoad(t *testing.T) {
	_, repo := setupTestDB(t)
	dispatcher := &fakeDispatcher{}
	svc := NewService(repo, dispatcher, nil)
	m := registerLecture(t, svc)
	ctx := context.Background()

	l, err := segments.FromRanges(100000, []segments.Range{{Start: 10000, End: 90000}})
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Save(ctx, m.ID, editor.BuildSave(l, nil, "publish-edl"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.CutID == "" || res.JobID == "" {
		t.Fatalf("Save() = %+v, want cut and job ids", res)
	}

	if len(dispatcher.jobs) != 1 || dispatcher.jobs[0].Type != WorkflowKindEDL {
		t.Fatalf("dispatched = %+v", dispatcher.jobs)
	}
	job, err := svc.GetJob(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != JobStatusPending || job.CutID != res.CutID {
		t.Errorf("job = %+v", job)
	}

	cut, err := repo.GetCut(ctx, res.CutID)
	if err != nil {
		t.Fatalf("GetCut() error = %v", err)
	}
	if !reflect.DeepEqual(cut.Tracks, []string{m.Tracks[0].ID}) {
		t.Errorf("cut tracks = %v, want every media track", cut.Tracks)
	}

	resp, err := svc.LoadEditor(ctx, m.ID)
	if err != nil {
		t.Fatalf("LoadEditor() error = %v", err)
	}
	want := []segments.Range{{Start: 10000, End: 90000}}
	if !reflect.DeepEqual(resp.Segments, want) {
		t.Errorf("Segments after save = %v, want %v", resp.Segments, want)
	}
}

func TestService_SaveNothingDeletedLoadsAsNone(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	m := registerLecture(t, svc)
	ctx := context.Background()

	res, err := svc.Save(ctx, m.ID, editor.SaveRequest{})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.JobID != "" {
		t.Errorf("JobID = %q, want none without workflow", res.JobID)
	}

	resp, err := svc.LoadEditor(ctx, m.ID)
	if err != nil {
		t.Fatalf("LoadEditor() error = %v", err)
	}
	if resp.Segments != nil {
		t.Errorf("Segments = %v, want none for a whole-duration cut", resp.Segments)
	}
}

func TestService_SaveRejects(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	m := registerLecture(t, svc)

	tests := []struct {
		name string
		req  editor.SaveRequest
	}{
		{"everything deleted", editor.SaveRequest{Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 100000, Deleted: true}}}}},
		{"out of range", editor.SaveRequest{Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 200000, Deleted: true}}}}},
		{"unknown track", editor.SaveRequest{Concat: editor.Concat{Tracks: []string{"nope"}}}},
		{"unknown workflow", editor.SaveRequest{Workflow: "upload-to-moon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), m.ID, tt.req)
			if !errors.Is(err, editor.ErrInvalidSave) {
				t.Errorf("Save() error = %v, want ErrInvalidSave", err)
			}
		})
	}
}

func TestService_SaveDispatchFailureMarksJobFailed(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, &fakeDispatcher{err: errors.New("redis down")}, nil)
	m := registerLecture(t, svc)
	ctx := context.Background()

	res, err := svc.Save(ctx, m.ID, editor.SaveRequest{Workflow: "render-cut"})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	job, err := svc.GetJob(ctx, res.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != JobStatusFailed || !strings.Contains(job.Error, "redis down") {
		t.Errorf("job = %+v, want failed with dispatch error", job)
	}
}

func TestService_CutEDL(t *testing.T) {
	_, repo := setupTestDB(t)
	svc := NewService(repo, nil, nil)
	m := registerLecture(t, svc)
	ctx := context.Background()

	if _, err := svc.CutEDL(ctx, m.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("CutEDL() before save error = %v, want ErrNotFound", err)
	}

	req := editor.SaveRequest{Concat: editor.Concat{Segments: []editor.SaveSegment{{Start: 0, End: 10000, Deleted: true}}}}
	if _, err := svc.Save(ctx, m.ID, req); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	edl, err := svc.CutEDL(ctx, m.ID)
	if err != nil {
		t.Fatalf("CutEDL() error = %v", err)
	}
	if !strings.Contains(edl, "TITLE: Lecture 1") || !strings.Contains(edl, "00:00:10:00 00:01:40:00 00:00:00:00 00:01:30:00") {
		t.Errorf("unexpected EDL:\n%s", edl)
	}
}

func TestRepository_DeleteFinishedJobs(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	for _, j := range []*Job{
		{ID: "old-done", Type: WorkflowKindEDL, Status: JobStatusCompleted, CreatedAt: old, UpdatedAt: old},
		{ID: "old-pending", Type: WorkflowKindEDL, Status: JobStatusPending, CreatedAt: old, UpdatedAt: old},
		{ID: "new-done", Type: WorkflowKindEDL, Status: JobStatusFailed, CreatedAt: time.Now(), UpdatedAt: time.Now()},
	} {
		if err := repo.CreateJob(ctx, j); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
	}

	n, err := repo.DeleteFinishedJobs(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteFinishedJobs() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d jobs, want 1", n)
	}
	if _, err := repo.GetJob(ctx, "old-pending"); err != nil {
		t.Errorf("pending job should survive: %v", err)
	}
}

func TestRepository_Config(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	if v, err := repo.GetConfig(ctx, "missing"); err != nil || v != "" {
		t.Errorf("GetConfig(missing) = %q, %v", v, err)
	}
	repo.SetConfig(ctx, "k", "1")
	repo.SetConfig(ctx, "k", "2")
	if v, _ := repo.GetConfig(ctx, "k"); v != "2" {
		t.Errorf("GetConfig(k) = %q, want 2", v)
	}
}

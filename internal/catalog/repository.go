package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/heimdex/heimdex-editor/internal/segments"
)

type Repository interface {
	CreateMedia(ctx context.Context, m *Media) error
	GetMedia(ctx context.Context, id string) (*Media, error)
	ListMedia(ctx context.Context) ([]*Media, error)

	ListWorkflows(ctx context.Context) ([]*Workflow, error)
	GetWorkflow(ctx context.Context, id string) (*Workflow, error)

	CreateCut(ctx context.Context, c *Cut) error
	GetCut(ctx context.Context, id string) (*Cut, error)
	LatestCut(ctx context.Context, mediaID string) (*Cut, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error
	SetJobOutput(ctx context.Context, id, output string) error
	DeleteFinishedJobs(ctx context.Context, before time.Time) (int64, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateMedia(ctx context.Context, m *Media) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO media (id, title, duration_ms, created_at) VALUES (?, ?, ?, ?)
	`, m.ID, m.Title, m.DurationMs, m.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("insert media: %w", err)
	}

	for i, t := range m.Tracks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tracks (id, media_id, flavor, path, position) VALUES (?, ?, ?, ?, ?)
		`, t.ID, m.ID, t.Flavor, t.Path, i); err != nil {
			return fmt.Errorf("insert track %s: %w", t.ID, err)
		}
		for j, rg := range t.Segments {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO track_ranges (track_id, position, start_ms, end_ms) VALUES (?, ?, ?, ?)
			`, t.ID, j, rg.Start, rg.End); err != nil {
				return fmt.Errorf("insert track range: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetMedia(ctx context.Context, id string) (*Media, error) {
	var m Media
	var createdAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, duration_ms, created_at FROM media WHERE id = ?
	`, id).Scan(&m.ID, &m.Title, &m.DurationMs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if m.Tracks, err = r.tracks(ctx, m.ID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepository) tracks(ctx context.Context, mediaID string) ([]Track, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, media_id, flavor, path FROM tracks WHERE media_id = ? ORDER BY position
	`, mediaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []Track
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.MediaID, &t.Flavor, &t.Path); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range tracks {
		tracks[i].Segments, err = r.ranges(ctx,
			`SELECT start_ms, end_ms FROM track_ranges WHERE track_id = ? ORDER BY position`, tracks[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return tracks, nil
}

func (r *SQLiteRepository) ranges(ctx context.Context, query string, arg string) ([]segments.Range, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []segments.Range
	for rows.Next() {
		var rg segments.Range
		if err := rows.Scan(&rg.Start, &rg.End); err != nil {
			return nil, err
		}
		out = append(out, rg)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListMedia(ctx context.Context) ([]*Media, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM media ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	media := make([]*Media, 0, len(ids))
	for _, id := range ids {
		m, err := r.GetMedia(ctx, id)
		if err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, nil
}

func (r *SQLiteRepository) ListWorkflows(ctx context.Context) ([]*Workflow, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM workflows ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		var w Workflow
		if err := rows.Scan(&w.ID, &w.Name, &w.Kind); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var w Workflow
	err := r.db.QueryRowContext(ctx, `SELECT id, name, kind FROM workflows WHERE id = ?`, id).
		Scan(&w.ID, &w.Name, &w.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *SQLiteRepository) CreateCut(ctx context.Context, c *Cut) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cuts (id, media_id, workflow_id, created_at) VALUES (?, ?, ?, ?)
	`, c.ID, c.MediaID, nullString(c.WorkflowID), c.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("insert cut: %w", err)
	}
	for i, id := range c.Tracks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cut_tracks (cut_id, track_id, position) VALUES (?, ?, ?)
		`, c.ID, id, i); err != nil {
			return fmt.Errorf("insert cut track: %w", err)
		}
	}
	for i, rg := range c.Kept {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cut_ranges (cut_id, position, start_ms, end_ms) VALUES (?, ?, ?, ?)
		`, c.ID, i, rg.Start, rg.End); err != nil {
			return fmt.Errorf("insert cut range: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetCut(ctx context.Context, id string) (*Cut, error) {
	return r.scanCut(ctx, r.db.QueryRowContext(ctx, `
		SELECT id, media_id, workflow_id, created_at FROM cuts WHERE id = ?
	`, id))
}

func (r *SQLiteRepository) LatestCut(ctx context.Context, mediaID string) (*Cut, error) {
	return r.scanCut(ctx, r.db.QueryRowContext(ctx, `
		SELECT id, media_id, workflow_id, created_at FROM cuts
		WHERE media_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1
	`, mediaID))
}

func (r *SQLiteRepository) scanCut(ctx context.Context, row *sql.Row) (*Cut, error) {
	var c Cut
	var workflowID sql.NullString
	var createdAt string
	err := row.Scan(&c.ID, &c.MediaID, &workflowID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.WorkflowID = workflowID.String
	c.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	rows, err := r.db.QueryContext(ctx, `SELECT track_id FROM cut_tracks WHERE cut_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		c.Tracks = append(c.Tracks, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.Kept, err = r.ranges(ctx, `SELECT start_ms, end_ms FROM cut_ranges WHERE cut_id = ? ORDER BY position`, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, media_id, cut_id, workflow_id, progress, output, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.MediaID), nullString(j.CutID), nullString(j.WorkflowID),
		j.Progress, nullString(j.Output), nullString(j.Error),
		j.CreatedAt.UTC().Format(time.RFC3339), j.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

const jobColumns = `id, type, status, media_id, cut_id, workflow_id, progress, output, error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var mediaID, cutID, workflowID, output, errMsg sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&j.ID, &j.Type, &j.Status, &mediaID, &cutID, &workflowID,
		&j.Progress, &output, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.MediaID = mediaID.String
	j.CutID = cutID.String
	j.WorkflowID = workflowID.String
	j.Output = output.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

// parseTime accepts both RFC 3339 and sqlite's datetime('now') layout.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return j, err
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC
	`, JobStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) SetJobOutput(ctx context.Context, id, output string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET output = ?, updated_at = ? WHERE id = ?
	`, output, time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// DeleteFinishedJobs removes completed and failed jobs last updated before the cutoff.
func (r *SQLiteRepository) DeleteFinishedJobs(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?
	`, JobStatusCompleted, JobStatusFailed, before.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

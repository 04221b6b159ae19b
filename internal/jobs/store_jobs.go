package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, audio_url, image_url, profile, state, failure_kind, error_message, work_dir, output_path, output_digest, audio_duration, word_count, cue_count, overlay, language, created_at, updated_at, started_at, finished_at"

// Create inserts a new job. ID, URLs, and profile must already be set; the
// state is forced to created.
func (s *Store) Create(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("job id is required")
	}
	now := time.Now().UTC()
	job.State = StateCreated
	job.CreatedAt = now
	job.UpdatedAt = now
	timestamp := now.Format(timeLayout)

	if _, err := s.exec(
		ctx,
		`INSERT INTO jobs (id, audio_url, image_url, profile, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.AudioURL,
		job.ImageURL,
		string(job.Profile),
		string(job.State),
		timestamp,
		timestamp,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by identifier. A missing job returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(orBackground(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.exec(
		ctx,
		`UPDATE jobs
         SET state = ?, failure_kind = ?, error_message = ?, work_dir = ?, output_path = ?,
             output_digest = ?, audio_duration = ?, word_count = ?, cue_count = ?, overlay = ?, language = ?,
             updated_at = ?, started_at = ?, finished_at = ?
         WHERE id = ?`,
		string(job.State),
		nullableString(string(job.FailureKind)),
		nullableString(job.ErrorMessage),
		nullableString(job.WorkDir),
		nullableString(job.OutputPath),
		nullableString(job.OutputDigest),
		job.AudioDuration,
		job.WordCount,
		job.CueCount,
		nullableString(job.Overlay),
		nullableString(job.Language),
		job.UpdatedAt.Format(timeLayout),
		nullableTime(job.StartedAt),
		nullableTime(job.FinishedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update job: %s not found", job.ID)
	}
	return nil
}

// List returns jobs filtered by state set (or all jobs when no state is
// provided), newest first.
func (s *Store) List(ctx context.Context, states ...State) ([]*Job, error) {
	ctx = orBackground(ctx)
	var (
		rows *sql.Rows
		err  error
	)
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at DESC`
	if len(states) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		args := make([]any, len(states))
		for i, state := range states {
			args[i] = string(state)
		}
		query := baseQuery + ` WHERE state IN (` + makePlaceholders(len(states)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// FailInterrupted marks every non-terminal job failed. It runs at daemon
// start so jobs orphaned by a crash report a terminal state instead of
// appearing to run forever.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.exec(
		ctx,
		`UPDATE jobs SET state = ?, failure_kind = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE state NOT IN (?, ?)`,
		string(StateFailed),
		string(FailureResource),
		DaemonStopReason,
		now,
		now,
		string(StateCompleted),
		string(StateFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// FinishedBefore returns terminal jobs whose finish time precedes cutoff.
func (s *Store) FinishedBefore(ctx context.Context, cutoff time.Time) ([]*Job, error) {
	rows, err := s.db.QueryContext(
		orBackground(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE state IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ? ORDER BY finished_at`,
		string(StateCompleted),
		string(StateFailed),
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("query finished jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns job counts per state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(orBackground(ctx), `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var (
			state string
			count int
		)
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[State(state)] = count
	}
	return stats, rows.Err()
}

package jobs

import (
	"database/sql"
	"strings"
	"time"
)

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id            string
		audioURL      string
		imageURL      string
		profile       string
		state         string
		failureKind   sql.NullString
		errorMessage  sql.NullString
		workDir       sql.NullString
		outputPath    sql.NullString
		outputDigest  sql.NullString
		audioDuration sql.NullFloat64
		wordCount     sql.NullInt64
		cueCount      sql.NullInt64
		overlay       sql.NullString
		language      sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
		startedRaw    sql.NullString
		finishedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&audioURL,
		&imageURL,
		&profile,
		&state,
		&failureKind,
		&errorMessage,
		&workDir,
		&outputPath,
		&outputDigest,
		&audioDuration,
		&wordCount,
		&cueCount,
		&overlay,
		&language,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:            id,
		AudioURL:      audioURL,
		ImageURL:      imageURL,
		Profile:       Profile(profile),
		State:         State(state),
		FailureKind:   FailureKind(failureKind.String),
		ErrorMessage:  errorMessage.String,
		WorkDir:       workDir.String,
		OutputPath:    outputPath.String,
		OutputDigest:  outputDigest.String,
		AudioDuration: audioDuration.Float64,
		WordCount:     int(wordCount.Int64),
		CueCount:      int(cueCount.Int64),
		Overlay:       overlay.String,
		Language:      language.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = &finished
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// timeLayout keeps a fixed fractional width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

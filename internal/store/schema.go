package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Migrate ensures the tables and constraints the application relies on.
// Column names mirror the legacy schema (MOT, timeslot, gmail, sem) so
// existing data and exports keep working; the unique submission index and
// the session_id column are the two hardenings on top of it.
func Migrate(ctx context.Context, db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS students (
		id          SERIAL PRIMARY KEY,
		student_id  TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		email       TEXT NOT NULL UNIQUE,
		department  TEXT NOT NULL,
		division    TEXT NOT NULL,
		semester    INT  NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS teachers (
		id         SERIAL PRIMARY KEY,
		full_name  TEXT NOT NULL,
		email      TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		id              SERIAL PRIMARY KEY,
		mot             TEXT NOT NULL,
		timeslot        TEXT NOT NULL,
		dept            TEXT NOT NULL,
		division        TEXT NOT NULL,
		subject         TEXT NOT NULL,
		faculty_name    TEXT NOT NULL,
		sem             INT  NOT NULL,
		date            TEXT NOT NULL,
		student_id      TEXT NOT NULL,
		selfie          TEXT NOT NULL,
		gmail           TEXT NOT NULL,
		session_id      TEXT,
		attendance_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uniq_submission_per_session
		ON attendance_records (mot, timeslot, dept, division, subject, date, student_id);

	CREATE INDEX IF NOT EXISTS idx_attendance_subject_date
		ON attendance_records (subject, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_time
		ON attendance_records (attendance_time);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

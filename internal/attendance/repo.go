package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// InsertRecord appends one submission. The unique index over
// (mot, timeslot, dept, division, subject, date, student_id) is the
// arbiter for concurrent duplicates; a violation surfaces as the
// already-submitted conflict and nothing is written.
func (r *Repository) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	var sessionID any
	if rec.SessionID != "" {
		sessionID = rec.SessionID
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(mot, timeslot, dept, division, subject, faculty_name, sem, date, student_id, selfie, gmail, session_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, attendance_time
	`, rec.MOT, rec.TimeSlot, rec.Dept, rec.Division, rec.Subject, rec.FacultyName,
		rec.Semester, rec.Date, rec.StudentID, rec.Selfie, rec.Email, sessionID)
	if err := row.Scan(&rec.ID, &rec.AttendanceTime); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, apperr.New(apperr.Conflict, "Attendance already submitted for this session")
		}
		return Record{}, err
	}
	return rec, nil
}

// liveWhere builds the conjunctive filter for live-count queries.
// Department is uppercased and lecture type lowercased before comparison,
// matching how submissions are stored.
func liveWhere(f LiveFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Subject != "" {
		add("subject = $%d", f.Subject)
	}
	if f.Dept != "" {
		add("dept = $%d", strings.ToUpper(f.Dept))
	}
	if f.Division != "" {
		add("division = $%d", f.Division)
	}
	if f.Date != "" {
		add("date = $%d", f.Date)
	}
	if f.LectureType != "" {
		add("mot = $%d", strings.ToLower(f.LectureType))
	}
	if f.TimeSlot != "" {
		add("timeslot = $%d", f.TimeSlot)
	}
	if f.Semester != "" {
		add("sem = $%d", f.Semester)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// CountSummary returns the row count, distinct-student count and
// distinct-subject count under the filters.
func (r *Repository) CountSummary(ctx context.Context, f LiveFilters) (total, unique, subjects int, err error) {
	where, args := liveWhere(f)
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT student_id), COUNT(DISTINCT subject)
		FROM attendance_records`+where, args...).Scan(&total, &unique, &subjects)
	return total, unique, subjects, err
}

// Recent returns the latest submissions under the filters, newest first.
func (r *Repository) Recent(ctx context.Context, f LiveFilters, limit int) ([]RecentEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	where, args := liveWhere(f)
	args = append(args, limit)
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT student_id, gmail, attendance_time, mot, timeslot
		FROM attendance_records%s
		ORDER BY attendance_time DESC
		LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RecentEntry
	for rows.Next() {
		var e RecentEntry
		if err := rows.Scan(&e.StudentID, &e.Email, &e.AttendanceTime, &e.MOT, &e.TimeSlot); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeptBreakdown groups submission counts by department, largest first.
func (r *Repository) DeptBreakdown(ctx context.Context, f LiveFilters) ([]DeptCount, error) {
	where, args := liveWhere(f)
	rows, err := r.db.QueryContext(ctx, `
		SELECT dept, COUNT(*) AS count
		FROM attendance_records`+where+`
		GROUP BY dept
		ORDER BY count DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []DeptCount
	for rows.Next() {
		var dc DeptCount
		if err := rows.Scan(&dc.Dept, &dc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

// recordWhere builds the filter for the class-records listing and bulk
// delete. Subject is a substring match there, unlike the live view.
func recordWhere(f RecordFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, val any) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Dept != "" {
		add("dept = $%d", strings.ToUpper(f.Dept))
	}
	if f.Date != "" {
		add("date = $%d", f.Date)
	}
	if f.Division != "" {
		add("division = $%d", f.Division)
	}
	if f.TimeSlot != "" {
		add("timeslot = $%d", f.TimeSlot)
	}
	if f.Semester != "" {
		add("sem = $%d", f.Semester)
	}
	if f.SubjectLike != "" {
		add("subject LIKE $%d", "%"+f.SubjectLike+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ListRecords returns full records under the filters, newest first.
func (r *Repository) ListRecords(ctx context.Context, f RecordFilters) ([]Record, error) {
	where, args := recordWhere(f)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mot, timeslot, dept, division, subject, faculty_name, sem, date,
		       student_id, selfie, gmail, COALESCE(session_id, ''), attendance_time
		FROM attendance_records`+where+`
		ORDER BY attendance_time DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.MOT, &rec.TimeSlot, &rec.Dept, &rec.Division,
			&rec.Subject, &rec.FacultyName, &rec.Semester, &rec.Date,
			&rec.StudentID, &rec.Selfie, &rec.Email, &rec.SessionID, &rec.AttendanceTime); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecordDeptBreakdown groups record counts by department, largest first.
func (r *Repository) RecordDeptBreakdown(ctx context.Context, f RecordFilters) ([]DeptCount, error) {
	where, args := recordWhere(f)
	rows, err := r.db.QueryContext(ctx, `
		SELECT dept, COUNT(*) AS count
		FROM attendance_records`+where+`
		GROUP BY dept
		ORDER BY count DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []DeptCount
	for rows.Next() {
		var dc DeptCount
		if err := rows.Scan(&dc.Dept, &dc.Count); err != nil {
			return nil, err
		}
		counts = append(counts, dc)
	}
	return counts, rows.Err()
}

// RecordSummary returns aggregate counts for a class-records view.
func (r *Repository) RecordSummary(ctx context.Context, f RecordFilters) (total, unique, subjects int, err error) {
	where, args := recordWhere(f)
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT student_id), COUNT(DISTINCT subject)
		FROM attendance_records`+where, args...).Scan(&total, &unique, &subjects)
	return total, unique, subjects, err
}

// GetRecordIdentity fetches the fields echoed back on deletion.
func (r *Repository) GetRecordIdentity(ctx context.Context, id int) (*DeletedRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, student_id, subject, date FROM attendance_records WHERE id = $1`, id)
	var d DeletedRecord
	err := row.Scan(&d.ID, &d.StudentID, &d.Subject, &d.Date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteRecord removes a single record.
func (r *Repository) DeleteRecord(ctx context.Context, id int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "Attendance record not found")
	}
	return nil
}

// BulkDelete removes every record matching the filters and reports how
// many rows went away.
func (r *Repository) BulkDelete(ctx context.Context, f RecordFilters) (int64, error) {
	where, args := recordWhere(f)
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance_records`+where, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

package roster

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
)

// Student is a roster entry.
type Student struct {
	ID         int       `json:"id"`
	StudentID  string    `json:"student_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	Division   string    `json:"division"`
	Semester   int       `json:"semester"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Teacher is a faculty account. The password hash never leaves this package.
type Teacher struct {
	ID       int    `json:"id"`
	FullName string `json:"name"`
	Email    string `json:"email"`
}

// DeptCount is a per-department student tally.
type DeptCount struct {
	Department string `json:"department"`
	Count      int    `json:"count"`
}

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// uniqueViolation maps a Postgres 23505 to a Conflict error. The
// constraint decides whether the id or the email collided, so a racing
// insert surfaces the same answer as the pre-check.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.New(apperr.Conflict, "Student ID or email already exists")
	}
	return nil
}

// InsertStudent writes a new student and returns the row id.
func (r *Repository) InsertStudent(ctx context.Context, st Student) (int, error) {
	var id int
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO students (student_id, name, email, department, division, semester)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, st.StudentID, st.Name, st.Email, st.Department, st.Division, st.Semester).Scan(&id)
	if err != nil {
		if conflict := uniqueViolation(err); conflict != nil {
			return 0, conflict
		}
		return 0, err
	}
	return id, nil
}

// StudentExists reports whether a student with the id or email is present.
func (r *Repository) StudentExists(ctx context.Context, studentID, email string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM students WHERE student_id = $1 OR email = $2 LIMIT 1`,
		studentID, email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// GetStudent returns a student by canonical student id, nil when absent.
func (r *Repository) GetStudent(ctx context.Context, studentID string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, student_id, name, email, department, division, semester, is_active, created_at, updated_at
		FROM students WHERE student_id = $1
	`, studentID)
	var st Student
	err := row.Scan(&st.ID, &st.StudentID, &st.Name, &st.Email, &st.Department,
		&st.Division, &st.Semester, &st.IsActive, &st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteStudent hard-deletes a student row.
func (r *Repository) DeleteStudent(ctx context.Context, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE student_id = $1`, studentID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "Student not found")
	}
	return nil
}

// ListStudents returns all roster entries.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, name, email, department, division, semester, is_active, created_at, updated_at
		FROM students
		ORDER BY student_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.StudentID, &st.Name, &st.Email, &st.Department,
			&st.Division, &st.Semester, &st.IsActive, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// CountStudents returns the roster size and a per-department breakdown.
func (r *Repository) CountStudents(ctx context.Context) (int, []DeptCount, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&total); err != nil {
		return 0, nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT department, COUNT(*) FROM students GROUP BY department`)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var counts []DeptCount
	for rows.Next() {
		var dc DeptCount
		if err := rows.Scan(&dc.Department, &dc.Count); err != nil {
			return 0, nil, err
		}
		counts = append(counts, dc)
	}
	return total, counts, rows.Err()
}

// EligibleCount counts active students in a cohort. The stored division
// is matched against the raw input OR its normalized form because
// divisions were written inconsistently across admin imports.
func (r *Repository) EligibleCount(ctx context.Context, dept string, semester int, rawDivision, normDivision string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM students
		WHERE is_active AND department = $1 AND semester = $2
		  AND (division = $3 OR division = $4)
	`, dept, semester, rawDivision, normDivision).Scan(&count)
	return count, err
}

// InsertTeacher writes a teacher account with a pre-hashed password.
func (r *Repository) InsertTeacher(ctx context.Context, fullName, email, passwordHash string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (full_name, email, password) VALUES ($1, $2, $3)
	`, fullName, email, passwordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.New(apperr.Conflict, "Teacher email already exists")
		}
	}
	return err
}

// GetTeacherByEmail returns the account and its password hash, nil when absent.
func (r *Repository) GetTeacherByEmail(ctx context.Context, email string) (*Teacher, string, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, email, password FROM teachers WHERE email = $1 LIMIT 1`, email)
	var t Teacher
	var hash string
	err := row.Scan(&t.ID, &t.FullName, &t.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return &t, hash, nil
}

// DeleteTeacher removes a teacher account by email.
func (r *Repository) DeleteTeacher(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teachers WHERE email = $1`, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.New(apperr.NotFound, "Teacher not found")
	}
	return nil
}

// CountTeachers returns the number of teacher accounts.
func (r *Repository) CountTeachers(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM teachers`).Scan(&count)
	return count, err
}

package roster

import (
	"context"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/identity"
)

// Store is the persistence surface the service needs. *Repository
// implements it.
type Store interface {
	InsertStudent(ctx context.Context, st Student) (int, error)
	StudentExists(ctx context.Context, studentID, email string) (bool, error)
	GetStudent(ctx context.Context, studentID string) (*Student, error)
	DeleteStudent(ctx context.Context, studentID string) error
	ListStudents(ctx context.Context) ([]Student, error)
	CountStudents(ctx context.Context) (int, []DeptCount, error)
	EligibleCount(ctx context.Context, dept string, semester int, rawDivision, normDivision string) (int, error)
	InsertTeacher(ctx context.Context, fullName, email, passwordHash string) error
	GetTeacherByEmail(ctx context.Context, email string) (*Teacher, string, error)
	DeleteTeacher(ctx context.Context, email string) error
	CountTeachers(ctx context.Context) (int, error)
}

// Service owns roster validation and password handling.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// AddStudentInput is the admin form for a new student.
type AddStudentInput struct {
	StudentID  string `json:"student_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	Division   string `json:"division"`
	Semester   int    `json:"semester"`
}

// AddStudent validates and inserts a roster entry. Validation order:
// required fields, department, semester, email, student-id format,
// diploma/semester rule, uniqueness. A race between the uniqueness
// pre-check and the insert is caught by the store's unique constraints.
func (s *Service) AddStudent(ctx context.Context, in AddStudentInput) (int, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"student_id", in.StudentID},
		{"name", in.Name},
		{"email", in.Email},
		{"department", in.Department},
		{"division", in.Division},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if in.Semester == 0 {
		missing = append(missing, "semester")
	}
	if len(missing) > 0 {
		return 0, apperr.MissingFields(missing)
	}

	if !identity.ValidDepartment(in.Department) {
		return 0, apperr.New(apperr.Validation, "Invalid department")
	}
	if in.Semester < 1 || in.Semester > 8 {
		return 0, apperr.New(apperr.Validation, "Invalid semester (1-8)")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return 0, apperr.New(apperr.Validation, "Invalid email format")
	}
	if !strings.HasSuffix(email, identity.EmailDomain) {
		return 0, apperr.New(apperr.Validation, "Email must belong to "+identity.EmailDomain[1:])
	}
	id, err := identity.ParseStudentID(in.StudentID)
	if err != nil {
		return 0, err
	}
	if id.IsDiploma && (in.Semester == 1 || in.Semester == 2) {
		return 0, apperr.New(apperr.Validation, "Diploma students cannot be in semester 1 or 2")
	}

	exists, err := s.store.StudentExists(ctx, id.Canonical, email)
	if err != nil {
		return 0, apperr.Wrap(apperr.Store, "failed to check student", err)
	}
	if exists {
		return 0, apperr.New(apperr.Conflict, "Student ID or email already exists")
	}

	return s.store.InsertStudent(ctx, Student{
		StudentID:  id.Canonical,
		Name:       strings.TrimSpace(in.Name),
		Email:      email,
		Department: in.Department,
		Division:   strings.TrimSpace(in.Division),
		Semester:   in.Semester,
	})
}

// RemovedStudent identifies a hard-deleted student for confirmation
// messaging.
type RemovedStudent struct {
	Name  string `json:"student_name"`
	Email string `json:"student_email"`
}

// RemoveStudent hard-deletes a student and returns the deleted identity.
func (s *Service) RemoveStudent(ctx context.Context, studentID string) (RemovedStudent, error) {
	studentID = strings.ToLower(strings.TrimSpace(studentID))
	if studentID == "" {
		return RemovedStudent{}, apperr.New(apperr.Validation, "Student ID is required")
	}
	st, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return RemovedStudent{}, apperr.Wrap(apperr.Store, "failed to load student", err)
	}
	if st == nil {
		return RemovedStudent{}, apperr.New(apperr.NotFound, "Student not found")
	}
	if err := s.store.DeleteStudent(ctx, studentID); err != nil {
		return RemovedStudent{}, err
	}
	return RemovedStudent{Name: st.Name, Email: st.Email}, nil
}

// ListStudents returns the full roster.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// CountStudents returns the roster size with a per-department breakdown.
func (s *Service) CountStudents(ctx context.Context) (int, []DeptCount, error) {
	return s.store.CountStudents(ctx)
}

// EligibleCount counts active students matching a session's cohort.
// The stored division may be either the raw form ("IT 1") or the
// normalized form ("1"); both match.
func (s *Service) EligibleCount(ctx context.Context, dept string, semester int, division string) (int, error) {
	return s.store.EligibleCount(ctx, dept, semester, division, identity.NormalizeDivision(division))
}

// AddTeacher creates a faculty account. The password is stored only as a
// bcrypt hash.
func (s *Service) AddTeacher(ctx context.Context, fullName, email, password string) error {
	fullName = strings.TrimSpace(fullName)
	email = strings.ToLower(strings.TrimSpace(email))
	if fullName == "" || email == "" || password == "" {
		return apperr.New(apperr.Validation, "Missing required fields")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.New(apperr.Validation, "Invalid email")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Wrap(apperr.Store, "failed to hash password", err)
	}
	return s.store.InsertTeacher(ctx, fullName, email, string(hash))
}

// RemoveTeacher deletes a faculty account by email.
func (s *Service) RemoveTeacher(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return apperr.New(apperr.Validation, "Valid email required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperr.New(apperr.Validation, "Valid email required")
	}
	return s.store.DeleteTeacher(ctx, email)
}

// Login verifies teacher credentials. The answer is identical for an
// unknown email and a wrong password so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (Teacher, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Teacher{}, apperr.New(apperr.Validation, "Missing email or password")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return Teacher{}, apperr.New(apperr.Validation, "Invalid email format")
	}
	t, hash, err := s.store.GetTeacherByEmail(ctx, email)
	if err != nil {
		return Teacher{}, apperr.Wrap(apperr.Store, "login failed", err)
	}
	if t == nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return Teacher{}, apperr.New(apperr.Auth, "Invalid email or password")
	}
	return *t, nil
}

// CountTeachers returns the number of faculty accounts.
func (s *Service) CountTeachers(ctx context.Context) (int, error) {
	return s.store.CountTeachers(ctx)
}

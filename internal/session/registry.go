package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/identity"
)

// Session status values.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// LectureSlots are the valid time slots for lectures and tutorials.
var LectureSlots = []string{
	"9:10 to 10:10",
	"10:10 to 11:10",
	"12:10 to 1:10",
	"1:10 to 2:10",
	"2:20 to 3:20",
	"3:20 to 4:20",
}

// LabSlots are the valid time slots for labs.
var LabSlots = []string{
	"9:10 to 11:10",
	"12:10 to 2:10",
	"2:20 to 4:20",
}

// Attrs is the teacher-supplied session form. All fields arrive as
// strings, matching the creation form.
type Attrs struct {
	Subject     string
	Department  string
	Division    string
	Semester    string
	LectureType string
	TimeSlot    string
	Classroom   string
	Date        string // YYYY-MM-DD, defaults to today
	FacultyName string
}

// Session is a created attendance session. The attribute tuple is
// immutable once created; only Status may change.
type Session struct {
	ID             string    `json:"sessionId"`
	Subject        string    `json:"subject"`
	Department     string    `json:"department"`
	Division       string    `json:"division"`
	Semester       int       `json:"semester"`
	LectureType    string    `json:"lectureType"`
	TimeSlot       string    `json:"timeSlot"`
	Classroom      string    `json:"classroom"`
	Date           string    `json:"date"`
	FacultyName    string    `json:"faculty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	AttendanceLink string    `json:"attendanceLink"`
}

// Store persists sessions for their lifetime.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (Session, bool, error)
	// Update rewrites a session without touching its remaining lifetime.
	Update(ctx context.Context, s Session) error
}

// Registry creates and looks up attendance sessions.
type Registry struct {
	store   Store
	baseURL string
	grace   time.Duration
	now     func() time.Time
}

// NewRegistry builds a registry. grace extends a session's lifetime past
// the end of its calendar date.
func NewRegistry(store Store, baseURL string, grace time.Duration) *Registry {
	if grace <= 0 {
		grace = 2 * time.Hour
	}
	return &Registry{store: store, baseURL: baseURL, grace: grace, now: time.Now}
}

// SlotsFor returns the valid time-slot set for a lecture type. Tutorials
// follow the lecture timetable.
func SlotsFor(lectureType string) []string {
	if lectureType == "lab" {
		return LabSlots
	}
	return LectureSlots
}

func validSlot(lectureType, slot string) bool {
	for _, s := range SlotsFor(lectureType) {
		if s == slot {
			return true
		}
	}
	return false
}

// Create validates the attributes, mints an opaque session id and
// persists the session until the end of its date plus the grace window.
func (r *Registry) Create(ctx context.Context, attrs Attrs) (Session, error) {
	if attrs.Date == "" {
		attrs.Date = r.now().Format("2006-01-02")
	}
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"subject", attrs.Subject},
		{"department", attrs.Department},
		{"division", attrs.Division},
		{"semester", attrs.Semester},
		{"lectureType", attrs.LectureType},
		{"timeSlot", attrs.TimeSlot},
		{"faculty", attrs.FacultyName},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Session{}, apperr.MissingFields(missing)
	}

	if !identity.ValidDepartment(attrs.Department) {
		return Session{}, apperr.New(apperr.Validation, "Invalid department")
	}
	switch attrs.LectureType {
	case "lecture", "lab", "tutorial":
	default:
		return Session{}, apperr.New(apperr.Validation, "Invalid lecture type")
	}
	sem, err := strconv.Atoi(attrs.Semester)
	if err != nil || sem < 1 || sem > 8 {
		return Session{}, apperr.New(apperr.Validation, "Invalid semester (1-8)")
	}
	day, err := time.Parse("2006-01-02", attrs.Date)
	if err != nil {
		return Session{}, apperr.New(apperr.Validation, "Invalid date format")
	}
	if !validSlot(attrs.LectureType, attrs.TimeSlot) {
		return Session{}, apperr.Newf(apperr.Validation,
			"Invalid time slot %q for %s", attrs.TimeSlot, attrs.LectureType)
	}

	id, err := newSessionID()
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Store, "session id generation failed", err)
	}

	s := Session{
		ID:          id,
		Subject:     attrs.Subject,
		Department:  attrs.Department,
		Division:    attrs.Division,
		Semester:    sem,
		LectureType: attrs.LectureType,
		TimeSlot:    attrs.TimeSlot,
		Classroom:   attrs.Classroom,
		Date:        attrs.Date,
		FacultyName: attrs.FacultyName,
		Status:      StatusActive,
		CreatedAt:   r.now().UTC(),
	}
	s.AttendanceLink = r.link(s)

	ttl := time.Until(day.Add(24 * time.Hour).Add(r.grace))
	if ttl < r.grace {
		ttl = r.grace
	}
	if err := r.store.Save(ctx, s, ttl); err != nil {
		return Session{}, apperr.Wrap(apperr.Store, "failed to save session", err)
	}
	return s, nil
}

// Get looks up a session by id.
func (r *Registry) Get(ctx context.Context, id string) (Session, error) {
	s, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Store, "failed to load session", err)
	}
	if !ok {
		return Session{}, apperr.New(apperr.NotFound, "session not found")
	}
	return s, nil
}

// Close marks a session closed; closed sessions reject new submissions.
func (r *Registry) Close(ctx context.Context, id string) (Session, error) {
	s, err := r.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.Status == StatusClosed {
		return s, nil
	}
	s.Status = StatusClosed
	if err := r.store.Update(ctx, s); err != nil {
		return Session{}, apperr.Wrap(apperr.Store, "failed to close session", err)
	}
	return s, nil
}

// link builds the shareable attendance link. Session attributes ride
// along as query parameters for clients that predate persisted sessions.
func (r *Registry) link(s Session) string {
	q := url.Values{}
	q.Set("subject", s.Subject)
	q.Set("department", s.Department)
	q.Set("semester", strconv.Itoa(s.Semester))
	q.Set("division", s.Division)
	q.Set("lectureType", s.LectureType)
	q.Set("timeSlot", s.TimeSlot)
	q.Set("classroom", s.Classroom)
	q.Set("date", s.Date)
	q.Set("faculty", s.FacultyName)
	return fmt.Sprintf("%s/student-auth/%s?%s", r.baseURL, s.ID, q.Encode())
}

// newSessionID returns 128 bits of randomness, URL-safe encoded.
func newSessionID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

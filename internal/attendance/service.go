package attendance

import (
	"context"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/identity"
	"github.com/D24IT181/attendify-charusat/internal/metrics"
	"github.com/D24IT181/attendify-charusat/internal/session"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Store is the persistence surface the engines need. *Repository
// implements it.
type Store interface {
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	CountSummary(ctx context.Context, f LiveFilters) (total, unique, subjects int, err error)
	Recent(ctx context.Context, f LiveFilters, limit int) ([]RecentEntry, error)
	DeptBreakdown(ctx context.Context, f LiveFilters) ([]DeptCount, error)
	ListRecords(ctx context.Context, f RecordFilters) ([]Record, error)
	RecordSummary(ctx context.Context, f RecordFilters) (total, unique, subjects int, err error)
	RecordDeptBreakdown(ctx context.Context, f RecordFilters) ([]DeptCount, error)
	GetRecordIdentity(ctx context.Context, id int) (*DeletedRecord, error)
	DeleteRecord(ctx context.Context, id int) error
	BulkDelete(ctx context.Context, f RecordFilters) (int64, error)
}

// SessionSource resolves persisted sessions. *session.Registry implements it.
type SessionSource interface {
	Get(ctx context.Context, id string) (session.Session, error)
}

// EligibleCounter is the roster's contribution to live counts.
type EligibleCounter interface {
	EligibleCount(ctx context.Context, dept string, semester int, division string) (int, error)
}

// SelfieStore offloads selfie blobs to external storage.
type SelfieStore interface {
	UploadSelfie(data string) (url string, err error)
}

// Service coordinates submission validation and live aggregation.
type Service struct {
	store    Store
	sessions SessionSource
	roster   EligibleCounter
	selfies  SelfieStore // nil keeps blobs inline
}

// NewService creates a service. selfies may be nil.
func NewService(store Store, sessions SessionSource, roster EligibleCounter, selfies SelfieStore) *Service {
	return &Service{store: store, sessions: sessions, roster: roster, selfies: selfies}
}

// Submit validates and persists one attendance submission. On any error
// nothing is written; a duplicate for the same (student, session scope)
// is rejected with a conflict and leaves the stored record untouched.
func (s *Service) Submit(ctx context.Context, sub Submission) (Record, error) {
	rec, err := s.submit(ctx, sub)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.Conflict:
			metrics.Submissions.WithLabelValues("duplicate").Inc()
		case apperr.Store:
			metrics.Submissions.WithLabelValues("error").Inc()
		default:
			metrics.Submissions.WithLabelValues("rejected").Inc()
		}
		return Record{}, err
	}
	metrics.Submissions.WithLabelValues("recorded").Inc()
	return rec, nil
}

func (s *Service) submit(ctx context.Context, sub Submission) (Record, error) {
	studentID, err := identity.FromEmail(sub.Email)
	if err != nil {
		return Record{}, err
	}

	// Prefer the persisted session as the source of truth for the
	// attribute tuple. Links minted before sessions were persisted carry
	// the attributes as query parameters, so an unknown id falls back to
	// the caller-supplied values.
	if sub.SessionID != "" {
		sess, err := s.sessions.Get(ctx, sub.SessionID)
		switch {
		case err == nil:
			if sess.Status == session.StatusClosed {
				return Record{}, apperr.New(apperr.Conflict, "Session is closed")
			}
			// Records only distinguish lab from lecture; tutorials run on
			// the lecture timetable and are stored as lectures.
			sub.MOT = sess.LectureType
			if sub.MOT == "tutorial" {
				sub.MOT = "lecture"
			}
			sub.TimeSlot = sess.TimeSlot
			sub.Dept = sess.Department
			sub.Division = sess.Division
			sub.Subject = sess.Subject
			sub.FacultyName = sess.FacultyName
			sub.Semester = strconv.Itoa(sess.Semester)
			sub.Date = sess.Date
		case apperr.KindOf(err) == apperr.NotFound:
			// legacy link; keep caller attributes
		default:
			return Record{}, err
		}
	}

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"MOT", sub.MOT},
		{"timeslot", sub.TimeSlot},
		{"dept", sub.Dept},
		{"division", sub.Division},
		{"subject", sub.Subject},
		{"faculty_name", sub.FacultyName},
		{"sem", sub.Semester},
		{"date", sub.Date},
		{"selfie", sub.Selfie},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return Record{}, apperr.MissingFields(missing)
	}

	dept := strings.ToUpper(strings.TrimSpace(sub.Dept))
	if !identity.ValidDepartment(dept) {
		return Record{}, apperr.New(apperr.Validation, "Invalid department")
	}
	mot := strings.ToLower(strings.TrimSpace(sub.MOT))
	if mot != "lab" && mot != "lecture" {
		return Record{}, apperr.New(apperr.Validation, "Invalid mode of teaching")
	}
	if !datePattern.MatchString(sub.Date) {
		return Record{}, apperr.New(apperr.Validation, "Invalid date format")
	}
	sem, err := strconv.Atoi(sub.Semester)
	if err != nil || sem < 1 || sem > 8 {
		return Record{}, apperr.New(apperr.Validation, "Invalid semester")
	}

	selfie := sub.Selfie
	if s.selfies != nil {
		if url, err := s.selfies.UploadSelfie(sub.Selfie); err != nil {
			// Keep the inline blob; a storage hiccup must not lose the
			// submission.
			log.Printf("selfie upload failed, storing inline: %v", err)
		} else {
			selfie = url
		}
	}

	return s.store.InsertRecord(ctx, Record{
		MOT:         mot,
		TimeSlot:    strings.TrimSpace(sub.TimeSlot),
		Dept:        dept,
		Division:    strings.TrimSpace(sub.Division),
		Subject:     strings.TrimSpace(sub.Subject),
		FacultyName: strings.TrimSpace(sub.FacultyName),
		Semester:    sem,
		Date:        sub.Date,
		StudentID:   studentID.Canonical,
		Selfie:      selfie,
		Email:       strings.ToLower(strings.TrimSpace(sub.Email)),
		SessionID:   sub.SessionID,
	})
}

package attendance

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/session"
)

// fakeStore mirrors the Postgres repo, including the unique submission
// index, so engine behavior can be exercised without a database.
type fakeStore struct {
	mu      sync.Mutex
	records []Record
	nextID  int
	clock   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, clock: time.Date(2024, 1, 10, 9, 15, 0, 0, time.UTC)}
}

func submissionKey(r Record) string {
	return strings.Join([]string{r.MOT, r.TimeSlot, r.Dept, r.Division, r.Subject, r.Date, r.StudentID}, "|")
}

func (f *fakeStore) InsertRecord(_ context.Context, rec Record) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if submissionKey(existing) == submissionKey(rec) {
			return Record{}, apperr.New(apperr.Conflict, "Attendance already submitted for this session")
		}
	}
	rec.ID = f.nextID
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	rec.AttendanceTime = f.clock
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeStore) matchLive(r Record, flt LiveFilters) bool {
	if flt.Subject != "" && r.Subject != flt.Subject {
		return false
	}
	if flt.Dept != "" && r.Dept != strings.ToUpper(flt.Dept) {
		return false
	}
	if flt.Division != "" && r.Division != flt.Division {
		return false
	}
	if flt.Date != "" && r.Date != flt.Date {
		return false
	}
	if flt.LectureType != "" && r.MOT != strings.ToLower(flt.LectureType) {
		return false
	}
	if flt.TimeSlot != "" && r.TimeSlot != flt.TimeSlot {
		return false
	}
	if flt.Semester != "" && strconv.Itoa(r.Semester) != flt.Semester {
		return false
	}
	return true
}

func (f *fakeStore) CountSummary(_ context.Context, flt LiveFilters) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	students := map[string]bool{}
	subjects := map[string]bool{}
	total := 0
	for _, r := range f.records {
		if f.matchLive(r, flt) {
			total++
			students[r.StudentID] = true
			subjects[r.Subject] = true
		}
	}
	return total, len(students), len(subjects), nil
}

func (f *fakeStore) Recent(_ context.Context, flt LiveFilters, limit int) ([]RecentEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []RecentEntry
	for _, r := range f.records {
		if f.matchLive(r, flt) {
			entries = append(entries, RecentEntry{
				StudentID: r.StudentID, Email: r.Email,
				AttendanceTime: r.AttendanceTime, MOT: r.MOT, TimeSlot: r.TimeSlot,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AttendanceTime.After(entries[j].AttendanceTime)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeStore) DeptBreakdown(_ context.Context, flt LiveFilters) ([]DeptCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byDept := map[string]int{}
	for _, r := range f.records {
		if f.matchLive(r, flt) {
			byDept[r.Dept]++
		}
	}
	var counts []DeptCount
	for d, c := range byDept {
		counts = append(counts, DeptCount{Dept: d, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts, nil
}

func (f *fakeStore) matchRecord(r Record, flt RecordFilters) bool {
	if flt.Dept != "" && r.Dept != strings.ToUpper(flt.Dept) {
		return false
	}
	if flt.Date != "" && r.Date != flt.Date {
		return false
	}
	if flt.Division != "" && r.Division != flt.Division {
		return false
	}
	if flt.TimeSlot != "" && r.TimeSlot != flt.TimeSlot {
		return false
	}
	if flt.Semester != "" && strconv.Itoa(r.Semester) != flt.Semester {
		return false
	}
	if flt.SubjectLike != "" && !strings.Contains(r.Subject, flt.SubjectLike) {
		return false
	}
	return true
}

func (f *fakeStore) ListRecords(_ context.Context, flt RecordFilters) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for _, r := range f.records {
		if f.matchRecord(r, flt) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AttendanceTime.After(out[j].AttendanceTime)
	})
	return out, nil
}

func (f *fakeStore) RecordSummary(ctx context.Context, flt RecordFilters) (int, int, int, error) {
	records, _ := f.ListRecords(ctx, flt)
	students := map[string]bool{}
	subjects := map[string]bool{}
	for _, r := range records {
		students[r.StudentID] = true
		subjects[r.Subject] = true
	}
	return len(records), len(students), len(subjects), nil
}

func (f *fakeStore) RecordDeptBreakdown(ctx context.Context, flt RecordFilters) ([]DeptCount, error) {
	records, _ := f.ListRecords(ctx, flt)
	byDept := map[string]int{}
	for _, r := range records {
		byDept[r.Dept]++
	}
	var counts []DeptCount
	for d, c := range byDept {
		counts = append(counts, DeptCount{Dept: d, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	return counts, nil
}

func (f *fakeStore) GetRecordIdentity(_ context.Context, id int) (*DeletedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			return &DeletedRecord{ID: r.ID, StudentID: r.StudentID, Subject: r.Subject, Date: r.Date}, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) DeleteRecord(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return apperr.New(apperr.NotFound, "Attendance record not found")
}

func (f *fakeStore) BulkDelete(_ context.Context, flt RecordFilters) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []Record
	var deleted int64
	for _, r := range f.records {
		if f.matchRecord(r, flt) {
			deleted++
		} else {
			kept = append(kept, r)
		}
	}
	f.records = kept
	return deleted, nil
}

type fakeSessions struct {
	sessions map[string]session.Session
}

func (f *fakeSessions) Get(_ context.Context, id string) (session.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return session.Session{}, apperr.New(apperr.NotFound, "session not found")
	}
	return s, nil
}

type fakeRoster struct {
	eligible int
}

func (f *fakeRoster) EligibleCount(context.Context, string, int, string) (int, error) {
	return f.eligible, nil
}

func newTestService(store *fakeStore) (*Service, *fakeSessions, *fakeRoster) {
	sessions := &fakeSessions{sessions: map[string]session.Session{}}
	roster := &fakeRoster{}
	return NewService(store, sessions, roster, nil), sessions, roster
}

func validSubmission() Submission {
	return Submission{
		MOT:         "lecture",
		TimeSlot:    "9:10 to 10:10",
		Dept:        "IT",
		Division:    "IT 1",
		Subject:     "Data Structures",
		FacultyName: "Prof. Shah",
		Semester:    "3",
		Date:        "2024-01-10",
		Email:       "24it181@charusat.edu.in",
		Selfie:      "data:image/jpeg;base64,xxxx",
	}
}

func TestSubmit(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	sub := validSubmission()
	sub.Dept = "it"
	sub.MOT = "Lecture"
	rec, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.ID == 0 || rec.AttendanceTime.IsZero() {
		t.Errorf("record not assigned id/timestamp: %+v", rec)
	}
	if rec.Dept != "IT" || rec.MOT != "lecture" || rec.StudentID != "24it181" {
		t.Errorf("record not canonicalised: %+v", rec)
	}
}

func TestSubmitValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Submission)
	}{
		{"foreign domain", func(s *Submission) { s.Email = "24it181@gmail.com" }},
		{"malformed id", func(s *Submission) { s.Email = "someone@charusat.edu.in" }},
		{"bad dept", func(s *Submission) { s.Dept = "ME" }},
		{"bad mot", func(s *Submission) { s.MOT = "tutorial" }},
		{"bad date", func(s *Submission) { s.Date = "10-01-2024" }},
		{"bad semester", func(s *Submission) { s.Semester = "9" }},
		{"non-numeric semester", func(s *Submission) { s.Semester = "three" }},
	}
	for _, tc := range cases {
		store := newFakeStore()
		svc, _, _ := newTestService(store)
		sub := validSubmission()
		tc.mutate(&sub)
		if _, err := svc.Submit(context.Background(), sub); err == nil {
			t.Errorf("%s: Submit succeeded", tc.name)
		}
		if len(store.records) != 0 {
			t.Errorf("%s: record written on error path", tc.name)
		}
	}
}

func TestSubmitMissingFieldsListsAll(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	_, err := svc.Submit(context.Background(), Submission{Email: "24it181@charusat.edu.in"})
	if err == nil {
		t.Fatal("Submit succeeded")
	}
	msg := err.Error()
	for _, f := range []string{"MOT", "timeslot", "dept", "division", "subject", "faculty_name", "sem", "date", "selfie"} {
		if !strings.Contains(msg, f) {
			t.Errorf("error %q omits missing field %q", msg, f)
		}
	}
}

func TestSubmitAtMostOnce(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, validSubmission()); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := svc.Submit(ctx, validSubmission())
	if apperr.KindOf(err) != apperr.Conflict {
		t.Fatalf("second Submit: kind = %v, err = %v", apperr.KindOf(err), err)
	}
	if len(store.records) != 1 {
		t.Errorf("stored count = %d, want 1", len(store.records))
	}
}

func TestSubmitConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Submit(context.Background(), validSubmission())
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.Conflict:
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != 7 {
		t.Errorf("ok = %d, dup = %d", ok, dup)
	}
	if len(store.records) != 1 {
		t.Errorf("stored count = %d, want 1", len(store.records))
	}
}

func TestSubmitResolvesPersistedSession(t *testing.T) {
	store := newFakeStore()
	svc, sessions, _ := newTestService(store)
	sessions.sessions["tok"] = session.Session{
		ID: "tok", Subject: "Networks", Department: "CSE", Division: "CSE 2",
		Semester: 5, LectureType: "lab", TimeSlot: "12:10 to 2:10",
		Date: "2024-02-01", FacultyName: "Prof. Rao", Status: session.StatusActive,
	}

	sub := Submission{
		SessionID: "tok",
		Email:     "24cse101@charusat.edu.in",
		Selfie:    "blob",
		// Caller-supplied attrs that must lose to the persisted session.
		Subject: "Wrong Subject", Dept: "IT",
	}
	rec, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rec.Subject != "Networks" || rec.Dept != "CSE" || rec.Semester != 5 {
		t.Errorf("session attrs not authoritative: %+v", rec)
	}
	if rec.SessionID != "tok" {
		t.Errorf("session id not stored: %+v", rec)
	}
}

func TestSubmitTutorialSessionRecordsAsLecture(t *testing.T) {
	store := newFakeStore()
	svc, sessions, _ := newTestService(store)
	sessions.sessions["tok"] = session.Session{
		ID: "tok", Subject: "Maths", Department: "IT", Division: "IT 2",
		Semester: 3, LectureType: "tutorial", TimeSlot: "9:10 to 10:10",
		Date: "2024-02-01", FacultyName: "Prof. Mehta", Status: session.StatusActive,
	}
	sub := Submission{SessionID: "tok", Email: "24it181@charusat.edu.in", Selfie: "blob"}
	rec, err := svc.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit against tutorial session: %v", err)
	}
	if rec.MOT != "lecture" {
		t.Errorf("MOT = %q, want lecture", rec.MOT)
	}
	if rec.Subject != "Maths" || rec.SessionID != "tok" {
		t.Errorf("session attrs not applied: %+v", rec)
	}
}

func TestSubmitClosedSession(t *testing.T) {
	store := newFakeStore()
	svc, sessions, _ := newTestService(store)
	sessions.sessions["tok"] = session.Session{
		ID: "tok", Subject: "Networks", Department: "CSE", Division: "CSE 2",
		Semester: 5, LectureType: "lab", TimeSlot: "12:10 to 2:10",
		Date: "2024-02-01", FacultyName: "Prof. Rao", Status: session.StatusClosed,
	}
	sub := Submission{SessionID: "tok", Email: "24cse101@charusat.edu.in", Selfie: "blob"}
	_, err := svc.Submit(context.Background(), sub)
	if apperr.KindOf(err) != apperr.Conflict {
		t.Errorf("closed session: kind = %v, err = %v", apperr.KindOf(err), err)
	}
	if len(store.records) != 0 {
		t.Error("record written against closed session")
	}
}

func TestSubmitUnknownSessionFallsBack(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	sub := validSubmission()
	sub.SessionID = "legacy-link-id"
	if _, err := svc.Submit(context.Background(), sub); err != nil {
		t.Fatalf("legacy fallback failed: %v", err)
	}
}

func seedRecords(t *testing.T, svc *Service) {
	t.Helper()
	seed := []struct{ email, dept, division string }{
		{"24it001@charusat.edu.in", "IT", "IT 1"},
		{"24it002@charusat.edu.in", "IT", "IT 1"},
		{"24it003@charusat.edu.in", "IT", "IT 1"},
		{"24cse001@charusat.edu.in", "CSE", "CSE 1"},
		{"24cse002@charusat.edu.in", "CSE", "CSE 1"},
	}
	for _, s := range seed {
		sub := validSubmission()
		sub.Email = s.email
		sub.Dept = s.dept
		sub.Division = s.division
		if _, err := svc.Submit(context.Background(), sub); err != nil {
			t.Fatal(err)
		}
	}
}

func TestLiveSummaryBreakdown(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	seedRecords(t, svc)

	sum, err := svc.LiveSummary(context.Background(),
		LiveFilters{Subject: "Data Structures", Date: "2024-01-10"})
	if err != nil {
		t.Fatalf("LiveSummary: %v", err)
	}
	if sum.TotalPresent != 5 || sum.UniqueStudents != 5 || sum.TotalSubjects != 1 {
		t.Errorf("summary = %+v", sum)
	}
	want := []DeptCount{{Dept: "IT", Count: 3}, {Dept: "CSE", Count: 2}}
	if len(sum.DeptBreakdown) != 2 || sum.DeptBreakdown[0] != want[0] || sum.DeptBreakdown[1] != want[1] {
		t.Errorf("breakdown = %+v, want %+v", sum.DeptBreakdown, want)
	}
	if sum.TotalEligible != nil || sum.Remaining != nil {
		t.Error("eligible computed without full cohort filters")
	}
	if len(sum.Recent) != 5 {
		t.Errorf("recent = %d entries", len(sum.Recent))
	}
	// Newest first.
	for i := 1; i < len(sum.Recent); i++ {
		if sum.Recent[i].AttendanceTime.After(sum.Recent[i-1].AttendanceTime) {
			t.Error("recent entries not descending by time")
			break
		}
	}
}

func TestLiveSummaryEligible(t *testing.T) {
	store := newFakeStore()
	svc, _, roster := newTestService(store)
	roster.eligible = 10

	// 4 distinct students in the scoped cohort, plus one outside it.
	for _, email := range []string{
		"24it001@charusat.edu.in", "24it002@charusat.edu.in",
		"24it003@charusat.edu.in", "24it004@charusat.edu.in",
	} {
		sub := validSubmission()
		sub.Email = email
		if _, err := svc.Submit(context.Background(), sub); err != nil {
			t.Fatal(err)
		}
	}
	other := validSubmission()
	other.Email = "24cse001@charusat.edu.in"
	other.Dept = "CSE"
	other.Division = "CSE 1"
	if _, err := svc.Submit(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	sum, err := svc.LiveSummary(context.Background(), LiveFilters{
		Subject: "Data Structures", Date: "2024-01-10",
		Dept: "IT", Division: "IT 1", Semester: "3",
	})
	if err != nil {
		t.Fatalf("LiveSummary: %v", err)
	}
	if sum.UniqueStudents != 4 {
		t.Errorf("unique = %d", sum.UniqueStudents)
	}
	if sum.TotalEligible == nil || *sum.TotalEligible != 10 {
		t.Errorf("eligible = %v", sum.TotalEligible)
	}
	if sum.Remaining == nil || *sum.Remaining != 6 {
		t.Errorf("remaining = %v", sum.Remaining)
	}
	if sum.DeptBreakdown != nil {
		t.Error("breakdown computed for department-scoped view")
	}
}

func TestLiveSummaryRequiresSubjectAndDate(t *testing.T) {
	svc, _, _ := newTestService(newFakeStore())
	if _, err := svc.LiveSummary(context.Background(), LiveFilters{Subject: "X"}); err == nil {
		t.Error("missing date accepted")
	}
	if _, err := svc.LiveSummary(context.Background(), LiveFilters{Date: "2024-01-10"}); err == nil {
		t.Error("missing subject accepted")
	}
}

func TestClassRecords(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	seedRecords(t, svc)

	view, err := svc.ClassRecords(context.Background(),
		RecordFilters{Dept: "IT", Date: "2024-01-10"})
	if err != nil {
		t.Fatalf("ClassRecords: %v", err)
	}
	if view.TotalRecords != 3 || view.UniqueStudents != 3 {
		t.Errorf("view = %+v", view)
	}

	if _, err := svc.ClassRecords(context.Background(), RecordFilters{Date: "2024-01-10"}); err == nil {
		t.Error("missing dept accepted")
	}
	if _, err := svc.ClassRecords(context.Background(), RecordFilters{Dept: "ME", Date: "2024-01-10"}); err == nil {
		t.Error("bad dept accepted")
	}
}

func TestDeleteRecord(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	rec, err := svc.Submit(context.Background(), validSubmission())
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := svc.DeleteRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if deleted.StudentID != "24it181" || deleted.Subject != "Data Structures" {
		t.Errorf("deleted = %+v", deleted)
	}
	if _, err := svc.DeleteRecord(context.Background(), rec.ID); apperr.KindOf(err) != apperr.NotFound {
		t.Errorf("second delete: %v", err)
	}
	if _, err := svc.DeleteRecord(context.Background(), 0); apperr.KindOf(err) != apperr.Validation {
		t.Errorf("zero id: %v", err)
	}
}

func TestBulkDelete(t *testing.T) {
	store := newFakeStore()
	svc, _, _ := newTestService(store)
	seedRecords(t, svc)

	n, err := svc.BulkDelete(context.Background(), RecordFilters{Dept: "IT"})
	if err != nil {
		t.Fatalf("BulkDelete: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted = %d, want 3", n)
	}
	if len(store.records) != 2 {
		t.Errorf("remaining = %d, want 2", len(store.records))
	}
}

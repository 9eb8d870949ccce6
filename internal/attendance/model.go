package attendance

import "time"

// Record is one persisted attendance submission. JSON and column names
// mirror the legacy schema (MOT, timeslot, gmail, sem) for compatibility
// with existing exports.
type Record struct {
	ID             int       `json:"id"`
	MOT            string    `json:"MOT"`
	TimeSlot       string    `json:"timeslot"`
	Dept           string    `json:"dept"`
	Division       string    `json:"division"`
	Subject        string    `json:"subject"`
	FacultyName    string    `json:"faculty_name"`
	Semester       int       `json:"sem"`
	Date           string    `json:"date"`
	StudentID      string    `json:"student_id"`
	Selfie         string    `json:"selfie"`
	Email          string    `json:"gmail"`
	SessionID      string    `json:"session_id,omitempty"`
	AttendanceTime time.Time `json:"attendance_time"`
}

// Submission is the canonical submission payload after the HTTP layer has
// folded field aliases (lectureType/MOT, timeSlot/timeslot, ...) into one
// shape. Semester stays a string until validated.
type Submission struct {
	SessionID   string
	MOT         string
	TimeSlot    string
	Dept        string
	Division    string
	Subject     string
	FacultyName string
	Semester    string
	Date        string
	Email       string
	Selfie      string
}

// RecentEntry is one row of the live dashboard's recent-submissions feed.
type RecentEntry struct {
	StudentID      string    `json:"student_id"`
	Email          string    `json:"gmail"`
	AttendanceTime time.Time `json:"attendance_time"`
	MOT            string    `json:"MOT"`
	TimeSlot       string    `json:"timeslot"`
}

// DeptCount is a per-department submission tally.
type DeptCount struct {
	Dept  string `json:"dept"`
	Count int    `json:"count"`
}

// LiveFilters scope the live-count aggregation. Empty fields impose no
// constraint; Subject and Date are mandatory for the call to be
// meaningful and the service enforces that.
type LiveFilters struct {
	Subject     string
	Dept        string
	Division    string
	Date        string
	LectureType string
	TimeSlot    string
	Semester    string
}

// Summary is the live attendance answer polled by the teacher dashboard.
type Summary struct {
	TotalPresent   int           `json:"total_present"`
	UniqueStudents int           `json:"unique_students"`
	TotalSubjects  int           `json:"total_subjects"`
	Recent         []RecentEntry `json:"recent_attendance"`
	DeptBreakdown  []DeptCount   `json:"department_breakdown,omitempty"`
	TotalEligible  *int          `json:"total_eligible,omitempty"`
	Remaining      *int          `json:"remaining,omitempty"`
}

// RecordFilters scope the class-records listing and bulk delete.
// SubjectLike is a substring match; everything else is exact.
type RecordFilters struct {
	Dept        string
	Date        string
	Division    string
	TimeSlot    string
	Semester    string
	SubjectLike string
}

// DeletedRecord identifies a removed record for confirmation messaging.
type DeletedRecord struct {
	ID        int    `json:"id"`
	StudentID string `json:"student_id"`
	Subject   string `json:"subject"`
	Date      string `json:"date"`
}

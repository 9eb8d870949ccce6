package handler

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/attendance"
	"github.com/D24IT181/attendify-charusat/internal/auth"
	"github.com/D24IT181/attendify-charusat/internal/metrics"
	"github.com/D24IT181/attendify-charusat/internal/roster"
	"github.com/D24IT181/attendify-charusat/internal/session"
)

// AuthConfig carries what the login endpoint needs to mint tokens.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Handler binds the engines to gin routes.
type Handler struct {
	sessions   *session.Registry
	roster     *roster.Service
	attendance *attendance.Service
	authCfg    AuthConfig
}

// New creates a handler.
func New(sessions *session.Registry, rosterSvc *roster.Service, attendanceSvc *attendance.Service, authCfg AuthConfig) *Handler {
	return &Handler{sessions: sessions, roster: rosterSvc, attendance: attendanceSvc, authCfg: authCfg}
}

// fail writes the error envelope. Unclassified errors are logged and
// surfaced as a generic internal error.
func fail(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.Store {
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(apperr.Status(err), gin.H{"success": false, "error": apperr.Message(err)})
}

// ---------- Teacher auth ----------

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) TeacherLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing email or password"})
		return
	}
	teacher, err := h.roster.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	tokens, err := auth.Issue(teacher.Email, teacher.FullName, h.authCfg.Issuer, h.authCfg.SigningKey,
		h.authCfg.AccessTTL, h.authCfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"teacher": gin.H{"id": teacher.ID, "name": teacher.FullName, "email": teacher.Email},
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
	})
}

// ---------- Sessions ----------

type createSessionRequest struct {
	Subject     string     `json:"subject"`
	Department  string     `json:"department"`
	Dept        string     `json:"dept"`
	Division    string     `json:"division"`
	Semester    flexString `json:"semester"`
	Sem         flexString `json:"sem"`
	LectureType string     `json:"lectureType"`
	MOT         string     `json:"MOT"`
	TimeSlot    string     `json:"timeSlot"`
	Timeslot    string     `json:"timeslot"`
	Classroom   string     `json:"classroom"`
	Date        string     `json:"date"`
	Faculty     string     `json:"faculty"`
	FacultyName string     `json:"faculty_name"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), session.Attrs{
		Subject:     req.Subject,
		Department:  first(req.Department, req.Dept),
		Division:    req.Division,
		Semester:    first(string(req.Semester), string(req.Sem)),
		LectureType: first(req.LectureType, req.MOT),
		TimeSlot:    first(req.TimeSlot, req.Timeslot),
		Classroom:   req.Classroom,
		Date:        req.Date,
		FacultyName: first(req.Faculty, req.FacultyName),
	})
	if err != nil {
		fail(c, err)
		return
	}
	metrics.SessionsCreated.Inc()
	c.JSON(http.StatusCreated, gin.H{"success": true, "session": sess})
}

func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

func (h *Handler) CloseSession(c *gin.Context) {
	sess, err := h.sessions.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "session": sess})
}

// ---------- Attendance submission ----------

type submitRequest struct {
	SessionID    string     `json:"sessionId"`
	MOT          string     `json:"MOT"`
	LectureType  string     `json:"lectureType"`
	Timeslot     string     `json:"timeslot"`
	TimeSlot     string     `json:"timeSlot"`
	Dept         string     `json:"dept"`
	Department   string     `json:"department"`
	Division     string     `json:"division"`
	Subject      string     `json:"subject"`
	FacultyName  string     `json:"faculty_name"`
	Faculty      string     `json:"faculty"`
	Sem          flexString `json:"sem"`
	Semester     flexString `json:"semester"`
	Date         string     `json:"date"`
	StudentEmail string     `json:"student_email"`
	Gmail        string     `json:"gmail"`
	Selfie       string     `json:"selfie"`
}

func (h *Handler) SubmitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}
	rec, err := h.attendance.Submit(c.Request.Context(), attendance.Submission{
		SessionID:   req.SessionID,
		MOT:         first(req.MOT, req.LectureType),
		TimeSlot:    first(req.Timeslot, req.TimeSlot),
		Dept:        first(req.Dept, req.Department),
		Division:    req.Division,
		Subject:     req.Subject,
		FacultyName: first(req.FacultyName, req.Faculty),
		Semester:    first(string(req.Sem), string(req.Semester)),
		Date:        req.Date,
		Email:       first(req.Gmail, req.StudentEmail),
		Selfie:      req.Selfie,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"message":       "Attendance recorded successfully",
		"attendance_id": rec.ID,
	})
}

// ---------- Live aggregation ----------

func (h *Handler) LiveAttendance(c *gin.Context) {
	filters := attendance.LiveFilters{
		Subject:     c.Query("subject"),
		Dept:        c.Query("dept"),
		Division:    c.Query("division"),
		Date:        c.DefaultQuery("date", time.Now().Format("2006-01-02")),
		LectureType: c.Query("lectureType"),
		TimeSlot:    c.Query("timeSlot"),
		Semester:    first(c.Query("sem"), c.Query("semester")),
	}
	sum, err := h.attendance.LiveSummary(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"attendance_summary": gin.H{
			"total_present":   sum.TotalPresent,
			"unique_students": sum.UniqueStudents,
			"total_subjects":  sum.TotalSubjects,
			"total_eligible":  sum.TotalEligible,
			"remaining":       sum.Remaining,
			"date":            filters.Date,
			"subject":         filters.Subject,
			"department":      filters.Dept,
			"division":        filters.Division,
			"lecture_type":    filters.LectureType,
			"time_slot":       filters.TimeSlot,
		},
		"recent_attendance":    sum.Recent,
		"department_breakdown": sum.DeptBreakdown,
		"last_updated":         time.Now().Format("2006-01-02 15:04:05"),
	})
}

func (h *Handler) ClassRecords(c *gin.Context) {
	filters := attendance.RecordFilters{
		Dept:        c.Query("dept"),
		Date:        c.DefaultQuery("date", time.Now().Format("2006-01-02")),
		Division:    c.Query("division"),
		TimeSlot:    c.Query("timeSlot"),
		Semester:    c.Query("sem"),
		SubjectLike: c.Query("subject"),
	}
	view, err := h.attendance.ClassRecords(c.Request.Context(), filters)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"department": filters.Dept,
		"summary": gin.H{
			"total_students":  view.TotalStudents,
			"unique_students": view.UniqueStudents,
			"total_subjects":  view.TotalSubjects,
		},
		"department_summary": view.DeptSummary,
		"records":            view.Records,
		"total_records":      view.TotalRecords,
	})
}

// ---------- Record administration ----------

func (h *Handler) DeleteRecord(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Valid record ID is required"})
		return
	}
	deleted, err := h.attendance.DeleteRecord(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Attendance record deleted successfully",
		"deleted_record": deleted,
	})
}

type bulkDeleteRequest struct {
	Department string     `json:"department"`
	Dept       string     `json:"dept"`
	Division   string     `json:"division"`
	TimeSlot   string     `json:"timeSlot"`
	Semester   flexString `json:"semester"`
	Date       string     `json:"date"`
}

func (h *Handler) BulkDeleteRecords(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}
	count, err := h.attendance.BulkDelete(c.Request.Context(), attendance.RecordFilters{
		Dept:     first(req.Department, req.Dept),
		Division: req.Division,
		TimeSlot: req.TimeSlot,
		Semester: string(req.Semester),
		Date:     req.Date,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Attendance records deleted successfully",
		"deletedCount": count,
	})
}

// ---------- Roster: students ----------

type addStudentRequest struct {
	StudentID  string     `json:"student_id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Department string     `json:"department"`
	Division   string     `json:"division"`
	Semester   flexString `json:"semester"`
}

func (h *Handler) AddStudent(c *gin.Context) {
	var req addStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}
	sem, _ := strconv.Atoi(string(req.Semester))
	id, err := h.roster.AddStudent(c.Request.Context(), roster.AddStudentInput{
		StudentID:  req.StudentID,
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Division:   req.Division,
		Semester:   sem,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    "Student added successfully",
		"student_id": id,
	})
}

func (h *Handler) RemoveStudent(c *gin.Context) {
	removed, err := h.roster.RemoveStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Student removed successfully",
		"student_name":  removed.Name,
		"student_email": removed.Email,
	})
}

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.roster.ListStudents(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "students": students})
}

func (h *Handler) CountStudents(c *gin.Context) {
	total, byDept, err := h.roster.CountStudents(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"total_count":       total,
		"department_counts": byDept,
	})
}

// ---------- Roster: teachers ----------

type teacherRequest struct {
	FullName string `json:"Full_Name"`
	Name     string `json:"name"`
	EmailCap string `json:"Email"`
	Email    string `json:"email"`
	PassCap  string `json:"Password"`
	Password string `json:"password"`
}

func (h *Handler) AddTeacher(c *gin.Context) {
	var req teacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid JSON payload"})
		return
	}
	err := h.roster.AddTeacher(c.Request.Context(),
		first(req.FullName, req.Name), first(req.EmailCap, req.Email), first(req.PassCap, req.Password))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Teacher added successfully"})
}

func (h *Handler) RemoveTeacher(c *gin.Context) {
	var req teacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Valid email required"})
		return
	}
	if err := h.roster.RemoveTeacher(c.Request.Context(), first(req.EmailCap, req.Email)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Teacher removed"})
}

func (h *Handler) CountTeachers(c *gin.Context) {
	count, err := h.roster.CountTeachers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

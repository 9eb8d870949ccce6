package attendance

import (
	"context"
	"strconv"
	"strings"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
	"github.com/D24IT181/attendify-charusat/internal/identity"
)

// LiveSummary reconciles submissions against the filters for the polled
// teacher dashboard. Pure read; safe to call concurrently.
func (s *Service) LiveSummary(ctx context.Context, f LiveFilters) (Summary, error) {
	if f.Subject == "" || f.Date == "" {
		return Summary{}, apperr.New(apperr.Validation, "Subject and date are required")
	}

	total, unique, subjects, err := s.store.CountSummary(ctx, f)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.Store, "failed to fetch attendance count", err)
	}
	recent, err := s.store.Recent(ctx, f, 10)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.Store, "failed to fetch recent attendance", err)
	}

	sum := Summary{
		TotalPresent:   total,
		UniqueStudents: unique,
		TotalSubjects:  subjects,
		Recent:         recent,
	}

	// A department-scoped view doesn't need its own breakdown.
	if f.Dept == "" {
		breakdown, err := s.store.DeptBreakdown(ctx, f)
		if err != nil {
			return Summary{}, apperr.Wrap(apperr.Store, "failed to fetch department breakdown", err)
		}
		sum.DeptBreakdown = breakdown
	}

	// Eligibility is only meaningful when the filters pin down one
	// cohort: department, division and semester all present.
	if f.Dept != "" && f.Division != "" && f.Semester != "" {
		sem, err := strconv.Atoi(f.Semester)
		if err != nil {
			return Summary{}, apperr.New(apperr.Validation, "Invalid semester")
		}
		eligible, err := s.roster.EligibleCount(ctx, strings.ToUpper(f.Dept), sem, f.Division)
		if err != nil {
			return Summary{}, apperr.Wrap(apperr.Store, "failed to compute eligible count", err)
		}
		remaining := eligible - unique
		if remaining < 0 {
			remaining = 0
		}
		sum.TotalEligible = &eligible
		sum.Remaining = &remaining
	}

	return sum, nil
}

// ClassView is the full class-attendance listing with its summary.
type ClassView struct {
	Records        []Record    `json:"records"`
	TotalRecords   int         `json:"total_records"`
	TotalStudents  int         `json:"total_students"`
	UniqueStudents int         `json:"unique_students"`
	TotalSubjects  int         `json:"total_subjects"`
	DeptSummary    []DeptCount `json:"department_summary"`
}

// ClassRecords lists attendance records for a class view. Department and
// date are mandatory.
func (s *Service) ClassRecords(ctx context.Context, f RecordFilters) (ClassView, error) {
	if f.Dept == "" || f.Date == "" {
		return ClassView{}, apperr.New(apperr.Validation, "Department and date are required")
	}
	if !identity.ValidDepartment(strings.ToUpper(f.Dept)) {
		return ClassView{}, apperr.New(apperr.Validation, "Invalid department. Must be IT, CSE, or CE")
	}

	records, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return ClassView{}, apperr.Wrap(apperr.Store, "failed to fetch attendance records", err)
	}
	total, unique, subjects, err := s.store.RecordSummary(ctx, f)
	if err != nil {
		return ClassView{}, apperr.Wrap(apperr.Store, "failed to fetch attendance summary", err)
	}
	breakdown, err := s.store.RecordDeptBreakdown(ctx, f)
	if err != nil {
		return ClassView{}, apperr.Wrap(apperr.Store, "failed to fetch department summary", err)
	}

	return ClassView{
		Records:        records,
		TotalRecords:   len(records),
		TotalStudents:  total,
		UniqueStudents: unique,
		TotalSubjects:  subjects,
		DeptSummary:    breakdown,
	}, nil
}

// DeleteRecord removes one record and returns its identity for
// confirmation messaging.
func (s *Service) DeleteRecord(ctx context.Context, id int) (DeletedRecord, error) {
	if id <= 0 {
		return DeletedRecord{}, apperr.New(apperr.Validation, "Valid record ID is required")
	}
	d, err := s.store.GetRecordIdentity(ctx, id)
	if err != nil {
		return DeletedRecord{}, apperr.Wrap(apperr.Store, "failed to load attendance record", err)
	}
	if d == nil {
		return DeletedRecord{}, apperr.New(apperr.NotFound, "Attendance record not found")
	}
	if err := s.store.DeleteRecord(ctx, id); err != nil {
		return DeletedRecord{}, err
	}
	return *d, nil
}

// BulkDelete removes every record matching the filters. An empty filter
// set wipes the table; the caller gates that behind a re-authentication
// prompt.
func (s *Service) BulkDelete(ctx context.Context, f RecordFilters) (int64, error) {
	n, err := s.store.BulkDelete(ctx, f)
	if err != nil {
		return 0, apperr.Wrap(apperr.Store, "failed to delete attendance records", err)
	}
	return n, nil
}

package identity

import (
	"regexp"
	"strings"

	"github.com/D24IT181/attendify-charusat/internal/apperr"
)

// EmailDomain is the institutional domain students must authenticate with.
const EmailDomain = "@charusat.edu.in"

// Departments recognised by the roster and the student-id scheme.
var Departments = []string{"IT", "CSE", "CE"}

// idPattern matches ids like d24it176 or 24it176: optional diploma marker,
// two-digit admission year, department code, three-digit roll.
var idPattern = regexp.MustCompile(`^(d?)(\d{2})(it|cse|ce)(\d{3})$`)

// StudentID is a parsed, canonicalised student identifier.
type StudentID struct {
	Canonical     string // lowercase form, e.g. "d24it176"
	IsDiploma     bool
	AdmissionYear string // two digits, e.g. "24"
	Department    string // uppercase: IT, CSE or CE
	Roll          string // three digits
}

// ParseStudentID validates and canonicalises a raw student id.
func ParseStudentID(raw string) (StudentID, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	m := idPattern.FindStringSubmatch(lower)
	if m == nil {
		return StudentID{}, apperr.New(apperr.Validation,
			"Invalid student ID format. Use format: d24it176 or 24it176")
	}
	return StudentID{
		Canonical:     lower,
		IsDiploma:     m[1] == "d",
		AdmissionYear: m[2],
		Department:    strings.ToUpper(m[3]),
		Roll:          m[4],
	}, nil
}

// FromEmail extracts and parses the student id from an institutional
// email address.
func FromEmail(email string) (StudentID, error) {
	addr := strings.ToLower(strings.TrimSpace(email))
	if !strings.HasSuffix(addr, EmailDomain) {
		return StudentID{}, apperr.New(apperr.Auth, "email must belong to "+EmailDomain[1:])
	}
	local := strings.TrimSuffix(addr, EmailDomain)
	return ParseStudentID(local)
}

// ValidDepartment reports whether dept is one of the known codes.
func ValidDepartment(dept string) bool {
	for _, d := range Departments {
		if dept == d {
			return true
		}
	}
	return false
}

// NormalizeDivision reconciles the inconsistent division spellings stored
// across the system ("IT 1", "1", "IT1", "Division 01"). If the input
// contains digits, the digits win and leading zeros are stripped;
// otherwise the text is uppercased with whitespace removed.
func NormalizeDivision(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() > 0 {
		trimmed := strings.TrimLeft(digits.String(), "0")
		if trimmed == "" {
			return "0"
		}
		return trimmed
	}
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

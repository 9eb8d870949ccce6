package identity

import "testing"

func TestParseStudentID(t *testing.T) {
	cases := []struct {
		raw       string
		canonical string
		diploma   bool
		dept      string
		year      string
		roll      string
	}{
		{"D24IT176", "d24it176", true, "IT", "24", "176"},
		{"24it181", "24it181", false, "IT", "24", "181"},
		{"d25ce123", "d25ce123", true, "CE", "25", "123"},
		{"25CSE001", "25cse001", false, "CSE", "25", "001"},
		{"  24ce042  ", "24ce042", false, "CE", "24", "042"},
	}
	for _, tc := range cases {
		id, err := ParseStudentID(tc.raw)
		if err != nil {
			t.Fatalf("ParseStudentID(%q): %v", tc.raw, err)
		}
		if id.Canonical != tc.canonical || id.IsDiploma != tc.diploma ||
			id.Department != tc.dept || id.AdmissionYear != tc.year || id.Roll != tc.roll {
			t.Errorf("ParseStudentID(%q) = %+v", tc.raw, id)
		}

		// Canonical form must re-parse to the same value.
		again, err := ParseStudentID(id.Canonical)
		if err != nil {
			t.Fatalf("re-parse %q: %v", id.Canonical, err)
		}
		if again != id {
			t.Errorf("re-parse %q = %+v, want %+v", id.Canonical, again, id)
		}
	}
}

func TestParseStudentIDInvalid(t *testing.T) {
	for _, raw := range []string{
		"", "24it18", "24it1811", "2it181", "241t181", "24me181", "dd24it181", "24it181x",
	} {
		if _, err := ParseStudentID(raw); err == nil {
			t.Errorf("ParseStudentID(%q) succeeded, want error", raw)
		}
	}
}

func TestFromEmail(t *testing.T) {
	id, err := FromEmail("D24IT176@charusat.edu.in")
	if err != nil {
		t.Fatalf("FromEmail: %v", err)
	}
	if id.Canonical != "d24it176" || !id.IsDiploma || id.Department != "IT" {
		t.Errorf("FromEmail = %+v", id)
	}

	if _, err := FromEmail("24it181@gmail.com"); err == nil {
		t.Error("non-institutional domain accepted")
	}
	if _, err := FromEmail("notanid@charusat.edu.in"); err == nil {
		t.Error("malformed local part accepted")
	}
}

func TestNormalizeDivision(t *testing.T) {
	cases := map[string]string{
		"IT 1":        "1",
		"01":          "1",
		"Division 01": "1",
		"CSE2":        "2",
		"IT Division": "ITDIVISION",
		"  a b ":      "AB",
		"00":          "0",
	}
	for in, want := range cases {
		got := NormalizeDivision(in)
		if got != want {
			t.Errorf("NormalizeDivision(%q) = %q, want %q", in, got, want)
		}
		// Idempotence.
		if again := NormalizeDivision(got); again != got {
			t.Errorf("NormalizeDivision(%q) not idempotent: %q -> %q", in, got, again)
		}
	}
}

package handler

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// flexString accepts a JSON string or number. Several clients send
// semesters as bare numbers; everything downstream wants strings.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = flexString(t)
	case float64:
		*s = flexString(strconv.FormatFloat(t, 'f', -1, 64))
	default:
		return fmt.Errorf("expected string or number, got %T", v)
	}
	return nil
}

// first returns the first non-empty value. Payload fields arrive under
// several historical names; the earlier name wins.
func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

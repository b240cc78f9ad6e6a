package merge

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	dateRe  = regexp.MustCompile(`\d{4}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)
	digitRe = regexp.MustCompile(`\d`)
)

// Validate applies the per-slot shape check. Permissive by default: the
// engine favours capturing data and flagging concerns in the summary over
// blocking the interview. Booleans and lists (including the empty list,
// which records an explicit "none") are always valid.
func Validate(slotID string, value any) (bool, string) {
	switch t := value.(type) {
	case nil:
		return false, "missing_value"
	case bool:
		return true, ""
	case []string:
		return true, ""
	case string:
		if strings.TrimSpace(t) == "" {
			return false, "empty_value"
		}
		return validateString(slotID, strings.TrimSpace(t))
	case float64:
		if isCountSlot(slotID) && t < 0 {
			return false, "negative_count"
		}
		return true, ""
	case int:
		if isCountSlot(slotID) && t < 0 {
			return false, "negative_count"
		}
		return true, ""
	default:
		return true, ""
	}
}

func validateString(slotID, s string) (bool, string) {
	id := strings.ToLower(slotID)

	switch {
	case strings.Contains(id, "email"):
		if !emailRe.MatchString(s) {
			return false, "invalid_email"
		}
	case strings.Contains(id, "phone"):
		if len(digitRe.FindAllString(s, -1)) < 7 {
			return false, "invalid_phone"
		}
	case id == "dob" || strings.Contains(id, "date"):
		if !dateRe.MatchString(s) {
			return false, "invalid_date"
		}
	case isCountSlot(id):
		n, err := strconv.Atoi(extractDigits(s))
		if err != nil {
			return false, "not_a_count"
		}
		if n < 0 {
			return false, "negative_count"
		}
	}

	return true, ""
}

func isCountSlot(slotID string) bool {
	id := strings.ToLower(slotID)
	for _, marker := range []string{"months", "count", "age", "num"} {
		if strings.Contains(id, marker) {
			return true
		}
	}
	return false
}

func extractDigits(s string) string {
	digits := digitRe.FindAllString(s, -1)
	if len(digits) == 0 {
		return s
	}
	return strings.Join(digits, "")
}

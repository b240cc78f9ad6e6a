package merge

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Normalizer transforms an accepted value before it is stored. Normalizers
// are declarative per-slot transforms, not ad hoc string edits.
type Normalizer func(value any) any

var ageRe = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?\s*old|y/?o)\b`)

func registerDefaults(e *Engine) {
	e.RegisterNormalizer("dob", AgePhraseToBirthYear)
	e.RegisterNormalizer("has_partner", CoerceBoolIntent)
}

// AgePhraseToBirthYear converts an age-in-years answer ("I'm 35 years old")
// into an approximate birth-year placeholder. Real dates pass through
// untouched.
func AgePhraseToBirthYear(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	m := ageRe.FindStringSubmatch(s)
	if m == nil {
		return value
	}
	age, err := strconv.Atoi(m[1])
	if err != nil {
		return value
	}
	year := time.Now().Year() - age
	return fmt.Sprintf("approx. %d (from age %d)", year, age)
}

// CoerceBoolIntent maps a marital/partnership phrase onto a boolean.
// Unrecognised phrases are stored verbatim.
func CoerceBoolIntent(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	if b, ok := BoolIntent(s); ok {
		return b
	}
	return value
}

var (
	affirmativeTokens = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "true": true,
		"correct": true, "affirmative": true, "sure": true,
		"married": true, "partnered": true, "engaged": true, "together": true,
	}
	negativeTokens = map[string]bool{
		"no": true, "n": true, "nope": true, "false": true,
		"single": true, "divorced": true, "widowed": true, "separated": true,
		"unpartnered": true,
	}
	negationTokens = map[string]bool{
		"not": true, "never": true, "dont": true, "don't": true,
	}
)

// BoolIntent classifies a free-text phrase as boolean intent. The second
// return reports whether any recognised token was found; "not married"
// style negations invert the match.
func BoolIntent(s string) (bool, bool) {
	negate := false
	for _, raw := range strings.Fields(strings.ToLower(s)) {
		tok := strings.Trim(raw, ".,!?;:'\"()")
		if negationTokens[tok] {
			negate = true
			continue
		}
		if affirmativeTokens[tok] {
			return !negate, true
		}
		if negativeTokens[tok] {
			return negate, true
		}
	}
	return false, false
}

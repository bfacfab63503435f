// Package period normalises the school-year and term labels that, together with the student,
// identify a tuition ledger.
package period

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var reYear = regexp.MustCompile(`^(?:SY\s*)?(\d{4})\s*[-/]\s*(\d{4})$`)

// NormalizeSchoolYear accepts "2024-2025", "2024/2025" or "SY 2024-2025" and returns "2024-2025".
// The second year must follow the first.
func NormalizeSchoolYear(s string) (string, error) {
	m := reYear.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return "", errors.New("school year must look like 2024-2025")
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	if to != from+1 {
		return "", errors.New("school year must span consecutive years")
	}
	return m[1] + "-" + m[2], nil
}

// TermKey converts a display term ("1st Term", "First Semester") to a comparison key:
// lowercase, runs of anything outside [a-z0-9] collapsed to one '_', trimmed, max 40 chars.
func TermKey(term string) string {
	out := make([]rune, 0, len(term))
	prevUnderscore := false
	for _, r := range strings.ToLower(term) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			prevUnderscore = false
		} else if !prevUnderscore {
			out = append(out, '_')
			prevUnderscore = true
		}
		if len(out) >= 40 {
			break
		}
	}
	return strings.Trim(string(out), "_")
}

// NormalizeTerm trims the display term and rejects labels without any letters or digits.
func NormalizeTerm(term string) (string, error) {
	term = strings.Join(strings.Fields(term), " ")
	if TermKey(term) == "" {
		return "", errors.New("term is required")
	}
	return term, nil
}

// Key identifies the (student, school year, term) triple of which at most one ledger may exist.
func Key(studentID uuid.UUID, schoolYear, term string) string {
	return studentID.String() + "|" + schoolYear + "|" + TermKey(term)
}

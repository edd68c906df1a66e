package extraction

import (
	"regexp"
	"time"

	"github.com/bancoagil/receipt-validator/internal/cpf"
)

// cpfStrategy is one pattern in the ordered CPF search. Strategies are tried
// top to bottom and the first hit wins, so the unambiguous formatted shape
// always beats a bare 11-digit token that might be something else entirely.
type cpfStrategy struct {
	name    string
	pattern *regexp.Regexp
}

var cpfStrategies = []cpfStrategy{
	{"formatted", regexp.MustCompile(`\d{3}\.\d{3}\.\d{3}-\d{2}`)},
	{"labeled", regexp.MustCompile(`(?i)CPF\s*:\s*(\d{11})`)},
	{"bare", regexp.MustCompile(`\b\d{11}\b`)},
	{"spaced", regexp.MustCompile(`\b\d{3} \d{3} \d{3} \d{2}\b`)},
}

// CPF returns the first CPF-shaped token in the text, separators stripped,
// or "" when no strategy matches.
func CPF(text string) string {
	for _, s := range cpfStrategies {
		m := s.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hit := m[0]
		if len(m) > 1 {
			hit = m[1]
		}
		return cpf.Normalize(hit)
	}
	return ""
}

// Date patterns, tried in order: full year first, then 2-digit year.
// The 2-digit-year shape ends on a word boundary so it cannot match the
// first half of a 4-digit year.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{4})`),
	regexp.MustCompile(`(\d{2})[/-](\d{2})[/-](\d{2})\b`),
}

// Labeled variants are tried before the bare shapes so a date sitting next to
// an explicit label wins over the first random date in the document.
var paymentDateLabeled = regexp.MustCompile(`(?i)(?:data|pagamento|pago em|realizado em)[:\s]*(\d{2})[/-](\d{2})[/-](\d{4})`)

var dueDateLabeled = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:vencimento|due|payment)\D{0,20}?(\d{2})[/-](\d{2})[/-](\d{4})`),
	regexp.MustCompile(`(?i)(?:vencimento|due|payment)\D{0,20}?(\d{2})[/-](\d{2})[/-](\d{2})\b`),
}

// parseDate builds a date from dd, mm, yy(yy) captures. 2-digit years are
// normalized by adding 2000. Years outside [2020, 2030] are rejected to guard
// against unrelated numbers that happen to look like dates.
func parseDate(match []string) (time.Time, bool) {
	day := atoi2(match[1])
	month := atoi2(match[2])
	year := 0
	for _, c := range match[3] {
		year = year*10 + int(c-'0')
	}
	if len(match[3]) == 2 {
		year += 2000
	}
	if year < 2020 || year > 2030 {
		return time.Time{}, false
	}

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range components (32/01 becomes 01/02),
	// so round-trip the components to reject impossible dates.
	if d.Day() != day || d.Month() != time.Month(month) || d.Year() != year {
		return time.Time{}, false
	}
	return d, true
}

func atoi2(s string) int {
	return int(s[0]-'0')*10 + int(s[1]-'0')
}

// AllDates returns every structurally valid date found in the text
func AllDates(text string) []time.Time {
	var dates []time.Time
	for _, p := range datePatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if d, ok := parseDate(m); ok {
				dates = append(dates, d)
			}
		}
	}
	return dates
}

// PaymentDate returns the document's payment date: a labeled date if one
// exists, otherwise the first valid date in the text, otherwise nil.
func PaymentDate(text string) *time.Time {
	if m := paymentDateLabeled.FindStringSubmatch(text); m != nil {
		if d, ok := parseDate(m); ok {
			return &d
		}
	}
	return firstDate(text)
}

// DueDate returns the due date stated on the document: a date following a
// vencimento/due label if one exists, otherwise the first valid date in the
// text, otherwise nil.
func DueDate(text string) *time.Time {
	for _, p := range dueDateLabeled {
		if m := p.FindStringSubmatch(text); m != nil {
			if d, ok := parseDate(m); ok {
				return &d
			}
		}
	}
	return firstDate(text)
}

func firstDate(text string) *time.Time {
	for _, p := range datePatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			if d, ok := parseDate(m); ok {
				return &d
			}
		}
	}
	return nil
}

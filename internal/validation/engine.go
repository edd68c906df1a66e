// Package validation scores extracted receipt text against an expected
// billing obligation. Each check is independent; a receipt is accepted when
// at least min(3, total) checks pass.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bancoagil/receipt-validator/internal/cpf"
	"github.com/bancoagil/receipt-validator/internal/extraction"
)

// minReadableLength is the minimum trimmed text length before any check runs
const minReadableLength = 20

// DefaultDateTolerance bounds how far from "now" a date on the document may
// be and still count as recent.
const DefaultDateTolerance = 30 * 24 * time.Hour

// Check names, stable across releases: callers key UI and audit output on them.
const (
	CheckCPF           = "cpf"
	CheckAmount        = "amount"
	CheckDate          = "date"
	CheckDueDate       = "due_date"
	CheckDigitableLine = "digitable_line"
	CheckKeywords      = "keywords"
)

// Check is the outcome of one independent validation
type Check struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
	Evidence string `json:"evidence,omitempty"`
}

// Result is the aggregate outcome of a validation run. It is never mutated
// after Validate returns.
type Result struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message"`
	Checks  []Check `json:"checks"`
	Score   string  `json:"score"`
}

// Expectations describes the obligation the document is validated against
type Expectations struct {
	CPF           string
	AmountCents   int64
	DueDate       *time.Time
	DigitableLine string
}

// Engine runs the weighted document checks
type Engine struct {
	tolerance time.Duration
	now       func() time.Time
}

// NewEngine creates an Engine with the given date tolerance
func NewEngine(tolerance time.Duration) *Engine {
	return NewEngineWithClock(tolerance, time.Now)
}

// NewEngineWithClock creates an Engine with a custom clock for testing
func NewEngineWithClock(tolerance time.Duration, now func() time.Time) *Engine {
	if tolerance <= 0 {
		tolerance = DefaultDateTolerance
	}
	return &Engine{tolerance: tolerance, now: now}
}

// Validate runs every applicable check over the extracted text. Text shorter
// than 20 characters short-circuits to invalid without running any check.
func (e *Engine) Validate(text string, exp Expectations) Result {
	if len(strings.TrimSpace(text)) < minReadableLength {
		return Result{
			Valid:   false,
			Message: "Comprovante ilegível ou vazio.",
			Score:   "0/0",
		}
	}

	checks := []Check{
		e.checkCPF(text, exp.CPF),
		e.checkAmount(text, exp.AmountCents),
		e.checkRecency(text),
	}
	if exp.DueDate != nil {
		checks = append(checks, e.checkDueDate(text, *exp.DueDate))
	}
	if exp.DigitableLine != "" {
		checks = append(checks, e.checkDigitableLine(text, exp.DigitableLine))
	}
	checks = append(checks, e.checkKeywords(text))

	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}

	threshold := len(checks)
	if threshold > 3 {
		threshold = 3
	}
	valid := passed >= threshold

	message := "Comprovante validado com sucesso."
	if !valid {
		var failed []string
		for _, c := range checks {
			if !c.Passed {
				failed = append(failed, c.Name)
			}
		}
		message = fmt.Sprintf("Comprovante inválido. Falhas: %s", strings.Join(failed, ", "))
	}

	return Result{
		Valid:   valid,
		Message: message,
		Checks:  checks,
		Score:   fmt.Sprintf("%d/%d", passed, len(checks)),
	}
}

// checkCPF passes when the expected CPF appears verbatim in either its raw
// digit or formatted rendering.
func (e *Engine) checkCPF(text, expected string) Check {
	digits := cpf.Normalize(expected)
	formatted := cpf.Format(digits)
	found := digits != "" && (strings.Contains(text, digits) || strings.Contains(text, formatted))

	message := "CPF não encontrado"
	if found {
		message = "CPF encontrado"
	}
	return Check{Name: CheckCPF, Passed: found, Message: message, Evidence: formatted}
}

// amountPattern matches Brazilian currency renderings like "R$ 1.350,68"
var amountPattern = regexp.MustCompile(`R?\$?\s*(\d{1,3}(?:\.\d{3})*,\d{2})`)

// checkAmount passes when the expected amount appears in a common currency
// rendering, or any currency-looking number in the text is within 1% of it.
// A zero expected amount skips the relative-tolerance scan; only an exact
// rendering counts.
func (e *Engine) checkAmount(text string, cents int64) Check {
	grouped := formatAmountBR(cents, true)
	plain := formatAmountBR(cents, false)
	candidates := []string{grouped, plain, "R$ " + grouped, "R$ " + plain}

	found := false
	for _, c := range candidates {
		if strings.Contains(text, c) {
			found = true
			break
		}
	}

	if !found && cents > 0 {
		for _, m := range amountPattern.FindAllStringSubmatch(text, -1) {
			v, err := parseAmountBR(m[1])
			if err != nil {
				continue
			}
			diff := v - cents
			if diff < 0 {
				diff = -diff
			}
			if float64(diff)/float64(cents) <= 0.01 {
				found = true
				break
			}
		}
	}

	message := "Valor não encontrado"
	if found {
		message = "Valor encontrado"
	}
	return Check{Name: CheckAmount, Passed: found, Message: message, Evidence: "R$ " + grouped}
}

// checkRecency passes when at least one date on the document is within the
// tolerance of now. A document with no detectable date also passes; absence
// is only penalized by checkDueDate, which is strict.
func (e *Engine) checkRecency(text string) Check {
	dates := extraction.AllDates(text)
	if len(dates) == 0 {
		return Check{Name: CheckDate, Passed: true, Message: "Nenhuma data encontrada"}
	}

	now := e.now()
	for _, d := range dates {
		diff := now.Sub(d)
		if diff < 0 {
			diff = -diff
		}
		if diff <= e.tolerance {
			return Check{
				Name:     CheckDate,
				Passed:   true,
				Message:  "Data válida",
				Evidence: d.Format("02/01/2006"),
			}
		}
	}
	return Check{Name: CheckDate, Passed: false, Message: "Data fora do prazo"}
}

// checkDueDate passes only when a payment date can be extracted and it is on
// or before the expected due date. A missing payment date fails this check.
func (e *Engine) checkDueDate(text string, due time.Time) Check {
	payment := extraction.PaymentDate(text)
	if payment == nil {
		return Check{
			Name:     CheckDueDate,
			Passed:   false,
			Message:  "Data de pagamento não encontrada no comprovante",
			Evidence: due.Format("02/01/2006"),
		}
	}

	evidence := fmt.Sprintf("pagamento %s, vencimento %s",
		payment.Format("02/01/2006"), due.Format("02/01/2006"))

	if OnTime(*payment, due) {
		return Check{
			Name:     CheckDueDate,
			Passed:   true,
			Message:  "Pagamento realizado antes do vencimento",
			Evidence: evidence,
		}
	}
	return Check{
		Name:     CheckDueDate,
		Passed:   false,
		Message:  fmt.Sprintf("Pagamento realizado %d dia(s) após o vencimento", DaysLate(*payment, due)),
		Evidence: evidence,
	}
}

// digitableStrip removes spaces and dots from a digitable line
var digitableStrip = regexp.MustCompile(`[\s.]`)

// checkDigitableLine passes when the obligation's digitable line, separators
// stripped, appears in the text. OCR often mangles the tail, so a prefix of
// 15 digits is accepted as well.
func (e *Engine) checkDigitableLine(text, line string) Check {
	cleanLine := digitableStrip.ReplaceAllString(line, "")
	cleanText := digitableStrip.ReplaceAllString(text, "")

	found := strings.Contains(cleanText, cleanLine)
	if !found && len(cleanLine) >= 15 {
		found = strings.Contains(cleanText, cleanLine[:15])
	}

	message := "Código de barras não encontrado"
	if found {
		message = "Código de barras encontrado"
	}
	evidence := line
	if len(evidence) > 20 {
		evidence = evidence[:20] + "..."
	}
	return Check{Name: CheckDigitableLine, Passed: found, Message: message, Evidence: evidence}
}

// keywords is the fixed vocabulary a plausible Brazilian payment receipt
// draws from
var keywords = []string{
	"comprovante", "pagamento", "transferência", "pix", "boleto",
	"quitação", "valor", "data", "autenticação", "banco", "agência", "conta",
}

// checkKeywords passes when at least 3 vocabulary words appear in the text
func (e *Engine) checkKeywords(text string) Check {
	lower := strings.ToLower(text)
	var found []string
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}

	evidence := found
	if len(evidence) > 5 {
		evidence = evidence[:5]
	}
	return Check{
		Name:     CheckKeywords,
		Passed:   len(found) >= 3,
		Message:  fmt.Sprintf("%d palavras-chave encontradas", len(found)),
		Evidence: strings.Join(evidence, ", "),
	}
}

// OnTime reports whether a payment made on payment settles an obligation due
// on due. Equal dates are on time.
func OnTime(payment, due time.Time) bool {
	return !dateOnly(payment).After(dateOnly(due))
}

// DaysLate returns how many whole days payment falls after due, or 0 when on time
func DaysLate(payment, due time.Time) int {
	if OnTime(payment, due) {
		return 0
	}
	return int(dateOnly(payment).Sub(dateOnly(due)).Hours() / 24)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// formatAmountBR renders cents as a Brazilian decimal string, optionally with
// thousands grouping ("1.350,68" vs "1350,68").
func formatAmountBR(cents int64, grouped bool) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}

	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	if grouped {
		var parts []string
		for len(digits) > 3 {
			parts = append([]string{digits[len(digits)-3:]}, parts...)
			digits = digits[:len(digits)-3]
		}
		parts = append([]string{digits}, parts...)
		digits = strings.Join(parts, ".")
	}

	s := fmt.Sprintf("%s,%02d", digits, frac)
	if neg {
		s = "-" + s
	}
	return s
}

// parseAmountBR parses a "1.350,68" style token into cents
func parseAmountBR(s string) (int64, error) {
	s = strings.ReplaceAll(s, ".", "")
	parts := strings.Split(s, ",")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("malformed amount %q", s)
	}

	var cents int64
	for _, c := range parts[0] + parts[1] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("malformed amount %q", s)
		}
		cents = cents*10 + int64(c-'0')
	}
	return cents, nil
}

package receipt

import (
	"fmt"

	"github.com/bancoagil/receipt-validator/internal/cpf"
)

// FraudGuard verifies that the payer identified on a receipt is the same
// person authenticated for the session submitting it.
type FraudGuard struct{}

// VerifyOwnership reports whether the extracted and session CPFs identify
// the same person. Both sides are normalized to digits before comparison.
func (FraudGuard) VerifyOwnership(extracted, session string) bool {
	return cpf.Normalize(extracted) == cpf.Normalize(session)
}

// MismatchMessage builds the user-facing rejection for an ownership
// mismatch. Only the last three digits of either CPF are ever exposed.
func (FraudGuard) MismatchMessage(extracted, session string) string {
	return fmt.Sprintf(
		"Este comprovante pertence ao CPF %s, mas a sessão está autenticada para o CPF %s. Envie o comprovante da sua própria negociação.",
		cpf.Mask(extracted), cpf.Mask(session),
	)
}

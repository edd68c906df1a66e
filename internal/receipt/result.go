package receipt

import "github.com/bancoagil/receipt-validator/internal/validation"

// Code is the terminal state of one pipeline run
type Code string

// Pipeline terminal states. Every code except CodeAccepted is a business
// rejection; infrastructure failures are reported through the error channel
// of ProcessReceipt instead.
const (
	CodeAccepted          Code = "ACCEPTED"
	CodeCPFNotFound       Code = "CPF_NOT_FOUND"
	CodeCPFInvalid        Code = "CPF_INVALID"
	CodeNoObligation      Code = "NO_OBLIGATION"
	CodeDueDateMismatch   Code = "DUE_DATE_MISMATCH"
	CodeObligationExpired Code = "OBLIGATION_EXPIRED"
	CodeValidationFailed  Code = "VALIDATION_FAILED"
	CodeOwnershipMismatch Code = "OWNERSHIP_MISMATCH"
)

// Result is the tagged outcome of one receipt submission
type Result struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// CPF carries the extracted payer identifier for rejections the
	// submitter may act on; it is masked for ownership mismatches
	CPF string `json:"cpf,omitempty"`

	// DaysLate is set for OBLIGATION_EXPIRED
	DaysLate int `json:"days_late,omitempty"`

	// Validation carries the per-check breakdown for VALIDATION_FAILED
	// and ACCEPTED, for UI display and audit
	Validation *validation.Result `json:"validation,omitempty"`

	// TextPreview carries the first part of the extracted text for
	// CPF_NOT_FOUND so users can self-diagnose unreadable documents
	TextPreview string `json:"text_preview,omitempty"`

	// Obligation and Receipt are set for ACCEPTED
	Obligation *Obligation    `json:"obligation,omitempty"`
	Receipt    *StoredReceipt `json:"receipt,omitempty"`
}

// Rejected reports whether the result is a business rejection
func (r *Result) Rejected() bool {
	return r.Code != CodeAccepted
}

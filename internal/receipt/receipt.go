package receipt

import "time"

// Obligation statuses
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusExpired = "EXPIRED"
)

// Customer is a debtor record in the ledger
type Customer struct {
	CPF            string    `json:"cpf"`
	Name           string    `json:"name"`
	TotalDebtCents int64     `json:"total_debt"` // Debt in cents
	Profile        string    `json:"profile"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Obligation is an outstanding billed amount owed by a CPF
type Obligation struct {
	ID            string    `json:"id"`
	CPF           string    `json:"cpf"`
	DigitableLine string    `json:"digitable_line,omitempty"`
	DueDate       time.Time `json:"due_date"`
	AmountCents   int64     `json:"amount"` // Amount in cents
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StoredReceipt is a validated, accepted payment receipt. It is only created
// after a document passes every pipeline stage.
type StoredReceipt struct {
	ID           string    `json:"id"`
	ObligationID string    `json:"obligation_id"`
	StoredPath   string    `json:"stored_path"`
	OriginalName string    `json:"original_name"`
	ReceivedAt   time.Time `json:"received_at"`
}

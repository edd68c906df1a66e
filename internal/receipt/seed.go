package receipt

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// seedEntry is one demo debtor with a single open obligation
type seedEntry struct {
	cpf           string
	name          string
	debtCents     int64
	profile       string
	amountCents   int64
	digitableLine string
}

// Demo ledger rows for local development. The CPFs are checksum-valid.
var seedEntries = []seedEntry{
	{
		cpf:           "30131864025",
		name:          "João da Silva",
		debtCents:     150075,
		profile:       "Amigável",
		amountCents:   135068,
		digitableLine: "23793.38128 60007.827136 95000.063305 9 84340000135068",
	},
	{
		cpf:           "98765432100",
		name:          "Maria Oliveira",
		debtCents:     45000,
		profile:       "Contencioso",
		amountCents:   42750,
		digitableLine: "23793.38128 60007.827136 95000.063313 7 84340000042750",
	},
	{
		cpf:           "15263533004",
		name:          "Carlos Pereira",
		debtCents:     320050,
		profile:       "Amigável",
		amountCents:   300000,
		digitableLine: "23793.38128 60007.827136 95000.063321 5 84340000300000",
	},
}

// Seed populates the ledger with demo customers, each owing one pending
// obligation due two weeks out. Existing rows are overwritten.
func Seed(db DB) error {
	now := time.Now()
	due := now.AddDate(0, 0, 14)

	for _, e := range seedEntries {
		customer := &Customer{
			CPF:            e.cpf,
			Name:           e.name,
			TotalDebtCents: e.debtCents,
			Profile:        e.profile,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := db.SaveCustomer(customer); err != nil {
			return fmt.Errorf("seeding customer %s: %w", e.cpf, err)
		}

		obligation := &Obligation{
			ID:            uuid.NewString(),
			CPF:           e.cpf,
			DigitableLine: e.digitableLine,
			DueDate:       due,
			AmountCents:   e.amountCents,
			Status:        StatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := db.SaveObligation(obligation); err != nil {
			return fmt.Errorf("seeding obligation for %s: %w", e.cpf, err)
		}
	}
	return nil
}

package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var db *BoltDB

	BeforeEach(func() {
		var err error
		db, err = NewBoltDB(filepath.Join(GinkgoT().TempDir(), "ledger.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(db.Close()).To(Succeed())
	})

	Describe("customers", func() {
		It("should round-trip a customer by CPF", func() {
			customer := &Customer{
				CPF:            "11144477735",
				Name:           "João da Silva",
				TotalDebtCents: 135068,
				Profile:        "inadimplente",
				CreatedAt:      time.Now().UTC(),
			}
			Expect(db.SaveCustomer(customer)).To(Succeed())

			loaded, err := db.GetCustomer("11144477735")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Name).To(Equal("João da Silva"))
			Expect(loaded.TotalDebtCents).To(Equal(int64(135068)))
		})

		It("should fail for an unknown CPF", func() {
			_, err := db.GetCustomer("99999999999")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("obligations", func() {
		var due time.Time

		BeforeEach(func() {
			due = time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC)
			Expect(db.SaveObligation(&Obligation{
				ID:          "ob-1",
				CPF:         "11144477735",
				DueDate:     due,
				AmountCents: 135068,
				Status:      StatusPending,
			})).To(Succeed())
		})

		Describe("FindObligation", func() {
			It("should find the pending obligation for a CPF", func() {
				obligation, err := db.FindObligation("11144477735")
				Expect(err).NotTo(HaveOccurred())
				Expect(obligation).NotTo(BeNil())
				Expect(obligation.ID).To(Equal("ob-1"))
				Expect(obligation.DueDate.Equal(due)).To(BeTrue())
			})

			It("should return nil without error for an unknown CPF", func() {
				obligation, err := db.FindObligation("98765432100")
				Expect(err).NotTo(HaveOccurred())
				Expect(obligation).To(BeNil())
			})

			It("should prefer the earliest due date among pending obligations", func() {
				Expect(db.SaveObligation(&Obligation{
					ID:          "ob-2",
					CPF:         "11144477735",
					DueDate:     due.AddDate(0, 0, -10),
					AmountCents: 5000,
					Status:      StatusPending,
				})).To(Succeed())

				obligation, err := db.FindObligation("11144477735")
				Expect(err).NotTo(HaveOccurred())
				Expect(obligation.ID).To(Equal("ob-2"))
			})

			It("should skip paid obligations", func() {
				Expect(db.MarkObligationPaid("ob-1")).To(Succeed())

				obligation, err := db.FindObligation("11144477735")
				Expect(err).NotTo(HaveOccurred())
				Expect(obligation).To(BeNil())
			})
		})

		Describe("MarkObligationPaid", func() {
			It("should flip the status to PAID", func() {
				Expect(db.MarkObligationPaid("ob-1")).To(Succeed())

				obligation, err := db.FindObligation("11144477735")
				Expect(err).NotTo(HaveOccurred())
				Expect(obligation).To(BeNil())
			})

			It("should fail for an unknown ID", func() {
				Expect(db.MarkObligationPaid("nope")).NotTo(Succeed())
			})
		})
	})

	Describe("receipts", func() {
		It("should round-trip a receipt record", func() {
			receipt := &StoredReceipt{
				ID:           "r-1",
				ObligationID: "ob-1",
				StoredPath:   "/data/receipts/11144477735_r-1_comprovante.pdf",
				OriginalName: "comprovante.pdf",
				ReceivedAt:   time.Now().UTC(),
			}
			Expect(db.SaveReceipt(receipt)).To(Succeed())

			loaded, err := db.GetReceipt("r-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.ObligationID).To(Equal("ob-1"))
			Expect(loaded.OriginalName).To(Equal("comprovante.pdf"))
		})

		It("should list all receipt records", func() {
			Expect(db.SaveReceipt(&StoredReceipt{ID: "r-1"})).To(Succeed())
			Expect(db.SaveReceipt(&StoredReceipt{ID: "r-2"})).To(Succeed())

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(2))
		})

		It("should return an empty list when there are no receipts", func() {
			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
		})

		It("should delete a receipt record", func() {
			Expect(db.SaveReceipt(&StoredReceipt{ID: "r-1"})).To(Succeed())
			Expect(db.DeleteReceipt("r-1")).To(Succeed())

			_, err := db.GetReceipt("r-1")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("sessions", func() {
		It("should round-trip the authenticated CPF", func() {
			Expect(db.SaveSession("sess-1", "11144477735")).To(Succeed())

			cpf, err := db.AuthenticatedCPF("sess-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(cpf).To(Equal("11144477735"))
		})

		It("should return empty for an unknown session", func() {
			cpf, err := db.AuthenticatedCPF("nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(cpf).To(BeEmpty())
		})
	})
})

var _ = Describe("Seed", func() {
	It("should create customers and pending obligations with valid CPFs", func() {
		db := newMockDB()
		Expect(Seed(db)).To(Succeed())
		Expect(db.customers).NotTo(BeEmpty())

		for cpfNumber := range db.customers {
			obligation, err := db.FindObligation(cpfNumber)
			Expect(err).NotTo(HaveOccurred())
			Expect(obligation).NotTo(BeNil())
			Expect(obligation.Status).To(Equal(StatusPending))
		}
	})
})

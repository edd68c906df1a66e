package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	customerBucketName   = "customers"
	obligationBucketName = "obligations"
	receiptBucketName    = "receipts"
	sessionBucketName    = "sessions"
)

// DB defines the interface for ledger and receipt persistence
type DB interface {
	// SaveCustomer saves a customer to the ledger
	SaveCustomer(customer *Customer) error

	// GetCustomer retrieves a customer by CPF
	GetCustomer(cpf string) (*Customer, error)

	// SaveObligation saves an obligation to the ledger
	SaveObligation(obligation *Obligation) error

	// FindObligation returns the pending obligation with the earliest due
	// date for a CPF, or nil when the CPF has none
	FindObligation(cpf string) (*Obligation, error)

	// MarkObligationPaid sets an obligation's status to PAID
	MarkObligationPaid(id string) error

	// SaveReceipt saves an accepted receipt record
	SaveReceipt(receipt *StoredReceipt) error

	// GetReceipt retrieves a receipt record by ID
	GetReceipt(id string) (*StoredReceipt, error)

	// ListReceipts returns all receipt records
	ListReceipts() ([]*StoredReceipt, error)

	// DeleteReceipt removes a receipt record
	DeleteReceipt(id string) error

	// SaveSession records the CPF authenticated for a session
	SaveSession(sessionID, cpf string) error

	// AuthenticatedCPF returns the CPF authenticated for a session, or ""
	// when the session is unknown or carries no identity
	AuthenticatedCPF(sessionID string) (string, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{customerBucketName, obligationBucketName, receiptBucketName, sessionBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveCustomer saves a customer to the ledger
func (b *BoltDB) SaveCustomer(customer *Customer) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(customerBucketName))
		data, err := json.Marshal(customer)
		if err != nil {
			return fmt.Errorf("marshaling customer: %w", err)
		}
		return bucket.Put([]byte(customer.CPF), data)
	})
}

// GetCustomer retrieves a customer by CPF
func (b *BoltDB) GetCustomer(cpf string) (*Customer, error) {
	var customer *Customer
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(customerBucketName))
		data := bucket.Get([]byte(cpf))
		if data == nil {
			return fmt.Errorf("customer not found: %s", cpf)
		}
		return json.Unmarshal(data, &customer)
	})
	if err != nil {
		return nil, err
	}
	return customer, nil
}

// SaveObligation saves an obligation to the ledger
func (b *BoltDB) SaveObligation(obligation *Obligation) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(obligationBucketName))
		data, err := json.Marshal(obligation)
		if err != nil {
			return fmt.Errorf("marshaling obligation: %w", err)
		}
		return bucket.Put([]byte(obligation.ID), data)
	})
}

// FindObligation returns the pending obligation with the earliest due date
// for a CPF. A nil result with a nil error means the CPF has no open
// obligation; that is a business outcome, not a database failure.
func (b *BoltDB) FindObligation(cpf string) (*Obligation, error) {
	var found *Obligation
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(obligationBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var obligation Obligation
			if err := json.Unmarshal(v, &obligation); err != nil {
				return fmt.Errorf("unmarshaling obligation: %w", err)
			}
			if obligation.CPF != cpf || obligation.Status != StatusPending {
				return nil
			}
			if found == nil || obligation.DueDate.Before(found.DueDate) {
				o := obligation
				found = &o
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// MarkObligationPaid sets an obligation's status to PAID
func (b *BoltDB) MarkObligationPaid(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(obligationBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("obligation not found: %s", id)
		}
		var obligation Obligation
		if err := json.Unmarshal(data, &obligation); err != nil {
			return fmt.Errorf("unmarshaling obligation: %w", err)
		}
		obligation.Status = StatusPaid
		obligation.UpdatedAt = time.Now()
		updated, err := json.Marshal(&obligation)
		if err != nil {
			return fmt.Errorf("marshaling obligation: %w", err)
		}
		return bucket.Put([]byte(id), updated)
	})
}

// SaveReceipt saves an accepted receipt record
func (b *BoltDB) SaveReceipt(receipt *StoredReceipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data, err := json.Marshal(receipt)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		return bucket.Put([]byte(receipt.ID), data)
	})
}

// GetReceipt retrieves a receipt record by ID
func (b *BoltDB) GetReceipt(id string) (*StoredReceipt, error) {
	var receipt *StoredReceipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", id)
		}
		return json.Unmarshal(data, &receipt)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipt records
func (b *BoltDB) ListReceipts() ([]*StoredReceipt, error) {
	receipts := make([]*StoredReceipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var receipt StoredReceipt
			if err := json.Unmarshal(v, &receipt); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt record
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveSession records the CPF authenticated for a session
func (b *BoltDB) SaveSession(sessionID, cpf string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		return bucket.Put([]byte(sessionID), []byte(cpf))
	})
}

// AuthenticatedCPF returns the CPF authenticated for a session
func (b *BoltDB) AuthenticatedCPF(sessionID string) (string, error) {
	var cpf string
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(sessionBucketName))
		cpf = string(bucket.Get([]byte(sessionID)))
		return nil
	})
	if err != nil {
		return "", err
	}
	return cpf, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

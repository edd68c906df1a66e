// Package receipt implements the payment-receipt validation pipeline: text
// extraction, ledger lookup, temporal checks, scoring, ownership verification
// and persistence of accepted receipts.
package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bancoagil/receipt-validator/internal/cpf"
	"github.com/bancoagil/receipt-validator/internal/extraction"
	"github.com/bancoagil/receipt-validator/internal/validation"
)

// IDGenerator generates unique IDs for receipts and stored filenames
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// textPreviewLength caps how much extracted text a rejection exposes
const textPreviewLength = 500

// Service runs the receipt validation pipeline. One submission is one
// sequential pipeline invocation; submissions share nothing but the ledger.
type Service struct {
	db          DB
	storage     Storage
	extractor   extraction.TextExtractor
	engine      *validation.Engine
	guard       FraudGuard
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage, extractor extraction.TextExtractor, engine *validation.Engine) *Service {
	return NewServiceWithDeps(db, storage, extractor, engine, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, extractor extraction.TextExtractor, engine *validation.Engine, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		extractor:   extractor,
		engine:      engine,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Remove special characters, keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	// Replace multiple spaces with single space
	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	// Truncate to reasonable length (50 chars for base, plus extension)
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "comprovante"
	}

	return base + ext
}

// ProcessReceipt runs the full validation pipeline over one uploaded
// document. Business rejections come back as a Result with a non-ACCEPTED
// code and a nil error; a non-nil error means the system itself failed and
// the caller should not treat the document as rejected.
//
// The transient copy of the document never outlives this call: it is either
// promoted into permanent storage or deleted, on every exit path.
func (s *Service) ProcessReceipt(ctx context.Context, filename string, contentType string, data []byte, sessionID string) (result *Result, err error) {
	tempName := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename))
	tempPath, err := s.storage.SaveTemp(tempName, data)
	if err != nil {
		return nil, fmt.Errorf("saving transient file: %w", err)
	}

	promoted := false
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing receipt", "filename", filename, "panic", r)
			result, err = nil, fmt.Errorf("processing receipt %s: %v", filename, r)
		}
		if !promoted {
			// Cleanup problems are logged, never allowed to mask the
			// primary outcome.
			if delErr := s.storage.Delete(tempPath); delErr != nil {
				slog.Warn("Failed to delete transient file", "path", tempPath, "error", delErr)
			}
		}
	}()

	// 1. Extract
	text := s.extractor.ExtractText(ctx, tempPath, contentType)

	// 2. Identify the payer
	extractedCPF := extraction.CPF(text)
	if extractedCPF == "" {
		message := "Não foi possível identificar o CPF no comprovante enviado."
		if !s.extractor.OCRAvailable() {
			message = "Não foi possível identificar o CPF no comprovante. O motor de OCR não está disponível no servidor."
		}
		return &Result{Code: CodeCPFNotFound, Message: message, TextPreview: preview(text)}, nil
	}

	// 3. Checksum
	if !cpf.Valid(extractedCPF) {
		return &Result{
			Code:    CodeCPFInvalid,
			Message: fmt.Sprintf("O CPF extraído (%s) é inválido.", cpf.Format(extractedCPF)),
			CPF:     extractedCPF,
		}, nil
	}

	// 4. Ledger lookup
	obligation, err := s.db.FindObligation(extractedCPF)
	if err != nil {
		return nil, fmt.Errorf("looking up obligation: %w", err)
	}
	if obligation == nil {
		return &Result{
			Code:    CodeNoObligation,
			Message: fmt.Sprintf("Não encontramos boletos em aberto para o CPF %s.", cpf.Format(extractedCPF)),
			CPF:     extractedCPF,
		}, nil
	}

	// 5. Temporal checks
	paymentDate := extraction.PaymentDate(text)
	docDueDate := extraction.DueDate(text)

	// Only a due date distinct from the payment date counts as the
	// document "stating" one: the bare-pattern fallback of the due-date
	// strategies can re-find the payment date itself.
	if docDueDate != nil && !sameDay(*docDueDate, obligation.DueDate) {
		if paymentDate == nil || !sameDay(*docDueDate, *paymentDate) {
			return &Result{
				Code: CodeDueDateMismatch,
				Message: fmt.Sprintf("O vencimento informado no comprovante (%s) não confere com o boleto (%s).",
					docDueDate.Format("02/01/2006"), obligation.DueDate.Format("02/01/2006")),
				CPF: extractedCPF,
			}, nil
		}
	}

	if paymentDate != nil && !validation.OnTime(*paymentDate, obligation.DueDate) {
		days := validation.DaysLate(*paymentDate, obligation.DueDate)
		return &Result{
			Code:     CodeObligationExpired,
			Message:  fmt.Sprintf("O pagamento foi realizado %d dia(s) após o vencimento do boleto.", days),
			CPF:      extractedCPF,
			DaysLate: days,
		}, nil
	}

	// 6. Score
	due := obligation.DueDate
	vr := s.engine.Validate(text, validation.Expectations{
		CPF:           extractedCPF,
		AmountCents:   obligation.AmountCents,
		DueDate:       &due,
		DigitableLine: obligation.DigitableLine,
	})
	if !vr.Valid {
		return &Result{
			Code:       CodeValidationFailed,
			Message:    vr.Message,
			CPF:        extractedCPF,
			Validation: &vr,
		}, nil
	}

	// 7. Ownership
	if sessionID != "" {
		sessionCPF, err := s.db.AuthenticatedCPF(sessionID)
		if err != nil {
			return nil, fmt.Errorf("looking up session identity: %w", err)
		}
		if sessionCPF == "" {
			slog.Info("Session has no authenticated CPF, skipping ownership check", "session_id", sessionID)
		} else if !s.guard.VerifyOwnership(extractedCPF, sessionCPF) {
			return &Result{
				Code:    CodeOwnershipMismatch,
				Message: s.guard.MismatchMessage(extractedCPF, sessionCPF),
				CPF:     cpf.Mask(extractedCPF),
			}, nil
		}
	}

	// 8. Persist
	id := s.idGenerator.Generate()
	finalName := fmt.Sprintf("%s_%s_%s", extractedCPF, id, sanitizeFilename(filename))
	finalPath, err := s.storage.Promote(tempPath, finalName)
	if err != nil {
		return nil, fmt.Errorf("promoting receipt file: %w", err)
	}
	promoted = true

	stored := &StoredReceipt{
		ID:           id,
		ObligationID: obligation.ID,
		StoredPath:   finalPath,
		OriginalName: filename,
		ReceivedAt:   s.timeSource.Now(),
	}
	if err := s.db.SaveReceipt(stored); err != nil {
		if delErr := s.storage.Delete(finalPath); delErr != nil {
			slog.Warn("Failed to delete promoted file after database error", "path", finalPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving receipt record: %w", err)
	}
	if err := s.db.MarkObligationPaid(obligation.ID); err != nil {
		if delErr := s.db.DeleteReceipt(stored.ID); delErr != nil {
			slog.Warn("Failed to roll back receipt record", "id", stored.ID, "error", delErr)
		}
		if delErr := s.storage.Delete(finalPath); delErr != nil {
			slog.Warn("Failed to delete promoted file after database error", "path", finalPath, "error", delErr)
		}
		return nil, fmt.Errorf("marking obligation paid: %w", err)
	}

	return &Result{
		Code:       CodeAccepted,
		Message:    "Comprovante validado e recebido com sucesso!",
		CPF:        extractedCPF,
		Validation: &vr,
		Obligation: obligation,
		Receipt:    stored,
	}, nil
}

// ValidateDocument scores already-extracted text against explicit
// expectations without touching storage or the ledger. It exists so the
// scoring rules can be exercised independently of the pipeline.
func (s *Service) ValidateDocument(text string, exp validation.Expectations) validation.Result {
	return s.engine.Validate(text, exp)
}

// GetReceipt retrieves a stored receipt record by ID
func (s *Service) GetReceipt(id string) (*StoredReceipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all stored receipt records
func (s *Service) ListReceipts() ([]*StoredReceipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt record and its stored file
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(receipt.StoredPath); err != nil {
		// Log error but continue with database deletion
		slog.Warn("Failed to delete stored file", "path", receipt.StoredPath, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt record: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored document for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.StoredPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, receipt.OriginalName, nil
}

// FindObligation exposes the ledger lookup for the read API
func (s *Service) FindObligation(cpfNumber string) (*Obligation, error) {
	obligation, err := s.db.FindObligation(cpf.Normalize(cpfNumber))
	if err != nil {
		return nil, fmt.Errorf("looking up obligation: %w", err)
	}
	return obligation, nil
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= textPreviewLength {
		return text
	}
	return string(runes[:textPreviewLength])
}

package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/sync/semaphore"
)

// OCREngine turns a rendered PNG image into text.
type OCREngine interface {
	// Recognize runs optical character recognition on PNG data
	Recognize(ctx context.Context, png []byte) (string, error)
	// Available reports whether the engine can actually run
	Available() bool
}

// Tesseract implements OCREngine using the local tesseract installation via
// gosseract. Recognition is CPU-bound and can take seconds per page, so a
// weighted semaphore caps how many recognitions run at once and keeps
// concurrent uploads from serializing behind a single recognition.
type Tesseract struct {
	language  string
	slots     *semaphore.Weighted
	available bool
}

// NewTesseract creates a Tesseract engine for the given document language.
// A missing tesseract installation or missing language data is not an error:
// the engine reports unavailable and every recognition degrades gracefully.
func NewTesseract(language string, workers int64) *Tesseract {
	if workers < 1 {
		workers = 1
	}
	t := &Tesseract{
		language: language,
		slots:    semaphore.NewWeighted(workers),
	}

	languages, err := gosseract.GetAvailableLanguages()
	if err != nil {
		slog.Warn("Tesseract is not installed, OCR disabled", "error", err)
		return t
	}
	for _, l := range languages {
		if l == language {
			t.available = true
			break
		}
	}
	if !t.available {
		slog.Warn("Tesseract language data is not installed, OCR disabled", "language", language)
	}
	return t
}

// Available reports whether tesseract and the configured language data exist
func (t *Tesseract) Available() bool {
	return t.available
}

// Recognize runs tesseract on PNG data and returns the recognized text
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (string, error) {
	if !t.available {
		return "", fmt.Errorf("tesseract language %q is not available", t.language)
	}

	if err := t.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquiring ocr worker slot: %w", err)
	}
	defer t.slots.Release(1)

	// gosseract clients are not safe for concurrent use, so each
	// recognition gets its own short-lived client.
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("setting ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", fmt.Errorf("loading image into ocr: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("running ocr: %w", err)
	}
	return text, nil
}

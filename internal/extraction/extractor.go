// Package extraction turns uploaded receipt documents into raw text and
// structured fields. PDFs are read through their embedded text layer with an
// OCR fallback for scanned documents; images go straight to OCR.
package extraction

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// minEmbeddedTextLength is the threshold below which a PDF's embedded text
// layer is considered missing and the page is rasterized for OCR instead.
const minEmbeddedTextLength = 20

// TextExtractor converts a document on disk into raw text
type TextExtractor interface {
	// ExtractText returns the document's text, or "" when the document is
	// unreadable. It never fails: extraction problems are logged and
	// reported as empty text so callers treat them as "unreadable".
	ExtractText(ctx context.Context, path string, contentType string) string
	// OCRAvailable reports whether the OCR fallback can run, so callers
	// can tell "unreadable document" apart from "OCR engine missing"
	OCRAvailable() bool
}

// Extractor implements TextExtractor on top of go-fitz and an OCREngine
type Extractor struct {
	ocr OCREngine
}

// NewExtractor creates an Extractor backed by the given OCR engine
func NewExtractor(ocr OCREngine) *Extractor {
	return &Extractor{ocr: ocr}
}

// OCRAvailable reports whether the OCR fallback can run
func (e *Extractor) OCRAvailable() bool {
	return e.ocr != nil && e.ocr.Available()
}

// ExtractText extracts text from a PDF or image file
func (e *Extractor) ExtractText(ctx context.Context, path string, contentType string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Failed to read document", "path", path, "error", err)
		return ""
	}

	ext := strings.ToLower(filepath.Ext(path))
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	switch {
	case mimeType == "application/pdf" || ext == ".pdf":
		return e.pdfText(ctx, data)
	case strings.HasPrefix(mimeType, "image/") ||
		ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".heic" || ext == ".heif":
		return e.imageText(ctx, data, mimeType)
	default:
		slog.Warn("Unsupported document type", "path", path, "content_type", contentType)
		return ""
	}
}

// pdfText concatenates the embedded text of every page. When the result is
// too short the document is likely a scan, so page 1 is rasterized and OCR'd.
func (e *Extractor) pdfText(ctx context.Context, data []byte) string {
	var sb strings.Builder

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		slog.Error("Failed to open PDF", "error", err)
		return ""
	}
	for i := 0; i < doc.NumPage(); i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			slog.Warn("Failed to read PDF page text", "page", i, "error", err)
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	doc.Close()

	text := sb.String()
	if len(strings.TrimSpace(text)) >= minEmbeddedTextLength {
		return text
	}

	pngData, err := pdfPageToPNG(data, 0)
	if err != nil {
		slog.Error("Failed to rasterize PDF for OCR", "error", err)
		return text
	}
	return e.recognize(ctx, pngData, text)
}

// imageText converts the image to PNG and runs OCR on it
func (e *Extractor) imageText(ctx context.Context, data []byte, mimeType string) string {
	pngData, err := imageToPNG(data, mimeType)
	if err != nil {
		slog.Error("Failed to convert image for OCR", "error", err)
		return ""
	}
	return e.recognize(ctx, pngData, "")
}

// recognize runs OCR, falling back to the embedded text on failure
func (e *Extractor) recognize(ctx context.Context, pngData []byte, fallback string) string {
	if e.ocr == nil || !e.ocr.Available() {
		slog.Warn("OCR engine unavailable, skipping recognition")
		return fallback
	}
	text, err := e.ocr.Recognize(ctx, pngData)
	if err != nil {
		slog.Error("OCR failed", "error", err)
		return fallback
	}
	return text
}

package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/bancoagil/receipt-validator/internal/extraction"
	"github.com/bancoagil/receipt-validator/internal/receipt"
	"github.com/bancoagil/receipt-validator/internal/validation"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-validator")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-validator.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./comprovantes", "Permanent receipt storage directory")
		tempPath      = fs.StringLong("temp", "./comprovantes-tmp", "Transient upload directory")
		ocrLang       = fs.StringLong("ocr-lang", "por", "Tesseract language for document OCR")
		ocrWorkers    = fs.IntLong("ocr-workers", 2, "Maximum concurrent OCR recognitions")
		toleranceDays = fs.IntLong("tolerance-days", 30, "How many days from today a document date counts as recent")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		seed          = fs.BoolLong("seed", "Seed the ledger with demo customers and obligations")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_VALIDATOR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if *seed {
		slog.Info("Seeding demo ledger...")
		if err := receipt.Seed(db); err != nil {
			slog.Error("Failed to seed ledger", "error", err)
			os.Exit(1)
		}
	}

	// Initialize OCR and text extraction. A missing tesseract installation
	// is not fatal: uploads without embedded text are then rejected with a
	// distinguishable "OCR unavailable" message.
	slog.Info("Initializing OCR...", "language", *ocrLang, "workers", *ocrWorkers)
	ocr := extraction.NewTesseract(*ocrLang, int64(*ocrWorkers))
	if !ocr.Available() {
		slog.Warn("OCR is unavailable; scanned documents cannot be read")
	}
	extractor := extraction.NewExtractor(ocr)

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*tempPath, *storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize validation engine and pipeline service
	engine := validation.NewEngine(time.Duration(*toleranceDays) * 24 * time.Hour)
	service := receipt.NewService(db, store, extractor, engine)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

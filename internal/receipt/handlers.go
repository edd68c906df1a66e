package receipt

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

// maxUploadSize caps uploaded documents at 5MB
const maxUploadSize = int64(5 << 20)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// writeJSON writes a JSON response with CORS headers
func writeJSON(w http.ResponseWriter, status int, body any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body with CORS headers
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// rejectionStatus maps a business rejection code to an HTTP status
func rejectionStatus(code Code) int {
	switch code {
	case CodeCPFNotFound, CodeNoObligation:
		return http.StatusNotFound
	case CodeCPFInvalid:
		return http.StatusBadRequest
	case CodeOwnershipMismatch:
		return http.StatusForbidden
	default:
		return http.StatusUnprocessableEntity
	}
}

// handleUploadReceipt receives a document, runs the validation pipeline and
// maps its tagged result to an HTTP response
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		message := "Error parsing form"
		if err.Error() == "http: request body too large" {
			message = "Arquivo muito grande. Máximo: 5MB."
		}
		writeError(w, http.StatusBadRequest, message)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		writeError(w, http.StatusBadRequest, "O comprovante precisa ser enviado no campo 'file'.")
		return
	}
	defer f.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "O comprovante precisa ter um nome de arquivo válido.")
		return
	}
	if header.Size > maxUploadSize {
		writeError(w, http.StatusBadRequest, "Arquivo muito grande. Máximo: 5MB.")
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Erro ao ler o arquivo enviado.")
		return
	}

	contentType := contentTypeFor(header.Header.Get("Content-Type"), header.Filename)
	sessionID := r.FormValue("session_id")

	result, err := s.service.ProcessReceipt(r.Context(), header.Filename, contentType, data, sessionID)
	if err != nil {
		// System failure, not a rejection: the submitter gets a generic
		// error and should retry later.
		slog.Error("Error processing receipt", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Erro interno ao processar o comprovante.")
		return
	}

	status := http.StatusOK
	if result.Rejected() {
		status = rejectionStatus(result.Code)
		slog.Warn("Receipt rejected", "filename", header.Filename, "code", result.Code)
	}
	writeJSON(w, status, result)
}

// contentTypeFor normalizes the uploaded content type, falling back to the
// file extension
func contentTypeFor(headerType, filename string) string {
	contentType := strings.ToLower(strings.TrimSpace(headerType))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleListReceipts returns all stored receipt records
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := s.service.ListReceipts()
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt record
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleGetReceiptFile streams the stored document back
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, originalName, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentTypeFor("", originalName))
	w.Header().Set("Content-Disposition", `attachment; filename="`+originalName+`"`)
	if _, err := w.Write(data); err != nil {
		slog.Error("Error writing file response", "error", err)
	}
}

// handleDeleteReceipt removes a receipt record and its stored file
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "Receipt not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleGetObligation returns the open obligation for a CPF
func (s *Server) handleGetObligation(w http.ResponseWriter, r *http.Request) {
	cpfParam := r.URL.Query().Get("cpf")
	if cpfParam == "" {
		writeError(w, http.StatusBadRequest, "cpf query parameter is required")
		return
	}

	obligation, err := s.service.FindObligation(cpfParam)
	if err != nil {
		slog.Error("Error looking up obligation", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if obligation == nil {
		writeError(w, http.StatusNotFound, "No open obligation for this CPF")
		return
	}
	writeJSON(w, http.StatusOK, obligation)
}

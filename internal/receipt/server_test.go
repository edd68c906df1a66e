package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bancoagil/receipt-validator/internal/validation"
)

// uploadRequest builds a multipart POST with a file part and optional
// session_id field
func uploadRequest(filename string, content []byte, sessionID string) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	if sessionID != "" {
		Expect(writer.WriteField("session_id", sessionID)).To(Succeed())
	}
	Expect(writer.Close()).To(Succeed())

	req := httptest.NewRequest("POST", "/api/receipts", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

var _ = Describe("Server", func() {
	var (
		db        *mockDB
		storage   *mockStorage
		extractor *mockExtractor
		server    *Server
		auth      BasicAuth
		recorder  *httptest.ResponseRecorder
	)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		extractor = &mockExtractor{available: true}
		auth = BasicAuth{}
		recorder = httptest.NewRecorder()

		db.obligations["ob-1"] = &Obligation{
			ID:          "ob-1",
			CPF:         "11144477735",
			DueDate:     time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
			AmountCents: 135068,
			Status:      StatusPending,
		}
	})

	newServer := func() *Server {
		engine := validation.NewEngineWithClock(validation.DefaultDateTolerance, func() time.Time { return now })
		service := NewServiceWithDeps(db, storage, extractor, engine,
			&sequentialIDGenerator{}, &fixedTimeSource{t: now})
		return NewServerWithMux(service, auth, http.NewServeMux())
	}

	Describe("POST /api/receipts", func() {
		It("should accept a valid receipt with 200", func() {
			extractor.text = "Comprovante de pagamento PIX\n" +
				"Banco Agil - autenticação ABC123\n" +
				"CPF: 111.444.777-35\n" +
				"Valor: R$ 1.350,68\n" +
				"Pago em: 10/06/2024\n"
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("%PDF-fake"), ""))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var result Result
			Expect(json.Unmarshal(recorder.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Code).To(Equal(CodeAccepted))
			Expect(result.Receipt).NotTo(BeNil())
		})

		It("should map CPF_NOT_FOUND to 404", func() {
			extractor.text = "comprovante de pagamento sem identificação"
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("x"), ""))

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
			var result Result
			Expect(json.Unmarshal(recorder.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Code).To(Equal(CodeCPFNotFound))
		})

		It("should map CPF_INVALID to 400", func() {
			extractor.text = "comprovante de pagamento CPF: 12345678901"
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("x"), ""))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})

		It("should map OWNERSHIP_MISMATCH to 403", func() {
			extractor.text = "Comprovante de pagamento PIX\n" +
				"Banco Agil - autenticação ABC123\n" +
				"CPF: 111.444.777-35\n" +
				"Valor: R$ 1.350,68\n" +
				"Pago em: 10/06/2024\n"
			db.sessions["sess-1"] = "22255588846"
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("x"), "sess-1"))

			Expect(recorder.Code).To(Equal(http.StatusForbidden))
			Expect(recorder.Body.String()).To(ContainSubstring("***735"))
			Expect(recorder.Body.String()).NotTo(ContainSubstring("11144477735"))
		})

		It("should map VALIDATION_FAILED to 422", func() {
			extractor.text = "documento qualquer 11144477735 nada a ver com impostos"
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("x"), ""))

			Expect(recorder.Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("should return 500 when the pipeline fails", func() {
			extractor.text = "comprovante CPF: 111.444.777-35 pagamento valor"
			db.findObligationErr = errors.New("disk on fire")
			server = newServer()

			server.ServeHTTP(recorder, uploadRequest("comprovante.pdf", []byte("x"), ""))

			Expect(recorder.Code).To(Equal(http.StatusInternalServerError))
			Expect(recorder.Body.String()).NotTo(ContainSubstring("disk"))
		})

		It("should require the file field", func() {
			server = newServer()

			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			Expect(writer.Close()).To(Succeed())
			req := httptest.NewRequest("POST", "/api/receipts", body)
			req.Header.Set("Content-Type", writer.FormDataContentType())

			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("GET /api/receipts", func() {
		It("should list stored receipts", func() {
			db.receipts["r-1"] = &StoredReceipt{ID: "r-1", OriginalName: "comprovante.pdf"}
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/receipts", nil))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var receipts []*StoredReceipt
			Expect(json.Unmarshal(recorder.Body.Bytes(), &receipts)).To(Succeed())
			Expect(receipts).To(HaveLen(1))
		})
	})

	Describe("GET /api/receipts/{id}", func() {
		It("should return the receipt record", func() {
			db.receipts["r-1"] = &StoredReceipt{ID: "r-1", OriginalName: "comprovante.pdf"}
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/receipts/r-1", nil))

			Expect(recorder.Code).To(Equal(http.StatusOK))
		})

		It("should return 404 for an unknown receipt", func() {
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/receipts/nope", nil))

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("GET /api/receipts/{id}/file", func() {
		It("should stream the stored document", func() {
			storage.files["/final-test/doc.pdf"] = []byte("%PDF-fake")
			db.receipts["r-1"] = &StoredReceipt{ID: "r-1", StoredPath: "/final-test/doc.pdf", OriginalName: "comprovante.pdf"}
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/receipts/r-1/file", nil))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(recorder.Header().Get("Content-Type")).To(Equal("application/pdf"))
			Expect(recorder.Body.Bytes()).To(Equal([]byte("%PDF-fake")))
		})
	})

	Describe("DELETE /api/receipts/{id}", func() {
		It("should delete the record and the stored file", func() {
			storage.files["/final-test/doc.pdf"] = []byte("x")
			db.receipts["r-1"] = &StoredReceipt{ID: "r-1", StoredPath: "/final-test/doc.pdf"}
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("DELETE", "/api/receipts/r-1", nil))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			Expect(db.receipts).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})
	})

	Describe("GET /api/obligations", func() {
		It("should return the open obligation for a CPF", func() {
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/obligations?cpf=111.444.777-35", nil))

			Expect(recorder.Code).To(Equal(http.StatusOK))
			var obligation Obligation
			Expect(json.Unmarshal(recorder.Body.Bytes(), &obligation)).To(Succeed())
			Expect(obligation.ID).To(Equal("ob-1"))
		})

		It("should return 404 when the CPF has no open obligation", func() {
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/obligations?cpf=98765432100", nil))

			Expect(recorder.Code).To(Equal(http.StatusNotFound))
		})

		It("should require the cpf parameter", func() {
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/obligations", nil))

			Expect(recorder.Code).To(Equal(http.StatusBadRequest))
		})
	})

	When("basic auth is configured", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		It("should reject requests without credentials", func() {
			server = newServer()

			server.ServeHTTP(recorder, httptest.NewRequest("GET", "/api/receipts", nil))

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
			Expect(recorder.Header().Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
		})

		It("should reject wrong credentials", func() {
			server = newServer()

			req := httptest.NewRequest("GET", "/api/receipts", nil)
			req.SetBasicAuth("admin", "wrong")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusUnauthorized))
		})

		It("should accept correct credentials", func() {
			server = newServer()

			req := httptest.NewRequest("GET", "/api/receipts", nil)
			req.SetBasicAuth("admin", "secret")
			server.ServeHTTP(recorder, req)

			Expect(recorder.Code).To(Equal(http.StatusOK))
		})
	})
})

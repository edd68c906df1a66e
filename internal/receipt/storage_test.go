package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tempDir  string
		finalDir string
		storage  *LocalStorage
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		tempDir = filepath.Join(root, "transient")
		finalDir = filepath.Join(root, "receipts")

		var err error
		storage, err = NewLocalStorage(tempDir, finalDir)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create both directories", func() {
		Expect(tempDir).To(BeADirectory())
		Expect(finalDir).To(BeADirectory())
	})

	Describe("SaveTemp", func() {
		It("should write the file under the transient directory", func() {
			path, err := storage.SaveTemp("abc_comprovante.pdf", []byte("conteudo"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tempDir, "abc_comprovante.pdf")))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("conteudo")))
		})
	})

	Describe("Promote", func() {
		It("should move the file into the permanent directory", func() {
			tempPath, err := storage.SaveTemp("abc_comprovante.pdf", []byte("conteudo"))
			Expect(err).NotTo(HaveOccurred())

			finalPath, err := storage.Promote(tempPath, "cpf_abc_comprovante.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(finalPath).To(Equal(filepath.Join(finalDir, "cpf_abc_comprovante.pdf")))

			Expect(tempPath).NotTo(BeAnExistingFile())
			data, err := os.ReadFile(finalPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("conteudo")))
		})

		It("should fail for a missing transient file", func() {
			_, err := storage.Promote(filepath.Join(tempDir, "nope.pdf"), "nope.pdf")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("should remove an existing file", func() {
			path, err := storage.SaveTemp("abc.pdf", []byte("x"))
			Expect(err).NotTo(HaveOccurred())

			Expect(storage.Delete(path)).To(Succeed())
			Expect(path).NotTo(BeAnExistingFile())
		})

		It("should fail for a missing file", func() {
			Expect(storage.Delete(filepath.Join(tempDir, "nope.pdf"))).NotTo(Succeed())
		})
	})

	Describe("Get", func() {
		It("should read back a stored file", func() {
			path, err := storage.SaveTemp("abc.pdf", []byte("conteudo"))
			Expect(err).NotTo(HaveOccurred())

			data, err := storage.Get(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("conteudo")))
		})

		It("should fail for a missing file", func() {
			_, err := storage.Get(filepath.Join(finalDir, "nope.pdf"))
			Expect(err).To(HaveOccurred())
		})
	})
})

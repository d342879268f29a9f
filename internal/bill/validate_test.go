package bill

import (
	"errors"
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ValidateAttachmentName", func() {
	DescribeTable("accepts images",
		func(name string) {
			Expect(ValidateAttachmentName(name)).To(Succeed())
		},
		Entry("jpg", "hello.jpg"),
		Entry("jpeg", "hello.jpeg"),
		Entry("png", "hello.png"),
		Entry("upper case", "HELLO.JPG"),
	)

	DescribeTable("rejects everything else",
		func(name string) {
			err := ValidateAttachmentName(name)
			Expect(err).To(MatchError(ErrInvalidExtension))

			var verr *ValidationError
			Expect(errors.As(err, &verr)).To(BeTrue())
			Expect(verr.Fields).To(HaveKey("file"))
		},
		Entry("pdf", "hello.pdf"),
		Entry("gif", "hello.gif"),
		Entry("no extension", "hello"),
		Entry("empty", ""),
		Entry("extension inside the name", "hello.jpg.exe"),
	)
})

var _ = Describe("ContentType", func() {
	It("should map image extensions", func() {
		Expect(ContentType("a.JPG")).To(Equal("image/jpeg"))
		Expect(ContentType("a.jpeg")).To(Equal("image/jpeg"))
		Expect(ContentType("a.png")).To(Equal("image/png"))
		Expect(ContentType("a.bin")).To(Equal("application/octet-stream"))
	})
})

var _ = Describe("sanitizeFilename", func() {
	It("should strip special characters", func() {
		Expect(sanitizeFilename("Note (1) d'hôtel.JPG")).To(Equal("Note 1 dhtel.jpg"))
	})

	It("should fall back to a default name", func() {
		Expect(sanitizeFilename("éàù.png")).To(Equal("justificatif.png"))
	})

	It("should cap the name length", func() {
		long := fmt.Sprintf("%060d.png", 0)
		Expect(sanitizeFilename(long)).To(HaveLen(54))
	})
})

var _ = Describe("ParseVAT", func() {
	DescribeTable("normalizes amounts",
		func(in, want string) {
			got, err := ParseVAT(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("integer", "70", "70"),
		Entry("decimal comma", "12,5", "12.5"),
		Entry("decimal point", "12.50", "12.5"),
		Entry("padded", " 7 ", "7"),
		Entry("empty", "", ""),
	)

	DescribeTable("rejects invalid amounts",
		func(in string) {
			_, err := ParseVAT(in)
			Expect(err).To(HaveOccurred())
		},
		Entry("words", "beaucoup"),
		Entry("negative", "-3"),
	)
})

var _ = Describe("Validate", func() {
	var b Bill

	BeforeEach(func() {
		b = Bill{
			Email:    "a@a",
			Type:     TypeTransports,
			Date:     "2022-04-22",
			Amount:   348,
			Pct:      20,
			FileURL:  strPtr("/api/bills/1/file"),
			FileName: strPtr("a.jpg"),
		}
	})

	It("should accept a complete bill", func() {
		Expect(Validate(&b)).To(Succeed())
	})

	It("should accept a bill without attachment", func() {
		b.FileURL = nil
		b.FileName = nil
		Expect(Validate(&b)).To(Succeed())
	})

	It("should report every invalid field", func() {
		b.Type = ""
		b.Email = ""
		b.Amount = -1
		b.Pct = -1
		b.Date = ""
		b.VAT = "x"
		b.FileName = nil

		err := Validate(&b)
		var verr *ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Fields).To(HaveLen(7))
		Expect(err.Error()).To(HavePrefix("validation failed: amount:"))
		Expect(StatusCode(err)).To(Equal(http.StatusBadRequest))
	})
})

var _ = Describe("StatusCode", func() {
	It("should map errors to HTTP statuses", func() {
		Expect(StatusCode(nil)).To(Equal(http.StatusOK))
		Expect(StatusCode(fmt.Errorf("x: %w", ErrNotFound))).To(Equal(http.StatusNotFound))
		Expect(StatusCode(fmt.Errorf("x: %w", ErrImmutable))).To(Equal(http.StatusConflict))
		Expect(StatusCode(&ValidationError{})).To(Equal(http.StatusBadRequest))
		Expect(StatusCode(errors.New("boom"))).To(Equal(http.StatusInternalServerError))
	})
})

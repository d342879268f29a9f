package scanning

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		data    *BillData
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanBill([]byte("png bytes"), "image/png")
	})

	When("the model answers with JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("POST", "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"type": "Restaurants", "name": "Chez Paul", "date": "2024-02-01", "amount": 42}`},
					Done:    true,
				}),
			))
		})

		It("should return the parsed bill data", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(data.Type).To(Equal("Restaurants"))
			Expect(data.Name).To(Equal("Chez Paul"))
			Expect(data.Amount).To(Equal(42.0))
		})

		It("should send the image with the user message", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns an error with the status", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})
})

var _ = Describe("prepareImageData", func() {
	It("should pass PNG data through", func() {
		out, err := prepareImageData([]byte("already png"), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal([]byte("already png")))
	})

	It("should fail on undecodable JPEG data", func() {
		_, err := prepareImageData([]byte("not an image"), "image/jpeg")
		Expect(err).To(HaveOccurred())
	})

	It("should detect HEIC content by its brand", func() {
		header := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEIC(header)).To(BeTrue())
		Expect(isHEIC([]byte("short"))).To(BeFalse())
	})
})

package app

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
	"github.com/zombor/billed/internal/store"
	"github.com/zombor/billed/internal/view"
)

func fileEvent(name, contentType string, data []byte) *Event {
	return &Event{Name: EventFileChange, File: &File{Name: name, ContentType: contentType, Data: data}}
}

func filledForm() *Event {
	return &Event{Name: EventFormSubmit, Form: map[string]string{
		"expense-type": string(bill.TypeTransports),
		"expense-name": "Vol Paris Londres",
		"amount":       "348",
		"datepicker":   "2022-04-22",
		"vat":          "70",
		"pct":          "20",
		"commentary":   "séminaire",
	}}
}

var _ = Describe("NewBill", func() {
	var (
		st     *mockStore
		nav    *mockNavigator
		screen *mockScreen
		nb     *NewBill
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		st = newMockStore()
		nav = &mockNavigator{}
		screen = &mockScreen{}
	})

	JustBeforeEach(func() {
		nb = NewNewBill(st, nav, screen, session.Session{Type: session.TypeEmployee, Email: "a@a"})
	})

	It("should start empty", func() {
		Expect(nb.State()).To(Equal(StateEmpty))
		Expect(nb.BillID()).To(BeEmpty())
		Expect(nb.FileURL()).To(BeEmpty())
		Expect(nb.FileErrorVisible()).To(BeFalse())
	})

	It("should render an empty form", func() {
		nb.Render()
		Expect(screen.Last()).To(Equal(view.NewBillPage{}))
	})

	Describe("OnFileSelected", func() {
		When("the file is a pdf", func() {
			It("should show the error and not upload", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.pdf", "application/pdf", []byte("pdf")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.FileErrorVisible()).To(BeTrue())
				Expect(st.bills.createCount()).To(Equal(0))
				Expect(screen.Last()).To(Equal(view.NewBillPage{FileError: true}))

				markup, err := view.Render(screen.Last())
				Expect(err).NotTo(HaveOccurred())
				Expect(markup).To(ContainSubstring(`data-error-visible="true"`))
			})
		})

		When("the file is a jpg", func() {
			It("should clear the error and upload the file", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.FileErrorVisible()).To(BeFalse())
				Expect(nb.State()).To(Equal(StateFileValidated))
				Expect(nb.FileName()).To(Equal("hello.jpg"))
				Expect(nb.BillID()).To(Equal("1234"))
				Expect(nb.FileURL()).To(Equal("https://localhost:3456/images/test.jpg"))

				Expect(st.bills.creates).To(Equal([]bill.Upload{{
					Email:       "a@a",
					FileName:    "hello.jpg",
					ContentType: "image/jpeg",
					Data:        []byte("jpg"),
				}}))

				markup, err := view.Render(screen.Last())
				Expect(err).NotTo(HaveOccurred())
				Expect(markup).To(ContainSubstring(`data-error-visible="false"`))
			})
		})

		DescribeTable("should set the error indicator iff the extension is not allowed",
			func(name string, wantErr bool) {
				nb.OnFileSelected(ctx, fileEvent(name, "", []byte(name)))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
				Expect(nb.FileErrorVisible()).To(Equal(wantErr))
				if wantErr {
					Expect(st.bills.createCount()).To(Equal(0))
				} else {
					Expect(st.bills.createCount()).To(Equal(1))
				}
			},
			Entry("jpg", "a.jpg", false),
			Entry("jpeg", "a.jpeg", false),
			Entry("png", "a.png", false),
			Entry("upper case", "A.PNG", false),
			Entry("mixed case", "scan.JpEg", false),
			Entry("several dots", "my.receipt.jpg", false),
			Entry("pdf", "a.pdf", true),
			Entry("gif", "a.gif", true),
			Entry("heic", "a.heic", true),
			Entry("no extension", "jpg", true),
			Entry("trailing dot", "a.jpg.", true),
			Entry("empty name", "", true),
		)

		When("the selection is cleared", func() {
			It("should show the error", func() {
				nb.OnFileSelected(ctx, &Event{Name: EventFileChange})
				Expect(nb.FileErrorVisible()).To(BeTrue())
				Expect(st.bills.createCount()).To(Equal(0))
			})
		})

		When("an invalid file follows a valid upload", func() {
			It("should keep the previous draft", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
				nb.OnFileSelected(ctx, fileEvent("hello.pdf", "application/pdf", []byte("pdf")))

				Expect(nb.FileErrorVisible()).To(BeTrue())
				Expect(nb.FileName()).To(Equal("hello.jpg"))
				Expect(nb.BillID()).To(Equal("1234"))
				Expect(nb.FileURL()).To(Equal("https://localhost:3456/images/test.jpg"))
			})

			It("should clear the error when a valid file is picked again", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.pdf", "application/pdf", []byte("pdf")))
				nb.OnFileSelected(ctx, fileEvent("hello.png", "image/png", []byte("png")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
				Expect(nb.FileErrorVisible()).To(BeFalse())
				Expect(nb.BillID()).To(Equal("1234"))
			})
		})

		When("the same file is selected twice", func() {
			It("should upload it once", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
				billID, fileURL := nb.BillID(), nb.FileURL()

				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(st.bills.createCount()).To(Equal(1))
				Expect(nb.BillID()).To(Equal(billID))
				Expect(nb.FileURL()).To(Equal(fileURL))
				Expect(nb.FileErrorVisible()).To(BeFalse())
			})

			It("should upload again when the content changed", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("other")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(st.bills.createCount()).To(Equal(2))
			})
		})

		When("the upload is rejected", func() {
			BeforeEach(func() {
				st.bills.createErr = &store.Error{Status: 500}
			})

			It("should leave the draft empty", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.State()).To(Equal(StateRejected))
				Expect(nb.BillID()).To(BeEmpty())
				Expect(nb.FileURL()).To(BeEmpty())
				Expect(nb.FileErrorVisible()).To(BeFalse())
			})
		})

		When("a newer file supersedes a pending upload", func() {
			It("should keep the result of the latest upload", func() {
				gate := make(chan struct{})
				st.bills.createGate = gate

				nb.OnFileSelected(ctx, fileEvent("first.jpg", "image/jpeg", []byte("1")))
				Eventually(st.bills.createCount).Should(Equal(1))
				nb.OnFileSelected(ctx, fileEvent("second.jpg", "image/jpeg", []byte("2")))
				Eventually(st.bills.createCount).Should(Equal(2))

				close(gate)
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.FileName()).To(Equal("second.jpg"))
				nb.OnSubmit(ctx, filledForm())
				Expect(st.bills.updates).To(HaveLen(1))
				Expect(*st.bills.updates[0].data.FileName).To(Equal("second.jpg"))
			})
		})

		When("the draft is closed before the upload settles", func() {
			It("should ignore the result", func() {
				gate := make(chan struct{})
				st.bills.createGate = gate

				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Eventually(st.bills.createCount).Should(Equal(1))
				shown := screen.Count()

				nb.Close()
				close(gate)
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.BillID()).To(BeEmpty())
				Expect(screen.Count()).To(Equal(shown))
			})
		})

		When("the scanner suggests values", func() {
			BeforeEach(func() {
				st.bills.draft.Suggestion = &bill.Suggestion{
					Type:   bill.TypeRestaurants,
					Name:   "Chez Paul",
					Date:   "2023-05-01",
					Amount: 42,
					VAT:    "7",
				}
			})

			It("should prefill the form", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())

				Expect(nb.Form()).To(Equal(view.Form{
					Type:   "Restaurants",
					Name:   "Chez Paul",
					Date:   "2023-05-01",
					Amount: "42",
					VAT:    "7",
				}))
				Expect(screen.Last()).To(Equal(view.NewBillPage{Form: nb.Form(), FileName: "hello.jpg"}))
			})
		})

		When("the waiting context is done", func() {
			It("should return its error", func() {
				gate := make(chan struct{})
				defer close(gate)
				st.bills.createGate = gate

				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				waitCtx, cancel := context.WithCancel(ctx)
				cancel()
				Expect(nb.WaitUpload(waitCtx)).To(MatchError(context.Canceled))
			})
		})
	})

	Describe("OnSubmit", func() {
		When("a file was uploaded", func() {
			JustBeforeEach(func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(nb.WaitUpload(ctx)).To(Succeed())
			})

			It("should finalize the draft and navigate to the bills", func() {
				ev := filledForm()
				nb.OnSubmit(ctx, ev)

				Expect(ev.DefaultPrevented()).To(BeTrue())
				Expect(nb.State()).To(Equal(StateSubmitted))
				Expect(st.bills.updates).To(Equal([]updateCall{{
					id: "1234",
					data: bill.Bill{
						Email:      "a@a",
						Type:       bill.TypeTransports,
						Name:       "Vol Paris Londres",
						Amount:     348,
						Date:       "2022-04-22",
						VAT:        "70",
						Pct:        20,
						Commentary: "séminaire",
						FileURL:    strPtr("https://localhost:3456/images/test.jpg"),
						FileName:   strPtr("hello.jpg"),
						Status:     bill.StatusPending,
					},
				}}))
				Expect(nav.Paths()).To(Equal([]string{PathBills}))
			})

			It("should ignore a second submit", func() {
				nb.OnSubmit(ctx, filledForm())
				nb.OnSubmit(ctx, filledForm())
				Expect(st.bills.updateCount()).To(Equal(1))
			})

			When("the update is rejected", func() {
				BeforeEach(func() {
					st.bills.updateErr = &store.Error{Status: 500}
				})

				It("should keep the draft and stay on the page", func() {
					Expect(func() { nb.OnSubmit(ctx, filledForm()) }).NotTo(Panic())

					Expect(nb.State()).To(Equal(StateRejected))
					Expect(nb.BillID()).To(Equal("1234"))
					Expect(nb.FileURL()).To(Equal("https://localhost:3456/images/test.jpg"))
					Expect(nav.Paths()).To(BeEmpty())
				})

				It("should allow a manual resubmit", func() {
					nb.OnSubmit(ctx, filledForm())
					st.bills.mu.Lock()
					st.bills.updateErr = nil
					st.bills.mu.Unlock()

					nb.OnSubmit(ctx, filledForm())
					Expect(st.bills.updateCount()).To(Equal(2))
					Expect(nav.Paths()).To(Equal([]string{PathBills}))
				})
			})
		})

		When("the upload and the update are rejected", func() {
			BeforeEach(func() {
				st.bills.createErr = errors.New("Erreur 500")
				st.bills.updateErr = errors.New("Erreur 500")
			})

			It("should leave the draft fields empty and not navigate", func() {
				nb.OnFileSelected(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))
				Expect(func() { nb.OnSubmit(ctx, filledForm()) }).NotTo(Panic())

				Expect(nb.BillID()).To(BeEmpty())
				Expect(nb.FileURL()).To(BeEmpty())
				Expect(nav.Paths()).To(BeEmpty())
			})
		})

		When("no file was uploaded", func() {
			It("should submit a bill without attachment", func() {
				nb.OnSubmit(ctx, filledForm())

				Expect(st.bills.updates).To(HaveLen(1))
				Expect(st.bills.updates[0].id).To(BeEmpty())
				Expect(st.bills.updates[0].data.FileURL).To(BeNil())
				Expect(st.bills.updates[0].data.FileName).To(BeNil())
				Expect(nav.Paths()).To(Equal([]string{PathBills}))
			})
		})

		DescribeTable("should coerce numeric fields",
			func(amount, pct string, wantAmount, wantPct int) {
				ev := filledForm()
				ev.Form["amount"] = amount
				ev.Form["pct"] = pct
				nb.OnSubmit(ctx, ev)

				Expect(st.bills.updates).To(HaveLen(1))
				Expect(st.bills.updates[0].data.Amount).To(Equal(wantAmount))
				Expect(st.bills.updates[0].data.Pct).To(Equal(wantPct))
			},
			Entry("integers", "348", "10", 348, 10),
			Entry("empty pct", "348", "", 348, 20),
			Entry("invalid pct", "348", "abc", 348, 20),
			Entry("negative pct", "348", "-5", 348, 20),
			Entry("decimal amount", "12.50", "20", 12, 20),
			Entry("empty amount", "", "20", 0, 20),
			Entry("padded values", " 7 ", " 5 ", 7, 5),
		)

		It("should drop a vat that is not a number", func() {
			ev := filledForm()
			ev.Form["vat"] = "beaucoup"
			nb.OnSubmit(ctx, ev)
			Expect(st.bills.updates[0].data.VAT).To(BeEmpty())
		})

		It("should accept a comma in the vat", func() {
			ev := filledForm()
			ev.Form["vat"] = "12,5"
			nb.OnSubmit(ctx, ev)
			Expect(st.bills.updates[0].data.VAT).To(Equal("12.5"))
		})
	})

	Describe("Bind", func() {
		It("should route file and submit events", func() {
			d := NewDispatcher()
			nb.Bind(d)

			Expect(d.Dispatch(ctx, fileEvent("hello.jpg", "image/jpeg", []byte("jpg")))).To(Succeed())
			Expect(nb.WaitUpload(ctx)).To(Succeed())
			Expect(d.Dispatch(ctx, filledForm())).To(Succeed())

			Expect(nav.Paths()).To(Equal([]string{PathBills}))
		})
	})
})

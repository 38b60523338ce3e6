package bill

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"fairshare/internal/extraction"
)

var _ = Describe("Server", func() {
	var (
		store       *MemoryStore
		extractor   *mockExtractor
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	appendHandlers := func(n int) {
		for i := 0; i < n; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	newSession := func() Session {
		return service.CreateSession()
	}

	uploadRequest := func(url string, fileContent []byte, filename string) *http.Request {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(fileContent)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		req, err := http.NewRequest("POST", url, body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req
	}

	decodeSession := func(resp *http.Response) Session {
		defer resp.Body.Close()
		var session Session
		Expect(json.NewDecoder(resp.Body).Decode(&session)).To(Succeed())
		return session
	}

	BeforeEach(func() {
		store = NewMemoryStore()
		extractor = newMockExtractor()
		service = NewService(store, extractor)
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleCreateSession", func() {
		It("returns a new session with status Created", func() {
			appendHandlers(1)

			resp, err := http.Post(ghttpServer.URL()+"/api/sessions", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			session := decodeSession(resp)
			Expect(session.ID).NotTo(BeEmpty())
			Expect(session.Ledger).To(BeEmpty())
		})
	})

	Describe("handleGetSession", func() {
		When("the session exists", func() {
			It("returns the session state", func() {
				session := newSession()
				appendHandlers(1)

				resp, err := http.Get(ghttpServer.URL() + "/api/sessions/" + session.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(decodeSession(resp).ID).To(Equal(session.ID))
			})
		})

		When("the session does not exist", func() {
			It("returns status Not Found", func() {
				appendHandlers(1)

				resp, err := http.Get(ghttpServer.URL() + "/api/sessions/missing")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleUploadReceipt", func() {
		When("extraction succeeds", func() {
			BeforeEach(func() {
				extractor.result = &extraction.Result{Items: []extraction.ExtractedItem{
					{Name: "Bento", Price: 500, TaxRate: 0.08},
					{Name: "Beer", Price: 300, TaxRate: 0.10},
				}}
			})

			It("returns the populated ledger", func() {
				session := newSession()
				appendHandlers(1)

				req := uploadRequest(ghttpServer.URL()+"/api/sessions/"+session.ID+"/receipt", []byte("fake image bytes"), "receipt.jpg")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				result := decodeSession(resp)
				Expect(result.Ledger).To(HaveLen(2))
				Expect(result.Ledger[0].Name).To(Equal("Bento"))
				Expect(result.Notice).To(BeEmpty())
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				extractor.extractErr = &extraction.ExtractionError{Reason: "empty response text"}
			})

			It("still returns OK with an empty ledger and a notice", func() {
				session := newSession()
				appendHandlers(1)

				req := uploadRequest(ghttpServer.URL()+"/api/sessions/"+session.ID+"/receipt", []byte("fake image bytes"), "receipt.jpg")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				result := decodeSession(resp)
				Expect(result.Ledger).To(BeEmpty())
				Expect(result.Notice).To(Equal(AnalysisFailedNotice))
			})
		})

		When("no file is provided", func() {
			It("returns status Bad Request", func() {
				session := newSession()
				appendHandlers(1)

				resp, err := http.Post(ghttpServer.URL()+"/api/sessions/"+session.ID+"/receipt", "application/json", nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the session does not exist", func() {
			It("returns status Not Found", func() {
				appendHandlers(1)

				req := uploadRequest(ghttpServer.URL()+"/api/sessions/missing/receipt", []byte("fake image bytes"), "receipt.jpg")
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleAddItem", func() {
		It("appends a manual item", func() {
			session := newSession()
			appendHandlers(1)

			resp, err := http.Post(ghttpServer.URL()+"/api/sessions/"+session.ID+"/items", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			result := decodeSession(resp)
			Expect(result.Ledger).To(HaveLen(1))
			Expect(result.Ledger[0].Name).To(Equal("New Item"))
		})
	})

	Describe("handleUpdateItem", func() {
		var (
			session Session
			itemID  string
		)

		BeforeEach(func() {
			session = newSession()
			updated, err := service.AddItem(session.ID)
			Expect(err).NotTo(HaveOccurred())
			itemID = updated.Ledger[0].ID
		})

		patchItem := func(body string) *http.Response {
			req, err := http.NewRequest("PATCH", ghttpServer.URL()+"/api/sessions/"+session.ID+"/items/"+itemID, bytes.NewBufferString(body))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		It("updates the price", func() {
			appendHandlers(1)

			resp := patchItem(`{"field": "price", "value": 500}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeSession(resp).Ledger[0].Price).To(Equal(500.0))
		})

		It("updates the payer", func() {
			appendHandlers(1)

			resp := patchItem(`{"field": "payer", "value": "payer_b"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(decodeSession(resp).Ledger[0].Payer).To(Equal(PayerB))
		})

		It("rejects an unknown field", func() {
			appendHandlers(1)

			resp := patchItem(`{"field": "id", "value": "evil"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})

		It("rejects a malformed body", func() {
			appendHandlers(1)

			resp := patchItem(`{not json`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			resp.Body.Close()
		})
	})

	Describe("handleDeleteItem", func() {
		It("removes the item", func() {
			session := newSession()
			updated, err := service.AddItem(session.ID)
			Expect(err).NotTo(HaveOccurred())
			appendHandlers(1)

			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/sessions/"+session.ID+"/items/"+updated.Ledger[0].ID, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			current, err := service.GetSession(session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Ledger).To(BeEmpty())
		})
	})

	Describe("handleGetSummary", func() {
		It("returns exact and rounded totals", func() {
			session := newSession()
			_, err := store.Update(session.ID, func(s *Session) error {
				s.Ledger = Ledger{
					{ID: "a", Name: "Bento", Price: 500, TaxRate: 0.08, Payer: PayerShared},
					{ID: "b", Name: "Beer", Price: 300, TaxRate: 0.10, Payer: PayerShared},
				}
				return nil
			})
			Expect(err).NotTo(HaveOccurred())
			appendHandlers(1)

			resp, err := http.Get(ghttpServer.URL() + "/api/sessions/" + session.ID + "/summary")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			defer resp.Body.Close()

			var body struct {
				Summary Summary        `json:"summary"`
				Rounded RoundedSummary `json:"rounded"`
			}
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body.Summary.GrandTotal).To(BeNumerically("~", 870, 1e-9))
			Expect(body.Rounded.GrandTotal).To(Equal(int64(870)))
			Expect(body.Rounded.PayerATotal).To(Equal(int64(435)))
			Expect(body.Rounded.PayerBTotal).To(Equal(int64(435)))
			Expect(body.Rounded.TotalTax).To(Equal(int64(70)))
		})
	})

	Describe("handleResetSession", func() {
		It("discards the ledger", func() {
			session := newSession()
			_, err := service.AddItem(session.ID)
			Expect(err).NotTo(HaveOccurred())
			appendHandlers(1)

			req, err := http.NewRequest("DELETE", ghttpServer.URL()+"/api/sessions/"+session.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			resp.Body.Close()

			current, err := service.GetSession(session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Ledger).To(BeEmpty())
		})
	})

	Describe("basic auth", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
		})

		It("rejects requests without credentials", func() {
			appendHandlers(1)

			resp, err := http.Post(ghttpServer.URL()+"/api/sessions", "application/json", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			resp.Body.Close()
		})

		It("accepts requests with valid credentials", func() {
			appendHandlers(1)

			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/sessions", nil)
			Expect(err).NotTo(HaveOccurred())
			credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
			req.Header.Set("Authorization", "Basic "+credentials)

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			resp.Body.Close()
		})

		It("rejects requests with wrong credentials", func() {
			appendHandlers(1)

			req, err := http.NewRequest("POST", ghttpServer.URL()+"/api/sessions", nil)
			Expect(err).NotTo(HaveOccurred())
			credentials := base64.StdEncoding.EncodeToString([]byte("user:wrong"))
			req.Header.Set("Authorization", "Basic "+credentials)

			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			resp.Body.Close()
		})
	})

	Describe("sniffContentType", func() {
		It("keeps an explicit content type", func() {
			Expect(sniffContentType("image/png", "whatever.jpg")).To(Equal("image/png"))
		})

		It("falls back to the file extension", func() {
			Expect(sniffContentType("", "receipt.pdf")).To(Equal("application/pdf"))
			Expect(sniffContentType("application/octet-stream", "photo.HEIC")).To(Equal("image/heic"))
		})

		It("defaults to image/jpeg", func() {
			Expect(sniffContentType("", "receipt")).To(Equal("image/jpeg"))
		})
	})
})

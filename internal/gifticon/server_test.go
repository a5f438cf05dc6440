package gifticon

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/giftguard/internal/extract"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		scanner     *mockScanner
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		service = NewServiceWithDeps(db, scanner, storage,
			&mockIDGenerator{id: "test-id"},
			&mockTimeSource{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		)
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.Handler().ServeHTTP)
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	upload := func(filename string, data []byte) *http.Response {
		var b bytes.Buffer
		writer := multipart.NewWriter(&b)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		part.Write(data)
		writer.Close()

		resp, err := http.Post(ghttpServer.URL()+"/api/gifticons", writer.FormDataContentType(), &b)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	postJSON := func(path string, body any) *http.Response {
		data, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(ghttpServer.URL()+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		scanner = newMockScanner()
		auth = BasicAuth{}
		ghttpServer = nil
	})

	JustBeforeEach(func() {
		setupServer()
	})

	AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	Describe("handleListGifticons", func() {
		BeforeEach(func() {
			db.gifticons["latte"] = &Gifticon{ID: "latte", ItemName: "카페라떼", Merchant: "스타벅스", ExpiryDate: "2024-03-05"}
			db.gifticons["milk"] = &Gifticon{ID: "milk", ItemName: "바나나우유", Merchant: "GS25", ExpiryDate: "2024-12-31"}
		})

		When("no filter is given", func() {
			It("returns all gifticons as JSON", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				var gifticons []*Gifticon
				decode(resp, &gifticons)
				Expect(gifticons).To(HaveLen(2))
			})
		})

		When("searching", func() {
			It("returns the fuzzy matches", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons?q=" + "%EB%9D%BC%EB%96%BC")
				Expect(err).NotTo(HaveOccurred())
				var gifticons []*Gifticon
				decode(resp, &gifticons)
				Expect(gifticons).To(HaveLen(1))
				Expect(gifticons[0].ID).To(Equal("latte"))
			})
		})

		When("asking for expiring gifticons", func() {
			It("returns those inside the window", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons?expiring=7")
				Expect(err).NotTo(HaveOccurred())
				var gifticons []*Gifticon
				decode(resp, &gifticons)
				Expect(gifticons).To(HaveLen(1))
				Expect(gifticons[0].ID).To(Equal("latte"))
			})
		})

		When("the window is not a number", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons?expiring=soon")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("database error")
			})

			It("should return status Internal Server Error", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
				resp.Body.Close()
			})
		})

		When("no gifticons exist", func() {
			BeforeEach(func() {
				db.gifticons = make(map[string]*Gifticon)
			})

			It("returns an empty array", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(strings.TrimSpace(string(body))).To(Equal("[]"))
			})
		})
	})

	Describe("handleUploadGifticon", func() {
		When("upload succeeds", func() {
			It("returns the created gifticon", func() {
				resp := upload("coupon.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var g Gifticon
				decode(resp, &g)
				Expect(g.ID).To(Equal("test-id"))
				Expect(g.Merchant).To(Equal("스타벅스"))
				Expect(g.Memo).To(Equal(MemoUpload))
			})

			It("guesses the content type from the file name", func() {
				resp := upload("coupon.png", []byte("fake image data"))
				resp.Body.Close()
				Expect(scanner.contentType).To(Equal("image/png"))
			})
		})

		When("the image is incomplete", func() {
			BeforeEach(func() {
				scanner.text = "선물하기\n카페라떼"
			})

			It("returns Unprocessable Entity with the missing fields", func() {
				resp := upload("coupon.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body errorResponse
				decode(resp, &body)
				Expect(body.Error).To(Equal("필수 정보(메뉴, 사용처, 유효기간) 추출 실패."))
				Expect(body.Missing).To(ConsistOf(extract.FieldMerchant, extract.FieldExpiry))
			})
		})

		When("the gifticon is a duplicate", func() {
			BeforeEach(func() {
				db.insertErr = ErrDuplicate
			})

			It("returns Conflict", func() {
				resp := upload("coupon.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusConflict))
				resp.Body.Close()
			})
		})

		When("recognition fails", func() {
			BeforeEach(func() {
				scanner.scanErr = errors.New("model unavailable")
			})

			It("returns Bad Gateway", func() {
				resp := upload("coupon.jpg", []byte("fake image data"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				resp.Body.Close()
			})
		})

		When("invalid multipart form", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/gifticons", "multipart/form-data", bytes.NewBufferString("invalid"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})

		When("the form has no file", func() {
			It("should return status Bad Request", func() {
				var b bytes.Buffer
				writer := multipart.NewWriter(&b)
				writer.WriteField("memo", "hello")
				writer.Close()

				resp, err := http.Post(ghttpServer.URL()+"/api/gifticons", writer.FormDataContentType(), &b)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleCreateFromText", func() {
		When("the text is complete", func() {
			It("returns the created gifticon", func() {
				resp := postJSON("/api/gifticons/text", textRequest{Text: voucherText, SourceRef: "content://media/7"})
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))

				var g Gifticon
				decode(resp, &g)
				Expect(g.SourceRef).To(Equal("content://media/7"))
				Expect(g.ExpiryDate).To(Equal("2024-12-31"))
			})
		})

		When("the text is blank", func() {
			It("returns Unprocessable Entity", func() {
				resp := postJSON("/api/gifticons/text", textRequest{Text: "  "})
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

				var body errorResponse
				decode(resp, &body)
				Expect(body.Error).To(Equal("이미지에서 텍스트를 찾지 못했어요."))
			})
		})

		When("the body is not JSON", func() {
			It("should return status Bad Request", func() {
				resp, err := http.Post(ghttpServer.URL()+"/api/gifticons/text", "application/json", bytes.NewBufferString("{"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				resp.Body.Close()
			})
		})
	})

	Describe("handleExtract", func() {
		When("the text is complete", func() {
			It("returns the result without saving", func() {
				resp := postJSON("/api/extract", textRequest{Text: voucherText})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body map[string]any
				decode(resp, &body)
				Expect(body).To(HaveKeyWithValue("item_name", "카페라떼"))
				Expect(body).To(HaveKeyWithValue("code", "AB12CD34EF56"))
				Expect(body).To(HaveKeyWithValue("complete", true))
				Expect(body).NotTo(HaveKey("missing"))
				Expect(db.gifticons).To(BeEmpty())
			})
		})

		When("fields are missing", func() {
			It("returns the partial result and what is missing", func() {
				resp := postJSON("/api/extract", textRequest{Text: "선물하기\n카페라떼"})
				Expect(resp.StatusCode).To(Equal(http.StatusOK))

				var body map[string]any
				decode(resp, &body)
				Expect(body).To(HaveKeyWithValue("item_name", "카페라떼"))
				Expect(body).To(HaveKeyWithValue("complete", false))
				Expect(body["missing"]).To(ConsistOf("merchant", "expiry_date"))
			})
		})

		When("the text is blank", func() {
			It("returns Unprocessable Entity", func() {
				resp := postJSON("/api/extract", textRequest{Text: ""})
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetGifticon", func() {
		BeforeEach(func() {
			db.gifticons["test-id"] = &Gifticon{ID: "test-id", ItemName: "카페라떼"}
		})

		When("gifticon exists", func() {
			It("returns it", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons/test-id")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var g Gifticon
				decode(resp, &g)
				Expect(g.ItemName).To(Equal("카페라떼"))
			})
		})

		When("gifticon does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons/nonexistent")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleGetGifticonFile", func() {
		BeforeEach(func() {
			db.gifticons["test-id"] = &Gifticon{ID: "test-id", Filename: "test-file.png", ContentType: "image/png"}
			storage.files["test-file.png"] = []byte("png data")
		})

		When("the file exists", func() {
			It("serves it with its content type", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons/test-id/file")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(body)).To(Equal("png data"))
			})
		})

		When("the gifticon does not exist", func() {
			It("should return status Not Found", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons/nonexistent/file")
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("handleDeleteGifticon", func() {
		BeforeEach(func() {
			db.gifticons["test-id"] = &Gifticon{ID: "test-id"}
		})

		When("gifticon exists", func() {
			It("should return status No Content", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/gifticons/test-id", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
				resp.Body.Close()
				Expect(db.gifticons).NotTo(HaveKey("test-id"))
			})
		})

		When("gifticon does not exist", func() {
			It("should return status Not Found", func() {
				req, err := http.NewRequest(http.MethodDelete, ghttpServer.URL()+"/api/gifticons/nonexistent", nil)
				Expect(err).NotTo(HaveOccurred())
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
				resp.Body.Close()
			})
		})
	})

	Describe("CORS", func() {
		It("answers preflight requests", func() {
			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/gifticons", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})

	Describe("authentication", func() {
		BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
		})

		When("no credentials are sent", func() {
			It("should return status Unauthorized", func() {
				resp, err := http.Get(ghttpServer.URL() + "/api/gifticons")
				Expect(err).NotTo(HaveOccurred())
				defer resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
				Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Basic"))
			})
		})

		When("valid credentials are sent", func() {
			It("should return status OK", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/gifticons", nil)
				Expect(err).NotTo(HaveOccurred())
				credentials := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				req.Header.Set("Authorization", "Basic "+credentials)
				resp, err := http.DefaultClient.Do(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				resp.Body.Close()
			})
		})

		When("invalid credentials are sent", func() {
			It("rejects them", func() {
				req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/gifticons", nil)
				Expect(err).NotTo(HaveOccurred())
				req.SetBasicAuth("user", "wrong")
				Expect(server.authenticate(req)).To(BeFalse())
			})
		})
	})
})

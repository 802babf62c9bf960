package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	apphttp "sofia/internal/http"
	applog "sofia/internal/log"
	"sofia/internal/metrics"
	"sofia/internal/services"
	"sofia/internal/sheets/memory"

	"sofia/internal/core"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func seed() []core.Expense {
	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	return []core.Expense{
		{ID: "e1", Payer: core.PayerLeslie, Amount: core.Money{Cents: 10000}, Description: "Textbooks", Date: core.NewDate(2025, 9, 1), Timestamp: base},
		{ID: "e2", Payer: core.PayerIan, Amount: core.Money{Cents: 5000}, Description: "Lab fee", Date: core.NewDate(2025, 9, 10), Timestamp: base.Add(time.Hour)},
		{ID: "e3", Payer: core.PayerLeslie, Amount: core.Money{Cents: 3000}, Description: "Dorm supplies", Date: core.NewDate(2025, 8, 1), Timestamp: base.Add(-time.Hour)},
	}
}

var _ = Describe("Server", func() {
	var (
		now   time.Time
		store *memory.Store
		opts  apphttp.Options
		srv   *apphttp.Server
	)

	newServer := func() {
		if srv != nil {
			Expect(srv.Shutdown(context.Background())).To(Succeed())
		}
		var err error
		srv, err = apphttp.NewServer(":0", opts)
		Expect(err).NotTo(HaveOccurred())
	}

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		return rr
	}

	get := func(target string) *httptest.ResponseRecorder {
		return do(httptest.NewRequest(http.MethodGet, target, nil))
	}

	htmx := func(req *http.Request) *http.Request {
		req.Header.Set("HX-Request", "true")
		return req
	}

	postForm := func(v url.Values) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(v.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	validForm := func() url.Values {
		return url.Values{
			"payer":       {"ian"},
			"amount":      {"12.50"},
			"description": {"Printer ink"},
			"date":        {"2025-09-14"},
		}
	}

	BeforeEach(func() {
		srv = nil
		now = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
		store = memory.New(seed()...)
		opts = apphttp.Options{
			Service:         services.NewExpenseService(store, nil, nil),
			Logger:          applog.Discard(),
			Location:        time.UTC,
			PageSize:        2,
			WritesPerMinute: 100,
			Clock:           func() time.Time { return now },
		}
		newServer()
	})

	AfterEach(func() {
		Expect(srv.Shutdown(context.Background())).To(Succeed())
	})

	Describe("probes", func() {
		It("reports liveness", func() {
			rr := get("/healthz")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(rr.Body.String()).To(ContainSubstring(`"status":"ok"`))
		})

		It("is ready when the backend answers", func() {
			opts.Ready = func(context.Context) error { return nil }
			newServer()
			rr := get("/readyz")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`"status":"ready"`))
		})

		It("is not ready when the backend fails", func() {
			opts.Ready = func(context.Context) error { return errors.New("sheet unreachable") }
			newServer()
			rr := get("/readyz")
			Expect(rr.Code).To(Equal(http.StatusServiceUnavailable))
			Expect(rr.Body.String()).To(ContainSubstring("sheet unreachable"))
		})

		It("returns 404 for /metrics when metrics are disabled", func() {
			Expect(get("/metrics").Code).To(Equal(http.StatusNotFound))
		})

		It("exposes request metrics when enabled", func() {
			opts.Metrics = metrics.New()
			newServer()
			Expect(get("/healthz").Code).To(Equal(http.StatusOK))

			rr := get("/metrics")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`sofia_http_requests_total{method="GET",route="/healthz",status="200"} 1`))
		})
	})

	Describe("dashboard", func() {
		It("renders summary, balance and the first page", func() {
			rr := get("/")
			Expect(rr.Code).To(Equal(http.StatusOK))
			body := rr.Body.String()
			Expect(body).To(ContainSubstring("$180.00"))
			Expect(body).To(ContainSubstring("Ian owes Leslie $40.00"))
			Expect(strings.Count(body, `<tr id="expense-`)).To(Equal(2))
			Expect(rr.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(rr.Header().Get("X-Request-ID")).To(HavePrefix("req_"))
		})

		It("shows an inverted custom range as an error over the default view", func() {
			rr := get("/?range=custom&start=2025-09-10&end=2025-09-01")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`class="error"`))
			Expect(rr.Body.String()).To(ContainSubstring("$180.00"))
		})

		It("serves embedded static assets with caching", func() {
			rr := get("/static/app.css")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("Cache-Control")).To(Equal("public, max-age=3600"))
		})
	})

	Describe("list partial", func() {
		It("filters by payer", func() {
			rr := get("/ui/expenses?filter=ian")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("Lab fee"))
			Expect(rr.Body.String()).NotTo(ContainSubstring("Textbooks"))
		})

		It("paginates", func() {
			rr := get("/ui/expenses?page=2")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(strings.Count(rr.Body.String(), `<tr id="expense-`)).To(Equal(1))
			Expect(rr.Body.String()).To(ContainSubstring("Dorm supplies"))
		})

		It("clamps out-of-range pages", func() {
			rr := get("/ui/expenses?page=99")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("Dorm supplies"))
		})

		It("rejects an inverted custom range", func() {
			rr := get("/ui/expenses?range=custom&start=2025-09-10&end=2025-09-01")
			Expect(rr.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(rr.Header().Get("HX-Trigger")).To(ContainSubstring(`"type":"error"`))
		})

		It("renders the summary for the date range only", func() {
			rr := get("/ui/summary?filter=ian&range=month")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring("$150.00"))
			Expect(rr.Body.String()).To(ContainSubstring("Ian owes Leslie $25.00"))
		})
	})

	Describe("GET /api/summary", func() {
		It("returns totals as decimal strings", func() {
			rr := get("/api/summary")
			Expect(rr.Code).To(Equal(http.StatusOK))

			var got map[string]any
			Expect(json.Unmarshal(rr.Body.Bytes(), &got)).To(Succeed())
			Expect(got["total"]).To(Equal("180.00"))
			Expect(got["leslie"]).To(Equal("130.00"))
			Expect(got["ian_owes"]).To(Equal("40.00"))
			Expect(got["leslie_owes"]).To(Equal("0.00"))
			Expect(got["count"]).To(BeNumerically("==", 3))
			Expect(got["balance"]).To(Equal("Ian owes Leslie $40.00"))
		})

		It("reports bad ranges as JSON", func() {
			rr := get("/api/summary?range=custom&start=2025-09-10&end=2025-09-01")
			Expect(rr.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(rr.Body.String()).To(ContainSubstring(`"error"`))
		})
	})

	Describe("creating expenses", func() {
		It("accepts an HTMX form post and refreshes the snapshot", func() {
			Expect(get("/api/summary").Body.String()).To(ContainSubstring(`"count":3`))

			rr := do(htmx(postForm(validForm())))
			Expect(rr.Code).To(Equal(http.StatusCreated))
			trigger := rr.Header().Get("HX-Trigger")
			Expect(trigger).To(ContainSubstring("expense:created"))
			Expect(trigger).To(ContainSubstring("form:reset"))
			Expect(rr.Body.String()).To(ContainSubstring("Printer ink"))

			Expect(get("/api/summary").Body.String()).To(ContainSubstring(`"count":4`))
			Expect(get("/activity").Body.String()).To(ContainSubstring("Added expense: Printer ink for $12.50 (paid by Ian)"))
		})

		It("defaults the date to today", func() {
			v := validForm()
			v.Del("date")
			Expect(do(htmx(postForm(v))).Code).To(Equal(http.StatusCreated))

			list, err := store.ListExpenses(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(list[0].Date).To(Equal(core.NewDate(2025, 9, 15)))
		})

		It("redirects plain form posts back to the dashboard", func() {
			rr := do(postForm(validForm()))
			Expect(rr.Code).To(Equal(http.StatusSeeOther))
			Expect(rr.Header().Get("Location")).To(Equal("/"))
		})

		It("accepts JSON", func() {
			req := httptest.NewRequest(http.MethodPost, "/expenses",
				strings.NewReader(`{"payer":"Leslie","amount":"19.99","description":"Calculator","date":"2025-09-12"}`))
			req.Header.Set("Content-Type", "application/json")
			rr := do(req)
			Expect(rr.Code).To(Equal(http.StatusCreated))

			var got map[string]any
			Expect(json.Unmarshal(rr.Body.Bytes(), &got)).To(Succeed())
			Expect(got["amount"]).To(Equal("19.99"))
			Expect(got["payer"]).To(Equal("Leslie"))
			Expect(got["id"]).NotTo(BeEmpty())
		})

		DescribeTable("rejects invalid input with 422",
			func(field, value string) {
				v := validForm()
				v.Set(field, value)
				rr := do(htmx(postForm(v)))
				Expect(rr.Code).To(Equal(http.StatusUnprocessableEntity))
				Expect(rr.Body.String()).To(ContainSubstring(`class="error"`))
				Expect(rr.Header().Get("HX-Trigger")).To(ContainSubstring(`"type":"error"`))
			},
			Entry("negative amount", "amount", "-5"),
			Entry("zero amount", "amount", "0"),
			Entry("unknown payer", "payer", "Bob"),
			Entry("empty description", "description", "   "),
			Entry("impossible date", "date", "2025-02-30"),
		)

		It("rejects malformed JSON with 400", func() {
			req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"payer":`))
			req.Header.Set("Content-Type", "application/json")
			Expect(do(req).Code).To(Equal(http.StatusBadRequest))
		})

		It("rate limits writes per client", func() {
			opts.WritesPerMinute = 2
			newServer()
			Expect(do(htmx(postForm(validForm()))).Code).To(Equal(http.StatusCreated))
			Expect(do(htmx(postForm(validForm()))).Code).To(Equal(http.StatusCreated))

			rr := do(htmx(postForm(validForm())))
			Expect(rr.Code).To(Equal(http.StatusTooManyRequests))
			Expect(rr.Header().Get("Retry-After")).NotTo(BeEmpty())
		})
	})

	Describe("deleting expenses", func() {
		It("deletes over HTMX and reports a second delete as not found", func() {
			rr := do(htmx(httptest.NewRequest(http.MethodDelete, "/expenses/e2", nil)))
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("HX-Trigger")).To(ContainSubstring("expense:deleted"))
			Expect(get("/api/summary").Body.String()).To(ContainSubstring(`"count":2`))

			rr = do(htmx(httptest.NewRequest(http.MethodDelete, "/expenses/e2", nil)))
			Expect(rr.Code).To(Equal(http.StatusNotFound))
		})

		It("supports the POST fallback for JSON clients", func() {
			req := httptest.NewRequest(http.MethodPost, "/expenses/e1/delete", nil)
			req.Header.Set("Accept", "application/json")
			rr := do(req)
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Body.String()).To(ContainSubstring(`"description":"Textbooks"`))
		})
	})

	Describe("CSV export", func() {
		It("downloads the filtered expenses", func() {
			rr := get("/expenses/export.csv?filter=leslie")
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("Content-Type")).To(HavePrefix("text/csv"))
			Expect(rr.Header().Get("Content-Disposition")).To(ContainSubstring("sofia-expenses-leslie-2025-09-15.csv"))

			lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
			Expect(lines[0]).To(Equal("Date,Payer,Amount,Description,Note"))
			Expect(lines).To(HaveLen(3))
		})

		It("warns HTMX callers when there is nothing to export", func() {
			rr := do(htmx(httptest.NewRequest(http.MethodGet, "/expenses/export.csv?range=today", nil)))
			Expect(rr.Code).To(Equal(http.StatusOK))
			Expect(rr.Header().Get("HX-Trigger")).To(ContainSubstring("No expenses to export"))
			Expect(rr.Body.Len()).To(BeZero())
		})

		It("returns 404 to plain callers when there is nothing to export", func() {
			Expect(get("/expenses/export.csv?range=today").Code).To(Equal(http.StatusNotFound))
		})
	})
})

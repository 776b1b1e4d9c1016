package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/alb/internal/application"
	"github.com/angeloszaimis/alb/internal/handler"
	"github.com/angeloszaimis/alb/internal/loadbalancer"
	"github.com/angeloszaimis/alb/internal/registry"
	"github.com/angeloszaimis/alb/internal/strategy"
)

var _ = Describe("RegistrationHandler", func() {
	var (
		h   *handler.RegistrationHandler
		reg *registry.Registry
		lb  *loadbalancer.LoadBalancer
		mux *http.ServeMux
	)

	BeforeEach(func() {
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		reg = registry.New()
		lb = loadbalancer.NewLoadBalancer(reg, strategy.NewRoundRobinStrategy())
		h = handler.NewRegistrationHandler(log, reg, lb, nil)

		mux = http.NewServeMux()
		mux.HandleFunc("POST /api/register-application", h.Register)
		mux.HandleFunc("DELETE /api/deregister-application/{id}", h.Deregister)
	})

	register := func(body any) *httptest.ResponseRecorder {
		payload, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/register-application", bytes.NewReader(payload)))
		return w
	}

	deregister := func(id string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/deregister-application/"+id, nil))
		return w
	}

	valid := application.Registration{
		Scheme:          "http",
		Host:            "localhost",
		Port:            9001,
		Path:            "/api",
		HealthCheckPath: "/health",
		Timeout:         2,
	}

	Describe("Register", func() {
		It("should register a valid application and return its id", func() {
			w := register(valid)

			Expect(w.Code).To(Equal(http.StatusOK))
			var body handler.RegisterResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())

			app, ok := reg.Lookup(body.ID)
			Expect(ok).To(BeTrue())
			Expect(app.Endpoint().String()).To(Equal("http://localhost:9001"))
			Expect(app.Health()).To(Equal(application.HealthUnknown))
		})

		It("should not make a new application eligible before it is probed", func() {
			Expect(register(valid).Code).To(Equal(http.StatusOK))
			_, ok := lb.SelectApplication()
			Expect(ok).To(BeFalse())
		})

		It("should reject a duplicate endpoint with 422", func() {
			Expect(register(valid).Code).To(Equal(http.StatusOK))

			dup := valid
			dup.Scheme = "HTTP"
			w := register(dup)

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(decodeError(w).Error.Code).To(Equal("duplicate_endpoint"))
			Expect(reg.Len()).To(Equal(1))
		})

		DescribeTable("should reject invalid payloads with 400",
			func(mutate func(*application.Registration)) {
				r := valid
				mutate(&r)
				w := register(r)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeError(w).Error.Code).To(Equal("validation_error"))
				Expect(reg.Len()).To(BeZero())
			},
			Entry("timeout above 5", func(r *application.Registration) { r.Timeout = 6 }),
			Entry("negative timeout", func(r *application.Registration) { r.Timeout = -1 }),
			Entry("ftp scheme", func(r *application.Registration) { r.Scheme = "ftp" }),
			Entry("missing host", func(r *application.Registration) { r.Host = "" }),
			Entry("zero port", func(r *application.Registration) { r.Port = 0 }),
			Entry("missing health check path", func(r *application.Registration) { r.HealthCheckPath = "" }),
		)

		It("should report field errors in the details", func() {
			r := valid
			r.Timeout = 9
			w := register(r)

			var body struct {
				Error struct {
					Details map[string]string `json:"details"`
				} `json:"error"`
			}
			Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Error.Details).To(HaveKey("timeout"))
		})

		It("should reject malformed JSON with 400", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/register-application", bytes.NewBufferString("{not json")))
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Deregister", func() {
		It("should remove a registered application", func() {
			var body handler.RegisterResponse
			Expect(json.Unmarshal(register(valid).Body.Bytes(), &body)).To(Succeed())

			w := deregister(body.ID)

			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(reg.Len()).To(BeZero())
		})

		It("should remove a healthy application from the rotation", func() {
			var body handler.RegisterResponse
			Expect(json.Unmarshal(register(valid).Body.Bytes(), &body)).To(Succeed())
			app, _ := reg.Lookup(body.ID)
			lb.Promote(app)

			Expect(deregister(body.ID).Code).To(Equal(http.StatusNoContent))

			_, ok := lb.SelectApplication()
			Expect(ok).To(BeFalse())
		})

		It("should allow re-registration after deregistration", func() {
			var body handler.RegisterResponse
			Expect(json.Unmarshal(register(valid).Body.Bytes(), &body)).To(Succeed())
			Expect(deregister(body.ID).Code).To(Equal(http.StatusNoContent))

			Expect(register(valid).Code).To(Equal(http.StatusOK))
		})

		It("should return 404 for an unknown id", func() {
			id, err := uuid.NewV7()
			Expect(err).NotTo(HaveOccurred())

			w := deregister(id.String())

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(decodeError(w).Error.Code).To(Equal("not_found"))
		})

		It("should return 404 when deregistering twice", func() {
			var body handler.RegisterResponse
			Expect(json.Unmarshal(register(valid).Body.Bytes(), &body)).To(Succeed())
			Expect(deregister(body.ID).Code).To(Equal(http.StatusNoContent))

			Expect(deregister(body.ID).Code).To(Equal(http.StatusNotFound))
		})

		DescribeTable("should reject malformed ids with 400",
			func(id string) {
				w := deregister(id)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(decodeError(w).Error.Code).To(Equal("validation_error"))
			},
			Entry("not a uuid", "not-an-id"),
			Entry("version 4 uuid", uuid.NewString()),
		)
	})
})

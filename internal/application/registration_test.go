package application_test

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/alb/internal/application"
)

var _ = Describe("Registration", func() {
	valid := func() application.Registration {
		return application.Registration{
			Scheme:          "http",
			Host:            "localhost",
			Port:            8080,
			Path:            "/dummypath",
			HealthCheckPath: "/health",
			Timeout:         1,
		}
	}

	It("should accept a valid payload", func() {
		Expect(valid().Validate()).To(Succeed())
	})

	It("should accept a zero timeout and an empty path", func() {
		reg := valid()
		reg.Timeout = 0
		reg.Path = ""
		Expect(reg.Validate()).To(Succeed())
	})

	DescribeTable("scheme is case-insensitive",
		func(scheme string) {
			reg := valid()
			reg.Scheme = scheme
			Expect(reg.Validate()).To(Succeed())
		},
		Entry("lower http", "http"),
		Entry("upper HTTP", "HTTP"),
		Entry("mixed Https", "Https"),
	)

	DescribeTable("rejects invalid payloads",
		func(mutate func(*application.Registration), field string) {
			reg := valid()
			mutate(&reg)

			err := reg.Validate()
			Expect(err).To(HaveOccurred())

			errs, ok := err.(validation.Errors)
			Expect(ok).To(BeTrue())
			Expect(errs).To(HaveKey(field))
		},
		Entry("empty scheme", func(r *application.Registration) { r.Scheme = "" }, "scheme"),
		Entry("ftp scheme", func(r *application.Registration) { r.Scheme = "ftp" }, "scheme"),
		Entry("empty host", func(r *application.Registration) { r.Host = "" }, "host"),
		Entry("malformed host", func(r *application.Registration) { r.Host = "not a host" }, "host"),
		Entry("zero port", func(r *application.Registration) { r.Port = 0 }, "port"),
		Entry("negative port", func(r *application.Registration) { r.Port = -1 }, "port"),
		Entry("port out of range", func(r *application.Registration) { r.Port = 70000 }, "port"),
		Entry("empty health check path", func(r *application.Registration) { r.HealthCheckPath = "" }, "healthCheckPath"),
		Entry("negative timeout", func(r *application.Registration) { r.Timeout = -1 }, "timeout"),
		Entry("timeout above five seconds", func(r *application.Registration) { r.Timeout = 6 }, "timeout"),
	)
})

package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/alb/internal/metrics"
)

var _ = Describe("Metrics", func() {
	const endpoint = "http://10.0.0.1:8080"

	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("TrackApplication and ForgetApplication", func() {
		It("should count registrations and drop deregistered endpoints", func() {
			m.TrackApplication(endpoint, "unknown")
			m.RecordForward(endpoint, time.Millisecond, 200, "")

			snap := m.Snapshot("round-robin")
			Expect(snap.Registrations).To(Equal(int64(1)))
			Expect(snap.Applications).To(HaveKey(endpoint))
			Expect(snap.Applications[endpoint].Health).To(Equal("unknown"))

			m.ForgetApplication(endpoint)
			snap = m.Snapshot("round-robin")
			Expect(snap.Applications).NotTo(HaveKey(endpoint))
			Expect(snap.Registrations).To(Equal(int64(1)))
		})
	})

	Describe("RecordForward", func() {
		It("should record response time and status code", func() {
			m.RecordForward(endpoint, 100*time.Millisecond, 200, "")

			snap := m.Snapshot("round-robin")
			app := snap.Applications[endpoint]
			Expect(snap.TotalForwards).To(Equal(int64(1)))
			Expect(app.Forwards).To(Equal(int64(1)))
			Expect(app.AvgResponse).To(Equal(100 * time.Millisecond))
			Expect(app.StatusCodes[200]).To(Equal(int64(1)))
			Expect(app.Failures).To(BeEmpty())
		})

		It("should count failures by code and skip missing status codes", func() {
			m.RecordForward(endpoint, time.Second, 0, "timeout")
			m.RecordForward(endpoint, time.Millisecond, 500, "downstream_error")
			m.RecordForward(endpoint, time.Second, 0, "timeout")

			app := m.Snapshot("round-robin").Applications[endpoint]
			Expect(app.Failures).To(Equal(map[string]int64{"timeout": 2, "downstream_error": 1}))
			Expect(app.StatusCodes).To(Equal(map[int]int64{500: 1}))
		})

		It("should calculate percentiles", func() {
			for i := 1; i <= 100; i++ {
				m.RecordForward(endpoint, time.Duration(i)*time.Millisecond, 200, "")
			}

			app := m.Snapshot("round-robin").Applications[endpoint]
			Expect(app.P50Response).To(Equal(51 * time.Millisecond))
			Expect(app.P95Response).To(Equal(96 * time.Millisecond))
			Expect(app.P99Response).To(Equal(100 * time.Millisecond))
		})

		It("should keep a bounded number of samples", func() {
			for i := 0; i < 1500; i++ {
				m.RecordForward(endpoint, time.Millisecond, 200, "")
			}
			Expect(m.Snapshot("round-robin").Applications[endpoint].Forwards).To(Equal(int64(1500)))
		})
	})

	Describe("UpdateHealth", func() {
		It("should store the state and count transitions", func() {
			m.UpdateHealth(endpoint, "healthy", true)
			m.UpdateHealth(endpoint, "healthy", false)
			m.UpdateHealth(endpoint, "unhealthy", true)

			app := m.Snapshot("round-robin").Applications[endpoint]
			Expect(app.Health).To(Equal("unhealthy"))
			Expect(app.HealthTransitions).To(Equal(int64(2)))
		})
	})

	Describe("RecordNoApplication", func() {
		It("should count requests without a healthy application", func() {
			m.RecordNoApplication()
			m.RecordNoApplication()
			Expect(m.Snapshot("round-robin").NoApplicationAvailable).To(Equal(int64(2)))
		})
	})

	Describe("Snapshot", func() {
		It("should report algorithm and uptime", func() {
			snap := m.Snapshot("round-robin")
			Expect(snap.Algorithm).To(Equal("round-robin"))
			Expect(snap.Uptime).To(BeNumerically(">=", 0))
			Expect(snap.Applications).To(BeEmpty())
		})

		It("should not share maps with the live metrics", func() {
			m.RecordForward(endpoint, time.Millisecond, 200, "")
			snap := m.Snapshot("round-robin")
			snap.Applications[endpoint].StatusCodes[200] = 42

			Expect(m.Snapshot("round-robin").Applications[endpoint].StatusCodes[200]).To(Equal(int64(1)))
		})
	})
})

package metrics_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/alb/internal/metrics"
)

var _ = Describe("Collector", func() {
	const endpoint = "http://10.0.0.1:8080"

	var (
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError, // Suppress logs in tests
		}))
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, log)
	})

	AfterEach(func() {
		cancel()
	})

	Describe("Publish", func() {
		It("should not block when the buffer is full", func() {
			small := metrics.NewCollector(1, log)
			Expect(small.Publish(metrics.Event{Type: metrics.EventNoApplication})).To(BeTrue())
			Expect(small.Publish(metrics.Event{Type: metrics.EventNoApplication})).To(BeFalse())
		})

		It("should drop events on a nil collector", func() {
			var none *metrics.Collector
			Expect(none.Publish(metrics.Event{Type: metrics.EventNoApplication})).To(BeFalse())
		})
	})

	Describe("Start and event processing", func() {
		It("should process EventApplicationRegistered", func() {
			collector.Start(ctx)
			collector.Publish(metrics.Event{
				Type:     metrics.EventApplicationRegistered,
				Endpoint: endpoint,
				Health:   "unknown",
			})

			Eventually(func() int64 {
				return collector.Snapshot("round-robin").Registrations
			}).Should(Equal(int64(1)))
		})

		It("should process EventHealthChecked", func() {
			collector.Start(ctx)
			collector.Publish(metrics.Event{
				Type:     metrics.EventHealthChecked,
				Endpoint: endpoint,
				Health:   "healthy",
				Changed:  true,
			})

			Eventually(func() string {
				return collector.Snapshot("round-robin").Applications[endpoint].Health
			}).Should(Equal("healthy"))
		})

		It("should process EventRequestForwarded", func() {
			collector.Start(ctx)
			collector.Publish(metrics.Event{
				Type:       metrics.EventRequestForwarded,
				Endpoint:   endpoint,
				Duration:   100 * time.Millisecond,
				StatusCode: 200,
			})

			Eventually(func() int64 {
				return collector.Snapshot("round-robin").Applications[endpoint].StatusCodes[200]
			}).Should(Equal(int64(1)))
		})

		It("should process events in order", func() {
			collector.Start(ctx)
			collector.Publish(metrics.Event{Type: metrics.EventApplicationRegistered, Endpoint: endpoint, Health: "unknown"})
			collector.Publish(metrics.Event{Type: metrics.EventHealthChecked, Endpoint: endpoint, Health: "healthy", Changed: true})
			collector.Publish(metrics.Event{Type: metrics.EventApplicationDeregistered, Endpoint: endpoint})
			collector.Publish(metrics.Event{Type: metrics.EventNoApplication})

			Eventually(func() int64 {
				return collector.Snapshot("round-robin").NoApplicationAvailable
			}).Should(Equal(int64(1)))
			Expect(collector.Snapshot("round-robin").Applications).NotTo(HaveKey(endpoint))
		})

		It("should drain events on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.Publish(metrics.Event{Type: metrics.EventNoApplication})
			}

			cancel()
			done := make(chan struct{})
			go func() {
				collector.Run(ctx)
				close(done)
			}()
			Eventually(done).Should(BeClosed())

			Expect(collector.Snapshot("round-robin").NoApplicationAvailable).To(Equal(int64(5)))
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Publish(metrics.Event{Type: metrics.EventNoApplication})
			Eventually(func() int64 {
				return collector.Snapshot("round-robin").NoApplicationAvailable
			}).Should(Equal(int64(1)))

			w := httptest.NewRecorder()
			collector.Handler("round-robin")(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.Snapshot
			Expect(json.Unmarshal(w.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Algorithm).To(Equal("round-robin"))
			Expect(snap.NoApplicationAvailable).To(Equal(int64(1)))
		})
	})
})

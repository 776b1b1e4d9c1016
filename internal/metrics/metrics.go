package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxResponseSamples = 1000

type Metrics struct {
	mutex         sync.RWMutex
	forwards      map[string]int64
	failures      map[string]map[string]int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	health        map[string]string
	transitions   map[string]int64
	registrations int64
	unavailable   int64
	startTime     time.Time
}

type Snapshot struct {
	TotalForwards          int64                         `json:"total_forwards"`
	NoApplicationAvailable int64                         `json:"no_application_available"`
	Registrations          int64                         `json:"registrations"`
	Uptime                 time.Duration                 `json:"uptime"`
	Applications           map[string]ApplicationMetrics `json:"applications"`
	Algorithm              string                        `json:"algorithm"`
}

type ApplicationMetrics struct {
	Forwards          int64            `json:"forwards"`
	Failures          map[string]int64 `json:"failures,omitempty"`
	Health            string           `json:"health"`
	HealthTransitions int64            `json:"health_transitions"`
	AvgResponse       time.Duration    `json:"avg_response"`
	P50Response       time.Duration    `json:"p50_response"`
	P95Response       time.Duration    `json:"p95_response"`
	P99Response       time.Duration    `json:"p99_response"`
	StatusCodes       map[int]int64    `json:"status_codes,omitempty"`
}

// TrackApplication starts tracking a newly registered endpoint.
func (m *Metrics) TrackApplication(endpoint, health string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.registrations++
	m.health[endpoint] = health
}

// ForgetApplication drops everything recorded for a deregistered endpoint.
func (m *Metrics) ForgetApplication(endpoint string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.forwards, endpoint)
	delete(m.failures, endpoint)
	delete(m.responseTimes, endpoint)
	delete(m.statusCodes, endpoint)
	delete(m.health, endpoint)
	delete(m.transitions, endpoint)
}

// RecordForward records one forwarded request. failure is empty on success.
func (m *Metrics) RecordForward(endpoint string, duration time.Duration, statusCode int, failure string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.forwards[endpoint]++

	m.responseTimes[endpoint] = append(m.responseTimes[endpoint], duration)
	if len(m.responseTimes[endpoint]) > maxResponseSamples {
		m.responseTimes[endpoint] = m.responseTimes[endpoint][1:]
	}

	if statusCode != 0 {
		if m.statusCodes[endpoint] == nil {
			m.statusCodes[endpoint] = make(map[int]int64)
		}
		m.statusCodes[endpoint][statusCode]++
	}

	if failure != "" {
		if m.failures[endpoint] == nil {
			m.failures[endpoint] = make(map[string]int64)
		}
		m.failures[endpoint][failure]++
	}
}

// RecordNoApplication counts a request that found the healthy set empty.
func (m *Metrics) RecordNoApplication() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.unavailable++
}

func (m *Metrics) UpdateHealth(endpoint, health string, changed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.health[endpoint] = health
	if changed {
		m.transitions[endpoint]++
	}
}

func (m *Metrics) Snapshot(algorithm string) Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		NoApplicationAvailable: m.unavailable,
		Registrations:          m.registrations,
		Uptime:                 time.Since(m.startTime),
		Applications:           make(map[string]ApplicationMetrics),
		Algorithm:              algorithm,
	}

	endpoints := make(map[string]bool)
	for endpoint := range m.forwards {
		endpoints[endpoint] = true
	}
	for endpoint := range m.health {
		endpoints[endpoint] = true
	}

	for endpoint := range endpoints {
		snap.TotalForwards += m.forwards[endpoint]

		am := ApplicationMetrics{
			Forwards:          m.forwards[endpoint],
			Failures:          copyCounts(m.failures[endpoint]),
			Health:            m.health[endpoint],
			HealthTransitions: m.transitions[endpoint],
			StatusCodes:       copyCounts(m.statusCodes[endpoint]),
		}

		durations := m.responseTimes[endpoint]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			am.AvgResponse = average(sorted)
			am.P50Response = percentile(sorted, 0.50)
			am.P95Response = percentile(sorted, 0.95)
			am.P99Response = percentile(sorted, 0.99)
		}

		snap.Applications[endpoint] = am
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		forwards:      make(map[string]int64),
		failures:      make(map[string]map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		health:        make(map[string]string),
		transitions:   make(map[string]int64),
		startTime:     time.Now(),
	}
}

func copyCounts[K comparable](counts map[K]int64) map[K]int64 {
	if counts == nil {
		return nil
	}
	out := make(map[K]int64, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}

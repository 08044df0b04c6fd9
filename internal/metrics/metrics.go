package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// WSConnections tracks currently connected websocket sessions
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_connections", Help: "Live websocket sessions."},
	)
	// RoomMembers tracks total room membership entries across all rooms
	RoomMembers = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "ws_room_members", Help: "Total room membership entries."},
	)
	// EventsPublished counts fanned-out events by event name
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ws_events_published_total", Help: "Events published to rooms by name."},
		[]string{"event"},
	)
	// EventsDropped counts events dropped due to full or closed session queues
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "ws_events_dropped_total", Help: "Events dropped on slow or gone sessions."},
	)
	// LocationSamples counts driver position samples relayed
	LocationSamples = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "location_samples_total", Help: "Driver location samples relayed."},
	)
	// LocationThrottled counts samples rejected by the ingest rate limiter
	LocationThrottled = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "location_samples_throttled_total", Help: "Driver location samples rejected by rate limiting."},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(WSConnections)
		Registry.MustRegister(RoomMembers)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(EventsDropped)
		Registry.MustRegister(LocationSamples)
		Registry.MustRegister(LocationThrottled)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

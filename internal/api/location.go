package api

import (
	"sync"

	"fleetops/internal/metrics"
)

// LocationRelay republishes driver position samples to everyone watching a
// delivery. It is a thin specialization of the router's publish path: samples
// are transported at whatever rate the driver produces them, never persisted,
// and a sample for a delivery nobody is watching is simply dropped. The event
// name on the wire is the delivery id itself.
type LocationRelay struct {
	router *EventRouter
}

func NewLocationRelay(router *EventRouter) *LocationRelay {
	return &LocationRelay{router: router}
}

// Report fans the sample out to room "delivery:<id>". Authorization (only the
// assigned driver may emit for a delivery) is the caller's responsibility.
func (lr *LocationRelay) Report(deliveryID string, lat, lng float64) {
	metrics.LocationSamples.Inc()
	lr.router.Publish(DeliveryRoom(deliveryID), deliveryID, map[string]float64{"lat": lat, "lng": lng})
}

// LatestLocation holds the latest known position of the driver on a delivery.
type LatestLocation struct {
	DeliveryID string  `json:"deliveryId"`
	DriverID   string  `json:"driverId,omitempty"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	TS         string  `json:"ts"`
}

// LocationCache stores last-known positions per delivery for the REST
// position endpoint. It belongs to the durable-ish collaborating layer, not
// the relay: clients that mount late re-fetch from here instead of waiting
// for the next live sample.
type LocationCache struct {
	mu sync.Mutex
	m  map[string]LatestLocation // deliveryId -> latest
}

func NewLocationCache() *LocationCache { return &LocationCache{m: map[string]LatestLocation{}} }

// Upsert stores or updates the latest position for a delivery.
func (c *LocationCache) Upsert(deliveryID, driverID string, lat, lng float64, ts string) {
	if deliveryID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[deliveryID] = LatestLocation{DeliveryID: deliveryID, DriverID: driverID, Lat: lat, Lng: lng, TS: ts}
}

// Get returns the latest position for a delivery, if any sample has arrived.
func (c *LocationCache) Get(deliveryID string) (LatestLocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.m[deliveryID]
	return l, ok
}

package model

// Core domain types for the fleet coordination API.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// User is an account: customer, driver, or admin.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"` // customer, driver, admin
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type UserIn struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password,omitempty"`
}

type Vehicle struct {
	ID        string `json:"id"`
	Plate     string `json:"plate"`
	Kind      string `json:"kind,omitempty"` // van, truck, bike
	Status    string `json:"status"`         // available, in_service, maintenance
	DriverID  string `json:"driverId,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

type VehicleIn struct {
	Plate string `json:"plate"`
	Kind  string `json:"kind,omitempty"`
}

type VehiclePatch struct {
	Status   string `json:"status,omitempty"`
	DriverID string `json:"driverId,omitempty"`
}

// Delivery statuses, in forward order.
const (
	StatusRequested = "requested"
	StatusAssigned  = "assigned"
	StatusPickedUp  = "picked_up"
	StatusInTransit = "in_transit"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

type Delivery struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customerId"`
	DriverID   string    `json:"driverId,omitempty"`
	VehicleID  string    `json:"vehicleId,omitempty"`
	Status     string    `json:"status"`
	Pickup     *GeoPoint `json:"pickup,omitempty"`
	Dropoff    *GeoPoint `json:"dropoff,omitempty"`
	PickupAddr string    `json:"pickupAddr,omitempty"`
	DropAddr   string    `json:"dropAddr,omitempty"`
	Note       string    `json:"note,omitempty"`
	PriceCents int       `json:"priceCents,omitempty"`
	CreatedAt  string    `json:"createdAt,omitempty"`
	UpdatedAt  string    `json:"updatedAt,omitempty"`
}

type DeliveryIn struct {
	Pickup     *GeoPoint `json:"pickup"`
	Dropoff    *GeoPoint `json:"dropoff"`
	PickupAddr string    `json:"pickupAddr,omitempty"`
	DropAddr   string    `json:"dropAddr,omitempty"`
	Note       string    `json:"note,omitempty"`
	PriceCents int       `json:"priceCents,omitempty"`
}

type AssignRequest struct {
	DriverID  string `json:"driverId"`
	VehicleID string `json:"vehicleId,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// DeliveryFilter narrows ListDeliveries.
type DeliveryFilter struct {
	Status     string
	CustomerID string
	DriverID   string
}

// NextStatuses returns the statuses a delivery may legally move to.
func NextStatuses(cur string) []string {
	switch cur {
	case StatusRequested:
		return []string{StatusAssigned, StatusCancelled}
	case StatusAssigned:
		return []string{StatusPickedUp, StatusCancelled}
	case StatusPickedUp:
		return []string{StatusInTransit}
	case StatusInTransit:
		return []string{StatusDelivered}
	default:
		return nil
	}
}

// CanTransition reports whether cur -> next is a legal status move.
func CanTransition(cur, next string) bool {
	for _, s := range NextStatuses(cur) {
		if s == next {
			return true
		}
	}
	return false
}

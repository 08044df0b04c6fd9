package store

import (
	"context"
	"errors"

	"fleetops/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Users
	CreateUser(ctx context.Context, in model.UserIn) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	ListUsers(ctx context.Context, role, cursor string, limit int) ([]model.User, string, error)

	// Vehicles
	CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error)
	PatchVehicle(ctx context.Context, id string, patch model.VehiclePatch) (model.Vehicle, error)

	// Deliveries
	CreateDelivery(ctx context.Context, customerID string, in model.DeliveryIn) (model.Delivery, error)
	GetDelivery(ctx context.Context, id string) (model.Delivery, error)
	ListDeliveries(ctx context.Context, f model.DeliveryFilter, cursor string, limit int) ([]model.Delivery, string, error)
	AssignDelivery(ctx context.Context, id, driverID, vehicleID string) (model.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id, status string) (model.Delivery, error)
	CancelDelivery(ctx context.Context, id string) (model.Delivery, error)

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
	// ErrBadTransition is returned when a delivery status move is not legal.
	ErrBadTransition = errors.New("illegal status transition")
)

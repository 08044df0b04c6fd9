package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetops/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	users      map[string]model.User
	userOrder  []string
	byEmail    map[string]string // email -> user id
	vehicles   map[string]model.Vehicle
	vehOrder   []string
	deliveries map[string]model.Delivery
	delOrder   []string
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[string]model.User{},
		byEmail:    map[string]string{},
		vehicles:   map[string]model.Vehicle{},
		deliveries: map[string]model.Delivery{},
	}
}

func nowRFC3339() string { return time.Now().UTC().Format(time.RFC3339) }

func (m *Memory) CreateUser(ctx context.Context, in model.UserIn) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.Email != "" {
		if _, exists := m.byEmail[in.Email]; exists {
			return model.User{}, fmt.Errorf("email %s: %w", in.Email, ErrConflict)
		}
	}
	u := model.User{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		Phone:     in.Phone,
		CreatedAt: nowRFC3339(),
	}
	m.users[u.ID] = u
	m.userOrder = append(m.userOrder, u.ID)
	if u.Email != "" {
		m.byEmail[u.Email] = u.ID
	}
	return u, nil
}

func (m *Memory) GetUser(ctx context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) ListUsers(ctx context.Context, role, cursor string, limit int) ([]model.User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.User{}
	var next string
	for i := cursorIndex(m.userOrder, cursor); i < len(m.userOrder) && len(out) < limit; i++ {
		u := m.users[m.userOrder[i]]
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
		next = u.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) CreateVehicle(ctx context.Context, in model.VehicleIn) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := model.Vehicle{
		ID:        uuid.New().String(),
		Plate:     in.Plate,
		Kind:      in.Kind,
		Status:    "available",
		CreatedAt: nowRFC3339(),
	}
	m.vehicles[v.ID] = v
	m.vehOrder = append(m.vehOrder, v.ID)
	return v, nil
}

func (m *Memory) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (m *Memory) ListVehicles(ctx context.Context, status, cursor string, limit int) ([]model.Vehicle, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.Vehicle{}
	var next string
	for i := cursorIndex(m.vehOrder, cursor); i < len(m.vehOrder) && len(out) < limit; i++ {
		v := m.vehicles[m.vehOrder[i]]
		if status != "" && v.Status != status {
			continue
		}
		out = append(out, v)
		next = v.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) PatchVehicle(ctx context.Context, id string, patch model.VehiclePatch) (model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return model.Vehicle{}, ErrNotFound
	}
	if patch.Status != "" {
		v.Status = patch.Status
	}
	if patch.DriverID != "" {
		v.DriverID = patch.DriverID
	}
	m.vehicles[id] = v
	return v, nil
}

func (m *Memory) CreateDelivery(ctx context.Context, customerID string, in model.DeliveryIn) (model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := model.Delivery{
		ID:         uuid.New().String(),
		CustomerID: customerID,
		Status:     model.StatusRequested,
		Pickup:     in.Pickup,
		Dropoff:    in.Dropoff,
		PickupAddr: in.PickupAddr,
		DropAddr:   in.DropAddr,
		Note:       in.Note,
		PriceCents: in.PriceCents,
		CreatedAt:  nowRFC3339(),
		UpdatedAt:  nowRFC3339(),
	}
	m.deliveries[d.ID] = d
	m.delOrder = append(m.delOrder, d.ID)
	return d, nil
}

func (m *Memory) GetDelivery(ctx context.Context, id string) (model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return model.Delivery{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) ListDeliveries(ctx context.Context, f model.DeliveryFilter, cursor string, limit int) ([]model.Delivery, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []model.Delivery{}
	var next string
	for i := cursorIndex(m.delOrder, cursor); i < len(m.delOrder) && len(out) < limit; i++ {
		d := m.deliveries[m.delOrder[i]]
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.CustomerID != "" && d.CustomerID != f.CustomerID {
			continue
		}
		if f.DriverID != "" && d.DriverID != f.DriverID {
			continue
		}
		out = append(out, d)
		next = d.ID
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) AssignDelivery(ctx context.Context, id, driverID, vehicleID string) (model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return model.Delivery{}, ErrNotFound
	}
	// Reassignment of an already-assigned delivery is allowed; anything past
	// pickup is not.
	if d.Status != model.StatusRequested && d.Status != model.StatusAssigned {
		return model.Delivery{}, ErrBadTransition
	}
	d.DriverID = driverID
	d.VehicleID = vehicleID
	d.Status = model.StatusAssigned
	d.UpdatedAt = nowRFC3339()
	m.deliveries[id] = d
	return d, nil
}

func (m *Memory) UpdateDeliveryStatus(ctx context.Context, id, status string) (model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return model.Delivery{}, ErrNotFound
	}
	if !model.CanTransition(d.Status, status) {
		return model.Delivery{}, ErrBadTransition
	}
	d.Status = status
	d.UpdatedAt = nowRFC3339()
	m.deliveries[id] = d
	return d, nil
}

func (m *Memory) CancelDelivery(ctx context.Context, id string) (model.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return model.Delivery{}, ErrNotFound
	}
	if d.Status != model.StatusRequested && d.Status != model.StatusAssigned {
		return model.Delivery{}, ErrBadTransition
	}
	d.Status = model.StatusCancelled
	d.UpdatedAt = nowRFC3339()
	m.deliveries[id] = d
	return d, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func cursorIndex(ids []string, cursor string) int {
	if cursor == "" {
		return 0
	}
	for i, id := range ids {
		if id == cursor {
			return i + 1
		}
	}
	return 0
}

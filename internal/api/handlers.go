package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetops/internal/model"
	"fleetops/internal/store"
)

func limitParam(r *http.Request) int {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	return limit
}

func writeStoreErr(w http.ResponseWriter, r *http.Request, title string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	case errors.Is(err, store.ErrBadTransition):
		writeProblem(w, http.StatusConflict, title, err.Error(), r.URL.Path)
	case errors.Is(err, store.ErrConflict):
		writeProblem(w, http.StatusConflict, title, err.Error(), r.URL.Path)
	default:
		writeProblem(w, http.StatusInternalServerError, title, err.Error(), r.URL.Path)
	}
}

// UsersHandler handles POST/GET /v1/users
func (s *Server) UsersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.UserIn
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.Role != "customer" && req.Role != "driver" && req.Role != "admin" {
			writeProblem(w, http.StatusBadRequest, "Invalid role", "role must be customer, driver, or admin", r.URL.Path)
			return
		}
		if req.Name == "" || req.Email == "" {
			writeProblem(w, http.StatusBadRequest, "Missing fields", "name and email required", r.URL.Path)
			return
		}
		u, err := s.Store.CreateUser(r.Context(), req)
		if err != nil {
			writeStoreErr(w, r, "Create user failed", err)
			return
		}
		// Admin dashboards keep a live driver roster.
		if u.Role == "driver" {
			s.notify(RoomAdmins, EventDriversUpdated, nil)
		}
		writeJSON(w, http.StatusCreated, u)
	case http.MethodGet:
		items, next, err := s.Store.ListUsers(r.Context(), r.URL.Query().Get("role"), r.URL.Query().Get("cursor"), limitParam(r))
		if err != nil {
			writeStoreErr(w, r, "List users failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// UserByIDHandler handles GET /v1/users/{id}
func (s *Server) UserByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	u, err := s.Store.GetUser(r.Context(), id)
	if err != nil {
		writeStoreErr(w, r, "Get user failed", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var req model.VehicleIn
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.Plate == "" {
			writeProblem(w, http.StatusBadRequest, "Missing fields", "plate required", r.URL.Path)
			return
		}
		v, err := s.Store.CreateVehicle(r.Context(), req)
		if err != nil {
			writeStoreErr(w, r, "Create vehicle failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	case http.MethodGet:
		items, next, err := s.Store.ListVehicles(r.Context(), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), limitParam(r))
		if err != nil {
			writeStoreErr(w, r, "List vehicles failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehicleByIDHandler handles GET/PATCH /v1/vehicles/{id}
func (s *Server) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/vehicles/")
	if id == "" || strings.Contains(id, "/") {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		v, err := s.Store.GetVehicle(r.Context(), id)
		if err != nil {
			writeStoreErr(w, r, "Get vehicle failed", err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodPatch:
		p := s.getPrincipal(r)
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		var patch model.VehiclePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		v, err := s.Store.PatchVehicle(r.Context(), id, patch)
		if err != nil {
			writeStoreErr(w, r, "Patch vehicle failed", err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DeliveriesHandler handles POST/GET /v1/deliveries
func (s *Server) DeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		p := s.getPrincipal(r)
		var req struct {
			model.DeliveryIn
			CustomerID string `json:"customerId,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		customerID := p.UserID
		if req.CustomerID != "" && p.IsAdmin() {
			customerID = req.CustomerID
		}
		if customerID == "" {
			writeProblem(w, http.StatusBadRequest, "Missing customer", "customerId required", r.URL.Path)
			return
		}
		if req.Pickup == nil || req.Dropoff == nil {
			writeProblem(w, http.StatusBadRequest, "Missing fields", "pickup and dropoff required", r.URL.Path)
			return
		}
		d, err := s.Store.CreateDelivery(r.Context(), customerID, req.DeliveryIn)
		if err != nil {
			writeStoreErr(w, r, "Create delivery failed", err)
			return
		}
		s.notify(UserRoom(d.CustomerID), EventDeliveriesUpdated, nil)
		s.notify(RoomAdmins, EventDeliveriesUpdated, nil)
		writeJSON(w, http.StatusCreated, d)
	case http.MethodGet:
		f := model.DeliveryFilter{
			Status:     r.URL.Query().Get("status"),
			CustomerID: r.URL.Query().Get("customerId"),
			DriverID:   r.URL.Query().Get("driverId"),
		}
		items, next, err := s.Store.ListDeliveries(r.Context(), f, r.URL.Query().Get("cursor"), limitParam(r))
		if err != nil {
			writeStoreErr(w, r, "List deliveries failed", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DeliveryByIDHandler handles /v1/deliveries/{id} and its subresources
// /assign, /status, /cancel, /position.
func (s *Server) DeliveryByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/deliveries/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	id := rest
	action := ""
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		id, action = rest[:i], rest[i+1:]
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d, err := s.Store.GetDelivery(r.Context(), id)
		if err != nil {
			writeStoreErr(w, r, "Get delivery failed", err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	case "assign":
		s.assignDelivery(w, r, id)
	case "status":
		s.updateDeliveryStatus(w, r, id)
	case "cancel":
		s.cancelDelivery(w, r, id)
	case "position":
		s.deliveryPosition(w, r, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

// assignDelivery handles POST /v1/deliveries/{id}/assign. After the
// assignment commits, the customer, the driver, and the admin room each get
// exactly one deliveries-updated; admins additionally get drivers-updated
// since the driver roster's availability changed.
func (s *Server) assignDelivery(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
		return
	}
	var req model.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.DriverID == "" {
		writeProblem(w, http.StatusBadRequest, "Missing driver", "driverId required", r.URL.Path)
		return
	}
	d, err := s.Store.AssignDelivery(r.Context(), id, req.DriverID, req.VehicleID)
	if err != nil {
		writeStoreErr(w, r, "Assign failed", err)
		return
	}
	s.notify(UserRoom(d.DriverID), EventDeliveriesUpdated, nil)
	s.notify(UserRoom(d.CustomerID), EventDeliveriesUpdated, nil)
	s.notify(RoomAdmins, EventDeliveriesUpdated, nil)
	s.notify(RoomAdmins, EventDriversUpdated, nil)
	writeJSON(w, http.StatusOK, d)
}

// updateDeliveryStatus handles POST /v1/deliveries/{id}/status. Everyone
// watching the delivery's room learns the new status without polling.
func (s *Server) updateDeliveryStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if p.Role != "driver" && !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "driver or admin required", r.URL.Path)
		return
	}
	var req model.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if p.Role == "driver" {
		cur, err := s.Store.GetDelivery(r.Context(), id)
		if err != nil {
			writeStoreErr(w, r, "Get delivery failed", err)
			return
		}
		if cur.DriverID != p.UserID {
			writeProblem(w, http.StatusForbidden, "Forbidden", "not the assigned driver", r.URL.Path)
			return
		}
	}
	d, err := s.Store.UpdateDeliveryStatus(r.Context(), id, req.Status)
	if err != nil {
		writeStoreErr(w, r, "Status update failed", err)
		return
	}
	s.notify(DeliveryRoom(d.ID), EventStatusUpdated, map[string]string{"id": d.ID, "status": d.Status})
	writeJSON(w, http.StatusOK, d)
}

// cancelDelivery handles POST /v1/deliveries/{id}/cancel.
func (s *Server) cancelDelivery(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	cur, err := s.Store.GetDelivery(r.Context(), id)
	if err != nil {
		writeStoreErr(w, r, "Get delivery failed", err)
		return
	}
	if !p.IsAdmin() && cur.CustomerID != p.UserID {
		writeProblem(w, http.StatusForbidden, "Forbidden", "not your delivery", r.URL.Path)
		return
	}
	d, err := s.Store.CancelDelivery(r.Context(), id)
	if err != nil {
		writeStoreErr(w, r, "Cancel failed", err)
		return
	}
	s.notify(UserRoom(d.CustomerID), EventDeliveriesUpdated, nil)
	s.notify(RoomAdmins, EventDeliveriesUpdated, nil)
	if d.DriverID != "" {
		s.notify(UserRoom(d.DriverID), EventDeliveriesUpdated, nil)
	}
	writeJSON(w, http.StatusOK, d)
}

// deliveryPosition handles GET /v1/deliveries/{id}/position: the last known
// driver position, for clients that mount after the live samples started.
func (s *Server) deliveryPosition(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	loc, ok := s.Locations.Get(id)
	if !ok {
		writeProblem(w, http.StatusNotFound, "No position", "no location sample received yet", r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports readiness, including storage reachability.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"fleetops/internal/config"
	"fleetops/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.DatabaseURL = ""
	cfg.RedisURL = ""
	s, err := NewServer(cfg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func doJSON(t *testing.T, h http.HandlerFunc, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeID(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out.ID
}

func createUser(t *testing.T, s *Server, name, role string) string {
	t.Helper()
	rr := doJSON(t, s.UsersHandler, http.MethodPost, "/v1/users",
		model.UserIn{Name: name, Email: name + "@example.com", Role: role}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create user %s: got %d: %s", name, rr.Code, rr.Body.String())
	}
	return decodeID(t, rr)
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.HealthHandler, http.MethodGet, "/healthz", nil, nil)
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = doJSON(t, s.ReadyHandler, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestUsersCreateGet(t *testing.T) {
	s := newTestServer(t)
	id := createUser(t, s, "alice", "customer")
	rr := doJSON(t, s.UserByIDHandler, http.MethodGet, "/v1/users/"+id, nil, nil)
	if rr.Code != 200 {
		t.Fatalf("get user: got %d", rr.Code)
	}
	// duplicate email conflicts
	rr = doJSON(t, s.UsersHandler, http.MethodPost, "/v1/users",
		model.UserIn{Name: "alice", Email: "alice@example.com", Role: "customer"}, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate email: got %d, want 409", rr.Code)
	}
}

func TestDriverRegistrationNotifiesAdmins(t *testing.T) {
	s := newTestServer(t)
	admin := s.Events.Connect()
	s.Events.Subscribe(admin, RoomAdmins)
	expectAck(t, admin, EventSubscribed, RoomAdmins)

	createUser(t, s, "dave", "driver")
	if evt := recvEvent(t, admin); evt.Name != EventDriversUpdated {
		t.Fatalf("got %q, want %q", evt.Name, EventDriversUpdated)
	}

	// customers do not touch the driver roster
	createUser(t, s, "carol", "customer")
	expectNone(t, admin)
}

func TestAssignmentNotificationScenario(t *testing.T) {
	s := newTestServer(t)
	customerID := createUser(t, s, "cust5", "customer")
	driverID := createUser(t, s, "drv9", "driver")

	admin := s.Events.Connect()
	s.Events.Subscribe(admin, RoomAdmins)
	expectAck(t, admin, EventSubscribed, RoomAdmins)
	// admin saw driver registration already? No: driver registered before
	// this session subscribed, so nothing is pending.
	expectNone(t, admin)

	cust := s.Events.Connect()
	s.Events.Subscribe(cust, UserRoom(customerID))
	expectAck(t, cust, EventSubscribed, UserRoom(customerID))

	drv := s.Events.Connect()
	s.Events.Subscribe(drv, UserRoom(driverID))
	expectAck(t, drv, EventSubscribed, UserRoom(driverID))

	// customer requests a delivery
	rr := doJSON(t, s.DeliveriesHandler, http.MethodPost, "/v1/deliveries", map[string]any{
		"pickup":  model.GeoPoint{Lat: 12.97, Lng: 77.59},
		"dropoff": model.GeoPoint{Lat: 12.93, Lng: 77.62},
	}, map[string]string{"X-User-Id": customerID, "X-Role": "customer"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create delivery: got %d: %s", rr.Code, rr.Body.String())
	}
	deliveryID := decodeID(t, rr)

	if evt := recvEvent(t, cust); evt.Name != EventDeliveriesUpdated {
		t.Fatalf("customer got %q on create", evt.Name)
	}
	if evt := recvEvent(t, admin); evt.Name != EventDeliveriesUpdated {
		t.Fatalf("admin got %q on create", evt.Name)
	}
	expectNone(t, drv) // not assigned yet

	// admin assigns the driver
	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/assign", deliveryID),
		model.AssignRequest{DriverID: driverID}, map[string]string{"X-Role": "admin"})
	if rr.Code != http.StatusOK {
		t.Fatalf("assign: got %d: %s", rr.Code, rr.Body.String())
	}

	// C, D, and A each receive exactly one deliveries-updated
	if evt := recvEvent(t, cust); evt.Name != EventDeliveriesUpdated {
		t.Fatalf("customer got %q on assign", evt.Name)
	}
	expectNone(t, cust)
	if evt := recvEvent(t, drv); evt.Name != EventDeliveriesUpdated {
		t.Fatalf("driver got %q on assign", evt.Name)
	}
	expectNone(t, drv)
	if evt := recvEvent(t, admin); evt.Name != EventDeliveriesUpdated {
		t.Fatalf("admin got %q on assign", evt.Name)
	}
	// plus drivers-updated to admins only
	if evt := recvEvent(t, admin); evt.Name != EventDriversUpdated {
		t.Fatalf("admin got %q, want drivers-updated", evt.Name)
	}
	expectNone(t, admin)
}

func TestStatusUpdateNotifiesDeliveryRoom(t *testing.T) {
	s := newTestServer(t)
	customerID := createUser(t, s, "cust", "customer")
	driverID := createUser(t, s, "drv", "driver")

	rr := doJSON(t, s.DeliveriesHandler, http.MethodPost, "/v1/deliveries", map[string]any{
		"pickup":  model.GeoPoint{Lat: 1, Lng: 2},
		"dropoff": model.GeoPoint{Lat: 3, Lng: 4},
	}, map[string]string{"X-User-Id": customerID, "X-Role": "customer"})
	deliveryID := decodeID(t, rr)

	doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/assign", deliveryID),
		model.AssignRequest{DriverID: driverID}, map[string]string{"X-Role": "admin"})

	watcher := s.Events.Connect()
	s.Events.Subscribe(watcher, DeliveryRoom(deliveryID))
	expectAck(t, watcher, EventSubscribed, DeliveryRoom(deliveryID))

	// wrong driver is rejected
	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/status", deliveryID),
		model.StatusRequest{Status: model.StatusPickedUp},
		map[string]string{"X-User-Id": "someone-else", "X-Role": "driver"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("wrong driver: got %d, want 403", rr.Code)
	}
	expectNone(t, watcher)

	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/status", deliveryID),
		model.StatusRequest{Status: model.StatusPickedUp},
		map[string]string{"X-User-Id": driverID, "X-Role": "driver"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d: %s", rr.Code, rr.Body.String())
	}

	evt := recvEvent(t, watcher)
	if evt.Name != EventStatusUpdated {
		t.Fatalf("got %q", evt.Name)
	}
	data, ok := evt.Data.(map[string]string)
	if !ok || data["id"] != deliveryID || data["status"] != model.StatusPickedUp {
		t.Fatalf("bad payload: %v", evt.Data)
	}

	// illegal transition is a 409 and publishes nothing
	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/status", deliveryID),
		model.StatusRequest{Status: model.StatusDelivered},
		map[string]string{"X-User-Id": driverID, "X-Role": "driver"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("bad transition: got %d, want 409", rr.Code)
	}
	expectNone(t, watcher)
}

func TestCancelNotifiesAllParties(t *testing.T) {
	s := newTestServer(t)
	customerID := createUser(t, s, "cc", "customer")
	driverID := createUser(t, s, "dd", "driver")

	rr := doJSON(t, s.DeliveriesHandler, http.MethodPost, "/v1/deliveries", map[string]any{
		"pickup":  model.GeoPoint{Lat: 1, Lng: 2},
		"dropoff": model.GeoPoint{Lat: 3, Lng: 4},
	}, map[string]string{"X-User-Id": customerID, "X-Role": "customer"})
	deliveryID := decodeID(t, rr)
	doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/assign", deliveryID),
		model.AssignRequest{DriverID: driverID}, map[string]string{"X-Role": "admin"})

	cust := s.Events.Connect()
	drv := s.Events.Connect()
	admin := s.Events.Connect()
	s.Events.Subscribe(cust, UserRoom(customerID))
	s.Events.Subscribe(drv, UserRoom(driverID))
	s.Events.Subscribe(admin, RoomAdmins)
	expectAck(t, cust, EventSubscribed, UserRoom(customerID))
	expectAck(t, drv, EventSubscribed, UserRoom(driverID))
	expectAck(t, admin, EventSubscribed, RoomAdmins)

	// a stranger may not cancel
	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/cancel", deliveryID), nil,
		map[string]string{"X-User-Id": "stranger", "X-Role": "customer"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("stranger cancel: got %d, want 403", rr.Code)
	}

	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodPost,
		fmt.Sprintf("/v1/deliveries/%s/cancel", deliveryID), nil,
		map[string]string{"X-User-Id": customerID, "X-Role": "customer"})
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: got %d: %s", rr.Code, rr.Body.String())
	}
	for name, sess := range map[string]*Session{"customer": cust, "driver": drv, "admin": admin} {
		if evt := recvEvent(t, sess); evt.Name != EventDeliveriesUpdated {
			t.Fatalf("%s got %q on cancel", name, evt.Name)
		}
		expectNone(t, sess)
	}
}

func TestDeliveryPositionEndpoint(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.DeliveryByIDHandler, http.MethodGet, "/v1/deliveries/d1/position", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("no sample yet: got %d, want 404", rr.Code)
	}
	s.Locations.Upsert("d1", "drv", 12.9, 77.6, "2026-01-01T00:00:00Z")
	rr = doJSON(t, s.DeliveryByIDHandler, http.MethodGet, "/v1/deliveries/d1/position", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("position: got %d", rr.Code)
	}
	var loc LatestLocation
	if err := json.NewDecoder(rr.Body).Decode(&loc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loc.Lat != 12.9 || loc.Lng != 77.6 {
		t.Fatalf("bad position: %+v", loc)
	}
}

func TestVehiclesCRUD(t *testing.T) {
	s := newTestServer(t)
	rr := doJSON(t, s.VehiclesHandler, http.MethodPost, "/v1/vehicles",
		model.VehicleIn{Plate: "KA-01-1234", Kind: "van"}, map[string]string{"X-Role": "admin"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create vehicle: got %d", rr.Code)
	}
	id := decodeID(t, rr)
	rr = doJSON(t, s.VehicleByIDHandler, http.MethodPatch, "/v1/vehicles/"+id,
		model.VehiclePatch{Status: "maintenance"}, map[string]string{"X-Role": "admin"})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch vehicle: got %d", rr.Code)
	}
	// non-admin rejected
	rr = doJSON(t, s.VehiclesHandler, http.MethodPost, "/v1/vehicles",
		model.VehicleIn{Plate: "X"}, map[string]string{"X-Role": "driver"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("non-admin create: got %d, want 403", rr.Code)
	}
}

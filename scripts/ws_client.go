// Package main runs a demo WebSocket client against a local fleetops API:
// it creates a customer and a delivery over REST, subscribes to the
// delivery's room, reports a couple of driver positions, and prints every
// event it receives.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsRequest struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

func post(base, path string, body any, out any) error {
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	var customer struct {
		ID string `json:"id"`
	}
	email := fmt.Sprintf("demo+%d@example.com", time.Now().Unix())
	if err := post(base, "/v1/users", map[string]string{"name": "Demo Customer", "email": email, "role": "customer"}, &customer); err != nil {
		log.Fatal(err)
	}

	var delivery struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"customerId": customer.ID,
		"pickup":     map[string]float64{"lat": 12.97, "lng": 77.59},
		"dropoff":    map[string]float64{"lat": 12.93, "lng": 77.62},
	}
	if err := post(base, "/v1/deliveries", body, &delivery); err != nil {
		log.Fatal(err)
	}
	log.Printf("created delivery %s", delivery.ID)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://localhost:%s/v1/ws", port), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(wsRequest{Type: "subscribe-delivery", Payload: map[string]string{"deliveryId": delivery.ID}}); err != nil {
		log.Fatal(err)
	}

	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(500 * time.Millisecond)
			_ = conn.WriteJSON(wsRequest{Type: "driver-location", Payload: map[string]any{
				"deliveryId": delivery.ID,
				"lat":        12.97 - float64(i)*0.01,
				"lng":        77.59 + float64(i)*0.01,
			}})
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for time.Now().Before(deadline) {
		var evt map[string]any
		if err := conn.ReadJSON(&evt); err != nil {
			break
		}
		log.Printf("event: %v", evt)
	}
}

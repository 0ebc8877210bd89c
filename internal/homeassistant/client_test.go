package homeassistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-token", nil)
}

func TestGetState(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states/lock.front_door" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewEncoder(w).Encode(State{
			EntityID:   "lock.front_door",
			State:      "locked",
			Attributes: map[string]any{"friendly_name": "Front Door"},
		})
	})

	state, err := client.GetState(context.Background(), "lock.front_door")
	if err != nil {
		t.Fatalf("GetState error: %v", err)
	}
	if state.State != "locked" {
		t.Errorf("state = %q, want locked", state.State)
	}
	if state.FriendlyName() != "Front Door" {
		t.Errorf("friendly name = %q", state.FriendlyName())
	}
}

func TestGetState_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetState(context.Background(), "sensor.nope")
	if err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestGetStatesByDomain(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]State{
			{EntityID: "light.kitchen", State: "on"},
			{EntityID: "sensor.temp", State: "21.5"},
			{EntityID: "light.bedroom", State: "off"},
		})
	})

	lights, err := client.GetStatesByDomain(context.Background(), "light")
	if err != nil {
		t.Fatalf("GetStatesByDomain error: %v", err)
	}
	if len(lights) != 2 {
		t.Fatalf("got %d lights, want 2", len(lights))
	}
	for _, s := range lights {
		if s.Domain() != "light" {
			t.Errorf("unexpected entity %s", s.EntityID)
		}
	}
}

func TestCallService(t *testing.T) {
	var gotPath string
	var gotData map[string]any

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotData)
		w.Write([]byte("[]"))
	})

	err := client.CallService(context.Background(), "light", "turn_on", map[string]any{
		"entity_id": "light.kitchen",
	})
	if err != nil {
		t.Fatalf("CallService error: %v", err)
	}
	if gotPath != "/api/services/light/turn_on" {
		t.Errorf("path = %q", gotPath)
	}
	if gotData["entity_id"] != "light.kitchen" {
		t.Errorf("data = %v", gotData)
	}
}

func TestGetHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("filter_entity_id"); got != "sensor.temp" {
			t.Errorf("filter_entity_id = %q", got)
		}
		w.Write([]byte(`[[{"state":"20.1"},{"state":"21.5"}]]`))
	})

	points, err := client.GetHistory(context.Background(), "sensor.temp", 24)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("got %d points, want 2", len(points))
	}
	if points[1].State != "21.5" {
		t.Errorf("last point = %q", points[1].State)
	}
}

func TestGetHistory_Empty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	points, err := client.GetHistory(context.Background(), "sensor.unknown", 24)
	if err != nil {
		t.Fatalf("GetHistory error: %v", err)
	}
	if points != nil {
		t.Errorf("points = %v, want nil", points)
	}
}

func TestStateDomain(t *testing.T) {
	tests := []struct {
		entityID string
		want     string
	}{
		{"light.kitchen", "light"},
		{"binary_sensor.motion_hall", "binary_sensor"},
		{"noperiod", ""},
	}
	for _, tt := range tests {
		s := State{EntityID: tt.entityID}
		if got := s.Domain(); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.entityID, got, tt.want)
		}
	}
}

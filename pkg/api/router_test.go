package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/puchupala/hass-nature-remo/pkg/api/types"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLightSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"state": {"type": "string", "enum": ["ON", "OFF"]}},
	"required": ["state"],
	"additionalProperties": false
}`)

type fakeController struct {
	mu        sync.Mutex
	devices   []device.Device
	states    map[string]device.DeviceState
	connected bool
	setErr    error
	refreshes int
	subs      []chan device.StateEvent
}

func newFakeController() *fakeController {
	return &fakeController{
		devices: []device.Device{{
			ID:           "light-1",
			Name:         "Bedroom Light",
			Type:         device.DeviceTypeLight,
			Protocol:     device.ProtocolNatureRemo,
			Manufacturer: "Nature",
			AssumedState: true,
			StateSchema:  testLightSchema,
		}},
		states:    map[string]device.DeviceState{"light-1": {"state": "ON"}},
		connected: true,
	}
}

func (f *fakeController) find(id string) (*device.Device, error) {
	for i := range f.devices {
		if f.devices[i].ID == id || f.devices[i].Name == id {
			d := f.devices[i]
			return &d, nil
		}
	}
	return nil, device.ErrNotFound
}

func (f *fakeController) ListDevices(ctx context.Context) ([]device.Device, error) {
	return f.devices, nil
}

func (f *fakeController) GetDevice(ctx context.Context, id string) (*device.Device, error) {
	return f.find(id)
}

func (f *fakeController) GetDeviceState(ctx context.Context, id string) (device.DeviceState, error) {
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	return f.states[d.ID], nil
}

func (f *fakeController) SetDeviceState(ctx context.Context, id string, state map[string]any) (device.DeviceState, error) {
	if f.setErr != nil {
		return nil, f.setErr
	}
	d, err := f.find(id)
	if err != nil {
		return nil, err
	}
	f.states[d.ID] = device.DeviceState{"state": state["state"]}
	return f.states[d.ID], nil
}

func (f *fakeController) Refresh(ctx context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeController) IsConnected() bool { return f.connected }

func (f *fakeController) Close() {}

func (f *fakeController) Subscribe() chan device.StateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan device.StateEvent, 4)
	f.subs = append(f.subs, ch)
	return ch
}

func (f *fakeController) Unsubscribe(ch chan device.StateEvent) {}

func (f *fakeController) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeController) publish(event device.StateEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- event
	}
}

func newTestRouter(t *testing.T, ctrl *fakeController) *Router {
	t.Helper()
	return NewRouter(ctrl, ctrl, schema.NewValidator())
}

func do(t *testing.T, r *Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(t, ctrl)

	w := do(t, r, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Devices)

	ctrl.connected = false
	w = do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type syncingController struct {
	*fakeController
	at  time.Time
	err error
}

func (s *syncingController) LastSync() (time.Time, error) { return s.at, s.err }

func TestHealthReportsLastSync(t *testing.T) {
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	ctrl := &syncingController{fakeController: newFakeController(), at: at, err: errors.New("nature remo: status 500")}
	ctrl.connected = false
	r := NewRouter(ctrl, ctrl, schema.NewValidator())

	w := do(t, r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp types.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.LastSync)
	assert.True(t, at.Equal(*resp.LastSync))
	assert.Equal(t, "nature remo: status 500", resp.LastError)
}

func TestRequestIDHeader(t *testing.T) {
	r := newTestRouter(t, newFakeController())

	w := do(t, r, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestListAndGetDevices(t *testing.T) {
	r := newTestRouter(t, newFakeController())

	w := do(t, r, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list types.ListDevicesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "ON", list.Devices[0].State["state"])
	assert.True(t, list.Devices[0].AssumedState)

	w = do(t, r, http.MethodGet, "/api/v1/devices/Bedroom%20Light", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got types.DeviceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "light-1", got.Device.ID)

	w = do(t, r, http.MethodGet, "/api/v1/devices/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetState(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(t, ctrl)

	w := do(t, r, http.MethodPost, "/api/v1/devices/light-1/state", `{"state":"OFF"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bedroom Light", resp.Device)
	assert.Equal(t, "OFF", resp.State["state"])

	w = do(t, r, http.MethodGet, "/api/v1/devices/light-1/state", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"OFF"`)
}

func TestSetStateErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		setErr error
		want   int
	}{
		{name: "malformed body", path: "/api/v1/devices/light-1/state", body: `{`, want: http.StatusBadRequest},
		{name: "schema violation", path: "/api/v1/devices/light-1/state", body: `{"state":"DIM"}`, want: http.StatusBadRequest},
		{name: "unknown property", path: "/api/v1/devices/light-1/state", body: `{"state":"ON","brightness":5}`, want: http.StatusBadRequest},
		{name: "unknown device", path: "/api/v1/devices/nope/state", body: `{"state":"ON"}`, want: http.StatusNotFound},
		{name: "timeout", path: "/api/v1/devices/light-1/state", body: `{"state":"ON"}`, setErr: device.ErrTimeout, want: http.StatusGatewayTimeout},
		{name: "unsupported", path: "/api/v1/devices/light-1/state", body: `{"state":"ON"}`, setErr: device.ErrUnsupported, want: http.StatusUnprocessableEntity},
		{name: "disconnected", path: "/api/v1/devices/light-1/state", body: `{"state":"ON"}`, setErr: device.ErrNotConnected, want: http.StatusServiceUnavailable},
		{name: "rate limited", path: "/api/v1/devices/light-1/state", body: `{"state":"ON"}`, setErr: device.ErrRateLimited, want: http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			ctrl.setErr = tt.setErr
			r := newTestRouter(t, ctrl)

			w := do(t, r, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSetStateReportsInvalidProperties(t *testing.T) {
	r := newTestRouter(t, newFakeController())

	w := do(t, r, http.MethodPost, "/api/v1/devices/light-1/state", `{"state":"DIM"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Equal(t, []string{"state"}, resp.Properties)
}

func TestRefresh(t *testing.T) {
	ctrl := newFakeController()
	r := newTestRouter(t, ctrl)

	w := do(t, r, http.MethodPost, "/api/v1/devices/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ctrl.refreshes)

	var resp types.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestNullControllerRoutes(t *testing.T) {
	r := NewRouter(device.NewNullController(), device.NewNullEventSubscriber(), schema.NewValidator())

	w := do(t, r, http.MethodPost, "/api/v1/devices/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func testEvent(ctrl *fakeController) device.StateEvent {
	d := ctrl.devices[0]
	return device.StateEvent{
		ID:        "evt-1",
		Type:      device.EventStateChanged,
		Device:    &d,
		State:     device.DeviceState{"state": "OFF"},
		Timestamp: time.Now(),
	}
}

func TestEventsSSE(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(newTestRouter(t, ctrl).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	require.Eventually(t, func() bool { return ctrl.subscribers() == 1 }, time.Second, 10*time.Millisecond)
	ctrl.publish(testEvent(ctrl))

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: "+device.EventStateChanged) {
			break
		}
	}
	data, err := reader.ReadString('\n')
	require.NoError(t, err)

	var msg types.EventMessage
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(data), "data: ")), &msg))
	assert.Equal(t, "evt-1", msg.ID)
	assert.Equal(t, "light-1", msg.Device.ID)
	assert.Equal(t, "OFF", msg.Device.State["state"])
}

func TestEventsWebSocket(t *testing.T) {
	ctrl := newFakeController()
	srv := httptest.NewServer(newTestRouter(t, ctrl).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/ws", nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return ctrl.subscribers() == 1 }, time.Second, 10*time.Millisecond)
	ctrl.publish(testEvent(ctrl))

	var msg types.EventMessage
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, device.EventStateChanged, msg.Type)
	assert.Equal(t, "Bedroom Light", msg.Device.Name)
}

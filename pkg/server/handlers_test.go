package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mscrnt/cantiming/internal/logging"
	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
)

type memStore struct {
	mu     sync.Mutex
	solves []*db.Solve
}

func (m *memStore) CreateSolve(s *db.Solve) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solves = append(m.solves, s)
	return nil
}

func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return s
}

func postSolve(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/solve", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSolveHandler(t *testing.T) {
	store := &memStore{}
	h := newTestServer(t, WithStore(store)).Handler()

	rr := postSolve(t, h, `{"name": "body", "clock": "10 MHz", "bitrate": 125000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.Register != 0x002F0003 || resp.RegisterHex != "0x002F0003" {
		t.Errorf("register = %#08x (%s)", resp.Register, resp.RegisterHex)
	}
	if resp.Encoder != encoder.DefaultName {
		t.Errorf("encoder = %q", resp.Encoder)
	}
	want := timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4}
	if resp.Timing != want {
		t.Errorf("timing = %v, want %v", resp.Timing, want)
	}
	if resp.SamplePoint != 85 {
		t.Errorf("sample point = %g", resp.SamplePoint)
	}
	if len(resp.Fields) != 4 {
		t.Errorf("got %d fields", len(resp.Fields))
	}

	if len(store.solves) != 1 || !store.solves[0].Success || store.solves[0].Name != "body" {
		t.Errorf("stored = %+v", store.solves)
	}
}

func TestSolveHandlerOptions(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := postSolve(t, h, `{"clock": "10 MHz", "bitrate": "1 Mbps", "midpoint": "25%", "encoder": "mcan"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Timing != (timing.Timing{BS1: 7, BS2: 2, SJW: 1, Prescaler: 1}) {
		t.Errorf("timing = %v", resp.Timing)
	}
	if resp.Encoder != "mcan" || resp.Register != 0x00000601 {
		t.Errorf("register = %s %#08x", resp.Encoder, resp.Register)
	}
}

func TestSolveHandlerErrors(t *testing.T) {
	store := &memStore{}
	h := newTestServer(t, WithStore(store)).Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed json", `{"clock":`, http.StatusBadRequest, CodeBadRequest},
		{"unknown field", `{"clock": 1, "speed": 2}`, http.StatusBadRequest, CodeBadRequest},
		{"bad frequency", `{"clock": "fast", "bitrate": 1}`, http.StatusBadRequest, CodeBadRequest},
		{"unknown encoder", `{"clock": "10 MHz", "bitrate": "500k", "encoder": "sja1000"}`, http.StatusBadRequest, CodeUnknownEncoder},
		{"missing bitrate", `{"clock": "10 MHz"}`, http.StatusBadRequest, "invalid_input"},
		{"bad midpoint", `{"clock": "10 MHz", "bitrate": "500k", "midpoint": 1.5}`, http.StatusBadRequest, "invalid_midpoint"},
		{"bitrate too high", `{"clock": "1 MHz", "bitrate": "1 Mbps"}`, http.StatusUnprocessableEntity, "bitrate_too_high"},
		{"tolerance", `{"clock": "8 MHz", "bitrate": "1 Mbps"}`, http.StatusUnprocessableEntity, "tolerance_exceeded"},
		{"prescaler", `{"clock": "100 MHz", "bitrate": "1 kbps"}`, http.StatusUnprocessableEntity, "prescaler_out_of_range"},
		{"nbrp overflow", `{"clock": "100 MHz", "bitrate": "5 kbps", "midpoint": 0.33, "encoder": "mcan"}`, http.StatusUnprocessableEntity, CodeFieldRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postSolve(t, h, tt.body)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.wantStatus, rr.Body.String())
			}

			var resp ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if resp.Error == "" {
				t.Error("empty error message")
			}
		})
	}

	// only requests that reached the solver are recorded
	if len(store.solves) != 6 {
		t.Errorf("stored %d solves, want 6", len(store.solves))
	}
}

func TestSolveHandlerReportsErrorPct(t *testing.T) {
	h := newTestServer(t).Handler()

	rr := postSolve(t, h, `{"clock": "8 MHz", "bitrate": "1 Mbps", "tolerance": "5 pct"}`)
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ErrorPct < 12.49 || resp.ErrorPct > 12.51 {
		t.Errorf("error_pct = %g, want 12.5", resp.ErrorPct)
	}
}

func TestHandlerMethods(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{"GET", "/solve", http.StatusMethodNotAllowed},
		{"PUT", "/solve", http.StatusMethodNotAllowed},
		{"POST", "/encoders", http.StatusMethodNotAllowed},
		{"GET", "/encoders", http.StatusOK},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"GET", "/health", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("handler returned wrong status code: got %v want %v",
					rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestEncodersHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	encodersHandler(rr, httptest.NewRequest(http.MethodGet, "/encoders", nil))

	var infos []encoder.Info
	if err := json.Unmarshal(rr.Body.Bytes(), &infos); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(infos) < 2 || infos[0].Name != "bxcan" || infos[1].Name != "mcan" {
		t.Errorf("encoders = %+v", infos)
	}
	if infos[0].Register != "CAN_BTR" {
		t.Errorf("register = %q", infos[0].Register)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(&buf, "", "info")
	if err != nil {
		t.Fatal(err)
	}
	h := newTestServer(t, WithLogger(logger)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "GET /health 200") {
		t.Errorf("log = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "client=none") {
		t.Errorf("log = %q", buf.String())
	}
}

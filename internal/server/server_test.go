package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/chplink/internal/protocol/schema"
	"github.com/danmuck/chplink/internal/protocol/session"
	"github.com/danmuck/chplink/internal/testutil/testlog"
	"github.com/danmuck/chplink/internal/transport"
)

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	local, _ := transport.NewPipe()
	link := session.New(local, nil, session.DefaultConfig())
	t.Cleanup(func() { _ = link.Close() })
	return New(link, Options{}), link
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	out := map[string]any{}
	if rr.Body.Len() > 0 && strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rr, out
}

func TestHealthAndStatus(t *testing.T) {
	testlog.Start(t)
	s, link := newTestServer(t)

	rr, body := do(t, s, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK || body["status"] != "ok" || body["session"] != link.ID() {
		t.Fatalf("unexpected health: %d %v", rr.Code, body)
	}

	rr, body = do(t, s, http.MethodGet, "/status", "")
	if rr.Code != http.StatusOK || body["state"] != "idle" {
		t.Fatalf("unexpected status: %d %v", rr.Code, body)
	}
	if _, ok := body["stats"].(map[string]any); !ok {
		t.Fatalf("status missing stats: %v", body)
	}
}

func TestCommandsListsRegistry(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	rr, body := do(t, s, http.MethodGet, "/commands", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	cmds, ok := body["commands"].([]any)
	if !ok || len(cmds) != len(schema.DefaultEntries()) {
		t.Fatalf("unexpected commands: %v", body)
	}
	first := cmds[0].(map[string]any)
	if first["id"] != "0F" || first["name"] != "heartbeat" {
		t.Fatalf("commands should be sorted by id: %v", first)
	}
}

func TestHeartbeatControl(t *testing.T) {
	testlog.Start(t)
	s, link := newTestServer(t)

	if rr, _ := do(t, s, http.MethodPost, "/heartbeat/pause", ""); rr.Code != http.StatusOK || !link.HeartbeatPaused() {
		t.Fatalf("pause failed: %d", rr.Code)
	}
	if rr, _ := do(t, s, http.MethodPost, "/heartbeat/resume", ""); rr.Code != http.StatusOK || link.HeartbeatPaused() {
		t.Fatalf("resume failed: %d", rr.Code)
	}
	if rr, _ := do(t, s, http.MethodPost, "/heartbeat/resume-after?delay=12s", ""); rr.Code != http.StatusOK || !link.HeartbeatPaused() {
		t.Fatalf("resume-after failed: %d", rr.Code)
	}
	if rr, _ := do(t, s, http.MethodPost, "/heartbeat/resume-after?delay=-1s", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rr.Code)
	}
	link.ResumeHeartbeat()
}

func TestSendEnqueuesFrame(t *testing.T) {
	testlog.Start(t)
	s, link := newTestServer(t)

	rr, body := do(t, s, http.MethodPost, "/send", `{"command":161,"payload":"01","mode":"retry"}`)
	if rr.Code != http.StatusAccepted || body["command"] != "drain_pump_change" || body["mode"] != "retry_until_ack" {
		t.Fatalf("unexpected send response: %d %v", rr.Code, body)
	}
	if st := link.Stats(); st.QueuedFrames != 1 || st.PendingRetry != 1 {
		t.Fatalf("unexpected stats after send: %+v", st)
	}
}

func TestSendRejectsBadRequests(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	cases := []struct {
		body string
		want int
	}{
		{`{"command":161,"payload":"zz"}`, http.StatusBadRequest},
		{`{"command":161,"payload":"01","mode":"eventually"}`, http.StatusBadRequest},
		{`{"command":161,"payload":"0102"}`, http.StatusUnprocessableEntity},
		{`{"command":238}`, http.StatusUnprocessableEntity},
		{`not json`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rr, _ := do(t, s, http.MethodPost, "/send", tc.body)
		if rr.Code != tc.want {
			t.Fatalf("body %s: status=%d want=%d", tc.body, rr.Code, tc.want)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s, _ := newTestServer(t)
	do(t, s, http.MethodGet, "/health", "")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "chplink_http_requests_total") {
		t.Fatalf("metrics missing http counter: %d", rr.Code)
	}
}

func TestControlRoutesRequireToken(t *testing.T) {
	testlog.Start(t)
	local, _ := transport.NewPipe()
	link := session.New(local, nil, session.DefaultConfig())
	defer link.Close()
	s := New(link, Options{Token: "s3cret"})

	if rr, _ := do(t, s, http.MethodPost, "/heartbeat/pause", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rr.Code)
	}
	if link.HeartbeatPaused() {
		t.Fatalf("rejected request must not pause the heartbeat")
	}
	if rr, _ := do(t, s, http.MethodGet, "/status", ""); rr.Code != http.StatusOK {
		t.Fatalf("read routes stay open, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/heartbeat/pause", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !link.HeartbeatPaused() {
		t.Fatalf("authorized pause failed: %d", rr.Code)
	}
}

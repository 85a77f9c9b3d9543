package www

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fleetnav/config"
	"fleetnav/engine"
	"fleetnav/eventlog"
	"fleetnav/navgraph"
	"fleetnav/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// corner: v0(0,0) -> v1(3,0) -> v2(3,4) charger, with v3 unreachable.
func corner(t *testing.T) *navgraph.Graph {
	t.Helper()
	g, err := navgraph.ParseJSON([]byte(`{"levels": {"l1": {
		"vertices": [[0,0,{"name":"start"}], [3,0], [3,4,{"name":"dock","is_charger":true}], [9,9]],
		"lanes": [[0,1], [1,2]]
	}}}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	return g
}

type testServer struct {
	*httptest.Server
	client *http.Client
	eng    *engine.Engine
	db     *store.DB
	log    *eventlog.Logger
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	db := testDB(t)
	el := eventlog.New(eventlog.Config{FlushInterval: 10 * time.Millisecond}, db)
	eng := engine.New(engine.Config{AppConfig: cfg, Graph: corner(t), EventLog: el, LogFunc: t.Logf})
	handler, stop := NewRouter(eng, db)
	srv := httptest.NewServer(handler)
	jar, _ := cookiejar.New(nil)
	t.Cleanup(func() {
		srv.Close()
		stop()
		el.Close()
	})
	return &testServer{Server: srv, client: &http.Client{Jar: jar}, eng: eng, db: db, log: el}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, s.URL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func (s *testServer) login(t *testing.T) {
	t.Helper()
	resp, _ := s.do(t, "POST", "/api/login", map[string]string{"username": "admin", "password": "admin"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
}

func TestHealthReportsChecks(t *testing.T) {
	db := testDB(t)
	eng := engine.New(engine.Config{AppConfig: config.Defaults(), Graph: corner(t), LogFunc: t.Logf})
	connected := false
	handler, stop := NewRouter(eng, db, HealthCheck{Name: "messaging", OK: func() bool { return connected }})
	defer stop()

	get := func() map[string]any {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
		var body map[string]any
		json.NewDecoder(rec.Body).Decode(&body)
		return body
	}
	body := get()
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
	if checks, _ := body["checks"].(map[string]any); checks["messaging"] != false {
		t.Errorf("checks = %v", body["checks"])
	}
	connected = true
	if body = get(); body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestHealthAndGraph(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, "GET", "/api/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, "GET", "/api/graph", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("graph status %d", resp.StatusCode)
	}
	if vs, _ := body["vertices"].([]any); len(vs) != 4 {
		t.Errorf("vertices = %v, want 4", body["vertices"])
	}
	if body["level"] != "l1" {
		t.Errorf("level = %v, want l1", body["level"])
	}
}

func TestGraphPath(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := s.do(t, "GET", "/api/graph/path?from=0&to=2", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if body["length"] != 7.0 {
		t.Errorf("length = %v, want 7", body["length"])
	}
	names, _ := body["names"].([]any)
	if len(names) != 3 || names[0] != "start" || names[1] != "v1" || names[2] != "dock" {
		t.Errorf("names = %v", names)
	}

	if resp, _ := s.do(t, "GET", "/api/graph/path?from=0&to=3", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unreachable: status %d, want 404", resp.StatusCode)
	}
	if resp, _ := s.do(t, "GET", "/api/graph/path?from=x&to=3", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad query: status %d, want 400", resp.StatusCode)
	}
}

func TestChargers(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := s.client.Get(s.URL + "/api/chargers")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var chargers []navgraph.Vertex
	json.NewDecoder(resp.Body).Decode(&chargers)
	if len(chargers) != 1 || chargers[0].Index != 2 {
		t.Errorf("chargers = %+v, want vertex 2", chargers)
	}
}

func TestCommandsRequireLogin(t *testing.T) {
	s := newTestServer(t, nil)
	if resp, _ := s.do(t, "POST", "/api/robots", map[string]int{"vertex": 0}); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", resp.StatusCode)
	}

	resp, _ := s.do(t, "POST", "/api/login", map[string]string{"username": "admin", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad password: status %d, want 401", resp.StatusCode)
	}
}

func TestRobotCommands(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)

	resp, body := s.do(t, "POST", "/api/robots", map[string]int{"vertex": 0})
	if resp.StatusCode != http.StatusCreated || body["id"] != "R1" {
		t.Fatalf("create = %d %v", resp.StatusCode, body)
	}

	resp, body = s.do(t, "POST", "/api/robots/R1/task", map[string]int{"destination": 2})
	if resp.StatusCode != http.StatusOK || body["state"] != "moving" {
		t.Fatalf("assign = %d %v", resp.StatusCode, body)
	}

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"busy", "/api/robots/R1/task", map[string]int{"destination": 0}, http.StatusConflict},
		{"unknown robot", "/api/robots/R9/task", map[string]int{"destination": 0}, http.StatusNotFound},
		{"bad vertex", "/api/robots", map[string]int{"vertex": 42}, http.StatusBadRequest},
		{"missing field", "/api/robots", map[string]int{}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if resp, _ := s.do(t, "POST", tc.path, tc.body); resp.StatusCode != tc.status {
				t.Errorf("status %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}

	s.do(t, "POST", "/api/robots", map[string]int{"vertex": 3})
	if resp, _ := s.do(t, "POST", "/api/robots/R2/task", map[string]int{"destination": 0}); resp.StatusCode != http.StatusConflict {
		t.Errorf("no path: status %d, want 409", resp.StatusCode)
	}

	resp, body = s.do(t, "GET", "/api/robots/R1", nil)
	if resp.StatusCode != http.StatusOK || body["destination"] != 2.0 {
		t.Errorf("get robot = %d %v", resp.StatusCode, body)
	}
	if resp, _ := s.do(t, "GET", "/api/robots/R9", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown robot: status %d, want 404", resp.StatusCode)
	}
}

func TestChargeCommand(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)
	s.do(t, "POST", "/api/robots", map[string]int{"vertex": 2})

	resp, body := s.do(t, "POST", "/api/robots/R1/charge", map[string]bool{"charging": true})
	if resp.StatusCode != http.StatusOK || body["state"] != "charging" {
		t.Fatalf("charge = %d %v", resp.StatusCode, body)
	}
	if resp, _ := s.do(t, "POST", "/api/robots/R1/task", map[string]int{"destination": 0}); resp.StatusCode != http.StatusConflict {
		t.Errorf("assign while charging: status %d, want 409", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := config.Defaults()
	cfg.Web.RateLimit = 0.001
	cfg.Web.RateBurst = 2
	s := newTestServer(t, cfg)
	s.login(t)

	var codes []int
	for i := 0; i < 3; i++ {
		resp, _ := s.do(t, "POST", "/api/robots", map[string]int{"vertex": 0})
		codes = append(codes, resp.StatusCode)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [201 201 429]", codes)
	}
}

func TestTasksAndEvents(t *testing.T) {
	s := newTestServer(t, nil)
	s.login(t)
	s.do(t, "POST", "/api/robots", map[string]int{"vertex": 0})
	s.do(t, "POST", "/api/robots/R1/task", map[string]int{"destination": 2})
	s.log.Close()

	resp, err := s.client.Get(s.URL + "/api/tasks?limit=10")
	if err != nil {
		t.Fatal(err)
	}
	var tasks []store.Task
	json.NewDecoder(resp.Body).Decode(&tasks)
	resp.Body.Close()
	if len(tasks) != 1 || tasks[0].RobotID != "R1" || tasks[0].Destination != 2 {
		t.Errorf("tasks = %+v", tasks)
	}

	resp, err = s.client.Get(s.URL + "/api/events?robot=R1")
	if err != nil {
		t.Fatal(err)
	}
	var events []store.EventRecord
	json.NewDecoder(resp.Body).Decode(&events)
	resp.Body.Close()
	if len(events) != 2 {
		t.Errorf("events = %+v, want 2", events)
	}
}

func TestEventStreamFilters(t *testing.T) {
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", s.URL+"/events?robot=R2&types=robot_created,robot_arrived", nil)
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	s.eng.CreateRobot(0)
	s.eng.CreateRobot(1)
	s.eng.AssignTask("R2", 1)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if sc.Text() == "" {
				continue
			}
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	want := []string{
		"event: robot_created",
		`data: {"robot_id":"R2","vertex":1}`,
		"event: robot_arrived",
	}
	for _, w := range want {
		select {
		case got := <-lines:
			if got != w {
				t.Fatalf("line = %q, want %q", got, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func TestEventStreamRejectsUnknownType(t *testing.T) {
	s := newTestServer(t, nil)
	resp, err := s.client.Get(s.URL + "/events?types=robot_danced")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

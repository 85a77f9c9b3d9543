package engine

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fleetnav/config"
	"fleetnav/eventlog"
	"fleetnav/fleet"
	"fleetnav/navgraph"
	"fleetnav/robot"
	"fleetnav/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// corner: v0(0,0) -> v1(3,0) -> v2(3,4), with v3 unreachable.
func corner(t *testing.T) *navgraph.Graph {
	t.Helper()
	g, err := navgraph.ParseJSON([]byte(`{"levels": {"l1": {
		"vertices": [[0,0,{"name":"start"}], [3,0], [3,4,{"name":"goal"}], [9,9]],
		"lanes": [[0,1], [1,2]]
	}}}`))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	return g
}

type recorder struct {
	entries []eventlog.Entry
}

func (r *recorder) WriteEntries(entries []eventlog.Entry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *recorder) messages() []string {
	var out []string
	for _, e := range r.entries {
		out = append(out, e.Message)
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *fakeClock, *eventlog.Logger, *recorder) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	el := eventlog.New(eventlog.Config{FlushInterval: time.Hour}, rec)
	e := New(Config{
		AppConfig: config.Defaults(),
		Graph:     corner(t),
		EventLog:  el,
		LogFunc:   t.Logf,
		Clock:     clk.Now,
	})
	return e, clk, el, rec
}

func step(e *Engine, clk *fakeClock, dt time.Duration, n int) {
	for i := 0; i < n; i++ {
		clk.Advance(dt)
		e.Step(dt.Seconds(), clk.Now())
	}
}

func TestEngineEndToEnd(t *testing.T) {
	e, clk, el, rec := newTestEngine(t)

	id, err := e.CreateRobot(0)
	if err != nil {
		t.Fatalf("CreateRobot: %v", err)
	}
	if err := e.AssignTask(id, 2); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}

	step(e, clk, 500*time.Millisecond, 6)
	st, _ := e.Robot(id)
	if st.Vertex != 1 || st.State != robot.Moving {
		t.Fatalf("after 3s: vertex %d state %s, want 1 moving", st.Vertex, st.State)
	}

	step(e, clk, 500*time.Millisecond, 8)
	st, _ = e.Robot(id)
	if st.State != robot.TaskComplete {
		t.Fatalf("after 7s: state %s, want task_complete", st.State)
	}
	if st.Position != (navgraph.Point{X: 3, Y: 4}) {
		t.Errorf("position = %+v, want (3,4)", st.Position)
	}

	el.Close()
	want := []string{
		"Robot R1 created at vertex start (index: 0)",
		"Task assigned to Robot R1: Navigate from start to goal",
		"Robot R1 moved from start to v1",
		"Robot R1 arrived at destination goal",
	}
	got := rec.messages()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("log =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if rec.entries[3].Kind != eventlog.KindRobotArrived || rec.entries[3].TaskID != st.TaskID {
		t.Errorf("arrival entry = %+v", rec.entries[3])
	}
}

func TestEngineZeroLengthTaskCompletes(t *testing.T) {
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	clk := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	el := eventlog.New(eventlog.Config{FlushInterval: time.Hour}, db)
	e := New(Config{
		AppConfig: config.Defaults(),
		Graph:     corner(t),
		EventLog:  el,
		LogFunc:   t.Logf,
		Clock:     clk.Now,
	})

	id, _ := e.CreateRobot(0)
	if err := e.AssignTask(id, 0); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	step(e, clk, 100*time.Millisecond, 10)
	el.Close()

	st, _ := e.Robot(id)
	if st.State != robot.TaskComplete {
		t.Fatalf("state = %s, want task_complete", st.State)
	}
	task, err := db.GetTask(st.TaskID)
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != store.TaskCompleted {
		t.Errorf("task status = %q, want %q", task.Status, store.TaskCompleted)
	}
	if task.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	events, err := db.ListEventLog(id, 10)
	if err != nil {
		t.Fatalf("ListEventLog: %v", err)
	}
	var arrived bool
	for _, ev := range events {
		if ev.Message == "Robot R1 arrived at destination start" {
			arrived = true
		}
	}
	if !arrived {
		t.Errorf("no arrival line in event log (%d entries)", len(events))
	}
}

func TestEngineRejections(t *testing.T) {
	e, _, el, rec := newTestEngine(t)
	id, _ := e.CreateRobot(0)

	if err := e.AssignTask("R9", 1); !errors.Is(err, fleet.ErrUnknownRobot) {
		t.Errorf("unknown robot: got %v", err)
	}
	if err := e.AssignTask(id, 3); !errors.Is(err, fleet.ErrNoPath) {
		t.Errorf("unreachable: got %v", err)
	}
	if err := e.AssignTask(id, 1); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if err := e.AssignTask(id, 2); !errors.Is(err, robot.ErrPrecondState) {
		t.Errorf("busy: got %v", err)
	}

	el.Close()
	msgs := rec.messages()
	for _, want := range []string{
		"Error: Cannot assign task - Robot R9 does not exist",
		"Error: Cannot assign task - No path found from vertex 0 to 3",
		"Error: Cannot assign task - Robot R1 is already moving or waiting",
	} {
		found := false
		for _, m := range msgs {
			if m == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing log line %q in %q", want, msgs)
		}
	}
}

func TestEngineReservesOnMove(t *testing.T) {
	e, clk, el, _ := newTestEngine(t)
	defer el.Close()
	id, _ := e.CreateRobot(0)
	if err := e.AssignTask(id, 2); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}

	step(e, clk, 250*time.Millisecond, 1)
	snap := e.Snapshot()
	if len(snap.LaneLeases) != 1 || snap.LaneLeases[0].Start != 0 || snap.LaneLeases[0].End != 1 || snap.LaneLeases[0].RobotID != id {
		t.Errorf("lane leases = %+v, want R1 on 0->1", snap.LaneLeases)
	}
	if len(snap.VertexLeases) != 1 || snap.VertexLeases[0].Vertex != 0 {
		t.Errorf("vertex leases = %+v, want vertex 0", snap.VertexLeases)
	}
	if len(snap.Occupancy) != 1 || snap.Occupancy[0].RobotID != id {
		t.Errorf("occupancy = %+v", snap.Occupancy)
	}

	// Arrival releases everything the robot held.
	step(e, clk, 250*time.Millisecond, 27)
	snap = e.Snapshot()
	if len(snap.LaneLeases) != 0 || len(snap.VertexLeases) != 0 {
		t.Errorf("leases after arrival = %+v %+v", snap.LaneLeases, snap.VertexLeases)
	}
	if snap.Tick != 28 {
		t.Errorf("tick = %d, want 28", snap.Tick)
	}
}

func TestEngineReserveOnMoveDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sim.ReserveOnMove = false
	clk := &fakeClock{t: time.Unix(0, 0)}
	e := New(Config{AppConfig: cfg, Graph: corner(t), LogFunc: t.Logf, Clock: clk.Now})

	id, _ := e.CreateRobot(0)
	e.AssignTask(id, 2)
	step(e, clk, 250*time.Millisecond, 4)
	if snap := e.Snapshot(); len(snap.LaneLeases) != 0 {
		t.Errorf("lane leases = %+v, want none", snap.LaneLeases)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	e, clk, el, _ := newTestEngine(t)
	defer el.Close()
	id, _ := e.CreateRobot(0)
	e.AssignTask(id, 2)
	step(e, clk, 250*time.Millisecond, 1)

	snap := e.Snapshot()
	snap.Robots[0].Path[0] = 99
	snap.Robots[0].State = robot.Charging

	st, _ := e.Robot(id)
	if st.Path[0] != 0 || st.State != robot.Moving {
		t.Errorf("robot changed through snapshot: %+v", st)
	}
}

func TestEngineCharging(t *testing.T) {
	e, _, el, _ := newTestEngine(t)
	defer el.Close()
	id, _ := e.CreateRobot(0)

	if err := e.SetCharging(id, true); err != nil {
		t.Fatalf("SetCharging: %v", err)
	}
	if err := e.AssignTask(id, 1); !errors.Is(err, robot.ErrPrecondState) {
		t.Errorf("assign while charging: got %v", err)
	}
	if err := e.SetCharging(id, false); err != nil {
		t.Fatalf("SetCharging off: %v", err)
	}
	if err := e.AssignTask(id, 1); err != nil {
		t.Errorf("assign after charging: %v", err)
	}
	if err := e.SetCharging("R7", true); !errors.Is(err, fleet.ErrUnknownRobot) {
		t.Errorf("unknown robot: got %v", err)
	}
}

func TestEngineStartStop(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sim.TickInterval = time.Millisecond
	e := New(Config{AppConfig: cfg, Graph: corner(t), LogFunc: t.Logf})

	e.Start()
	e.Start()
	deadline := time.Now().Add(2 * time.Second)
	for e.Ticks() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	e.Stop()
	e.Stop()

	n := e.Ticks()
	if n < 3 {
		t.Fatalf("ticks = %d, want at least 3", n)
	}
	time.Sleep(5 * time.Millisecond)
	if e.Ticks() != n {
		t.Error("engine kept ticking after Stop")
	}
}

func TestEventBus(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	bus := NewEventBus(func() time.Time { return stamp })
	var order []string
	bus.Subscribe(func(Event) { order = append(order, "all") })
	bus.Subscribe(func(evt Event) {
		order = append(order, evt.Type.String())
		if !evt.Timestamp.Equal(stamp) {
			t.Errorf("timestamp = %v, want %v", evt.Timestamp, stamp)
		}
	}, EventRobotCreated, EventRobotArrived)

	bus.Emit(Event{Type: EventRobotCreated, Payload: RobotCreatedEvent{RobotID: "R1"}})
	bus.Emit(Event{Type: EventRobotMoved})
	want := "robot_created all all"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestEventHelpers(t *testing.T) {
	for _, tt := range []EventType{EventRobotCreated, EventRobotArrived, EventReservationsExpired} {
		got, ok := ParseEventType(tt.String())
		if !ok || got != tt {
			t.Errorf("ParseEventType(%q) = %v, %v", tt.String(), got, ok)
		}
	}
	if _, ok := ParseEventType("robot_danced"); ok {
		t.Error("unknown name parsed")
	}
	if id := (Event{Payload: RobotWaitingEvent{RobotID: "R2"}}).RobotID(); id != "R2" {
		t.Errorf("RobotID = %q, want R2", id)
	}
	if id := (Event{Payload: ReservationsExpiredEvent{Lanes: 1}}).RobotID(); id != "" {
		t.Errorf("RobotID = %q, want empty", id)
	}
}

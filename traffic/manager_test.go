package traffic

import (
	"testing"
	"time"

	"fleetnav/navgraph"
	"fleetnav/robot"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeFleet struct {
	robots  []*robot.Robot
	blocked map[navgraph.LaneKey]bool
}

func (f *fakeFleet) Robots() []*robot.Robot { return f.robots }
func (f *fakeFleet) IsLaneBlocked(start, end int, _ string) bool {
	return f.blocked[navgraph.LaneKey{Start: start, End: end}]
}

type mockEmitter struct {
	expired int
	resumed []string
}

func (m *mockEmitter) EmitReservationsExpired(lanes, intersections int) {
	m.expired += lanes + intersections
}
func (m *mockEmitter) EmitRobotResumed(id string, _ navgraph.LaneKey) {
	m.resumed = append(m.resumed, id)
}

func newTestManager(f Fleet) (*Manager, *fakeClock, *mockEmitter) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	em := &mockEmitter{}
	return NewManager(f, em, Config{Clock: clk.Now}), clk, em
}

func TestReserveLaneLease(t *testing.T) {
	m, clk, _ := newTestManager(&fakeFleet{})
	lane := navgraph.LaneKey{Start: 0, End: 1}

	if !m.ReserveLane(lane, "R1", time.Second) {
		t.Fatal("first reservation refused")
	}
	clk.Advance(100 * time.Millisecond)
	if m.ReserveLane(lane, "R2", time.Second) {
		t.Fatal("R2 acquired a lane R1 still holds")
	}
	if got := m.LaneReservations()[lane].RobotID; got != "R1" {
		t.Fatalf("holder = %q after refused reservation, want R1", got)
	}
	clk.Advance(time.Second)
	if !m.ReserveLane(lane, "R2", time.Second) {
		t.Fatal("R2 refused after R1's lease expired")
	}
}

func TestReserveRenewBySameRobot(t *testing.T) {
	m, clk, _ := newTestManager(&fakeFleet{})
	lane := navgraph.LaneKey{Start: 2, End: 3}
	m.ReserveLane(lane, "R1", 0)
	first := m.LaneReservations()[lane].Expires
	if first.Sub(clk.Now()) != DefaultLaneLease {
		t.Errorf("default lease = %v, want %v", first.Sub(clk.Now()), DefaultLaneLease)
	}
	clk.Advance(time.Second)
	if !m.ReserveLane(lane, "R1", 0) {
		t.Fatal("holder could not renew")
	}
	if !m.LaneReservations()[lane].Expires.After(first) {
		t.Error("renewal did not extend the lease")
	}
}

func TestReserveIntersection(t *testing.T) {
	m, clk, _ := newTestManager(&fakeFleet{})
	if !m.ReserveIntersection(4, "R1", 0) {
		t.Fatal("first reservation refused")
	}
	if m.ReserveIntersection(4, "R2", 0) {
		t.Fatal("R2 took a live intersection lease")
	}
	clk.Advance(DefaultIntersectionLease + time.Millisecond)
	if !m.ReserveIntersection(4, "R2", 0) {
		t.Fatal("R2 refused after default lease expired")
	}
}

func TestCheckPathAvailability(t *testing.T) {
	m, clk, _ := newTestManager(&fakeFleet{})
	m.ReserveLane(navgraph.LaneKey{Start: 1, End: 2}, "R1", time.Second)
	m.ReserveIntersection(5, "R3", time.Second)

	tests := []struct {
		path  []int
		robot string
		want  bool
	}{
		{[]int{0, 1, 2}, "R2", false},
		{[]int{0, 1, 2}, "R1", true},
		{[]int{2, 1, 0}, "R2", true},
		{[]int{4, 5}, "R2", false},
		{[]int{5}, "R3", true},
		{nil, "R2", true},
	}
	for _, tc := range tests {
		if got := m.CheckPathAvailability(tc.path, tc.robot); got != tc.want {
			t.Errorf("CheckPathAvailability(%v, %s) = %v, want %v", tc.path, tc.robot, got, tc.want)
		}
	}

	clk.Advance(2 * time.Second)
	if !m.CheckPathAvailability([]int{0, 1, 2}, "R2") {
		t.Error("expired leases should not block")
	}
}

func TestClearExpiredReservations(t *testing.T) {
	m, clk, em := newTestManager(&fakeFleet{})
	if n := m.ClearExpiredReservations(clk.Now()); n != 0 || em.expired != 0 {
		t.Fatalf("empty clear removed %d and emitted %d", n, em.expired)
	}

	m.ReserveLane(navgraph.LaneKey{Start: 0, End: 1}, "R1", time.Second)
	m.ReserveLane(navgraph.LaneKey{Start: 1, End: 2}, "R1", 10*time.Second)
	m.ReserveIntersection(1, "R2", time.Second)

	clk.Advance(2 * time.Second)
	if n := m.ClearExpiredReservations(clk.Now()); n != 2 {
		t.Fatalf("cleared %d, want 2", n)
	}
	if len(m.LaneReservations()) != 1 || len(m.IntersectionReservations()) != 0 {
		t.Errorf("remaining = %v / %v", m.LaneReservations(), m.IntersectionReservations())
	}
	if em.expired != 2 {
		t.Errorf("expired events = %d, want 2", em.expired)
	}
	if n := m.ClearExpiredReservations(clk.Now()); n != 0 || em.expired != 2 {
		t.Error("second clear should be a no-op")
	}
}

func waitingRobot(t *testing.T, id string) *robot.Robot {
	t.Helper()
	r := robot.New(robot.Config{ID: id, Vertex: 0})
	if err := r.AssignTask(2, []int{0, 1, 2}); err != nil {
		t.Fatal(err)
	}
	r.SetWaiting()
	return r
}

func TestProcessWaitingRobots(t *testing.T) {
	r1 := waitingRobot(t, "R1")
	idle := robot.New(robot.Config{ID: "R2", Vertex: 3})
	f := &fakeFleet{
		robots:  []*robot.Robot{r1, idle},
		blocked: map[navgraph.LaneKey]bool{{Start: 0, End: 1}: true},
	}
	m, clk, em := newTestManager(f)

	if n := m.ProcessWaitingRobots(); n != 0 {
		t.Fatalf("resumed %d while blocked", n)
	}
	if r1.State() != robot.Waiting {
		t.Fatalf("state = %v, want waiting", r1.State())
	}

	delete(f.blocked, navgraph.LaneKey{Start: 0, End: 1})
	m.Update(clk.Now())
	if r1.State() != robot.Moving {
		t.Fatalf("state = %v, want moving", r1.State())
	}
	if len(em.resumed) != 1 || em.resumed[0] != "R1" {
		t.Errorf("resumed events = %v", em.resumed)
	}

	if n := m.ProcessWaitingRobots(); n != 0 || len(em.resumed) != 1 {
		t.Error("second pass should be a no-op")
	}
	if idle.State() != robot.Idle {
		t.Errorf("idle robot changed to %v", idle.State())
	}
}

func TestRelease(t *testing.T) {
	m, _, _ := newTestManager(&fakeFleet{})
	m.ReserveLane(navgraph.LaneKey{Start: 0, End: 1}, "R1", 0)
	m.ReserveLane(navgraph.LaneKey{Start: 1, End: 2}, "R2", 0)
	m.ReserveIntersection(1, "R1", 0)
	m.Release("R1")
	if len(m.LaneReservations()) != 1 || len(m.IntersectionReservations()) != 0 {
		t.Errorf("after release: %v / %v", m.LaneReservations(), m.IntersectionReservations())
	}
}

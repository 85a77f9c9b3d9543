package robot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"fleetnav/navgraph"
)

const (
	DefaultSpeed   = 1.0
	DefaultBattery = 100.0

	// batteryDrain is the charge lost per unit of distance travelled.
	batteryDrain = 0.01

	// arrivalEpsilon absorbs float drift when progress sums to 1 over several ticks.
	arrivalEpsilon = 1e-9
)

// Config describes a new robot.
type Config struct {
	ID      string
	Color   string
	Vertex  int
	Pos     navgraph.Point
	Speed   float64 // <= 0 means DefaultSpeed
	Battery float64 // <= 0 means DefaultBattery
}

// Robot is one agent's motion state machine. It is not safe for concurrent
// use; the fleet manager owns every Robot and drives it from one goroutine.
type Robot struct {
	id      string
	color   string
	vertex  int
	pos     navgraph.Point
	state   State
	path    []int
	pathIdx int
	// progress along path[pathIdx] -> path[pathIdx+1], in [0,1]
	progress     float64
	dest         int
	taskID       string
	battery      float64
	speed        float64
	blockedFor   float64
	waitingSince time.Time
}

// New creates an idle robot at cfg.Vertex.
func New(cfg Config) *Robot {
	speed := cfg.Speed
	if speed <= 0 {
		speed = DefaultSpeed
	}
	battery := cfg.Battery
	if battery <= 0 || battery > 100 {
		battery = DefaultBattery
	}
	return &Robot{
		id:      cfg.ID,
		color:   cfg.Color,
		vertex:  cfg.Vertex,
		pos:     cfg.Pos,
		state:   Idle,
		dest:    cfg.Vertex,
		battery: battery,
		speed:   speed,
	}
}

func (r *Robot) ID() string               { return r.id }
func (r *Robot) Color() string            { return r.color }
func (r *Robot) Vertex() int              { return r.vertex }
func (r *Robot) Position() navgraph.Point { return r.pos }
func (r *Robot) State() State             { return r.state }
func (r *Robot) PathIndex() int           { return r.pathIdx }
func (r *Robot) Progress() float64        { return r.progress }
func (r *Robot) Destination() int         { return r.dest }
func (r *Robot) TaskID() string           { return r.taskID }
func (r *Robot) Battery() float64         { return r.battery }
func (r *Robot) Speed() float64           { return r.speed }

// BlockedDuration is the simulated time spent waiting during the current task, in seconds.
func (r *Robot) BlockedDuration() float64 { return r.blockedFor }

// Path returns a copy of the assigned path.
func (r *Robot) Path() []int {
	out := make([]int, len(r.path))
	copy(out, r.path)
	return out
}

// AssignTask starts a new task along path, which must begin at the robot's vertex.
// On error the robot is left untouched.
func (r *Robot) AssignTask(dest int, path []int) error {
	if r.state != Idle && r.state != TaskComplete {
		return fmt.Errorf("robot %s is %s: %w", r.id, r.state, ErrPrecondState)
	}
	if len(path) == 0 || path[0] != r.vertex {
		return fmt.Errorf("robot %s at vertex %d given path %v: %w", r.id, r.vertex, path, ErrInvalidPath)
	}

	r.path = append([]int(nil), path...)
	r.pathIdx = 0
	r.progress = 0
	r.dest = dest
	r.taskID = uuid.New().String()[:8]
	r.blockedFor = 0
	r.waitingSince = time.Time{}
	if len(path) > 1 {
		r.state = Moving
	} else {
		r.state = TaskComplete
	}
	return nil
}

// NextVertex returns the vertex the robot is heading to, if it has one.
func (r *Robot) NextVertex() (int, bool) {
	if r.pathIdx+1 < len(r.path) {
		return r.path[r.pathIdx+1], true
	}
	return 0, false
}

// CurrentLane is the lane being traversed. It is reported only while Moving;
// a Waiting robot reports none.
func (r *Robot) CurrentLane() (navgraph.LaneKey, bool) {
	if r.state != Moving {
		return navgraph.LaneKey{}, false
	}
	return r.PendingLane()
}

// PendingLane is the lane ahead while Moving or Waiting.
func (r *Robot) PendingLane() (navgraph.LaneKey, bool) {
	if r.state != Moving && r.state != Waiting {
		return navgraph.LaneKey{}, false
	}
	next, ok := r.NextVertex()
	if !ok {
		return navgraph.LaneKey{}, false
	}
	return navgraph.LaneKey{Start: r.path[r.pathIdx], End: next}, true
}

// SetWaiting moves a Moving robot to Waiting. It is a no-op in any other state.
func (r *Robot) SetWaiting() bool {
	if r.state != Moving {
		return false
	}
	r.state = Waiting
	r.waitingSince = time.Now()
	return true
}

// ResumeMovement moves a Waiting robot back to Moving. It is a no-op in any other state.
func (r *Robot) ResumeMovement() bool {
	if r.state != Waiting {
		return false
	}
	r.state = Moving
	return true
}

// EnterCharging parks an idle or finished robot on charge.
func (r *Robot) EnterCharging() error {
	if !CanTransition(r.state, Charging) {
		return fmt.Errorf("robot %s is %s: %w", r.id, r.state, ErrPrecondState)
	}
	r.state = Charging
	return nil
}

// StopCharging returns a charging robot to Idle.
func (r *Robot) StopCharging() error {
	if r.state != Charging {
		return fmt.Errorf("robot %s is %s, not charging: %w", r.id, r.state, ErrPrecondState)
	}
	r.state = Idle
	return nil
}

// Tick advances the robot by dt seconds and reports whether its position or
// state changed. Only Moving and Waiting robots do anything.
func (r *Robot) Tick(dt float64, geo Geometry, oracle LaneOracle) bool {
	switch r.state {
	case Waiting:
		lane, ok := r.PendingLane()
		if !ok {
			r.state = TaskComplete
			return true
		}
		if oracle.IsLaneBlocked(lane.Start, lane.End, r.id) {
			r.blockedFor += dt
			return false
		}
		r.state = Moving
		r.advance(dt, geo, oracle)
		return true
	case Moving:
		return r.advance(dt, geo, oracle)
	default:
		return false
	}
}

func (r *Robot) advance(dt float64, geo Geometry, oracle LaneOracle) bool {
	lane, ok := r.PendingLane()
	if !ok {
		r.state = TaskComplete
		return true
	}
	cur, next := lane.Start, lane.End
	if oracle.IsLaneBlocked(cur, next, r.id) {
		r.SetWaiting()
		return true
	}

	before := r.pos
	travel := r.speed * dt
	if total := geo.Distance(cur, next); total <= 0 {
		r.progress = 1
	} else {
		r.progress += travel / total
	}
	r.progress = navgraph.Clamp(r.progress, 0, 1)

	target := geo.VertexCoords(next)
	r.pos = navgraph.Lerp(geo.VertexCoords(cur), target, r.progress)
	r.battery = max(0, r.battery-batteryDrain*travel)

	if r.progress >= 1-arrivalEpsilon {
		r.pos = target
		r.vertex = next
		r.pathIdx++
		r.progress = 0
		if r.pathIdx == len(r.path)-1 {
			r.state = TaskComplete
		}
		return true
	}
	return r.pos != before
}

// StatusText is a one-line human description of the robot.
func (r *Robot) StatusText() string {
	switch r.state {
	case Idle:
		return fmt.Sprintf("Robot %s: Idle", r.id)
	case Moving:
		return fmt.Sprintf("Robot %s: Moving to %d", r.id, r.dest)
	case Waiting:
		return fmt.Sprintf("Robot %s: Waiting (blocked)", r.id)
	case Charging:
		return fmt.Sprintf("Robot %s: Charging (%.0f%%)", r.id, r.battery)
	case TaskComplete:
		return fmt.Sprintf("Robot %s: Task Complete", r.id)
	default:
		return fmt.Sprintf("Robot %s: Unknown state", r.id)
	}
}

// Status returns a copy of the robot's observable state.
func (r *Robot) Status() Status {
	return Status{
		ID:              r.id,
		Color:           r.color,
		Vertex:          r.vertex,
		Position:        r.pos,
		State:           r.state,
		StatusText:      r.StatusText(),
		Path:            r.Path(),
		PathIndex:       r.pathIdx,
		Progress:        r.progress,
		Destination:     r.dest,
		TaskID:          r.taskID,
		Battery:         r.battery,
		Speed:           r.speed,
		BlockedDuration: r.blockedFor,
		WaitingSince:    r.waitingSincePtr(),
	}
}

func (r *Robot) waitingSincePtr() *time.Time {
	if r.state != Waiting {
		return nil
	}
	t := r.waitingSince
	return &t
}

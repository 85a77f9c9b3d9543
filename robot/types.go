package robot

import (
	"errors"
	"fmt"
	"time"

	"fleetnav/navgraph"
)

// State is the robot's motion state.
type State int

const (
	Idle State = iota
	Moving
	Waiting
	Charging // entered only through EnterCharging; nothing transitions here on its own
	TaskComplete
)

var stateNames = [...]string{
	Idle:         "idle",
	Moving:       "moving",
	Waiting:      "waiting",
	Charging:     "charging",
	TaskComplete: "task_complete",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown robot state %q", b)
}

// transitions lists every legal state change. TaskComplete -> TaskComplete is
// a new task whose path is a single vertex.
var transitions = map[State][]State{
	Idle:         {Moving, TaskComplete, Charging},
	Moving:       {Waiting, TaskComplete},
	Waiting:      {Moving},
	Charging:     {Idle},
	TaskComplete: {Moving, TaskComplete, Charging},
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	ErrPrecondState = errors.New("robot is not idle or task complete")
	ErrInvalidPath  = errors.New("path does not start at the robot's current vertex")
)

// LaneOracle answers whether a lane is held by some other robot.
type LaneOracle interface {
	IsLaneBlocked(start, end int, robotID string) bool
}

// Geometry supplies vertex positions and segment lengths.
// *navgraph.Graph satisfies it.
type Geometry interface {
	VertexCoords(idx int) navgraph.Point
	Distance(a, b int) float64
}

// Status is a point-in-time copy of a robot, safe to hand to readers.
type Status struct {
	ID              string         `json:"id"`
	Color           string         `json:"color"`
	Vertex          int            `json:"vertex"`
	Position        navgraph.Point `json:"position"`
	State           State          `json:"state"`
	StatusText      string         `json:"status_text"`
	Path            []int          `json:"path,omitempty"`
	PathIndex       int            `json:"path_index"`
	Progress        float64        `json:"progress"`
	Destination     int            `json:"destination"`
	TaskID          string         `json:"task_id,omitempty"`
	Battery         float64        `json:"battery"`
	Speed           float64        `json:"speed"`
	BlockedDuration float64        `json:"blocked_seconds"`
	WaitingSince    *time.Time     `json:"waiting_since,omitempty"`
}

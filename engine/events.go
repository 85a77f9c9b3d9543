package engine

import "fleetnav/navgraph"

const (
	EventRobotCreated EventType = iota + 1
	EventTaskAssigned
	EventTaskRejected
	EventRobotMoved
	EventRobotWaiting
	EventRobotResumed
	EventRobotArrived
	EventReservationsExpired
)

var eventNames = map[EventType]string{
	EventRobotCreated:        "robot_created",
	EventTaskAssigned:        "task_assigned",
	EventTaskRejected:        "task_rejected",
	EventRobotMoved:          "robot_moved",
	EventRobotWaiting:        "robot_waiting",
	EventRobotResumed:        "robot_resumed",
	EventRobotArrived:        "robot_arrived",
	EventReservationsExpired: "reservations_expired",
}

func (t EventType) String() string {
	if s, ok := eventNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseEventType is the inverse of String.
func ParseEventType(name string) (EventType, bool) {
	for t, s := range eventNames {
		if s == name {
			return t, true
		}
	}
	return 0, false
}

// RobotID names the robot an event concerns, or "" for fleet-wide events.
func (evt Event) RobotID() string {
	switch p := evt.Payload.(type) {
	case RobotCreatedEvent:
		return p.RobotID
	case TaskAssignedEvent:
		return p.RobotID
	case TaskRejectedEvent:
		return p.RobotID
	case RobotMovedEvent:
		return p.RobotID
	case RobotWaitingEvent:
		return p.RobotID
	case RobotResumedEvent:
		return p.RobotID
	case RobotArrivedEvent:
		return p.RobotID
	}
	return ""
}

// --- Event payloads ---

type RobotCreatedEvent struct {
	RobotID string `json:"robot_id"`
	Vertex  int    `json:"vertex"`
}

type TaskAssignedEvent struct {
	RobotID     string `json:"robot_id"`
	TaskID      string `json:"task_id"`
	Destination int    `json:"destination"`
	Path        []int  `json:"path"`
}

type TaskRejectedEvent struct {
	RobotID     string `json:"robot_id"`
	Destination int    `json:"destination"`
	Err         error  `json:"-"`
	Reason      string `json:"reason"`
}

type RobotMovedEvent struct {
	RobotID string `json:"robot_id"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

type RobotWaitingEvent struct {
	RobotID   string           `json:"robot_id"`
	Lane      navgraph.LaneKey `json:"lane"`
	BlockerID string           `json:"blocker_id"`
}

type RobotResumedEvent struct {
	RobotID string           `json:"robot_id"`
	Lane    navgraph.LaneKey `json:"lane"`
}

type RobotArrivedEvent struct {
	RobotID string `json:"robot_id"`
	TaskID  string `json:"task_id"`
	Vertex  int    `json:"vertex"`
}

type ReservationsExpiredEvent struct {
	Lanes         int `json:"lanes"`
	Intersections int `json:"intersections"`
}

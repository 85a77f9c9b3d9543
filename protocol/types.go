package protocol

import "time"

// Message types.
const (
	// Operator -> fleet (command topic)
	TypeRobotCreate = "robot.create"
	TypeTaskAssign  = "task.assign"
	TypeRobotCharge = "robot.charge"

	// Fleet -> operator (event topic)
	TypeFleetEvent    = "fleet.event"
	TypeCommandResult = "command.result"
)

// Roles for Address.Role.
const (
	RoleFleet    = "fleet"
	RoleOperator = "operator"
)

const Version = 1

type RobotCreate struct {
	Vertex int `json:"vertex"`
}

type TaskAssign struct {
	RobotID     string `json:"robot_id"`
	Destination int    `json:"destination"`
}

type RobotCharge struct {
	RobotID  string `json:"robot_id"`
	Charging bool   `json:"charging"`
}

// FleetEvent mirrors one event log entry.
type FleetEvent struct {
	Kind    string    `json:"kind"`
	RobotID string    `json:"robot_id,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	Vertex  int       `json:"vertex"`
	Path    []int     `json:"path,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// CommandResult answers a command envelope; the reply's CorID names the command.
type CommandResult struct {
	OK      bool   `json:"ok"`
	RobotID string `json:"robot_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result codes.
const (
	CodeUnknownRobot  = "unknown_robot"
	CodeInvalidVertex = "invalid_vertex"
	CodeNoPath        = "no_path"
	CodeBusy          = "busy"
	CodeInternal      = "internal"
)

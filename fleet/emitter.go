package fleet

import "fleetnav/navgraph"

// EventEmitter is the interface the fleet package uses to emit events.
type EventEmitter interface {
	EmitRobotCreated(robotID string, vertex int)
	EmitTaskAssigned(robotID, taskID string, dest int, path []int)
	EmitTaskRejected(robotID string, dest int, err error)
	EmitRobotMoved(robotID string, from, to int)
	EmitRobotWaiting(robotID string, lane navgraph.LaneKey, blockerID string)
	EmitRobotArrived(robotID, taskID string, vertex int)
}

type nopEmitter struct{}

func (nopEmitter) EmitRobotCreated(string, int)                      {}
func (nopEmitter) EmitTaskAssigned(string, string, int, []int)       {}
func (nopEmitter) EmitTaskRejected(string, int, error)               {}
func (nopEmitter) EmitRobotMoved(string, int, int)                   {}
func (nopEmitter) EmitRobotWaiting(string, navgraph.LaneKey, string) {}
func (nopEmitter) EmitRobotArrived(string, string, int)              {}

package engine

import "fleetnav/navgraph"

// fleetEmitter bridges the fleet package's emitter interface to the EventBus.
type fleetEmitter struct {
	bus *EventBus
}

func (e *fleetEmitter) EmitRobotCreated(robotID string, vertex int) {
	e.bus.Emit(Event{Type: EventRobotCreated, Payload: RobotCreatedEvent{
		RobotID: robotID,
		Vertex:  vertex,
	}})
}

func (e *fleetEmitter) EmitTaskAssigned(robotID, taskID string, dest int, path []int) {
	e.bus.Emit(Event{Type: EventTaskAssigned, Payload: TaskAssignedEvent{
		RobotID:     robotID,
		TaskID:      taskID,
		Destination: dest,
		Path:        append([]int(nil), path...),
	}})
}

func (e *fleetEmitter) EmitTaskRejected(robotID string, dest int, err error) {
	e.bus.Emit(Event{Type: EventTaskRejected, Payload: TaskRejectedEvent{
		RobotID:     robotID,
		Destination: dest,
		Err:         err,
		Reason:      err.Error(),
	}})
}

func (e *fleetEmitter) EmitRobotMoved(robotID string, from, to int) {
	e.bus.Emit(Event{Type: EventRobotMoved, Payload: RobotMovedEvent{
		RobotID: robotID,
		From:    from,
		To:      to,
	}})
}

func (e *fleetEmitter) EmitRobotWaiting(robotID string, lane navgraph.LaneKey, blockerID string) {
	e.bus.Emit(Event{Type: EventRobotWaiting, Payload: RobotWaitingEvent{
		RobotID:   robotID,
		Lane:      lane,
		BlockerID: blockerID,
	}})
}

func (e *fleetEmitter) EmitRobotArrived(robotID, taskID string, vertex int) {
	e.bus.Emit(Event{Type: EventRobotArrived, Payload: RobotArrivedEvent{
		RobotID: robotID,
		TaskID:  taskID,
		Vertex:  vertex,
	}})
}

// trafficEmitter bridges the traffic manager's events to the EventBus.
type trafficEmitter struct {
	bus *EventBus
}

func (e *trafficEmitter) EmitReservationsExpired(lanes, intersections int) {
	e.bus.Emit(Event{Type: EventReservationsExpired, Payload: ReservationsExpiredEvent{
		Lanes:         lanes,
		Intersections: intersections,
	}})
}

func (e *trafficEmitter) EmitRobotResumed(robotID string, lane navgraph.LaneKey) {
	e.bus.Emit(Event{Type: EventRobotResumed, Payload: RobotResumedEvent{
		RobotID: robotID,
		Lane:    lane,
	}})
}

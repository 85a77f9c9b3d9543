package engine

import (
	"errors"
	"fmt"

	"fleetnav/eventlog"
	"fleetnav/fleet"
	"fleetnav/navgraph"
	"fleetnav/robot"
)

// wireEventHandlers turns bus events into event log lines and, when
// sim.reserve_on_move is set, advisory leases. Handlers run inside the
// engine lock.
func (e *Engine) wireEventHandlers() {
	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(RobotCreatedEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindRobotCreated,
			RobotID: ev.RobotID,
			Vertex:  ev.Vertex,
			Message: fmt.Sprintf("Robot %s created at vertex %s (index: %d)", ev.RobotID, e.graph.VertexName(ev.Vertex), ev.Vertex),
		})
	}, EventRobotCreated)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(TaskAssignedEvent)
		from := ev.Path[0]
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindTaskAssigned,
			RobotID: ev.RobotID,
			TaskID:  ev.TaskID,
			Vertex:  ev.Destination,
			Path:    ev.Path,
			Message: fmt.Sprintf("Task assigned to Robot %s: Navigate from %s to %s",
				ev.RobotID, e.graph.VertexName(from), e.graph.VertexName(ev.Destination)),
		})
		e.reserveAhead(ev.RobotID, from)
	}, EventTaskAssigned)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(TaskRejectedEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindTaskRejected,
			RobotID: ev.RobotID,
			Vertex:  ev.Destination,
			Message: e.rejectionMessage(ev),
		})
	}, EventTaskRejected)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(RobotMovedEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindRobotMoved,
			RobotID: ev.RobotID,
			Vertex:  ev.To,
			Message: fmt.Sprintf("Robot %s moved from %s to %s", ev.RobotID, e.graph.VertexName(ev.From), e.graph.VertexName(ev.To)),
		})
		e.reserveAhead(ev.RobotID, ev.To)
	}, EventRobotMoved)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(RobotWaitingEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindRobotWaiting,
			RobotID: ev.RobotID,
			Vertex:  ev.Lane.Start,
			Message: fmt.Sprintf("Robot %s waiting: Lane from %d to %d blocked by Robot %s",
				ev.RobotID, ev.Lane.Start, ev.Lane.End, ev.BlockerID),
		})
	}, EventRobotWaiting)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(RobotResumedEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindRobotResumed,
			RobotID: ev.RobotID,
			Vertex:  ev.Lane.Start,
			Message: fmt.Sprintf("Robot %s resumed: Lane from %d to %d is clear", ev.RobotID, ev.Lane.Start, ev.Lane.End),
		})
		e.reserveAhead(ev.RobotID, ev.Lane.Start)
	}, EventRobotResumed)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(RobotArrivedEvent)
		e.record(eventlog.Entry{
			Time:    evt.Timestamp,
			Kind:    eventlog.KindRobotArrived,
			RobotID: ev.RobotID,
			TaskID:  ev.TaskID,
			Vertex:  ev.Vertex,
			Message: fmt.Sprintf("Robot %s arrived at destination %s", ev.RobotID, e.graph.VertexName(ev.Vertex)),
		})
		e.traffic.Release(ev.RobotID)
	}, EventRobotArrived)

	e.Events.Subscribe(func(evt Event) {
		ev := evt.Payload.(ReservationsExpiredEvent)
		e.expired += ev.Lanes + ev.Intersections
	}, EventReservationsExpired)
}

func (e *Engine) rejectionMessage(ev TaskRejectedEvent) string {
	switch {
	case errors.Is(ev.Err, fleet.ErrUnknownRobot):
		return fmt.Sprintf("Error: Cannot assign task - Robot %s does not exist", ev.RobotID)
	case errors.Is(ev.Err, robot.ErrPrecondState):
		return fmt.Sprintf("Error: Cannot assign task - Robot %s is already moving or waiting", ev.RobotID)
	case errors.Is(ev.Err, fleet.ErrNoPath):
		start := -1
		if r, ok := e.fleet.Robot(ev.RobotID); ok {
			start = r.Vertex()
		}
		return fmt.Sprintf("Error: Cannot assign task - No path found from vertex %d to %d", start, ev.Destination)
	default:
		return fmt.Sprintf("Error assigning task to Robot %s: %v", ev.RobotID, ev.Err)
	}
}

// reserveAhead leases the vertex a robot stands on and the lane it is about
// to enter. A refused lease is only logged.
func (e *Engine) reserveAhead(robotID string, at int) {
	if !e.cfg.Sim.ReserveOnMove {
		return
	}
	r, ok := e.fleet.Robot(robotID)
	if !ok {
		return
	}
	if st := r.State(); st != robot.Moving && st != robot.Waiting {
		return
	}
	if !e.traffic.ReserveIntersection(at, robotID, 0) {
		e.logFn("engine: robot %s entered vertex %d under another robot's lease", robotID, at)
	}
	next, ok := r.NextVertex()
	if !ok {
		return
	}
	lane := navgraph.LaneKey{Start: at, End: next}
	if !e.traffic.ReserveLane(lane, robotID, 0) {
		e.logFn("engine: robot %s entered lane %s under another robot's lease", robotID, lane)
	}
}

package messaging

import (
	"fmt"

	"fleetnav/eventlog"
	"fleetnav/protocol"
	"fleetnav/store"
)

// EventPublisher is an eventlog sink that queues every entry as a
// fleet.event envelope in the outbox.
type EventPublisher struct {
	db      *store.DB
	topic   string
	station string
}

func NewEventPublisher(db *store.DB, topic, station string) *EventPublisher {
	return &EventPublisher{db: db, topic: topic, station: station}
}

func (p *EventPublisher) WriteEntries(entries []eventlog.Entry) error {
	src := protocol.Address{Role: protocol.RoleFleet, Station: p.station}
	dst := protocol.Address{Role: protocol.RoleOperator, Station: "*"}
	for _, e := range entries {
		env, err := protocol.NewEnvelope(protocol.TypeFleetEvent, src, dst, &protocol.FleetEvent{
			Kind:    string(e.Kind),
			RobotID: e.RobotID,
			TaskID:  e.TaskID,
			Vertex:  e.Vertex,
			Path:    e.Path,
			Message: e.Message,
			Time:    e.Time,
		})
		if err != nil {
			return fmt.Errorf("build event envelope: %w", err)
		}
		data, err := env.Encode()
		if err != nil {
			return fmt.Errorf("encode event envelope: %w", err)
		}
		if err := p.db.EnqueueOutbox(p.topic, data, protocol.TypeFleetEvent, p.station); err != nil {
			return fmt.Errorf("enqueue event: %w", err)
		}
	}
	return nil
}

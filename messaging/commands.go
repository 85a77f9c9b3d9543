package messaging

import (
	"errors"
	"log"

	"fleetnav/fleet"
	"fleetnav/protocol"
	"fleetnav/robot"
	"fleetnav/store"
)

// Commander executes fleet commands; the engine implements it.
type Commander interface {
	CreateRobot(vertex int) (string, error)
	AssignTask(robotID string, dest int) error
	SetCharging(robotID string, on bool) error
}

// CommandConsumer turns command envelopes into engine calls and queues a
// command.result reply for each.
type CommandConsumer struct {
	protocol.NoOpHandler

	client   *Client
	db       *store.DB
	cmd      Commander
	topic    string
	replyTo  string
	station  string
	ingestor *protocol.Ingestor
}

func NewCommandConsumer(client *Client, db *store.DB, cmd Commander, commandTopic, replyTopic, station string) *CommandConsumer {
	c := &CommandConsumer{
		client:  client,
		db:      db,
		cmd:     cmd,
		topic:   commandTopic,
		replyTo: replyTopic,
		station: station,
	}
	c.ingestor = protocol.NewIngestor(c, c.accept)
	return c
}

func (c *CommandConsumer) Start() error {
	return c.client.Subscribe(c.topic, c.ingestor.HandleRaw)
}

// HandleRaw feeds raw bytes through the ingestor; Start wires it to the client.
func (c *CommandConsumer) HandleRaw(data []byte) { c.ingestor.HandleRaw(data) }

func (c *CommandConsumer) accept(hdr *protocol.RawHeader) bool {
	if hdr.Dst.Role != "" && hdr.Dst.Role != protocol.RoleFleet {
		return false
	}
	return hdr.Dst.Station == "" || hdr.Dst.Station == "*" || hdr.Dst.Station == c.station
}

func (c *CommandConsumer) HandleRobotCreate(env *protocol.Envelope, p *protocol.RobotCreate) {
	id, err := c.cmd.CreateRobot(p.Vertex)
	c.reply(env, id, err)
}

func (c *CommandConsumer) HandleTaskAssign(env *protocol.Envelope, p *protocol.TaskAssign) {
	c.reply(env, p.RobotID, c.cmd.AssignTask(p.RobotID, p.Destination))
}

func (c *CommandConsumer) HandleRobotCharge(env *protocol.Envelope, p *protocol.RobotCharge) {
	c.reply(env, p.RobotID, c.cmd.SetCharging(p.RobotID, p.Charging))
}

func (c *CommandConsumer) reply(env *protocol.Envelope, robotID string, err error) {
	res := &protocol.CommandResult{OK: err == nil, RobotID: robotID}
	if err != nil {
		res.Code = ResultCode(err)
		res.Error = err.Error()
	}
	out, buildErr := protocol.NewReply(protocol.TypeCommandResult,
		protocol.Address{Role: protocol.RoleFleet, Station: c.station}, env.Src, env.ID, res)
	if buildErr != nil {
		log.Printf("commands: build reply: %v", buildErr)
		return
	}
	data, buildErr := out.Encode()
	if buildErr != nil {
		log.Printf("commands: encode reply: %v", buildErr)
		return
	}
	if err := c.db.EnqueueOutbox(c.replyTo, data, protocol.TypeCommandResult, c.station); err != nil {
		log.Printf("commands: enqueue reply for %s: %v", env.ID, err)
	}
}

// ResultCode maps a command error to its protocol code.
func ResultCode(err error) string {
	switch {
	case errors.Is(err, fleet.ErrUnknownRobot):
		return protocol.CodeUnknownRobot
	case errors.Is(err, fleet.ErrInvalidVertex):
		return protocol.CodeInvalidVertex
	case errors.Is(err, fleet.ErrNoPath):
		return protocol.CodeNoPath
	case errors.Is(err, robot.ErrPrecondState):
		return protocol.CodeBusy
	default:
		return protocol.CodeInternal
	}
}

package protocol

// NoOpHandler implements MessageHandler with no-op methods.
type NoOpHandler struct{}

func (NoOpHandler) HandleRobotCreate(*Envelope, *RobotCreate)     {}
func (NoOpHandler) HandleTaskAssign(*Envelope, *TaskAssign)       {}
func (NoOpHandler) HandleRobotCharge(*Envelope, *RobotCharge)     {}
func (NoOpHandler) HandleFleetEvent(*Envelope, *FleetEvent)       {}
func (NoOpHandler) HandleCommandResult(*Envelope, *CommandResult) {}

var _ MessageHandler = NoOpHandler{}

package engine

// CommandKind enumerates the operator commands the control loop accepts.
type CommandKind int

const (
	CmdStart CommandKind = iota
	CmdStop
	CmdToggleSim
	CmdCancelAll
	CmdStatus
	CmdPosition
	CmdDaily
)

// Command is a single operator request. The Telegram listener (or any other
// front end) sends these over the controller's channel; the controller drains
// them at tick boundaries, so command handling never races the trading logic.
// Reply, when non-nil, receives the human-readable response.
type Command struct {
	Kind  CommandKind
	Reply func(text string)
}

func (c Command) reply(text string) {
	if c.Reply != nil {
		c.Reply(text)
	}
}

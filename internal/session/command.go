package session

type CommandType string

const (
	CmdConnect       CommandType = "Connect"
	CmdDisconnect    CommandType = "Disconnect"
	CmdToggleReady   CommandType = "ToggleReady"
	CmdSubmitDetails CommandType = "SubmitDetails"
)

type Command struct {
	Type          CommandType
	ParticipantID string
	Name          string
	Appearance    string
}

// Apply dispatches cmd to the matching Controller operation.
func (c *Controller) Apply(cmd Command) error {
	switch cmd.Type {
	case CmdConnect:
		return c.Connect(cmd.ParticipantID)
	case CmdDisconnect:
		c.Disconnect(cmd.ParticipantID)
		return nil
	case CmdToggleReady:
		return c.ToggleReady(cmd.ParticipantID)
	case CmdSubmitDetails:
		return c.SubmitDetails(cmd.ParticipantID, cmd.Name, cmd.Appearance)
	default:
		return ErrUnsupportedCommand
	}
}

package model

// Command is one entry of the timer command surface. In-page requests and
// notification actions resolve to the same values.
type Command string

const (
	CommandStart        Command = "start"
	CommandDelayStart   Command = "delayStart"
	CommandStop         Command = "stop"
	CommandComplete     Command = "complete"
	CommandUpdateConfig Command = "updateConfig"
	CommandPause        Command = "pause"
	CommandResume       Command = "resume"
	CommandStartNow     Command = "startNow"
	CommandFocusWindow  Command = "focusWindow"
)

package types

// ButtonStatus is a decoded button event kind as classified by the CAN
// button hardware.
type ButtonStatus uint8

const (
	ButtonNone        ButtonStatus = 0
	ButtonEntryTeach  ButtonStatus = 1 // short press + 2s hold
	ButtonExitTeach   ButtonStatus = 2 // 2s hold
	ButtonTeachRepeat ButtonStatus = 3 // double click
)

func (s ButtonStatus) String() string {
	switch s {
	case ButtonEntryTeach:
		return "entry-teach"
	case ButtonExitTeach:
		return "exit-teach"
	case ButtonTeachRepeat:
		return "teach-repeat"
	default:
		return "none"
	}
}

// ControllerCommand selects the motion controller action requested on a
// mode transition.
type ControllerCommand uint8

const (
	CommandStartRecord ControllerCommand = 1
	CommandStopRecord  ControllerCommand = 2
	CommandStartReplay ControllerCommand = 3
)

func (c ControllerCommand) String() string {
	switch c {
	case CommandStartRecord:
		return "start-record"
	case CommandStopRecord:
		return "stop-record"
	case CommandStartReplay:
		return "start-replay"
	default:
		return "unknown"
	}
}

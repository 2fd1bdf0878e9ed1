// Package teach holds the button event state machine that mediates
// between the physical teach button and the robot motion controller.
package teach

import (
	"fmt"
	"sync"
	"time"

	"teach-button-service/internal/types"
)

const trajectoryPrefix = "button_traj_"

// Callbacks holds the capabilities the ModeController invokes. Only
// ControllerSwitch is required for transitions to commit; ReplayComplete
// and Log may be nil.
type Callbacks struct {
	// ControllerSwitch requests a motion controller mode switch and
	// reports whether the controller accepted it. The call is made
	// synchronously while the transition is in progress.
	ControllerSwitch func(command types.ControllerCommand, trajectory string) bool

	// ReplayComplete tells the hardware layer that a replay finished so
	// it can turn the button indicator off. Fire-and-forget.
	ReplayComplete func(iface string)

	// Log receives human-readable progress messages. Optional.
	Log func(message string)
}

// ModeController interprets decoded button events as teach/replay
// intents and drives the motion controller through the injected
// callbacks. It is safe for concurrent use: the mode check, the
// controller switch call and the mode update happen under one lock, so
// two racing events can never both observe the same pre-transition mode.
type ModeController struct {
	mu         sync.Mutex
	mode       types.Mode
	trajectory string
	lastIface  string
	callbacks  Callbacks
}

func NewModeController(callbacks Callbacks) *ModeController {
	return &ModeController{
		mode:      types.ModeIdle,
		callbacks: callbacks,
	}
}

// OnButtonEvent applies one decoded button event to the mode machine.
// Invalid events for the current mode are logged and dropped; the mode
// only changes when the controller switch reports success.
func (m *ModeController) OnButtonEvent(iface string, status types.ButtonStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logf("button event: interface=%s status=%s", iface, status)
	m.lastIface = iface

	switch status {
	case types.ButtonEntryTeach:
		m.handleEntryTeach(iface)
	case types.ButtonExitTeach:
		m.handleExitTeach(iface)
	case types.ButtonTeachRepeat:
		m.handleTeachRepeat(iface)
	default:
		m.logf("unknown button status: %d", status)
	}
}

// NotifyReplayComplete is called by the motion controller once an
// in-progress replay has finished. Outside of replaying mode it is a
// silent no-op and the replay-complete capability is not invoked.
func (m *ModeController) NotifyReplayComplete(iface string) {
	m.mu.Lock()
	if m.mode != types.ModeReplaying {
		m.mu.Unlock()
		return
	}
	m.mode = types.ModeIdle
	notify := m.callbacks.ReplayComplete
	m.logf("replay complete: interface=%s", iface)
	m.mu.Unlock()

	if notify != nil {
		notify(iface)
	}
}

func (m *ModeController) handleEntryTeach(iface string) {
	switch m.mode {
	case types.ModeTeaching:
		m.logf("already teaching, ignoring entry request")
		return
	case types.ModeReplaying:
		m.logf("replay in progress, cannot enter teach mode")
		return
	}

	m.logf("entering teach mode (interface=%s)", iface)

	name := generateTrajectoryName()
	if !m.requestSwitch(types.CommandStartRecord, name) {
		m.logf("failed to start teach recording")
		return
	}

	m.mode = types.ModeTeaching
	m.trajectory = name
	m.logf("teach recording started, trajectory: %s", name)
}

func (m *ModeController) handleExitTeach(iface string) {
	if m.mode != types.ModeTeaching {
		m.logf("not in teach mode, ignoring exit request")
		return
	}

	m.logf("exiting teach mode (interface=%s)", iface)

	if !m.requestSwitch(types.CommandStopRecord, m.trajectory) {
		m.logf("failed to stop teach recording")
		return
	}

	m.mode = types.ModeIdle
	m.logf("teach mode ended, trajectory saved: %s", m.trajectory)
}

func (m *ModeController) handleTeachRepeat(iface string) {
	switch m.mode {
	case types.ModeTeaching:
		m.logf("teach in progress, cannot start replay")
		return
	case types.ModeReplaying:
		m.logf("already replaying, ignoring repeat request")
		return
	}

	// Replay-from-cold: no teach cycle has recorded a trajectory yet.
	// The request is still forwarded with the empty name and it is up
	// to the controller to accept or reject it.
	if m.trajectory == "" {
		m.logf("no taught trajectory yet, requesting replay with empty name")
	}

	m.logf("starting trajectory replay (interface=%s, trajectory=%s)", iface, m.trajectory)

	if !m.requestSwitch(types.CommandStartReplay, m.trajectory) {
		m.logf("failed to start replay")
		return
	}

	m.mode = types.ModeReplaying
	m.logf("replay started: %s", m.trajectory)
}

// requestSwitch invokes the controller switch capability. A missing
// capability counts as a failed switch, so nothing commits.
func (m *ModeController) requestSwitch(command types.ControllerCommand, trajectory string) bool {
	if m.callbacks.ControllerSwitch == nil {
		m.logf("no controller switch callback configured")
		return false
	}
	return m.callbacks.ControllerSwitch(command, trajectory)
}

// Mode returns the current mode.
func (m *ModeController) Mode() types.Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// TrajectoryName returns the trajectory recorded by the most recent
// successful teach entry, or "" if none has happened yet.
func (m *ModeController) TrajectoryName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trajectory
}

// Status returns the mode and the trajectory name as one consistent
// pair, so a transition cannot slip in between the two reads.
func (m *ModeController) Status() (types.Mode, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode, m.trajectory
}

// LastInterface returns the CAN interface of the most recently observed
// button event.
func (m *ModeController) LastInterface() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIface
}

func (m *ModeController) IsTeaching() bool {
	return m.Mode() == types.ModeTeaching
}

func (m *ModeController) IsReplaying() bool {
	return m.Mode() == types.ModeReplaying
}

// generateTrajectoryName derives a trajectory name from the current
// time. Second resolution only; rapid repeated teach entries can
// collide and that is accepted.
func generateTrajectoryName() string {
	return fmt.Sprintf("%s%d", trajectoryPrefix, time.Now().Unix())
}

func (m *ModeController) logf(format string, v ...interface{}) {
	if m.callbacks.Log == nil {
		return
	}
	m.callbacks.Log(fmt.Sprintf(format, v...))
}

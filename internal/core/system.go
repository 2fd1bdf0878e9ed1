package core

import (
	"fmt"
	"sync"

	"teach-button-service/internal/hardware"
	"teach-button-service/internal/logger"
	"teach-button-service/internal/messaging"
	"teach-button-service/internal/teach"
	"teach-button-service/internal/types"
)

// TeachSystem wires the CAN button driver, the status LED and the Redis
// messaging layer around the mode controller.
type TeachSystem struct {
	handler *teach.ModeController
	bus     ButtonBus
	redis   MessagingClient
	led     Indicator
	logger  *logger.Logger

	mu            sync.Mutex
	publishedMode types.Mode
}

func NewTeachSystem(bus ButtonBus, redis MessagingClient, led Indicator, l *logger.Logger) *TeachSystem {
	s := &TeachSystem{
		bus:           bus,
		redis:         redis,
		led:           led,
		logger:        l,
		publishedMode: types.ModeIdle,
	}

	teachLog := l.WithTag("teach")
	s.handler = teach.NewModeController(teach.Callbacks{
		ControllerSwitch: s.requestControllerSwitch,
		ReplayComplete:   s.signalReplayComplete,
		Log:              func(message string) { teachLog.Infof("%s", message) },
	})
	return s
}

func (s *TeachSystem) Start() error {
	s.logger.Infof("Starting teach button system")

	s.redis.SetCallbacks(messaging.Callbacks{
		ReplayCompleteCallback: s.handleReplayComplete,
		ButtonEventCallback:    s.handleButtonEvent,
	})

	if err := s.redis.Connect(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := s.led.Init(); err != nil {
		return fmt.Errorf("failed to initialize status LED: %w", err)
	}

	s.bus.RegisterEventCallback(s.handleButtonEvent)
	if err := s.bus.Open(); err != nil {
		return fmt.Errorf("failed to open button bus: %w", err)
	}

	if err := s.publishMode(); err != nil {
		return fmt.Errorf("failed to publish initial mode: %w", err)
	}

	// Start Redis listeners now that everything is initialized
	if err := s.redis.StartListening(); err != nil {
		return fmt.Errorf("failed to start Redis listeners: %w", err)
	}

	s.logger.Infof("System started successfully")
	return nil
}

// handleButtonEvent feeds one decoded button event into the mode
// controller. Used both by the CAN driver and by events injected over
// Redis.
func (s *TeachSystem) handleButtonEvent(iface string, status types.ButtonStatus) error {
	s.handler.OnButtonEvent(iface, status)

	if err := s.redis.PublishLastInterface(iface); err != nil {
		s.logger.Warnf("Failed to publish last interface: %v", err)
	}

	return s.syncMode()
}

// handleReplayComplete is invoked when the motion controller reports a
// finished replay.
func (s *TeachSystem) handleReplayComplete(iface string) error {
	s.logger.Debugf("Replay complete notification for %s", iface)
	s.handler.NotifyReplayComplete(iface)
	return s.syncMode()
}

// requestControllerSwitch is the controller switch capability handed to
// the mode controller. Transport errors count as a rejected switch.
func (s *TeachSystem) requestControllerSwitch(command types.ControllerCommand, trajectory string) bool {
	ok, err := s.redis.RequestControllerSwitch(command, trajectory)
	if err != nil {
		s.logger.Errorf("Controller switch %s failed: %v", command, err)
		return false
	}
	return ok
}

// signalReplayComplete is the replay-complete capability handed to the
// mode controller: it sends the FXJS frame so the button LED goes out.
func (s *TeachSystem) signalReplayComplete(iface string) {
	if iface != s.bus.Interface() {
		s.logger.Warnf("Replay completed on %s but bus is bound to %s", iface, s.bus.Interface())
	}
	if err := s.bus.SendReplayComplete(); err != nil {
		s.logger.Errorf("Failed to signal replay complete: %v", err)
	}
}

// syncMode mirrors the controller mode to the status LED and Redis
// whenever it changed.
func (s *TeachSystem) syncMode() error {
	mode, trajectory := s.handler.Status()

	s.mu.Lock()
	changed := mode != s.publishedMode
	s.publishedMode = mode
	s.mu.Unlock()

	if !changed {
		return nil
	}

	if err := s.led.Set(ledPatternFor(mode)); err != nil {
		s.logger.Warnf("Failed to update status LED: %v", err)
	}

	if err := s.redis.PublishTeachMode(mode, trajectory); err != nil {
		s.logger.Errorf("Failed to publish teach mode: %v", err)
		return err
	}
	return nil
}

func (s *TeachSystem) publishMode() error {
	mode, trajectory := s.handler.Status()

	s.mu.Lock()
	s.publishedMode = mode
	s.mu.Unlock()

	return s.redis.PublishTeachMode(mode, trajectory)
}

func ledPatternFor(mode types.Mode) hardware.LedPattern {
	switch mode {
	case types.ModeTeaching:
		return hardware.LedBlink
	case types.ModeReplaying:
		return hardware.LedSolid
	default:
		return hardware.LedOff
	}
}

func (s *TeachSystem) Shutdown() {
	s.logger.Infof("Shutting down teach button system")

	s.bus.Close()
	if err := s.redis.Close(); err != nil {
		s.logger.Warnf("Failed to close Redis client: %v", err)
	}
	s.led.Cleanup()
}

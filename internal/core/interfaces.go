package core

import (
	"teach-button-service/internal/canbus"
	"teach-button-service/internal/hardware"
	"teach-button-service/internal/messaging"
	"teach-button-service/internal/types"
)

// MessagingClient defines the Redis operations needed by TeachSystem
type MessagingClient interface {
	SetCallbacks(callbacks messaging.Callbacks)
	Connect() error
	StartListening() error
	Close() error

	// Controller switch request/reply
	RequestControllerSwitch(command types.ControllerCommand, trajectory string) (bool, error)

	// State publishing
	PublishTeachMode(mode types.Mode, trajectory string) error
	PublishLastInterface(iface string) error
}

// ButtonBus defines the CAN button driver operations needed by TeachSystem
type ButtonBus interface {
	Open() error
	Close()
	Interface() string
	RegisterEventCallback(cb canbus.EventCallback)
	SendReplayComplete() error
}

// Indicator defines the status LED operations needed by TeachSystem
type Indicator interface {
	Init() error
	Set(pattern hardware.LedPattern) error
	Cleanup()
}

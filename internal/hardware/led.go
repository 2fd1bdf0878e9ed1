package hardware

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"

	"teach-button-service/internal/logger"
)

// LedPattern selects how the teach button indicator is driven.
type LedPattern int

const (
	LedOff   LedPattern = iota
	LedBlink            // teaching in progress
	LedSolid            // replay in progress
)

func (p LedPattern) String() string {
	switch p {
	case LedBlink:
		return "blink"
	case LedSolid:
		return "solid"
	default:
		return "off"
	}
}

const blinkInterval = 500 * time.Millisecond

// Default GPIO mapping for the teach button indicator.
const (
	DefaultLedChip = "gpiochip2"
	DefaultLedLine = 9
)

// gpioLine is the part of gpiocdev.Line the LED drives.
type gpioLine interface {
	SetValue(value int) error
	Close() error
}

// StatusLed drives a single GPIO-connected indicator LED that mirrors
// the current teach mode.
type StatusLed struct {
	chipName string
	offset   int
	logger   *logger.Logger

	chip *gpiocdev.Chip
	line gpioLine

	mu       sync.Mutex
	pattern  LedPattern
	stopChan chan struct{}
}

func NewStatusLed(chipName string, offset int, l *logger.Logger) *StatusLed {
	return &StatusLed{
		chipName: chipName,
		offset:   offset,
		logger:   l.WithTag("led"),
	}
}

func (s *StatusLed) Init() error {
	chip, err := gpiocdev.NewChip(s.chipName)
	if err != nil {
		return fmt.Errorf("failed to open GPIO chip %s: %w", s.chipName, err)
	}

	line, err := chip.RequestLine(s.offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("teach-button-service"))
	if err != nil {
		chip.Close()
		return fmt.Errorf("failed to request GPIO line %d: %w", s.offset, err)
	}

	s.chip = chip
	s.line = line
	s.logger.Infof("Configured status LED: chip=%s, line=%d", s.chipName, s.offset)
	return nil
}

// Set switches the indicator to the given pattern. Setting the current
// pattern again is a no-op.
func (s *StatusLed) Set(pattern LedPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pattern == s.pattern {
		return nil
	}

	// Stop any running blink routine
	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}

	s.pattern = pattern
	s.logger.Debugf("Status LED pattern: %s", pattern)

	switch pattern {
	case LedOff:
		return s.write(0)
	case LedSolid:
		return s.write(1)
	case LedBlink:
		s.stopChan = make(chan struct{})
		go s.runBlink(s.stopChan)
		return nil
	default:
		return fmt.Errorf("invalid LED pattern: %d", pattern)
	}
}

func (s *StatusLed) runBlink(stopChan chan struct{}) {
	// First edge immediately
	value := 1
	s.blinkWrite(stopChan, value)

	ticker := time.NewTicker(blinkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			value ^= 1
			s.blinkWrite(stopChan, value)
		}
	}
}

// blinkWrite drives one blink edge. The stop channel is rechecked
// under the lock so a tick racing a pattern change cannot write after
// the new static level has been set.
func (s *StatusLed) blinkWrite(stopChan chan struct{}, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-stopChan:
		return
	default:
	}

	if err := s.write(value); err != nil {
		s.logger.Errorf("Failed to drive status LED: %v", err)
	}
}

func (s *StatusLed) write(value int) error {
	if s.line == nil {
		return fmt.Errorf("status LED not initialized")
	}
	if err := s.line.SetValue(value); err != nil {
		return fmt.Errorf("failed to set LED line %d=%d: %w", s.offset, value, err)
	}
	return nil
}

func (s *StatusLed) Cleanup() {
	s.mu.Lock()
	if s.stopChan != nil {
		close(s.stopChan)
		s.stopChan = nil
	}
	s.mu.Unlock()

	if s.line != nil {
		if err := s.line.SetValue(0); err != nil {
			s.logger.Warnf("Failed to turn off status LED: %v", err)
		}
		s.line.Close()
	}
	if s.chip != nil {
		s.chip.Close()
	}
	s.logger.Infof("Status LED cleanup complete")
}

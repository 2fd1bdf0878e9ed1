package canbus

import (
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"teach-button-service/internal/logger"
	"teach-button-service/internal/types"
)

// EventCallback receives decoded button events from the bus.
type EventCallback func(iface string, status types.ButtonStatus) error

// ReceiveCallback optionally observes every raw inbound frame.
type ReceiveCallback func(id uint32, data []byte)

// readTimeout bounds each blocking socket read so the read loop
// periodically rechecks the stop channel. A raw fd blocked in read is
// not woken by closing the fd from another goroutine.
const readTimeout = 1 * time.Second

// Driver reads button event frames from one SocketCAN interface and
// writes the replay-complete signal back to it.
type Driver struct {
	iface  string
	logger *logger.Logger

	mu        sync.RWMutex
	fd        int
	eventCb   EventCallback
	receiveCb ReceiveCallback

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewDriver(iface string, l *logger.Logger) *Driver {
	return &Driver{
		iface:    iface,
		logger:   l.WithTag("canbus"),
		fd:       -1,
		stopChan: make(chan struct{}),
	}
}

// Interface returns the CAN interface name the driver is bound to.
func (d *Driver) Interface() string {
	return d.iface
}

// RegisterEventCallback sets the receiver for decoded button events.
// Only one receiver is active at a time.
func (d *Driver) RegisterEventCallback(cb EventCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eventCb = cb
}

// RegisterReceiveCallback sets an optional raw frame observer for
// diagnostics.
func (d *Driver) RegisterReceiveCallback(cb ReceiveCallback) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiveCb = cb
}

// Open binds a raw CAN socket to the configured interface and starts
// the frame read loop.
func (d *Driver) Open() error {
	ifi, err := net.InterfaceByName(d.iface)
	if err != nil {
		return fmt.Errorf("failed to find CAN interface %s: %w", d.iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return fmt.Errorf("failed to open CAN socket: %w", err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: ifi.Index}); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to bind CAN socket to %s: %w", d.iface, err)
	}

	tv := unix.NsecToTimeval(int64(readTimeout))
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return fmt.Errorf("failed to set CAN read timeout: %w", err)
	}

	d.mu.Lock()
	d.fd = fd
	d.mu.Unlock()

	d.logger.Infof("Opened CAN socket on %s (index %d)", d.iface, ifi.Index)

	d.wg.Add(1)
	go d.readLoop(fd)
	return nil
}

func (d *Driver) readLoop(fd int) {
	defer d.wg.Done()

	buf := make([]byte, frameSize)
	for {
		select {
		case <-d.stopChan:
			return
		default:
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			select {
			case <-d.stopChan:
				return
			default:
			}
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			d.logger.Errorf("CAN read on %s failed: %v", d.iface, err)
			return
		}

		frame, err := unmarshalFrame(buf[:n])
		if err != nil {
			d.logger.Warnf("Dropping malformed frame on %s: %v", d.iface, err)
			continue
		}

		d.dispatch(frame)
	}
}

func (d *Driver) dispatch(frame Frame) {
	d.mu.RLock()
	eventCb := d.eventCb
	receiveCb := d.receiveCb
	d.mu.RUnlock()

	if receiveCb != nil {
		receiveCb(frame.ID, frame.Data[:frame.Len])
	}

	if frame.ID != ButtonEventID {
		d.logger.Debugf("Ignoring frame with ID 0x%X on %s", frame.ID, d.iface)
		return
	}

	status := decodeButtonStatus(frame)
	d.logger.Debugf("Button frame on %s: % X => %s", d.iface, frame.Data[:frame.Len], status)

	if eventCb == nil {
		return
	}
	if err := eventCb(d.iface, status); err != nil {
		d.logger.Warnf("Button event handling failed: %v", err)
	}
}

// SendReplayComplete writes the FXJS code to the bus so the hardware
// turns the button LED off.
func (d *Driver) SendReplayComplete() error {
	d.mu.RLock()
	fd := d.fd
	d.mu.RUnlock()

	if fd < 0 {
		return fmt.Errorf("CAN socket not open")
	}
	if _, err := unix.Write(fd, marshalFrame(replayCompleteFrame())); err != nil {
		return fmt.Errorf("failed to send replay complete on %s: %w", d.iface, err)
	}
	d.logger.Debugf("Sent replay complete on %s", d.iface)
	return nil
}

// Close stops the read loop and releases the socket. The read loop
// notices the stop channel within one read timeout, so the socket is
// only closed once no read is in flight.
func (d *Driver) Close() {
	close(d.stopChan)
	d.wg.Wait()

	d.mu.Lock()
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
	d.mu.Unlock()

	d.logger.Infof("Closed CAN socket on %s", d.iface)
}

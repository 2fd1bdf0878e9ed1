package canbus

import (
	"encoding/binary"
	"fmt"

	"teach-button-service/internal/types"
)

// CAN identifiers used by the teach button hardware.
const (
	ButtonEventID    uint32 = 0x8F // inbound button status frames
	ReplayCompleteID uint32 = 0x7F // outbound replay-finished signal
)

// 4-byte ASCII protocol codes carried in the frame payload.
const (
	codeEntryTeach  = "JRSJ"
	codeExitTeach   = "TCSJ"
	codeTeachRepeat = "GJFX"
	codeReplayDone  = "FXJS"
)

// frameSize is the size of a classic SocketCAN can_frame.
const frameSize = 16

// Frame is a classic CAN 2.0 frame.
type Frame struct {
	ID   uint32
	Len  uint8
	Data [8]byte
}

// marshalFrame encodes f into the kernel can_frame layout. The can_id
// field is in host byte order.
func marshalFrame(f Frame) []byte {
	buf := make([]byte, frameSize)
	binary.NativeEndian.PutUint32(buf[0:4], f.ID)
	buf[4] = f.Len
	copy(buf[8:], f.Data[:])
	return buf
}

func unmarshalFrame(buf []byte) (Frame, error) {
	if len(buf) < frameSize {
		return Frame{}, fmt.Errorf("short CAN frame: %d bytes", len(buf))
	}
	var f Frame
	f.ID = binary.NativeEndian.Uint32(buf[0:4])
	f.Len = buf[4]
	if f.Len > 8 {
		return Frame{}, fmt.Errorf("invalid CAN frame length: %d", f.Len)
	}
	copy(f.Data[:], buf[8:16])
	return f, nil
}

// decodeButtonStatus classifies a button event frame payload. Frames
// with an unrecognized code map to ButtonNone.
func decodeButtonStatus(f Frame) types.ButtonStatus {
	if f.Len < 4 {
		return types.ButtonNone
	}
	switch string(f.Data[:4]) {
	case codeEntryTeach:
		return types.ButtonEntryTeach
	case codeExitTeach:
		return types.ButtonExitTeach
	case codeTeachRepeat:
		return types.ButtonTeachRepeat
	default:
		return types.ButtonNone
	}
}

// replayCompleteFrame builds the FXJS frame the hardware reacts to by
// turning the button LED off.
func replayCompleteFrame() Frame {
	var f Frame
	f.ID = ReplayCompleteID
	f.Len = uint8(copy(f.Data[:], codeReplayDone))
	return f
}

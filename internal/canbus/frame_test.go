package canbus

import (
	"testing"

	"teach-button-service/internal/types"
)

func buttonFrame(code string) Frame {
	var f Frame
	f.ID = ButtonEventID
	f.Len = uint8(copy(f.Data[:], code))
	return f
}

func TestDecodeButtonStatus(t *testing.T) {
	if got := decodeButtonStatus(buttonFrame("JRSJ")); got != types.ButtonEntryTeach {
		t.Errorf("JRSJ: expected entry-teach, got %v", got)
	}
	if got := decodeButtonStatus(buttonFrame("TCSJ")); got != types.ButtonExitTeach {
		t.Errorf("TCSJ: expected exit-teach, got %v", got)
	}
	if got := decodeButtonStatus(buttonFrame("GJFX")); got != types.ButtonTeachRepeat {
		t.Errorf("GJFX: expected teach-repeat, got %v", got)
	}
}

func TestDecodeButtonStatusUnknownCode(t *testing.T) {
	if got := decodeButtonStatus(buttonFrame("XXXX")); got != types.ButtonNone {
		t.Errorf("Expected none for unknown code, got %v", got)
	}
}

func TestDecodeButtonStatusShortPayload(t *testing.T) {
	if got := decodeButtonStatus(buttonFrame("JR")); got != types.ButtonNone {
		t.Errorf("Expected none for short payload, got %v", got)
	}
}

func TestReplayCompleteFrame(t *testing.T) {
	f := replayCompleteFrame()

	if f.ID != ReplayCompleteID {
		t.Errorf("Expected CAN ID 0x%X, got 0x%X", ReplayCompleteID, f.ID)
	}
	if f.Len != 4 {
		t.Errorf("Expected payload length 4, got %d", f.Len)
	}
	if string(f.Data[:4]) != "FXJS" {
		t.Errorf("Expected FXJS payload, got %q", f.Data[:4])
	}
}

func TestFrameRoundTrip(t *testing.T) {
	in := replayCompleteFrame()

	buf := marshalFrame(in)
	if len(buf) != frameSize {
		t.Fatalf("Expected %d byte frame, got %d", frameSize, len(buf))
	}

	out, err := unmarshalFrame(buf)
	if err != nil {
		t.Fatalf("unmarshalFrame failed: %v", err)
	}
	if out != in {
		t.Errorf("Round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestUnmarshalFrameShortBuffer(t *testing.T) {
	if _, err := unmarshalFrame(make([]byte, 8)); err == nil {
		t.Error("Expected error for short buffer")
	}
}

func TestUnmarshalFrameInvalidLength(t *testing.T) {
	buf := make([]byte, frameSize)
	buf[4] = 9 // longer than a classic CAN payload
	if _, err := unmarshalFrame(buf); err == nil {
		t.Error("Expected error for invalid payload length")
	}
}

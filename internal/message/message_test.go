package message

import (
	"testing"

	"github.com/loopj/wavephoenix/internal/packet"
)

func TestInputStateFields(t *testing.T) {
	// header 0x0AB1, buttons 0x80D, sticks A5 68, substick A8 31, triggers
	// A1 30, footer 00: 84 bits right-aligned, so the header starts at the
	// low nibble of byte 0.
	m := packet.Message{0x00, 0xAB, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}

	if got := ControllerID(m); got != 0x2B1 {
		t.Fatalf("ControllerID = %#x, want 0x2B1", got)
	}
	if got := GetType(m); got != TypeInputState {
		t.Fatalf("GetType = %v, want TypeInputState", got)
	}
	if got := GetButtons(m); got != 0x80D {
		t.Fatalf("GetButtons = %#x, want 0x80D", got)
	}
	if got := StickX(m); got != 0xA5 {
		t.Fatalf("StickX = %#x, want 0xA5", got)
	}
	if got := StickY(m); got != 0x68 {
		t.Fatalf("StickY = %#x, want 0x68", got)
	}
	if got := SubstickX(m); got != 0xA8 {
		t.Fatalf("SubstickX = %#x, want 0xA8", got)
	}
	if got := SubstickY(m); got != 0x31 {
		t.Fatalf("SubstickY = %#x, want 0x31", got)
	}
	if got := TriggerLeft(m); got != 0xA1 {
		t.Fatalf("TriggerLeft = %#x, want 0xA1", got)
	}
	if got := TriggerRight(m); got != 0x30 {
		t.Fatalf("TriggerRight = %#x, want 0x30", got)
	}
}

func TestOriginType(t *testing.T) {
	// header 0x0C38: origin type, ID 0x038
	m := packet.Message{0x00, 0xC3, 0x80}
	if got := GetType(m); got != TypeOrigin {
		t.Fatalf("GetType = %v, want TypeOrigin", got)
	}
	if got := ControllerID(m); got != 0x038 {
		t.Fatalf("ControllerID = %#x, want 0x038", got)
	}
}

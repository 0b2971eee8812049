package receiver

import (
	"testing"
	"time"

	"github.com/loopj/wavephoenix/internal/message"
	"github.com/loopj/wavephoenix/internal/packet"
	"github.com/loopj/wavephoenix/internal/pairing"
	"github.com/loopj/wavephoenix/internal/si"
	"github.com/loopj/wavephoenix/internal/si/gc"
)

func encode(t *testing.T, m packet.Message) []byte {
	t.Helper()
	p := packet.Encode(m, nil)
	return p[:]
}

func newReceiver(ct ControllerType, now func() time.Time) *Receiver {
	engine := si.NewEngine(nil)
	settings := DefaultSettings
	settings.ControllerType = ct
	settings.PinID = true
	return New(engine, settings, now)
}

func TestHandlePacketInputStateUpdatesGCInput(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)

	m := packet.Message{0x0A, 0xB1, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, m)); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}

	in := r.GC().Input
	if !in.Buttons.Start {
		t.Fatalf("button Start not set, buttons = %+v", in.Buttons)
	}
	if in.StickX != 0xA5 || in.StickY != 0x68 {
		t.Fatalf("stick = (%#x,%#x), want (0xA5,0x68)", in.StickX, in.StickY)
	}
	if in.SubstickX != 0xA8 || in.SubstickY != 0x31 {
		t.Fatalf("substick = (%#x,%#x), want (0xA8,0x31)", in.SubstickX, in.SubstickY)
	}
	if in.TriggerLeft != 0xA1 || in.TriggerRight != 0x30 {
		t.Fatalf("triggers = (%#x,%#x), want (0xA1,0x30)", in.TriggerLeft, in.TriggerRight)
	}
	if !r.GC().InputValid {
		t.Fatalf("InputValid = false, want true")
	}
	if r.Stats.Packets != 1 {
		t.Fatalf("Packets = %d, want 1", r.Stats.Packets)
	}
}

func TestHandlePacketOriginChangeSetsNeedOrigin(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)

	msgA := packet.Message{0x00, 0x40, 0x10, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0x00, 0x00}
	if err := r.HandlePacket(encode(t, msgA)); err != nil {
		t.Fatalf("HandlePacket(A): %v", err)
	}
	if !r.GC().Input.Buttons.NeedOrigin {
		t.Fatalf("NeedOrigin not set after the power-on default origin differs from the first reported origin")
	}
	r.GC().Input.Buttons.NeedOrigin = false

	// Same transmitter (top nibble of byte 2, which feeds ControllerID, is
	// unchanged); only the low nibble changes, which feeds OriginStickX.
	msgB := packet.Message{0x00, 0x40, 0x1F, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0x00, 0x00}
	if err := r.HandlePacket(encode(t, msgB)); err != nil {
		t.Fatalf("HandlePacket(B): %v", err)
	}
	if !r.GC().Input.Buttons.NeedOrigin {
		t.Fatalf("NeedOrigin not set after origin changed")
	}
}

func TestNeedOriginSurvivesSubsequentInputStatePackets(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)

	origin := packet.Message{0x00, 0x40, 0x10, 0x34, 0x56, 0x78, 0x9A, 0xBC, 0xDE, 0x00, 0x00}
	if err := r.HandlePacket(encode(t, origin)); err != nil {
		t.Fatalf("HandlePacket(origin): %v", err)
	}
	if !r.GC().Input.Buttons.NeedOrigin {
		t.Fatalf("NeedOrigin not set after origin update")
	}

	// Input-state packets arrive far more often than a game's Short Poll;
	// NeedOrigin must survive them until a poll handler clears it.
	input := packet.Message{0x0A, 0xB1, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	for i := 0; i < 3; i++ {
		if err := r.HandlePacket(encode(t, input)); err != nil {
			t.Fatalf("HandlePacket(input %d): %v", i, err)
		}
		if !r.GC().Input.Buttons.NeedOrigin {
			t.Fatalf("NeedOrigin cleared by an input-state packet (iteration %d)", i)
		}
	}
}

func TestWirelessIDPinningRejectsOtherTransmitter(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)

	m1 := packet.Message{0x00, 0xAB, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, m1)); err != nil {
		t.Fatalf("HandlePacket(m1): %v", err)
	}
	if r.GC().WirelessID() != 0x2B1 {
		t.Fatalf("WirelessID = %#x, want 0x2B1", r.GC().WirelessID())
	}

	// Until a game issues "fix device", the receiver freely re-pins to
	// whichever transmitter it last heard; only after fixing does a
	// mismatched wireless ID get rejected outright.
	handler := r.engine.Handler(gc.CmdFixDevice)
	handler([]byte{gc.CmdFixDevice, 0x90, 0xB1}, func([]byte) {})
	if !r.GC().WirelessIDFixed() {
		t.Fatalf("WirelessIDFixed = false after fix-device command")
	}

	before := r.GC().Input

	other := packet.Message{0x00, 0x01, 0x28, 0x0D, 0xFF, 0xFF, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, other)); err != nil {
		t.Fatalf("HandlePacket(other): %v", err)
	}
	if r.GC().Input != before {
		t.Fatalf("Input updated from a non-pinned transmitter: got %+v, want unchanged %+v", r.GC().Input, before)
	}
}

func TestWiredEmulationPinning(t *testing.T) {
	r := newReceiver(ControllerGCWired, nil)

	m1 := packet.Message{0x0A, 0xB1, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, m1)); err != nil {
		t.Fatalf("HandlePacket(m1): %v", err)
	}
	if !r.GC().Input.Buttons.Start {
		t.Fatalf("first transmitter's packet not applied")
	}

	before := r.GC().Input
	other := packet.Message{0x00, 0x01, 0x28, 0x00, 0xFF, 0xFF, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, other)); err != nil {
		t.Fatalf("HandlePacket(other): %v", err)
	}
	if r.GC().Input != before {
		t.Fatalf("Input updated from a different transmitter while pinned: got %+v, want unchanged %+v", r.GC().Input, before)
	}
}

func TestStaleInputInvalidatedAfterWindow(t *testing.T) {
	now := time.Unix(0, 0)
	r := newReceiver(ControllerGCWaveBird, func() time.Time { return now })

	m := packet.Message{0x0A, 0xB1, 0x18, 0x0D, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if err := r.HandlePacket(encode(t, m)); err != nil {
		t.Fatalf("HandlePacket: %v", err)
	}
	if !r.GC().InputValid {
		t.Fatalf("InputValid = false immediately after packet")
	}

	now = now.Add(InputValidWindow + time.Millisecond)
	r.enableSICommandHandling = false // skip engine.Process(), no PHY wired in this test
	r.Tick()

	if r.GC().InputValid {
		t.Fatalf("InputValid = true after stale window elapsed")
	}
}

func TestQualifyPacketMatchesPairButtons(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)
	r.Settings.PairButtons = message.ButtonX | message.ButtonY

	withXY := packet.Message{0x0A, 0xB1, 0x16, 0x00, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if !r.QualifyPacket(encode(t, withXY)) {
		t.Fatalf("QualifyPacket = false, want true (X+Y set)")
	}

	withoutXY := packet.Message{0x0A, 0xB1, 0x10, 0x00, 0xA5, 0x68, 0xA8, 0x31, 0xA1, 0x30, 0x00}
	if r.QualifyPacket(encode(t, withoutXY)) {
		t.Fatalf("QualifyPacket = true, want false (X+Y not set)")
	}
}

func TestPairingFinishedSuccessCommitsChannelAndReinitializes(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)
	r.PairingStarted()
	if r.EnableSICommandHandling() {
		t.Fatalf("SI command handling still enabled during pairing")
	}

	r.PairingFinished(pairing.FinishSuccess, 7)

	if r.Settings.Channel != 7 {
		t.Fatalf("Channel = %d, want 7", r.Settings.Channel)
	}
	if !r.EnableSICommandHandling() {
		t.Fatalf("SI command handling not re-enabled after successful pairing")
	}
	if r.GC() == nil {
		t.Fatalf("GC device not reinitialized after pairing")
	}
}

func TestPairingFinishedTimeoutReenablesSICommandHandling(t *testing.T) {
	r := newReceiver(ControllerGCWaveBird, nil)
	r.PairingStarted()

	r.PairingFinished(pairing.FinishTimeout, r.Settings.Channel)

	if !r.EnableSICommandHandling() {
		t.Fatalf("SI command handling not re-enabled after timed-out pairing")
	}
	if r.Settings.Channel != 0 {
		t.Fatalf("Channel = %d, want unchanged (0)", r.Settings.Channel)
	}
}

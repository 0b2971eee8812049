// Package n64 implements SI command handling for an N64 controller, plus
// the WaveBird-to-N64 input remapping used when a receiver presents a
// WaveBird transmitter as an N64 pad.
package n64

import (
	"github.com/loopj/wavephoenix/internal/message"
	"github.com/loopj/wavephoenix/internal/si"
)

// Commands handled by an N64 controller, beyond si.CmdInfo/si.CmdReset.
const CmdPoll = 0x01

// Controller is an N64 controller's SI-visible state: a fixed 3-byte info
// block (wired, no accessory) and the current 4-byte input state.
type Controller struct {
	Info  [3]byte
	Input [4]byte
}

// Buttons is the N64 pad's 16 button bits, two bytes on the wire:
// byte 0 = A,B,Z,Start,DUp,DDown,DLeft,DRight;
// byte 1 = reserved,reserved,L,R,CUp,CDown,CLeft,CRight.
type Buttons struct {
	A, B, Z, Start               bool
	DUp, DDown, DLeft, DRight    bool
	L, R                         bool
	CUp, CDown, CLeft, CRight    bool
}

// Init resets a Controller to its power-on state (all zeros) and registers
// its SI command handlers on engine.
func Init(engine *si.Engine, c *Controller) {
	c.Info = [3]byte{0x05, 0x00, 0x02}
	c.Input = [4]byte{}

	engine.Register(si.CmdInfo, 1, c.handleInfo)
	engine.Register(si.CmdReset, 1, c.handleReset)
	engine.Register(CmdPoll, 1, c.handlePoll)
}

func (c *Controller) handleInfo(command []byte, reply func([]byte)) {
	reply(c.Info[:])
}

func (c *Controller) handleReset(command []byte, reply func([]byte)) {
	reply(c.Info[:])
}

func (c *Controller) handlePoll(command []byte, reply func([]byte)) {
	reply(c.Input[:])
}

func (b Buttons) bytes() [2]byte {
	var b0, b1 byte
	if b.A {
		b0 |= 1 << 7
	}
	if b.B {
		b0 |= 1 << 6
	}
	if b.Z {
		b0 |= 1 << 5
	}
	if b.Start {
		b0 |= 1 << 4
	}
	if b.DUp {
		b0 |= 1 << 3
	}
	if b.DDown {
		b0 |= 1 << 2
	}
	if b.DLeft {
		b0 |= 1 << 1
	}
	if b.DRight {
		b0 |= 1 << 0
	}
	if b.L {
		b1 |= 1 << 5
	}
	if b.R {
		b1 |= 1 << 4
	}
	if b.CUp {
		b1 |= 1 << 3
	}
	if b.CDown {
		b1 |= 1 << 2
	}
	if b.CLeft {
		b1 |= 1 << 1
	}
	if b.CRight {
		b1 |= 1 << 0
	}
	return [2]byte{b0, b1}
}

// Substick deflection thresholds that drive the synthetic C-buttons, and
// the stick rescale factor applied after re-centering on the origin.
const (
	substickLowThreshold  = 64
	substickHighThreshold = 192
	stickScaleNumerator   = 4
	stickScaleDenominator = 5 // 0.8
)

// MapFromWaveBird translates a decoded WaveBird input-state message and a
// remembered stick origin into an N64 input state. The main stick is
// re-centered against originX/originY and scaled by 0.8; the WaveBird
// C-stick's deflection past the substick thresholds is converted into the
// four synthetic N64 C-buttons (N64 controllers have no analog C-stick).
func MapFromWaveBird(m [11]byte, originX, originY uint8) [4]byte {
	wb := message.GetButtons(m)

	buttons := Buttons{
		A:      wb&message.ButtonA != 0,
		B:      wb&message.ButtonB != 0,
		Z:      wb&message.ButtonZ != 0,
		Start:  wb&message.ButtonStart != 0,
		DUp:    wb&message.ButtonUp != 0,
		DDown:  wb&message.ButtonDown != 0,
		DLeft:  wb&message.ButtonLeft != 0,
		DRight: wb&message.ButtonRight != 0,
		L:      wb&message.ButtonL != 0,
		R:      wb&message.ButtonR != 0,
	}

	substickX := message.SubstickX(m)
	substickY := message.SubstickY(m)
	buttons.CLeft = substickX < substickLowThreshold
	buttons.CRight = substickX > substickHighThreshold
	buttons.CDown = substickY < substickLowThreshold
	buttons.CUp = substickY > substickHighThreshold

	stickX := rescale(message.StickX(m), originX)
	stickY := rescale(message.StickY(m), originY)

	bb := buttons.bytes()
	return [4]byte{bb[0], bb[1], stickX, stickY}
}

// rescale re-centers a raw stick axis value around origin and scales the
// deflection by 0.8, matching the original implementation's implicit
// truncation to a signed 8-bit result via two's-complement cast.
func rescale(value, origin uint8) byte {
	deflection := int16(value) - int16(origin)
	scaled := deflection * stickScaleNumerator / stickScaleDenominator
	return byte(int8(scaled))
}

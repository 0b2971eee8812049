// Package gc implements SI command handling for a GameCube controller,
// including the WaveBird receiver's wireless-only "fix device" command.
package gc

import "github.com/loopj/wavephoenix/internal/si"

// Info flag bits (byte 0).
const (
	FlagGCStandard       = 0x01
	FlagWirelessState    = 0x02
	FlagTypeGC           = 0x08
	FlagGCNoMotor        = 0x20
	FlagWirelessReceived = 0x40
	FlagGCWireless       = 0x80
)

// Info flag bits (byte 1).
const (
	FlagWirelessFixID = 0x10
	FlagWirelessOrigin = 0x20
)

// Info flag bits (byte 2, wired devices only).
const (
	FlagHasError       = 0x80
	FlagHasLatchedError = 0x40
	FlagNeedOrigin     = 0x20
	motorStateMask     = 0x18
	analogModeMask     = 0x07
)

// Analog modes, selecting how the short-poll response packs analog fields.
const (
	AnalogMode0 = iota
	AnalogMode1
	AnalogMode2
	AnalogMode3
	AnalogMode4
)

// Motor (rumble) states.
const (
	MotorStop = iota
	MotorRumble
	MotorStopHard
)

// Commands handled by a GameCube controller, beyond si.CmdInfo/si.CmdReset.
const (
	CmdShortPoll  = 0x40
	CmdReadOrigin = 0x41
	CmdCalibrate  = 0x42
	CmdLongPoll   = 0x43
	CmdFixDevice  = 0x4E
)

// Response lengths.
const (
	lenInfo      = 3
	lenShortPoll = 8
	lenFullState = 10
)

// Buttons is the 16-bit wire layout of a GameCube input state's button
// byte pair: Error, ErrorLatch, NeedOrigin, Start, Y, X, B, A, UseOrigin,
// L, R, Z, Up, Down, Right, Left.
type Buttons struct {
	A, B, X, Y, Start          bool
	NeedOrigin, ErrorLatch, Error bool
	Left, Right, Down, Up      bool
	Z, R, L                    bool
	UseOrigin                  bool
}

func (b Buttons) bytes() [2]byte {
	var b0, b1 byte
	if b.A {
		b0 |= 1 << 0
	}
	if b.B {
		b0 |= 1 << 1
	}
	if b.X {
		b0 |= 1 << 2
	}
	if b.Y {
		b0 |= 1 << 3
	}
	if b.Start {
		b0 |= 1 << 4
	}
	if b.NeedOrigin {
		b0 |= 1 << 5
	}
	if b.ErrorLatch {
		b0 |= 1 << 6
	}
	if b.Error {
		b0 |= 1 << 7
	}
	if b.Left {
		b1 |= 1 << 0
	}
	if b.Right {
		b1 |= 1 << 1
	}
	if b.Down {
		b1 |= 1 << 2
	}
	if b.Up {
		b1 |= 1 << 3
	}
	if b.Z {
		b1 |= 1 << 4
	}
	if b.R {
		b1 |= 1 << 5
	}
	if b.L {
		b1 |= 1 << 6
	}
	if b.UseOrigin {
		b1 |= 1 << 7
	}
	return [2]byte{b0, b1}
}

// InputState is the 10-byte GameCube wire format: buttons, sticks,
// substick, triggers, and the two analog buttons present only on
// pre-production hardware.
type InputState struct {
	Buttons                          Buttons
	StickX, StickY                   uint8
	SubstickX, SubstickY             uint8
	TriggerLeft, TriggerRight         uint8
	AnalogA, AnalogB                 uint8
}

func (s InputState) bytes() [lenFullState]byte {
	bb := s.Buttons.bytes()
	return [lenFullState]byte{
		bb[0], bb[1],
		s.StickX, s.StickY,
		s.SubstickX, s.SubstickY,
		s.TriggerLeft, s.TriggerRight,
		s.AnalogA, s.AnalogB,
	}
}

// packShort packs a full input state into the 8-byte "short poll"
// response, depending on analog mode. All production games except Luigi's
// Mansion use AnalogMode3, which is just the first 8 bytes of the full
// state; the other modes trade precision on one analog pair to make room
// for another.
func packShort(s InputState, analogMode uint8) [lenShortPoll]byte {
	full := s.bytes()
	var out [lenShortPoll]byte
	copy(out[0:4], full[0:4])

	switch analogMode {
	case AnalogMode1:
		out[4] = s.SubstickX&0xF0 | s.SubstickY>>4
		out[5] = s.TriggerLeft
		out[6] = s.TriggerRight
		out[7] = s.AnalogA&0xF0 | s.AnalogB>>4
	case AnalogMode2:
		out[4] = s.SubstickX&0xF0 | s.SubstickY>>4
		out[5] = s.TriggerLeft&0xF0 | s.TriggerRight>>4
		out[6] = s.AnalogA
		out[7] = s.AnalogB
	case AnalogMode3:
		out[4] = s.SubstickX
		out[5] = s.SubstickY
		out[6] = s.TriggerLeft
		out[7] = s.TriggerRight
	case AnalogMode4:
		out[4] = s.SubstickX
		out[5] = s.SubstickY
		out[6] = s.AnalogA
		out[7] = s.AnalogB
	default: // AnalogMode0
		out[4] = s.SubstickX
		out[5] = s.SubstickY
		out[6] = s.TriggerLeft&0xF0 | s.TriggerRight>>4
		out[7] = s.AnalogA&0xF0 | s.AnalogB>>4
	}

	return out
}

// Controller is a GameCube controller's full SI-visible state: the 3-byte
// info block, the origin and current input states, and whether the
// current input is fresh enough to serve.
type Controller struct {
	Info       [3]byte
	Origin     InputState
	Input      InputState
	InputValid bool
}

// Init resets a Controller to its power-on state and registers its SI
// command handlers on engine. typeFlags is the info byte 0 device-type
// mask (FlagTypeGC, FlagGCWireless, FlagGCNoMotor, ...).
func Init(engine *si.Engine, c *Controller, typeFlags byte) {
	c.Info = [3]byte{typeFlags, 0x00, 0x00}

	c.Origin = InputState{StickX: 0x80, StickY: 0x80, SubstickX: 0x80, SubstickY: 0x80}
	c.Input = c.Origin
	c.InputValid = true

	if typeFlags&FlagGCWireless == 0 {
		c.Info[2] = FlagNeedOrigin
	}

	engine.Register(si.CmdInfo, 1, c.handleInfo)
	engine.Register(CmdShortPoll, 3, c.handleShortPoll)
	engine.Register(CmdReadOrigin, 1, c.handleReadOrigin)
	engine.Register(CmdCalibrate, 3, c.handleCalibrate)
	engine.Register(CmdLongPoll, 3, c.handleLongPoll)
	engine.Register(si.CmdReset, 1, c.handleReset)

	if typeFlags&FlagGCWireless != 0 {
		engine.Register(CmdFixDevice, 3, c.handleFixDevice)
	}
}

func (c *Controller) handleInfo(command []byte, reply func([]byte)) {
	reply(c.Info[:])
}

func (c *Controller) handleReset(command []byte, reply func([]byte)) {
	reply(c.Info[:])
}

func (c *Controller) handleShortPoll(command []byte, reply func([]byte)) {
	analogMode := command[1] & analogModeMask
	motorState := command[2] & 0x03

	if c.Info[0]&FlagGCWireless == 0 {
		c.Input.Buttons.NeedOrigin = c.Info[2]&FlagNeedOrigin != 0
		c.Input.Buttons.UseOrigin = true

		c.Info[2] &^= motorStateMask | analogModeMask
		c.Info[2] |= motorState<<3 | analogMode
	}

	state := c.Origin
	if c.InputValid {
		state = c.Input
	}

	if analogMode == AnalogMode3 {
		full := state.bytes()
		reply(full[:lenShortPoll])
		return
	}

	short := packShort(state, analogMode)
	reply(short[:])
}

func (c *Controller) handleReadOrigin(command []byte, reply func([]byte)) {
	if c.Info[0]&FlagGCWireless == 0 {
		c.Info[2] &^= FlagNeedOrigin
	}
	c.Input.Buttons.NeedOrigin = false

	full := c.Origin.bytes()
	reply(full[:])
}

func (c *Controller) handleCalibrate(command []byte, reply func([]byte)) {
	c.Origin.StickX = c.Input.StickX
	c.Origin.StickY = c.Input.StickY
	c.Origin.SubstickX = c.Input.SubstickX
	c.Origin.SubstickY = c.Input.SubstickY
	c.Origin.TriggerLeft = c.Input.TriggerLeft
	c.Origin.TriggerRight = c.Input.TriggerRight

	if c.Info[0]&FlagGCWireless == 0 {
		c.Info[2] &^= FlagNeedOrigin
	}

	full := c.Origin.bytes()
	reply(full[:])
}

func (c *Controller) handleLongPoll(command []byte, reply func([]byte)) {
	analogMode := command[1] & analogModeMask
	motorState := command[2] & 0x03

	c.Input.Buttons.NeedOrigin = c.Info[2]&FlagNeedOrigin != 0
	c.Input.Buttons.UseOrigin = true

	if c.Info[0]&FlagGCWireless == 0 {
		c.Info[2] &^= motorStateMask | analogModeMask
		c.Info[2] |= motorState<<3 | analogMode
	}

	full := c.Input.bytes()
	reply(full[:])
}

func (c *Controller) handleFixDevice(command []byte, reply func([]byte)) {
	wirelessID := uint16(command[1]&0xC0)<<2 | uint16(command[2])

	c.Info[1] = c.Info[1]&^0xC0 | byte(wirelessID>>2&0xC0)
	c.Info[2] = byte(wirelessID)

	c.Info[0] |= FlagWirelessState
	c.Info[1] |= FlagWirelessFixID

	reply(c.Info[:])
}

// SetWirelessID sets the controller's 10-bit wireless ID, unless the ID
// has already been fixed by a "fix device" command, in which case this is
// a no-op.
func (c *Controller) SetWirelessID(id uint16) {
	if c.WirelessIDFixed() {
		return
	}

	c.Info[1] = c.Info[1]&^0xC0 | byte(id>>2&0xC0)
	c.Info[2] = byte(id)

	c.Info[0] |= FlagGCStandard | FlagWirelessReceived
	c.Info[1] |= FlagWirelessOrigin
}

// WirelessID returns the controller's current 10-bit wireless ID.
func (c *Controller) WirelessID() uint16 {
	return uint16(c.Info[1]&0xC0)<<2 | uint16(c.Info[2])
}

// WirelessIDFixed reports whether the wireless ID has been bound via a
// "fix device" command and can no longer be changed by SetWirelessID.
func (c *Controller) WirelessIDFixed() bool {
	return c.Info[1]&FlagWirelessFixID != 0
}

// SetInputValid marks whether Input reflects a recent packet.
func (c *Controller) SetInputValid(valid bool) {
	c.InputValid = valid
}

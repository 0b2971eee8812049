// Package message implements field accessors for the 84-bit WaveBird
// message produced by internal/packet. Messages come in two layouts, input
// state and origin, selected by a header bit; the analog fields in the
// origin layout are nibble-shifted relative to the input-state layout.
package message

import "github.com/loopj/wavephoenix/internal/packet"

// Type identifies which of the two WaveBird message layouts a message uses.
type Type uint8

const (
	// TypeInputState describes a controller's current buttons, sticks, and
	// triggers. Broadcast ~250 times per second.
	TypeInputState Type = 0

	// TypeOrigin describes a controller's analog rest position. Broadcast
	// once at power-on and then roughly once per second.
	TypeOrigin Type = 1
)

// Buttons is the 12-bit WaveBird button field, one bit per button.
type Buttons uint16

const (
	ButtonLeft  Buttons = 1 << 0
	ButtonRight Buttons = 1 << 1
	ButtonDown  Buttons = 1 << 2
	ButtonUp    Buttons = 1 << 3
	ButtonZ     Buttons = 1 << 4
	ButtonR     Buttons = 1 << 5
	ButtonL     Buttons = 1 << 6
	ButtonA     Buttons = 1 << 7
	ButtonB     Buttons = 1 << 8
	ButtonX     Buttons = 1 << 9
	ButtonY     Buttons = 1 << 10
	ButtonStart Buttons = 1 << 11
)

// ControllerID returns the 10-bit transmitter ID from a message header.
// Shared by both layouts.
func ControllerID(m packet.Message) uint16 {
	return (uint16(m[0]&0x0F)<<12 | uint16(m[1])<<4 | uint16(m[2])>>4) & 0x3FF
}

// GetType returns whether a message is an input-state or origin message.
func GetType(m packet.Message) Type {
	if m[1]&0x40 != 0 {
		return TypeOrigin
	}
	return TypeInputState
}

// GetButtons returns the button field of an input-state message. The result is
// undefined if m is an origin message.
func GetButtons(m packet.Message) Buttons {
	return Buttons(m[2]&0x0F)<<8 | Buttons(m[3])
}

// StickX returns the main stick X position of an input-state message.
func StickX(m packet.Message) uint8 { return m[4] }

// StickY returns the main stick Y position of an input-state message.
func StickY(m packet.Message) uint8 { return m[5] }

// SubstickX returns the C-stick X position of an input-state message.
func SubstickX(m packet.Message) uint8 { return m[6] }

// SubstickY returns the C-stick Y position of an input-state message.
func SubstickY(m packet.Message) uint8 { return m[7] }

// TriggerLeft returns the left analog trigger position of an input-state
// message.
func TriggerLeft(m packet.Message) uint8 { return m[8] }

// TriggerRight returns the right analog trigger position of an
// input-state message.
func TriggerRight(m packet.Message) uint8 { return m[9] }

// OriginStickX returns the main stick X origin from an origin message. The
// origin layout is nibble-shifted relative to the input-state layout: each
// analog value spans the low nibble of byte i and the high nibble of byte
// i+1.
func OriginStickX(m packet.Message) uint8 {
	return m[2]&0x0F<<4 | m[3]>>4
}

// OriginStickY returns the main stick Y origin from an origin message.
func OriginStickY(m packet.Message) uint8 {
	return m[3]&0x0F<<4 | m[4]>>4
}

// OriginSubstickX returns the C-stick X origin from an origin message.
func OriginSubstickX(m packet.Message) uint8 {
	return m[4]&0x0F<<4 | m[5]>>4
}

// OriginSubstickY returns the C-stick Y origin from an origin message.
func OriginSubstickY(m packet.Message) uint8 {
	return m[5]&0x0F<<4 | m[6]>>4
}

// OriginTriggerLeft returns the left trigger origin from an origin message.
func OriginTriggerLeft(m packet.Message) uint8 {
	return m[6]&0x0F<<4 | m[7]>>4
}

// OriginTriggerRight returns the right trigger origin from an origin
// message.
func OriginTriggerRight(m packet.Message) uint8 {
	return m[7]&0x0F<<4 | m[8]>>4
}

// Package settings loads and saves the receiver's persistent configuration:
// channel, wireless-ID pinning, pairing button combination, and controller
// type. It stands in for the external collaborator spec.md's §6 settings
// format assumes, the way original_source/firmware/receiver/src/settings.c
// reads/writes a signature-guarded block of USERDATA flash.
package settings

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/loopj/wavephoenix/internal/message"
	"github.com/loopj/wavephoenix/internal/receiver"
)

// Signature identifies a valid settings file, mirroring SETTINGS_SIGNATURE.
const Signature uint32 = 0x57500000

// fileSize is the signature word plus the packed settings word.
const fileSize = 8

// Default mirrors the reference firmware's DEFAULT_SETTINGS: channel 0,
// wireless-ID pinning enabled, pairing on X+Y, an OEM WaveBird receiver.
var Default = receiver.DefaultSettings

// Load reads settings from path. If the file is absent or its signature
// doesn't match, Default is returned and written to path, exactly as
// settings_init falls back to DEFAULT_SETTINGS on a signature mismatch.
func Load(path string) (receiver.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default, Save(path, Default)
		}
		return receiver.Settings{}, err
	}

	if len(data) != fileSize {
		return Default, Save(path, Default)
	}

	sig := binary.LittleEndian.Uint32(data[0:4])
	if sig != Signature {
		return Default, Save(path, Default)
	}

	word := binary.LittleEndian.Uint32(data[4:8])
	return unpack(word), nil
}

// Save writes s to path, signature-prefixed, matching settings_save's
// signature-then-payload layout.
func Save(path string, s receiver.Settings) error {
	var data [fileSize]byte
	binary.LittleEndian.PutUint32(data[0:4], Signature)
	binary.LittleEndian.PutUint32(data[4:8], pack(s))
	return os.WriteFile(path, data[:], 0o644)
}

// pack encodes s into the 32-bit word described in spec.md §6:
// chan:4, pin_id:1, pair_btns:12, cont_type:3, reserved:12.
func pack(s receiver.Settings) uint32 {
	var word uint32
	word |= uint32(s.Channel) & 0x0F
	if s.PinID {
		word |= 1 << 4
	}
	word |= (uint32(s.PairButtons) & 0x0FFF) << 5
	word |= (uint32(s.ControllerType) & 0x07) << 17
	return word
}

func unpack(word uint32) receiver.Settings {
	return receiver.Settings{
		Channel:        uint8(word & 0x0F),
		PinID:          word&(1<<4) != 0,
		PairButtons:    message.Buttons(word>>5) & 0x0FFF,
		ControllerType: receiver.ControllerType((word >> 17) & 0x07),
	}
}

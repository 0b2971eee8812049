// Package siphy implements the SI bus PHY boundary the command engine
// drives (internal/si.PHY), plus a serial-port-backed implementation for
// bench testing over a USB-SI adapter and a software loopback double for
// unit tests.
//
// Real SI timing (bit-banging pulses at up to 250 kHz) needs a timer/DMA
// peripheral and is out of scope here; Serial exists for bench rigs that
// expose a framed byte-oriented adapter over a UART, in the same shape
// seedhammer's mjolnir driver opens a serial port to a hardware engraver.
package siphy

import (
	"errors"
	"runtime"

	"github.com/tarm/serial"

	"github.com/loopj/wavephoenix/internal/si"
)

// Open opens a serial-adapter-backed SI PHY. If dev is empty, common
// platform-default device paths are tried in order, mirroring the
// fallback list seedhammer's mjolnir driver uses for its engraver.
func Open(dev string) (*Serial, error) {
	const baudRate = 115200

	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyACM0", "/dev/ttyUSB0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("siphy: no device specified")
	}

	var firstErr error
	for _, d := range devices {
		port, err := serial.OpenPort(&serial.Config{Name: d, Baud: baudRate})
		if err == nil {
			return &Serial{port: port}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Serial is an si.PHY backed by a framed serial adapter: the adapter is
// expected to clock SI pulses on/off the wire itself and exchange whole
// command/response frames over the serial link.
type Serial struct {
	port   *serial.Port
	lenFn  func(command byte) uint8
}

// SetLengthFunc installs the callback Serial uses to determine how many
// additional bytes to read after the opcode, mirroring si.Engine's own
// table so the adapter framing and the engine's dispatch table never
// disagree about a command's length.
func (s *Serial) SetLengthFunc(fn func(command byte) uint8) {
	s.lenFn = fn
}

func (s *Serial) WriteBytes(data []byte, done si.Callback) {
	_, err := s.port.Write(data)
	done(err)
}

func (s *Serial) ReadCommand(buf []byte, done si.Callback) {
	if _, err := s.port.Read(buf[:1]); err != nil {
		done(err)
		return
	}

	length := uint8(1)
	if s.lenFn != nil {
		length = s.lenFn(buf[0])
	}
	if length == 0 {
		done(si.ErrUnknownCommand)
		return
	}
	if length > 1 {
		if _, err := s.port.Read(buf[1:length]); err != nil {
			done(err)
			return
		}
	}
	done(nil)
}

func (s *Serial) AwaitBusIdle() {
	// The adapter is expected to enforce bus-idle timing itself before
	// accepting the next frame; nothing to do on this side of the link.
}

// Loopback is a software si.PHY test double: ReadCommand is satisfied from
// a queue of canned commands and WriteBytes records responses, letting the
// SI engine and device handlers be exercised without SI hardware.
type Loopback struct {
	Commands  [][]byte
	Responses [][]byte
	IdleCalls int
}

func (l *Loopback) WriteBytes(data []byte, done si.Callback) {
	l.Responses = append(l.Responses, append([]byte(nil), data...))
	done(nil)
}

func (l *Loopback) ReadCommand(buf []byte, done si.Callback) {
	if len(l.Commands) == 0 {
		done(si.ErrTransferTimeout)
		return
	}
	cmd := l.Commands[0]
	l.Commands = l.Commands[1:]
	copy(buf, cmd)
	done(nil)
}

func (l *Loopback) AwaitBusIdle() {
	l.IdleCalls++
}

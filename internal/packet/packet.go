// Package packet implements the WaveBird over-the-air packet codec: a
// 19-byte packet carrying four interleaved BCH(31,21) codewords, a 16-bit
// CRC over a transposed bit layout, and a 12-bit footer.
package packet

import (
	"fmt"

	"github.com/loopj/wavephoenix/internal/bch"
)

const (
	// Bytes is the length of an encoded over-the-air packet.
	Bytes = 19

	// MessageBytes is the length of the decoded 84-bit message, right-aligned
	// in an 11-byte buffer.
	MessageBytes = 11

	dataBits     = 124
	dataStart    = 28
	codewordCnt  = 4
	crcFinalXOR  = 0xCE98
	crcBitOffset = 12 // least significant CRC bit, in setBit/getBit numbering
	footerBits   = 12 // the footer occupies bits 0..11, below the CRC
)

// ErrDecodeFailed is returned when a codeword's bit errors can't be
// corrected by the BCH(31,21) code.
var ErrDecodeFailed = fmt.Errorf("packet: codeword decode failed")

// ErrCRCMismatch is returned when the decoded message's CRC doesn't match
// the packet's CRC field.
var ErrCRCMismatch = fmt.Errorf("packet: crc mismatch")

// CRCFunc computes a CRC-CCITT (poly 0x1021, init 0x0000, no reflection, no
// output XOR) over data. The default is a software byte-wise loop; callers
// on hardware with a CRC peripheral may substitute their own implementation.
type CRCFunc func(data []byte) uint16

// Packet is a raw 19-byte over-the-air WaveBird packet.
type Packet [Bytes]byte

// Message is a decoded 84-bit WaveBird message, right-aligned in an
// 11-byte big-endian buffer.
type Message [MessageBytes]byte

// setBit sets bit n of a big-endian byte array, where bit 0 is the least
// significant bit of the last byte and bit indices increase toward the
// first byte.
func setBit(data []byte, bit int, value bool) {
	byteIndex := len(data) - 1 - bit/8
	mask := byte(1) << uint(bit%8)
	if value {
		data[byteIndex] |= mask
	} else {
		data[byteIndex] &^= mask
	}
}

// getBit reads bit n of a big-endian byte array using the same convention
// as setBit.
func getBit(data []byte, bit int) bool {
	byteIndex := len(data) - 1 - bit/8
	mask := byte(1) << uint(bit%8)
	return data[byteIndex]&mask != 0
}

// crcCCITT is the default software CRC-CCITT implementation.
func crcCCITT(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// DefaultCRCFunc is the default software CRC-CCITT implementation, exported
// so callers composing their own pipeline can fall back to it.
var DefaultCRCFunc CRCFunc = crcCCITT

// GetCRC returns the 16-bit CRC field from a packet.
func (p *Packet) GetCRC() uint16 {
	var crc uint16
	for i := 0; i < 16; i++ {
		if getBit(p[:], crcBitOffset+i) {
			crc |= 1 << uint(i)
		}
	}
	return crc
}

// SetCRC writes the 16-bit CRC field into a packet.
func (p *Packet) SetCRC(crc uint16) {
	for i := 0; i < 16; i++ {
		setBit(p[:], crcBitOffset+i, crc&(1<<uint(i)) != 0)
	}
}

// GetFooter returns the 12-bit footer field from a packet. Its value is
// transmitter-specific and must be ignored by decoders.
func (p *Packet) GetFooter() uint16 {
	var footer uint16
	for i := 0; i < footerBits; i++ {
		if getBit(p[:], i) {
			footer |= 1 << uint(i)
		}
	}
	return footer
}

// SetFooter writes the 12-bit footer field into a packet.
func (p *Packet) SetFooter(footer uint16) {
	for i := 0; i < footerBits; i++ {
		setBit(p[:], i, footer&(1<<uint(i)) != 0)
	}
}

// Deinterleave splits the 124-bit interleaved payload region of a packet
// into four 31-bit codewords. Bit i of the payload is packet bit
// i+dataStart in getBit's numbering (bit 0 is the least significant bit of
// the last byte), and lands in codeword i%4 at bit position i/4.
func Deinterleave(p *Packet) [codewordCnt]uint32 {
	var codewords [codewordCnt]uint32
	for i := 0; i < dataBits; i++ {
		bit := getBit(p[:], i+dataStart)
		if bit {
			codewords[i%codewordCnt] |= 1 << uint(i/codewordCnt)
		}
	}
	return codewords
}

// Interleave packs four 31-bit codewords into the 124-bit interleaved
// payload region of a packet. It is the inverse of Deinterleave.
func Interleave(p *Packet, codewords [codewordCnt]uint32) {
	for i := 0; i < dataBits; i++ {
		bit := (codewords[i%codewordCnt]>>uint(i/codewordCnt))&1 != 0
		setBit(p[:], i+dataStart, bit)
	}
}

// Decode deinterleaves and error-corrects a packet's four codewords,
// assembles the 84-bit message, and verifies its CRC. The first 4 header
// bits (unused, reserved) are explicitly zeroed in the returned message.
func Decode(p *Packet, crcFn CRCFunc) (Message, error) {
	if crcFn == nil {
		crcFn = DefaultCRCFunc
	}

	codewords := Deinterleave(p)

	var message Message
	var crcState [MessageBytes]byte

	for i := 0; i < codewordCnt; i++ {
		decoded, _, err := bch.DecodeAndCorrect(codewords[i])
		if err != nil {
			return Message{}, ErrDecodeFailed
		}

		for j := 0; j < bch.MessageLen; j++ {
			bit := decoded&1 != 0
			setBit(message[:], i*bch.MessageLen+j, bit)
			setBit(crcState[:], j*codewordCnt+i, bit)
			decoded >>= 1
		}
	}

	expectedCRC := p.GetCRC()
	actualCRC := crcFn(crcState[:]) ^ crcFinalXOR
	if expectedCRC != actualCRC {
		return Message{}, ErrCRCMismatch
	}

	message[0] &^= 0x0F

	return message, nil
}

// Encode builds and error-codes a packet from an 84-bit message. The first
// 4 header bits (reserved) are encoded as zero.
func Encode(message Message, crcFn CRCFunc) Packet {
	if crcFn == nil {
		crcFn = DefaultCRCFunc
	}

	message[0] &^= 0x0F

	var codewords [codewordCnt]uint32
	var crcState [MessageBytes]byte

	for i := 0; i < codewordCnt; i++ {
		var raw uint32
		for j := 0; j < bch.MessageLen; j++ {
			bit := getBit(message[:], i*bch.MessageLen+j)
			if bit {
				raw |= 1 << uint(j)
			}
			setBit(crcState[:], j*codewordCnt+i, bit)
		}
		codewords[i] = bch.Encode(raw)
	}

	var p Packet
	Interleave(&p, codewords)

	crc := crcFn(crcState[:]) ^ crcFinalXOR
	p.SetCRC(crc)
	p.SetFooter(0x000)

	return p
}

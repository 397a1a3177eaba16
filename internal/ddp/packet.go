// Package ddp implements the Distributed Display Protocol (v1) datagram format
// used to stream raw RGB data to LED controllers over UDP.
//
// Header layout (10 bytes, big-endian):
//
//	0     flags      0x40 = version 1, 0x01 = push (render once received)
//	1     sequence   1..15, 0 disables sequencing on the receiver
//	2     data type  0x0B = RGB, 8 bits per channel
//	3     dest id    output identifier, 1 by default
//	4..7  offset     byte offset of this payload within the frame
//	8..9  length     payload length in bytes
package ddp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	HeaderLen = 10

	FlagVersion1 byte = 0x40
	FlagPush     byte = 0x01

	TypeRGB8 byte = 0x0B

	DefaultPort        = 4048
	DefaultDestination = 1

	// 480 RGB pixels, the per-packet size used by the reference senders.
	DefaultMaxPayload = 480 * 3
	MaxLength         = 0xFFFF
)

var ErrShortPacket = errors.New("ddp: packet shorter than header")

// Packet is one DDP datagram. It is built fresh for every frame and not
// modified once serialized.
type Packet struct {
	Flags       byte
	Sequence    byte
	Type        byte
	Destination byte
	Offset      uint32
	Data        []byte
}

func (p Packet) Push() bool { return p.Flags&FlagPush != 0 }

func (p Packet) Len() int { return HeaderLen + len(p.Data) }

// Bytes serializes the header followed by the payload.
func (p Packet) Bytes() []byte {
	b := make([]byte, HeaderLen+len(p.Data))
	b[0] = p.Flags
	b[1] = p.Sequence
	b[2] = p.Type
	b[3] = p.Destination
	binary.BigEndian.PutUint32(b[4:8], p.Offset)
	binary.BigEndian.PutUint16(b[8:10], uint16(len(p.Data)))
	copy(b[HeaderLen:], p.Data)
	return b
}

// Parse decodes a datagram produced by Bytes.
func Parse(b []byte) (Packet, error) {
	if len(b) < HeaderLen {
		return Packet{}, ErrShortPacket
	}
	n := int(binary.BigEndian.Uint16(b[8:10]))
	if len(b) < HeaderLen+n {
		return Packet{}, fmt.Errorf("ddp: length field %d exceeds datagram payload %d", n, len(b)-HeaderLen)
	}
	data := make([]byte, n)
	copy(data, b[HeaderLen:HeaderLen+n])
	return Packet{
		Flags:       b[0],
		Sequence:    b[1],
		Type:        b[2],
		Destination: b[3],
		Offset:      binary.BigEndian.Uint32(b[4:8]),
		Data:        data,
	}, nil
}

// Package wire implements the 8-byte packet codec used by every eftp
// connection, independent of the link it rides on.
package wire

import (
	"encoding/binary"
	"fmt"
)

// PacketType selects how a frame's payload and offset field are interpreted.
type PacketType uint8

const (
	Data    PacketType = 0
	DataEnd PacketType = 1
	Ack     PacketType = 2
)

func (t PacketType) String() string {
	switch t {
	case Data:
		return "DATA"
	case DataEnd:
		return "DATA_END"
	case Ack:
		return "ACK"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// HeaderLen is the fixed size, in bytes, of every eftp packet header.
const HeaderLen = 8

// Header is the fixed fields common to every packet on the wire.
type Header struct {
	Type        PacketType
	Length      uint8
	TotalLength uint16
	ID          uint16
	Offset      uint16
}

// Packet is a decoded header paired with its payload (empty for Ack).
type Packet struct {
	Header  Header
	Payload []byte
}

// ParseError reports a malformed frame; callers should drop the frame and
// continue, never terminate the dispatcher on it.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wire: parse error: %s", e.Reason)
}

// Encode lays out the header little-endian followed by the payload. For Ack
// packets the payload is ignored; the encoded frame is always exactly
// HeaderLen bytes. TotalLength is computed from len(payload), not trusted
// from the caller, except for Ack where it's fixed at HeaderLen.
func Encode(p Packet) []byte {
	if p.Header.Type == Ack {
		buf := make([]byte, HeaderLen)
		putHeader(buf, Header{
			Type:        Ack,
			Length:      HeaderLen,
			TotalLength: HeaderLen,
			ID:          p.Header.ID,
			Offset:      p.Header.Offset,
		})
		return buf
	}

	total := HeaderLen + len(p.Payload)
	buf := make([]byte, total)
	putHeader(buf, Header{
		Type:        p.Header.Type,
		Length:      HeaderLen,
		TotalLength: uint16(total),
		ID:          p.Header.ID,
		Offset:      p.Header.Offset,
	})
	copy(buf[HeaderLen:], p.Payload)
	return buf
}

func putHeader(buf []byte, h Header) {
	buf[0] = uint8(h.Type)
	buf[1] = h.Length
	binary.LittleEndian.PutUint16(buf[2:4], h.TotalLength)
	binary.LittleEndian.PutUint16(buf[4:6], h.ID)
	binary.LittleEndian.PutUint16(buf[6:8], h.Offset)
}

func getHeader(buf []byte) Header {
	return Header{
		Type:        PacketType(buf[0]),
		Length:      buf[1],
		TotalLength: binary.LittleEndian.Uint16(buf[2:4]),
		ID:          binary.LittleEndian.Uint16(buf[4:6]),
		Offset:      binary.LittleEndian.Uint16(buf[6:8]),
	}
}

// Decode parses a raw link-layer frame into a Packet. Ack frames are
// truncated to exactly HeaderLen bytes before validation (a real NIC may
// pad a short frame up to the medium's minimum size). Data and DataEnd
// frames have trailing NUL padding bytes stripped before the total-length
// check, since Ethernet pads short frames with zeros.
func Decode(raw []byte) (Packet, error) {
	if len(raw) < HeaderLen {
		return Packet{}, &ParseError{Reason: fmt.Sprintf("frame too short: %d bytes", len(raw))}
	}

	h := getHeader(raw)
	if h.Length != HeaderLen {
		return Packet{}, &ParseError{Reason: fmt.Sprintf("bad header length field: %d", h.Length)}
	}

	switch h.Type {
	case Ack:
		buf := raw
		if len(buf) > HeaderLen {
			buf = buf[:HeaderLen]
		}
		if len(buf) != HeaderLen || int(h.TotalLength) != HeaderLen {
			return Packet{}, &ParseError{Reason: "ack frame length mismatch"}
		}
		return Packet{Header: h}, nil

	case Data, DataEnd:
		trimmed := rstripNull(raw)
		if len(trimmed) < HeaderLen {
			trimmed = raw[:HeaderLen]
		}
		if int(h.TotalLength) != len(trimmed) {
			return Packet{}, &ParseError{Reason: fmt.Sprintf("total_length mismatch: header=%d got=%d", h.TotalLength, len(trimmed))}
		}
		return Packet{Header: h, Payload: trimmed[HeaderLen:]}, nil

	default:
		return Packet{}, &ParseError{Reason: fmt.Sprintf("unknown packet type: %d", h.Type)}
	}
}

func rstripNull(buf []byte) []byte {
	end := len(buf)
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	return buf[:end]
}

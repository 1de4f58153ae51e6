package protocol

import "encoding/binary"

// Header is the parsed result of a validated inbound datagram.
type Header struct {
	SourceID uint32
	Type     MessageType
}

// ParseHeader validates the full 20-byte header of buf against magicChar
// ('C' for inbound client requests) and returns the source id and message
// type. Any validation failure returns a sentinel error from this package;
// callers are expected to drop the datagram silently and debug-log the
// reason (spec: ProtocolValidationError is never surfaced to the network).
func ParseHeader(magicChar byte, buf []byte) (Header, error) {
	if len(buf) < FullHeaderSize {
		return Header{}, ErrTooShort
	}

	want := [4]byte{'D', 'S', 'U', magicChar}
	if buf[0] != want[0] || buf[1] != want[1] || buf[2] != want[2] || buf[3] != want[3] {
		return Header{}, ErrBadMagic
	}

	version := binary.LittleEndian.Uint16(buf[4:6])
	if version != ProtocolVersion {
		return Header{}, ErrBadVersion
	}

	// payload_length is the size of the body that follows the full 20-byte
	// header (message type + common header), not the 16-byte common header
	// alone — confirmed by the worked examples in spec §8 (an empty-body
	// VERSION request carries payload_length 0; its 2-byte-body VERSION
	// reply carries payload_length 2).
	payloadLen := binary.LittleEndian.Uint16(buf[6:8])
	if int(payloadLen) != len(buf)-FullHeaderSize {
		return Header{}, ErrBadLength
	}

	wantCRC := binary.LittleEndian.Uint32(buf[8:12])
	if checksum(buf) != wantCRC {
		return Header{}, ErrBadCRC
	}

	sourceID := binary.LittleEndian.Uint32(buf[12:16])
	msgType := MessageType(binary.LittleEndian.Uint32(buf[16:20]))

	return Header{SourceID: sourceID, Type: msgType}, nil
}

// WriteHeader allocates a buffer of totalLen bytes (>= FullHeaderSize),
// writes the outbound header (magic "DSUS", version, payload length,
// source id, message type) with the CRC field left zero, and returns it
// for the caller to fill the body into buf[FullHeaderSize:] before calling
// patchCRC via FinalizeCRC.
func WriteHeader(sourceID uint32, msgType MessageType, totalLen int) []byte {
	buf := make([]byte, totalLen)
	copy(buf[0:4], outboundMagic[:])
	binary.LittleEndian.PutUint16(buf[4:6], ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(totalLen-FullHeaderSize))
	// buf[8:12] CRC left zero until FinalizeCRC.
	binary.LittleEndian.PutUint32(buf[12:16], sourceID)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(msgType))
	return buf
}

// FinalizeCRC computes and patches the CRC32 field of an outbound buffer
// built by WriteHeader once its body has been filled in.
func FinalizeCRC(buf []byte) {
	patchCRC(buf)
}

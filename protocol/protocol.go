// Package protocol implements the Cemuhook DSU wire codec: header framing,
// CRC32 integrity, and the VERSION/PORTS/DATA message bodies.
//
// All integers are little-endian except the MAC address, which travels as
// six big-endian bytes in both directions.
package protocol

import "errors"

// ProtocolVersion is the DSU protocol version carried in every header and
// echoed back in VERSION replies.
const ProtocolVersion uint16 = 1001

// SlotsPerServer is the maximum number of device slots a single server
// exposes. Slot ids are 0..SlotsPerServer-1.
const SlotsPerServer = 4

// HeaderSize is the length of the common 16-byte header (magic, version,
// length, crc32, source id).
const HeaderSize = 16

// FullHeaderSize adds the 4-byte message-type discriminator that follows
// the common header on the wire.
const FullHeaderSize = HeaderSize + 4

// MessageType identifies the DSU request/reply kind.
type MessageType uint32

const (
	MessageVersion MessageType = 0x100000
	MessagePorts   MessageType = 0x100001
	MessageData    MessageType = 0x100002
)

// MaxPortsRequest is the clamp applied to a PORTS request's slot count
// (spec: "count is clamped to 5").
const MaxPortsRequest = 5

var (
	// ErrTooShort is returned when a datagram is shorter than a full header.
	ErrTooShort = errors.New("protocol: datagram shorter than header")
	// ErrBadMagic is returned when the 4-byte magic does not match.
	ErrBadMagic = errors.New("protocol: bad magic")
	// ErrBadVersion is returned when the protocol version field is wrong.
	ErrBadVersion = errors.New("protocol: unsupported version")
	// ErrBadLength is returned when payload_length disagrees with the buffer.
	ErrBadLength = errors.New("protocol: payload length mismatch")
	// ErrBadCRC is returned when the CRC32 check fails.
	ErrBadCRC = errors.New("protocol: crc32 mismatch")
)

// inboundMagic is the 4-byte magic clients use ("DSUC").
var inboundMagic = [4]byte{'D', 'S', 'U', 'C'}

// outboundMagic is the 4-byte magic the server uses ("DSUS").
var outboundMagic = [4]byte{'D', 'S', 'U', 'S'}

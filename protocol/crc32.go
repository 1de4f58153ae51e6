package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// crc32Checksum is the CRC32 (IEEE 802.3 polynomial) used by the DSU wire
// format. hash/crc32 is the standard library's implementation of exactly
// this polynomial; no example in the corpus brings in a third-party CRC32
// package (see DESIGN.md).
func crc32Checksum(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}

// crcOffset is the offset of the 4-byte CRC32 field within the common header.
const crcOffset = 8

// checksum computes the CRC32 (IEEE) of buf with the CRC field zeroed,
// matching the domain both inbound validation and outbound framing use.
func checksum(buf []byte) uint32 {
	if len(buf) < crcOffset+4 {
		return crc32Checksum(buf)
	}
	saved := [4]byte{buf[crcOffset], buf[crcOffset+1], buf[crcOffset+2], buf[crcOffset+3]}
	buf[crcOffset] = 0
	buf[crcOffset+1] = 0
	buf[crcOffset+2] = 0
	buf[crcOffset+3] = 0
	sum := crc32Checksum(buf)
	buf[crcOffset] = saved[0]
	buf[crcOffset+1] = saved[1]
	buf[crcOffset+2] = saved[2]
	buf[crcOffset+3] = saved[3]
	return sum
}

// patchCRC recomputes the checksum over buf (with the field zeroed) and
// writes it back into the CRC field.
func patchCRC(buf []byte) {
	binary.LittleEndian.PutUint32(buf[crcOffset:crcOffset+4], checksum(buf))
}

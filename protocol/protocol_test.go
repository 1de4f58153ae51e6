package protocol_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dsu-go/protocol"
)

func buildValidVersionRequest(sourceID uint32) []byte {
	buf := make([]byte, protocol.FullHeaderSize)
	copy(buf[0:4], []byte("DSUC"))
	binary.LittleEndian.PutUint16(buf[4:6], protocol.ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[6:8], 0)
	binary.LittleEndian.PutUint32(buf[12:16], sourceID)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(protocol.MessageVersion))
	protocol.FinalizeCRC(buf)
	return buf
}

func TestParseHeader_ValidVersionRequest(t *testing.T) {
	buf := buildValidVersionRequest(42)
	hdr, err := protocol.ParseHeader('C', buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), hdr.SourceID)
	assert.Equal(t, protocol.MessageVersion, hdr.Type)
}

func TestParseHeader_TooShort(t *testing.T) {
	_, err := protocol.ParseHeader('C', make([]byte, 10))
	assert.ErrorIs(t, err, protocol.ErrTooShort)
}

func TestParseHeader_BadMagic(t *testing.T) {
	buf := buildValidVersionRequest(1)
	buf[0] = 'X'
	_, err := protocol.ParseHeader('C', buf)
	assert.ErrorIs(t, err, protocol.ErrBadMagic)
}

func TestParseHeader_BadVersion(t *testing.T) {
	buf := buildValidVersionRequest(1)
	binary.LittleEndian.PutUint16(buf[4:6], 9999)
	_, err := protocol.ParseHeader('C', buf)
	assert.ErrorIs(t, err, protocol.ErrBadVersion)
}

func TestParseHeader_BadLength(t *testing.T) {
	buf := buildValidVersionRequest(1)
	binary.LittleEndian.PutUint16(buf[6:8], 5)
	_, err := protocol.ParseHeader('C', buf)
	assert.ErrorIs(t, err, protocol.ErrBadLength)
}

// P3: mutating any single byte of an otherwise-valid datagram, including
// the CRC domain, causes the parser to drop it.
func TestParseHeader_SingleByteMutation_AlwaysDropped(t *testing.T) {
	base := buildValidVersionRequest(7)
	for i := range base {
		mutated := append([]byte(nil), base...)
		mutated[i] ^= 0xFF
		_, err := protocol.ParseHeader('C', mutated)
		assert.Error(t, err, "byte %d mutation should be rejected", i)
	}
}

func TestEncodeVersionReply(t *testing.T) {
	buf := protocol.EncodeVersionReply(99)
	require.Len(t, buf, 22)
	assert.Equal(t, "DSUS", string(buf[0:4]))
	assert.Equal(t, protocol.ProtocolVersion, binary.LittleEndian.Uint16(buf[4:6]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(buf[6:8]))
	assert.Equal(t, uint32(99), binary.LittleEndian.Uint32(buf[12:16]))
	assert.Equal(t, protocol.ProtocolVersion, binary.LittleEndian.Uint16(buf[20:22]))

	hdr, err := protocol.ParseHeader('S', buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(99), hdr.SourceID)
}

func TestEncodePortsReply_EmptySlot(t *testing.T) {
	buf := protocol.EncodePortsReply(1, protocol.EmptySlotDescriptor(1))
	require.Len(t, buf, 32)
	assert.Equal(t, uint8(1), buf[protocol.FullHeaderSize])
	for _, b := range buf[protocol.FullHeaderSize+1 : protocol.FullHeaderSize+protocol.SlotDescriptorSize] {
		assert.Equal(t, uint8(0), b)
	}
}

func TestEncodePortsReply_OccupiedSlot(t *testing.T) {
	desc := protocol.SlotDescriptor{
		SlotID:         0,
		State:          protocol.SlotConnected,
		DeviceType:     2,
		ConnectionType: 1,
		MAC:            [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF},
		Battery:        0x05,
	}
	buf := protocol.EncodePortsReply(1, desc)
	body := buf[protocol.FullHeaderSize:]
	assert.Equal(t, uint8(0), body[0])
	assert.Equal(t, uint8(protocol.SlotConnected), body[1])
	assert.Equal(t, uint8(2), body[2])
	assert.Equal(t, uint8(1), body[3])
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, body[4:10])
	assert.Equal(t, uint8(0x05), body[10])
}

func TestWriteSlotDescriptor_PanicsOnInvalidSlot(t *testing.T) {
	assert.Panics(t, func() {
		protocol.WriteSlotDescriptor(make([]byte, protocol.SlotDescriptorSize), protocol.SlotDescriptor{SlotID: 4})
	})
}

func TestDecodePortsRequest_ClampsCount(t *testing.T) {
	body := make([]byte, 4+6)
	binary.LittleEndian.PutUint32(body[0:4], 10)
	for i := range body[4:] {
		body[4+i] = uint8(i)
	}
	req := protocol.DecodePortsRequest(body)
	assert.Len(t, req.Slots, protocol.MaxPortsRequest)
}

func TestDecodeDataRequest_AllMode(t *testing.T) {
	body := make([]byte, protocol.DataRequestBodySize)
	req, ok := protocol.DecodeDataRequest(body)
	require.True(t, ok)
	assert.True(t, req.All())
}

func TestBuildDataFrame_PacketNumberOffsetAndCRC(t *testing.T) {
	desc := protocol.SlotDescriptor{SlotID: 0, State: protocol.SlotConnected}
	frame := protocol.BuildDataFrame(5, desc, true, protocol.Inputs{LX: 127, LY: 127, RX: 127, RY: 127})
	require.Len(t, frame, protocol.DataFrameSize)

	protocol.PatchPacketNumber(frame, 3)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(frame[32:36]))

	hdr, err := protocol.ParseHeader('S', frame)
	require.NoError(t, err)
	assert.Equal(t, protocol.MessageData, hdr.Type)
}

// P4 groundwork: packet numbers handed out by PatchPacketNumber monotonically
// increase when the caller supplies successive counter values.
func TestPatchPacketNumber_Monotonic(t *testing.T) {
	desc := protocol.SlotDescriptor{SlotID: 0, State: protocol.SlotConnected}
	for n := uint32(0); n < 5; n++ {
		frame := protocol.BuildDataFrame(1, desc, true, protocol.Inputs{})
		protocol.PatchPacketNumber(frame, n)
		assert.Equal(t, n, binary.LittleEndian.Uint32(frame[32:36]))
		_, err := protocol.ParseHeader('S', frame)
		assert.NoError(t, err)
	}
}

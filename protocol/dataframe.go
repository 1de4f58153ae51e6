package protocol

import (
	"encoding/binary"
	"math"
)

// DataFrameSize is the fixed size of a DATA frame (20-byte header + 80-byte
// body).
const DataFrameSize = 100

// packetNumberOffset is the absolute offset of the per-client packet number
// within a DATA frame: FullHeaderSize(20) + SlotDescriptorSize(11) +
// connected-flag(1) = 32. Verified once at init time per spec §7's
// "assert this at build time" instruction; a mismatch is a precondition
// violation and therefore fatal.
const packetNumberOffset = FullHeaderSize + SlotDescriptorSize + 1

func init() {
	if packetNumberOffset != 32 {
		panic("protocol: packet number offset invariant violated")
	}
}

// AnalogButtons holds the twelve analog button pressures in the wire's
// authoritative order: dpad left, down, right, up; Y, B, A, X; R1, L1, R2, L2.
type AnalogButtons struct {
	DPadLeft, DPadDown, DPadRight, DPadUp uint8
	Y, B, A, X                            uint8
	R1, L1, R2, L2                        uint8
}

// TouchPoint is one of the two touch slots carried in a DATA frame.
type TouchPoint struct {
	Present bool
	ID      uint8
	X, Y    uint16
}

// Inputs is everything the emitter derives fresh from a device for a single
// DATA frame, already orientation-remapped and gated by device type.
type Inputs struct {
	Buttons uint16
	Home    bool
	Touch   bool

	LX, LY, RX, RY uint8 // neutral = 127

	Analog AnalogButtons

	Touches [2]TouchPoint

	MotionTimestampUs      uint64
	AccelX, AccelY, AccelZ float32
	GyroX, GyroY, GyroZ    float32
}

// BuildDataFrame assembles a 100-byte DATA frame for descriptor d and the
// given inputs, with the packet-number field left at zero. The caller
// (the emitter) patches the packet number and CRC per recipient via
// PatchPacketNumber.
func BuildDataFrame(sourceID uint32, d SlotDescriptor, connected bool, in Inputs) []byte {
	buf := WriteHeader(sourceID, MessageData, DataFrameSize)
	WriteSlotDescriptor(buf[FullHeaderSize:], d)

	o := FullHeaderSize + SlotDescriptorSize
	if connected {
		buf[o] = 1
	} else {
		buf[o] = 0
	}
	o++

	// o == packetNumberOffset here; packet number (4 bytes) filled by
	// PatchPacketNumber before each send.
	o += 4

	binary.LittleEndian.PutUint16(buf[o:o+2], in.Buttons)
	o += 2
	buf[o] = boolByte(in.Home)
	o++
	buf[o] = boolByte(in.Touch)
	o++

	buf[o] = in.LX
	buf[o+1] = in.LY
	buf[o+2] = in.RX
	buf[o+3] = in.RY
	o += 4

	analog := [12]uint8{
		in.Analog.DPadLeft, in.Analog.DPadDown, in.Analog.DPadRight, in.Analog.DPadUp,
		in.Analog.Y, in.Analog.B, in.Analog.A, in.Analog.X,
		in.Analog.R1, in.Analog.L1, in.Analog.R2, in.Analog.L2,
	}
	for _, v := range analog {
		buf[o] = v
		o++
	}

	for _, t := range in.Touches {
		buf[o] = boolByte(t.Present)
		buf[o+1] = t.ID
		binary.LittleEndian.PutUint16(buf[o+2:o+4], t.X)
		binary.LittleEndian.PutUint16(buf[o+4:o+6], t.Y)
		o += 6
	}

	binary.LittleEndian.PutUint64(buf[o:o+8], in.MotionTimestampUs)
	o += 8

	binary.LittleEndian.PutUint32(buf[o:o+4], math.Float32bits(in.AccelX))
	binary.LittleEndian.PutUint32(buf[o+4:o+8], math.Float32bits(in.AccelY))
	binary.LittleEndian.PutUint32(buf[o+8:o+12], math.Float32bits(in.AccelZ))
	o += 12

	binary.LittleEndian.PutUint32(buf[o:o+4], math.Float32bits(in.GyroX))
	binary.LittleEndian.PutUint32(buf[o+4:o+8], math.Float32bits(in.GyroY))
	binary.LittleEndian.PutUint32(buf[o+8:o+12], math.Float32bits(in.GyroZ))
	o += 12

	if o != DataFrameSize {
		panic("protocol: data frame layout drifted")
	}

	return buf
}

// PatchPacketNumber writes n at the fixed per-client packet-number offset
// and recomputes the CRC32 over the whole frame. buf must be a frame
// produced by BuildDataFrame (or a copy of one).
func PatchPacketNumber(buf []byte, n uint32) {
	binary.LittleEndian.PutUint32(buf[packetNumberOffset:packetNumberOffset+4], n)
	FinalizeCRC(buf)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

package server

import (
	"log/slog"
	"net"

	"github.com/Alia5/dsu-go/device"
	"github.com/Alia5/dsu-go/protocol"
)

// Sender abstracts the outbound datagram write so the emitter can be tested
// without a real socket.
type Sender interface {
	SendTo(addr *net.UDPAddr, buf []byte) error
}

// Emitter fans a single device update out to every subscribed client (spec
// §4.4). It owns no state of its own beyond its collaborators.
type Emitter struct {
	sourceID uint32
	table    *Table
	sender   Sender
	logger   *slog.Logger
}

// NewEmitter builds an Emitter. sourceID is the server's own id, stamped
// into every outbound frame.
func NewEmitter(sourceID uint32, table *Table, sender Sender, logger *slog.Logger) *Emitter {
	return &Emitter{sourceID: sourceID, table: table, sender: sender, logger: logger}
}

// Emit builds the DATA frame for dev (occupying slotIndex) once, then sends
// a copy with a patched packet number and CRC to every subscriber. A slot
// index outside the valid range is a precondition violation (spec §7):
// index-of returning >= SlotsPerServer is fatal.
func (e *Emitter) Emit(id DeviceID, slotIndex int, dev device.Device) {
	if slotIndex < 0 || slotIndex >= protocol.SlotsPerServer {
		panic("server: emitter slot index out of range")
	}

	subscribers := e.table.Subscribers(id)
	if len(subscribers) == 0 {
		return
	}

	desc := protocol.SlotDescriptor{
		SlotID:         uint8(slotIndex),
		State:          protocol.SlotConnected,
		DeviceType:     dev.GetDeviceType().WireByte(),
		ConnectionType: dev.GetConnectionType().WireByte(),
		Battery:        dev.GetBattery().WireByte(),
	}
	mac := dev.GetMAC()
	if mac == 0 {
		e.logger.Debug("device has no unique MAC", "device", id.String())
	}
	macToBytes(mac, desc.MAC[:])

	base := dev.GetBaseInputs()

	abdata := device.AnalogButtonsData{
		DPadLeft:  analogSeed(base.Buttons, device.ButtonLeft),
		DPadDown:  analogSeed(base.Buttons, device.ButtonDown),
		DPadRight: analogSeed(base.Buttons, device.ButtonRight),
		DPadUp:    analogSeed(base.Buttons, device.ButtonUp),
		Y:         analogSeed(base.Buttons, device.ButtonY),
		B:         analogSeed(base.Buttons, device.ButtonB),
		A:         analogSeed(base.Buttons, device.ButtonA),
		X:         analogSeed(base.Buttons, device.ButtonX),
		R1:        analogSeed(base.Buttons, device.ButtonR1),
		L1:        analogSeed(base.Buttons, device.ButtonL1),
		R2:        analogSeed(base.Buttons, device.ButtonR2),
		L2:        analogSeed(base.Buttons, device.ButtonL2),
	}
	dev.GetAnalogInputs(&abdata)

	in := protocol.Inputs{
		Buttons: base.Buttons,
		Home:    base.Home,
		Touch:   base.TouchClick,
		LX:      base.LeftX,
		RX:      base.RightX,
		LY:      base.LeftY,
		RY:      base.RightY,
		Analog: protocol.AnalogButtons{
			DPadLeft: abdata.DPadLeft, DPadDown: abdata.DPadDown, DPadRight: abdata.DPadRight, DPadUp: abdata.DPadUp,
			Y: abdata.Y, B: abdata.B, A: abdata.A, X: abdata.X,
			R1: abdata.R1, L1: abdata.L1, R2: abdata.R2, L2: abdata.L2,
		},
	}

	for i := range in.Touches {
		if t, ok := dev.GetTouch(uint8(i)); ok {
			in.Touches[i] = protocol.TouchPoint{Present: true, ID: t.ID, X: t.X, Y: t.Y}
		}
	}

	deviceType := dev.GetDeviceType()
	if deviceType != device.NoMotion {
		in.MotionTimestampUs = dev.GetMotionTimestamp()
		accel := dev.GetAccelerometer()
		ax, ay, az := remapAccel(dev.Orientation(), accel.X, accel.Y, accel.Z)
		in.AccelX, in.AccelY, in.AccelZ = ax, ay, az
	}
	if deviceType == device.GyroFull {
		gyro := dev.GetGyro()
		gx, gy, gz := remapGyro(dev.Orientation(), gyro.X, gyro.Y, gyro.Z)
		in.GyroX, in.GyroY, in.GyroZ = gx, gy, gz
	}

	frame := protocol.BuildDataFrame(e.sourceID, desc, true, in)

	for _, rec := range subscribers {
		n := e.table.NextPacketNumber(rec.ClientID)
		buf := append([]byte(nil), frame...)
		protocol.PatchPacketNumber(buf, n)
		if err := e.sender.SendTo(rec.Addr, buf); err != nil {
			e.logger.Warn("failed to send data frame", "client", rec.ClientID, "addr", rec.Addr, "error", err)
		}
	}
}

func analogSeed(buttons uint16, bit uint16) uint8 {
	if buttons&bit != 0 {
		return 255
	}
	return 0
}

func macToBytes(mac uint64, out []byte) {
	for i := 0; i < 6; i++ {
		out[5-i] = byte(mac >> (8 * i))
	}
}

// remapAccel applies the orientation axis remap table from spec §4.4.
func remapAccel(o device.Orientation, x, y, z float32) (float32, float32, float32) {
	switch o {
	case device.OrientationSidewaysLeft:
		return z, y, -x
	case device.OrientationSidewaysRight:
		return -z, y, x
	case device.OrientationInverted:
		return -x, y, -z
	default:
		return x, y, z
	}
}

// remapGyro applies the orientation axis remap table from spec §4.4.
func remapGyro(o device.Orientation, x, y, z float32) (float32, float32, float32) {
	switch o {
	case device.OrientationSidewaysLeft:
		return -z, y, x
	case device.OrientationSidewaysRight:
		return z, y, -x
	case device.OrientationInverted:
		return -x, y, -z
	default:
		return x, y, z
	}
}

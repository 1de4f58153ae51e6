// Package device defines the contract a "physical device" (gamepad, phone
// sensor, ...) must satisfy to be exposed by the DSU server. Concrete device
// adapters live outside this module; this package only names the contract
// the server core consumes (spec §6, "Device interface (consumed)").
package device

// DeviceType classifies the motion capability of a device and gates which
// fields the emitter fills in for a DATA frame.
type DeviceType uint8

const (
	NoMotion          DeviceType = 0
	AccelerometerOnly DeviceType = 1
	GyroFull          DeviceType = 2
)

// WireByte returns the byte the slot descriptor/data frame encodes for this
// device type.
func (t DeviceType) WireByte() uint8 { return uint8(t) }

// ConnectionType classifies the transport a device is attached over.
type ConnectionType uint8

const (
	ConnectionOther     ConnectionType = 0
	ConnectionUSB       ConnectionType = 1
	ConnectionBluetooth ConnectionType = 2
)

// WireByte returns the byte the slot descriptor encodes for this connection type.
func (t ConnectionType) WireByte() uint8 { return uint8(t) }

// BatteryStatus is the coarse battery level reported in a slot descriptor.
type BatteryStatus uint8

const (
	BatteryNA       BatteryStatus = 0x00
	BatteryDying    BatteryStatus = 0x01
	BatteryLow      BatteryStatus = 0x02
	BatteryMedium   BatteryStatus = 0x03
	BatteryHigh     BatteryStatus = 0x04
	BatteryFull     BatteryStatus = 0x05
	BatteryCharging BatteryStatus = 0xEE
	BatteryCharged  BatteryStatus = 0xEF
)

// WireByte returns the byte the slot descriptor encodes for this battery status.
func (b BatteryStatus) WireByte() uint8 { return uint8(b) }

// Orientation selects the accelerometer/gyro axis remap the emitter applies
// before encoding motion data (spec §4.4's orientation table).
type Orientation uint8

const (
	OrientationNormal        Orientation = 0
	OrientationSidewaysLeft  Orientation = 1
	OrientationSidewaysRight Orientation = 2
	OrientationInverted      Orientation = 3
)

// Positional button bits (glossary): low byte SHARE, L3, R3, OPTIONS, UP,
// RIGHT, DOWN, LEFT; high byte L2, R2, L1, R1, X, A, B, Y. BaseData.Buttons
// carries this bitmap directly — it is also the wire bitmap written
// low-byte-first into a DATA frame, with no further transform.
const (
	ButtonShare   uint16 = 1 << 0
	ButtonL3      uint16 = 1 << 1
	ButtonR3      uint16 = 1 << 2
	ButtonOptions uint16 = 1 << 3
	ButtonUp      uint16 = 1 << 4
	ButtonRight   uint16 = 1 << 5
	ButtonDown    uint16 = 1 << 6
	ButtonLeft    uint16 = 1 << 7

	ButtonL2 uint16 = 1 << 8
	ButtonR2 uint16 = 1 << 9
	ButtonL1 uint16 = 1 << 10
	ButtonR1 uint16 = 1 << 11
	ButtonX  uint16 = 1 << 12
	ButtonA  uint16 = 1 << 13
	ButtonB  uint16 = 1 << 14
	ButtonY  uint16 = 1 << 15
)

// BaseData is the button/stick snapshot every device must be able to answer
// with synchronously (spec §6: "required").
type BaseData struct {
	// Buttons is the 16-bit positional button bitmap (see glossary: SHARE,
	// L3, R3, OPTIONS, UP, RIGHT, DOWN, LEFT in the low byte; L2, R2, L1,
	// R1, X, A, B, Y in the high byte). Home and touch-click are reported
	// separately via Home/TouchClick below, not through this bitmap.
	Buttons    uint16
	Home       bool
	TouchClick bool

	LeftX, LeftY   uint8 // neutral = 127
	RightX, RightY uint8 // neutral = 127
}

// AnalogButtonsData holds measured analog pressures for the twelve buttons
// the DSU protocol reports as pressure-sensitive. The emitter pre-fills this
// from BaseData's button bitmap (255 if held, 0 otherwise) before calling
// GetAnalogInputs, so a device only needs to overwrite the subset it
// actually measures.
type AnalogButtonsData struct {
	DPadLeft, DPadDown, DPadRight, DPadUp uint8
	Y, B, A, X                            uint8
	R1, L1, R2, L2                        uint8
}

// TouchData is one active touch point.
type TouchData struct {
	ID   uint8
	X, Y uint16
}

// MotionData is a 3-axis motion sample, in Gs for accelerometer readings and
// degrees/second for gyro readings.
type MotionData struct {
	X, Y, Z float32
}

// Device is the polymorphic source of input snapshots the server core
// consumes. Concrete adapters (real hardware, virtual pads, phone sensors)
// implement this outside the core library (spec §1: "out of scope").
type Device interface {
	// GetDeviceType reports the device's motion capability.
	GetDeviceType() DeviceType

	// GetConnectionType reports the transport. Default OTHER if unknown.
	GetConnectionType() ConnectionType

	// GetMAC returns a 48-bit identifier in the low 48 bits of the result.
	// 0 means "no unique identity".
	GetMAC() uint64

	// GetBattery reports the coarse battery level. Default NA.
	GetBattery() BatteryStatus

	// Orientation returns the axis remap currently in effect.
	Orientation() Orientation
	// SetOrientation changes the axis remap.
	SetOrientation(Orientation)

	// GetBaseInputs returns the current button/stick snapshot.
	GetBaseInputs() BaseData

	// GetAnalogInputs fills in any available measured pressures. abdata
	// arrives pre-seeded by the caller (255 for held positional buttons,
	// 0 otherwise); implementations may leave any subset untouched.
	GetAnalogInputs(abdata *AnalogButtonsData)

	// GetTouch returns the touch point at the given index (0 or 1), or
	// ok=false if no touch is active there. Default: always ok=false.
	GetTouch(touchNum uint8) (TouchData, bool)

	// GetMotionTimestamp returns a microsecond timestamp. Only called when
	// GetDeviceType() != NoMotion.
	GetMotionTimestamp() uint64

	// GetAccelerometer returns the current accelerometer sample in Gs. Only
	// called when the device has an accelerometer (DeviceType != NoMotion).
	GetAccelerometer() MotionData

	// GetGyro returns the current gyro sample in degrees/second. Only
	// called when GetDeviceType() == GyroFull.
	GetGyro() MotionData

	// OnUpdated registers a callback invoked whenever the device has a new
	// snapshot ready to publish. Replaces the signal/slot "updated" event
	// from the reference implementation with an explicit callback, per the
	// design note in spec §9.
	OnUpdated(func())

	// OnDisconnected registers a callback invoked when the device goes
	// away. Replaces the "disconnected" signal.
	OnDisconnected(func())
}

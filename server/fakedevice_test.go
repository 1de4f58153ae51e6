package server_test

import (
	"sync"

	"github.com/Alia5/dsu-go/device"
)

// fakeDevice is a minimal, hand-rolled device.Device used across the
// server package's tests, in the spirit of the teacher's own in-package
// test fakes (no mocking framework, just a plain struct).
type fakeDevice struct {
	mu sync.Mutex

	deviceType     device.DeviceType
	connectionType device.ConnectionType
	mac            uint64
	battery        device.BatteryStatus
	orientation    device.Orientation

	base   device.BaseData
	touch  [2]*device.TouchData
	accel  device.MotionData
	gyro   device.MotionData
	motion uint64

	updated      func()
	disconnected func()
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{deviceType: device.GyroFull}
}

func (f *fakeDevice) GetDeviceType() device.DeviceType         { return f.deviceType }
func (f *fakeDevice) GetConnectionType() device.ConnectionType { return f.connectionType }
func (f *fakeDevice) GetMAC() uint64                            { return f.mac }
func (f *fakeDevice) GetBattery() device.BatteryStatus          { return f.battery }
func (f *fakeDevice) Orientation() device.Orientation           { return f.orientation }
func (f *fakeDevice) SetOrientation(o device.Orientation)       { f.orientation = o }

func (f *fakeDevice) GetBaseInputs() device.BaseData {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.base
}

func (f *fakeDevice) GetAnalogInputs(*device.AnalogButtonsData) {
	// no measured pressures; leave the caller's synthesized values alone.
}

func (f *fakeDevice) GetTouch(n uint8) (device.TouchData, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(n) >= len(f.touch) || f.touch[n] == nil {
		return device.TouchData{}, false
	}
	return *f.touch[n], true
}

func (f *fakeDevice) GetMotionTimestamp() uint64       { return f.motion }
func (f *fakeDevice) GetAccelerometer() device.MotionData { return f.accel }
func (f *fakeDevice) GetGyro() device.MotionData          { return f.gyro }

func (f *fakeDevice) OnUpdated(fn func())      { f.updated = fn }
func (f *fakeDevice) OnDisconnected(fn func()) { f.disconnected = fn }

func (f *fakeDevice) setButtons(b uint16) {
	f.mu.Lock()
	f.base.Buttons = b
	f.mu.Unlock()
}

func (f *fakeDevice) fireUpdated() {
	if f.updated != nil {
		f.updated()
	}
}

func (f *fakeDevice) fireDisconnected() {
	if f.disconnected != nil {
		f.disconnected()
	}
}

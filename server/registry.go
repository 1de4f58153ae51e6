package server

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Alia5/dsu-go/device"
	"github.com/Alia5/dsu-go/protocol"
)

// ErrServerFull is returned by AddDevice when SlotsPerServer devices are
// already registered.
var ErrServerFull = errors.New("server: SERVER_FULL")

// ErrAlreadyServing is returned by AddDevice when the same device handle is
// registered twice.
var ErrAlreadyServing = errors.New("server: ALREADY_SERVING")

// DeviceID is an opaque, stable identity for a registered device. Spec §9
// recommends exactly this: an arena-assigned id in place of a weak
// reference, so subscription indices key on something stable instead of a
// raw pointer. google/uuid (already part of the dependency set reachable
// from the example pack, see DESIGN.md) mints it.
type DeviceID struct {
	uuid uuid.UUID
}

// String renders the id for logging.
func (id DeviceID) String() string { return id.uuid.String() }

type slot struct {
	id  DeviceID
	dev device.Device
}

// Registry owns the ordered device-slot table (spec §3 "devices"): insertion
// order defines slot id, removal shifts higher slots down, capacity is
// SlotsPerServer. It fires onUpdated/onDisconnected on the server's behalf
// when a device's callbacks fire, replacing the GObject signal wiring of
// the reference implementation with plain closures (spec §9).
type Registry struct {
	slots []slot

	onUpdated      func(DeviceID, device.Device)
	onAdded        func(DeviceID, device.Device)
	onDisconnected func(DeviceID, device.Device)
}

// NewRegistry builds a Registry. onUpdated fires (on the event-loop thread,
// per spec §5) whenever a registered device publishes a new snapshot;
// onAdded fires once a device has been assigned a slot (spec §4.6:
// "fires d.added(self)"); onDisconnected fires after a device's own
// disconnected callback has run, but before it is dropped from the slot
// table, mirroring spec §4.6's ordering ("fire d.removed(self), and remove
// d from devices").
func NewRegistry(onUpdated, onAdded, onDisconnected func(DeviceID, device.Device)) *Registry {
	return &Registry{onUpdated: onUpdated, onAdded: onAdded, onDisconnected: onDisconnected}
}

// AddDevice registers d, assigning it the next free slot, subscribing to
// its Updated/Disconnected callbacks, and firing added(self).
func (r *Registry) AddDevice(d device.Device) (DeviceID, error) {
	for _, s := range r.slots {
		if s.dev == d {
			return DeviceID{}, ErrAlreadyServing
		}
	}
	if len(r.slots) >= protocol.SlotsPerServer {
		return DeviceID{}, ErrServerFull
	}

	id := DeviceID{uuid: uuid.New()}
	active := true
	r.slots = append(r.slots, slot{id: id, dev: d})

	d.OnUpdated(func() {
		if active {
			r.onUpdated(id, d)
		}
	})
	d.OnDisconnected(func() {
		if !active {
			return
		}
		active = false
		r.onDisconnected(id, d)
		r.remove(id)
	})

	if r.onAdded != nil {
		r.onAdded(id, d)
	}

	return id, nil
}

// remove drops the slot for id, shifting higher slots down. It is only ever
// called from the device's own disconnected callback (spec §4.6: "device
// removal is driven by the device's disconnected signal").
func (r *Registry) remove(id DeviceID) {
	for i, s := range r.slots {
		if s.id == id {
			r.slots = append(r.slots[:i], r.slots[i+1:]...)
			return
		}
	}
}

// SlotIndex returns the current slot index of id, or -1 if not registered.
func (r *Registry) SlotIndex(id DeviceID) int {
	for i, s := range r.slots {
		if s.id == id {
			return i
		}
	}
	return -1
}

// DeviceAt returns the device occupying slotID, or nil if the slot is
// empty or out of range.
func (r *Registry) DeviceAt(slotID int) (DeviceID, device.Device, bool) {
	if slotID < 0 || slotID >= len(r.slots) {
		return DeviceID{}, nil, false
	}
	s := r.slots[slotID]
	return s.id, s.dev, true
}

// RegisteredDevice is one (id, device) pair returned by All.
type RegisteredDevice struct {
	ID  DeviceID
	Dev device.Device
}

// All returns every currently registered (id, device) pair in slot order.
func (r *Registry) All() []RegisteredDevice {
	out := make([]RegisteredDevice, len(r.slots))
	for i, s := range r.slots {
		out[i] = RegisteredDevice{ID: s.id, Dev: s.dev}
	}
	return out
}

// ActiveDevicesCount reports how many slots are occupied (spec §6: public
// server surface "active_devices_count").
func (r *Registry) ActiveDevicesCount() uint8 {
	return uint8(len(r.slots))
}

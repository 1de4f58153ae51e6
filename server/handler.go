package server

import (
	"log/slog"
	"net"
	"time"

	"github.com/Alia5/dsu-go/device"
	"github.com/Alia5/dsu-go/protocol"
)

// RequestHandler dispatches parsed inbound requests to the VERSION / PORTS /
// DATA branches (spec §4.2).
type RequestHandler struct {
	sourceID uint32
	registry *Registry
	table    *Table
	sender   Sender
	logger   *slog.Logger
	now      func() time.Time
}

// NewRequestHandler builds a RequestHandler.
func NewRequestHandler(sourceID uint32, registry *Registry, table *Table, sender Sender, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{
		sourceID: sourceID,
		registry: registry,
		table:    table,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle dispatches one validated datagram. from is the sender's address
// (used to reply, and to (re)register DATA subscriptions).
func (h *RequestHandler) Handle(hdr protocol.Header, body []byte, from *net.UDPAddr) {
	switch hdr.Type {
	case protocol.MessageVersion:
		h.handleVersion(hdr, from)
	case protocol.MessagePorts:
		h.handlePorts(hdr, body, from)
	case protocol.MessageData:
		h.handleData(hdr, body, from)
	default:
		h.logger.Debug("dropping datagram with unknown message type", "type", hdr.Type)
	}
}

func (h *RequestHandler) handleVersion(_ protocol.Header, from *net.UDPAddr) {
	reply := protocol.EncodeVersionReply(h.sourceID)
	h.send(from, reply)
}

func (h *RequestHandler) handlePorts(_ protocol.Header, body []byte, from *net.UDPAddr) {
	req := protocol.DecodePortsRequest(body)
	for _, slotID := range req.Slots {
		if slotID >= protocol.SlotsPerServer {
			continue
		}
		desc := protocol.EmptySlotDescriptor(slotID)
		if _, dev, ok := h.registry.DeviceAt(int(slotID)); ok {
			desc = h.slotDescriptor(slotID, dev)
		}
		h.send(from, protocol.EncodePortsReply(h.sourceID, desc))
	}
}

func (h *RequestHandler) handleData(hdr protocol.Header, body []byte, from *net.UDPAddr) {
	req, ok := protocol.DecodeDataRequest(body)
	if !ok {
		h.logger.Debug("dropping malformed DATA request")
		return
	}

	clientID := hdr.SourceID
	now := h.now()

	selected := h.selectDevices(req)
	for _, id := range selected {
		h.table.Register(clientID, id, from, now)
	}
}

// selectDevices implements the DATA registration-type union semantics of
// spec §4.2: the fresh-construction variant (spec §9 design note) is the
// one followed here — we never mutate a shared ClientRequest, we build the
// set of matching device ids fresh on every call.
func (h *RequestHandler) selectDevices(req protocol.DataRequest) []DeviceID {
	all := h.registry.All()

	if req.All() {
		out := make([]DeviceID, len(all))
		for i, e := range all {
			out[i] = e.ID
		}
		return out
	}

	seen := make(map[DeviceID]bool)
	var out []DeviceID
	add := func(id DeviceID) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	if req.Flags&protocol.RegBySlot != 0 {
		if int(req.Slot) < len(all) {
			add(all[req.Slot].ID)
		}
	}

	if req.Flags&protocol.RegByMAC != 0 {
		mac := macFromBytes(req.MAC)
		if mac == 0 {
			h.logger.Warn("DATA request matches by MAC 0 (no unique identity)")
		}
		for _, e := range all {
			if e.Dev.GetMAC() == mac {
				add(e.ID)
			}
		}
	}

	return out
}

func (h *RequestHandler) slotDescriptor(slotID uint8, dev device.Device) protocol.SlotDescriptor {
	desc := protocol.SlotDescriptor{
		SlotID:         slotID,
		State:          protocol.SlotConnected,
		DeviceType:     dev.GetDeviceType().WireByte(),
		ConnectionType: dev.GetConnectionType().WireByte(),
		Battery:        dev.GetBattery().WireByte(),
	}
	mac := dev.GetMAC()
	macToBytes(mac, desc.MAC[:])
	return desc
}

func (h *RequestHandler) send(to *net.UDPAddr, buf []byte) {
	if err := h.sender.SendTo(to, buf); err != nil {
		h.logger.Warn("failed to send reply", "addr", to, "error", err)
	}
}

func macFromBytes(mac [6]byte) uint64 {
	var v uint64
	for i := 0; i < 6; i++ {
		v = v<<8 | uint64(mac[i])
	}
	return v
}

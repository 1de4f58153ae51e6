// Package server implements the event-driven core of the Cemuhook DSU
// server: the UDP socket, device registry, subscription table, request
// dispatch, and the update fan-out emitter (spec §2/§5).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"time"

	"github.com/Alia5/dsu-go/device"
	dsulog "github.com/Alia5/dsu-go/internal/log"
	"github.com/Alia5/dsu-go/protocol"
)

// DefaultPort is the well-known DSU server port.
const DefaultPort = 26760

// sweepInterval is how often the subscription table is swept for stale
// entries (spec glossary: "sweep interval").
const sweepInterval = 1 * time.Second

// recvBufferSize is the fixed-size buffer datagrams are read into. Larger
// datagrams are truncated by the kernel, which spec §5 accepts.
const recvBufferSize = 2048

// Attachable is an optional interface a Device may implement to observe its
// own lifecycle on a server (spec §4.6: "fires d.added(self)" / "fires
// d.removed(self)"). Devices that don't care about this can ignore it.
type Attachable interface {
	Added(*Server)
	Removed(*Server)
}

// Server owns the UDP socket, device registry, subscription table, and
// emitter, and drives them from a single goroutine (spec §5: "single
// threaded cooperative event loop"). The registry and subscription table
// are not locked: Run's goroutine handles datagrams, device updates and
// sweeps, while AddDevice, ActiveDevicesCount and a device's disconnect
// callback touch the registry on whichever goroutine calls them.
type Server struct {
	conn     *net.UDPConn
	sourceID uint32
	logger   *slog.Logger
	raw      dsulog.RawLogger

	registry *Registry
	table    *Table
	handler  *RequestHandler
	emitter  *Emitter

	updatedCh chan updatedEvent
}

type updatedEvent struct {
	id  DeviceID
	dev device.Device
}

// New binds a non-blocking IPv4-loopback UDP socket on port and builds a
// Server around it. Per spec §1's non-goals, only IPv4 loopback is
// supported. raw may be nil, in which case raw packet logging is disabled.
func New(port int, logger *slog.Logger, raw dsulog.RawLogger) (*Server, error) {
	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	if raw == nil {
		raw = dsulog.NewRaw(nil)
	}

	s := &Server{
		conn:      conn,
		sourceID:  rand.Uint32(),
		logger:    logger,
		raw:       raw,
		table:     NewTable(),
		updatedCh: make(chan updatedEvent, 64),
	}
	s.registry = NewRegistry(s.onDeviceUpdated, s.onDeviceAdded, s.onDeviceDisconnected)
	s.emitter = NewEmitter(s.sourceID, s.table, s, logger)
	s.handler = NewRequestHandler(s.sourceID, s.registry, s.table, s, logger)

	return s, nil
}

// LocalAddr returns the address the server's socket is bound to.
func (s *Server) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// SendTo implements Sender by writing buf to addr on the server's socket.
// Send failures are the caller's responsibility to log (spec §7: "IOError
// on send — logged as a warning; the fan-out loop continues").
func (s *Server) SendTo(addr *net.UDPAddr, buf []byte) error {
	s.raw.Log(false, addr.String(), buf)
	_, err := s.conn.WriteToUDP(buf, addr)
	return err
}

// AddDevice registers d with the server (spec §6 public surface). It
// updates the registry directly, without locking and without going through
// Run's loop. Of the callbacks it installs, Updated is queued to Run's loop;
// Disconnected removes the device on the goroutine that invokes it.
func (s *Server) AddDevice(d device.Device) (DeviceID, error) {
	return s.registry.AddDevice(d)
}

// ActiveDevicesCount reports how many device slots are currently occupied.
func (s *Server) ActiveDevicesCount() uint8 {
	return s.registry.ActiveDevicesCount()
}

// onDeviceUpdated is the registry's onUpdated hook. It must run on the Run
// loop goroutine, so it hands the event off via updatedCh instead of calling
// the emitter directly — devices may invoke their Updated callback from
// any goroutine of their own choosing in a real deployment even though spec
// §5 asks implementers to raise it from the event-loop thread; routing
// through a channel makes that contract enforced rather than assumed.
func (s *Server) onDeviceUpdated(id DeviceID, dev device.Device) {
	select {
	case s.updatedCh <- updatedEvent{id: id, dev: dev}:
	default:
		s.logger.Warn("dropped device update, event queue full", "device", id.String())
	}
}

func (s *Server) onDeviceAdded(id DeviceID, dev device.Device) {
	s.logger.Info("device added", "device", id.String(), "slot", s.registry.SlotIndex(id))
	if a, ok := dev.(Attachable); ok {
		a.Added(s)
	}
}

func (s *Server) onDeviceDisconnected(id DeviceID, dev device.Device) {
	s.logger.Info("device disconnected", "device", id.String())
	if a, ok := dev.(Attachable); ok {
		a.Removed(s)
	}
}

// Run drives the event loop until ctx is cancelled: draining inbound
// datagrams, emitting on device updates, and sweeping the subscription
// table every second. On return, the socket is closed and every currently
// registered device has had Removed fired on it (spec §5: "Cancellation /
// shutdown").
func (s *Server) Run(ctx context.Context) error {
	type inbound struct {
		data []byte
		from *net.UDPAddr
	}
	inboundCh := make(chan inbound, 64)
	readErrCh := make(chan error, 1)

	go func() {
		buf := make([]byte, recvBufferSize)
		for {
			n, from, err := s.conn.ReadFromUDP(buf)
			if err != nil {
				readErrCh <- err
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case inboundCh <- inbound{data: cp, from: from}:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil

		case err := <-readErrCh:
			if ctx.Err() != nil {
				s.shutdown()
				return nil
			}
			s.logger.Warn("udp read error", "error", err)

		case in := <-inboundCh:
			s.handleDatagram(in.data, in.from)

		case ev := <-s.updatedCh:
			slotIndex := s.registry.SlotIndex(ev.id)
			if slotIndex < 0 {
				continue
			}
			s.emitter.Emit(ev.id, slotIndex, ev.dev)

		case <-ticker.C:
			s.table.Sweep(time.Now())
		}
	}
}

func (s *Server) handleDatagram(data []byte, from *net.UDPAddr) {
	s.raw.Log(true, from.String(), data)
	hdr, err := protocol.ParseHeader('C', data)
	if err != nil {
		s.logger.Debug("dropping invalid datagram", "from", from, "error", err)
		return
	}
	s.handler.Handle(hdr, data[protocol.FullHeaderSize:], from)
}

func (s *Server) shutdown() {
	for _, e := range s.registry.All() {
		if a, ok := e.Dev.(Attachable); ok {
			a.Removed(s)
		}
	}
	_ = s.conn.Close()
}

// Close closes the server's socket. Prefer cancelling the context passed to
// Run, which also fires Removed on every device; Close is for callers that
// never started Run.
func (s *Server) Close() error {
	return s.conn.Close()
}

package server

import (
	"net"
	"time"
)

// RequestTimeout is how long a subscription survives without a renewing
// DATA request (spec glossary: "registration timeout").
const RequestTimeout = 5 * time.Second

// ClientRequest is the unique key of a subscription: a client id paired
// with the stable identity of the device it subscribed to. Two devices may
// legitimately share MAC 0 ("unknown"); the key is the device identity,
// never the MAC (spec §3).
type ClientRequest struct {
	ClientID uint32
	Device   DeviceID
}

// ClientRecord is what a subscription remembers about its client: where to
// send frames, and when it last renewed.
type ClientRecord struct {
	Addr            *net.UDPAddr
	ClientID        uint32
	LastRequestTime time.Time
}

// Table is the subscription state described in spec §3/§4.3: clients keyed
// by (client_id, device), two multi-valued indices for fan-out and sweep,
// and the per-client packet counters. No locking: per spec §5 this is
// touched exclusively from the single event-loop thread.
type Table struct {
	clients         map[ClientRequest]*ClientRecord
	deviceToClients map[DeviceID]map[uint32]*ClientRecord
	clientToDevices map[uint32]map[DeviceID]struct{}
	packetCounters  map[uint32]uint32
}

// NewTable builds an empty subscription table.
func NewTable() *Table {
	return &Table{
		clients:         make(map[ClientRequest]*ClientRecord),
		deviceToClients: make(map[DeviceID]map[uint32]*ClientRecord),
		clientToDevices: make(map[uint32]map[DeviceID]struct{}),
		packetCounters:  make(map[uint32]uint32),
	}
}

// Register creates or refreshes a subscription for (clientID, dev). A
// follow-up registration updates Addr (tolerating a client's source port
// changing across NAT rebinding) and LastRequestTime (spec §9: this is the
// correct, non-buggy variant).
func (t *Table) Register(clientID uint32, dev DeviceID, addr *net.UDPAddr, now time.Time) {
	key := ClientRequest{ClientID: clientID, Device: dev}

	if rec, ok := t.clients[key]; ok {
		rec.Addr = addr
		rec.LastRequestTime = now
		return
	}

	rec := &ClientRecord{Addr: addr, ClientID: clientID, LastRequestTime: now}
	t.clients[key] = rec

	if t.deviceToClients[dev] == nil {
		t.deviceToClients[dev] = make(map[uint32]*ClientRecord)
	}
	t.deviceToClients[dev][clientID] = rec

	if t.clientToDevices[clientID] == nil {
		t.clientToDevices[clientID] = make(map[DeviceID]struct{})
	}
	t.clientToDevices[clientID][dev] = struct{}{}

	if _, ok := t.packetCounters[clientID]; !ok {
		t.packetCounters[clientID] = 0
	}
}

// Sweep purges stale subscriptions and orphaned packet counters (spec
// §4.3/§3 I5). Step 1 (expire subscriptions) runs before step 2 (purge
// counters) so a counter for a client that just expired is reclaimed in
// the same sweep.
func (t *Table) Sweep(now time.Time) {
	for key, rec := range t.clients {
		if now.Sub(rec.LastRequestTime) <= RequestTimeout {
			continue
		}
		delete(t.clients, key)

		if byDevice := t.deviceToClients[key.Device]; byDevice != nil {
			delete(byDevice, key.ClientID)
			if len(byDevice) == 0 {
				delete(t.deviceToClients, key.Device)
			}
		}
		if byClient := t.clientToDevices[key.ClientID]; byClient != nil {
			delete(byClient, key.Device)
			if len(byClient) == 0 {
				delete(t.clientToDevices, key.ClientID)
			}
		}
	}

	for clientID := range t.packetCounters {
		if len(t.clientToDevices[clientID]) == 0 {
			delete(t.packetCounters, clientID)
		}
	}
}

// Subscribers returns the client records currently subscribed to dev, in an
// unspecified order (spec §5: "across clients, ordering is unspecified").
func (t *Table) Subscribers(dev DeviceID) []*ClientRecord {
	byDevice := t.deviceToClients[dev]
	if len(byDevice) == 0 {
		return nil
	}
	out := make([]*ClientRecord, 0, len(byDevice))
	for _, rec := range byDevice {
		out = append(out, rec)
	}
	return out
}

// NextPacketNumber returns the next packet sequence number for clientID and
// advances the counter. The counter wraps silently on overflow, matching
// the reference implementation (spec §9).
func (t *Table) NextPacketNumber(clientID uint32) uint32 {
	n := t.packetCounters[clientID]
	t.packetCounters[clientID] = n + 1
	return n
}

// ClientCount reports how many distinct clients currently hold at least one
// subscription. Exposed for tests and diagnostics.
func (t *Table) ClientCount() int {
	return len(t.clientToDevices)
}

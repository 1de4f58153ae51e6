package server_test

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/dsu-go/device"
	"github.com/Alia5/dsu-go/protocol"
	"github.com/Alia5/dsu-go/server"
)

// buildClientRequest assembles a full DSUC-magic request datagram around
// body, computing and patching the CRC32 the way a real client would.
func buildClientRequest(sourceID uint32, msgType protocol.MessageType, body []byte) []byte {
	buf := make([]byte, protocol.FullHeaderSize+len(body))
	copy(buf[0:4], []byte("DSUC"))
	binary.LittleEndian.PutUint16(buf[4:6], protocol.ProtocolVersion)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(body)))
	binary.LittleEndian.PutUint32(buf[12:16], sourceID)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(msgType))
	copy(buf[protocol.FullHeaderSize:], body)

	crc := crc32.ChecksumIEEE(buf)
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	return buf
}

func startTestServer(t *testing.T) (*server.Server, *net.UDPConn, func()) {
	t.Helper()
	srv, err := server.New(0, discardLogger(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = srv.Run(ctx)
		close(done)
	}()

	client, err := net.DialUDP("udp4", nil, srv.LocalAddr())
	require.NoError(t, err)

	cleanup := func() {
		_ = client.Close()
		cancel()
		<-done
	}
	return srv, client, cleanup
}

func readReply(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 2048)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

// Scenario 1: VERSION query/reply.
func TestServer_VersionQuery(t *testing.T) {
	_, client, cleanup := startTestServer(t)
	defer cleanup()

	req := buildClientRequest(1, protocol.MessageVersion, nil)
	_, err := client.Write(req)
	require.NoError(t, err)

	reply := readReply(t, client)
	require.Len(t, reply, 22)
	assert.Equal(t, "DSUS", string(reply[0:4]))
	assert.Equal(t, protocol.ProtocolVersion, binary.LittleEndian.Uint16(reply[20:22]))
}

// PORTS query for an unregistered slot replies with an empty descriptor.
func TestServer_PortsQuery_UnregisteredSlot(t *testing.T) {
	_, client, cleanup := startTestServer(t)
	defer cleanup()

	body := make([]byte, 4+1)
	binary.LittleEndian.PutUint32(body[0:4], 1)
	body[4] = 0
	req := buildClientRequest(1, protocol.MessagePorts, body)
	_, err := client.Write(req)
	require.NoError(t, err)

	reply := readReply(t, client)
	require.Len(t, reply, 32)
	assert.Equal(t, uint8(protocol.SlotDisconnected), reply[protocol.FullHeaderSize+1])
}

// Scenario 3: DATA ALL registration, then two Updated fires produce
// packet_num 0 and packet_num 1.
func TestServer_DataRegistration_PacketNumbersIncrement(t *testing.T) {
	srv, client, cleanup := startTestServer(t)
	defer cleanup()

	dev := newFakeDevice()
	_, err := srv.AddDevice(dev)
	require.NoError(t, err)

	body := make([]byte, protocol.DataRequestBodySize)
	req := buildClientRequest(77, protocol.MessageData, body)
	_, err = client.Write(req)
	require.NoError(t, err)

	// give the event loop a moment to process the registration before the
	// device fires its first update.
	time.Sleep(50 * time.Millisecond)
	dev.fireUpdated()

	first := readReply(t, client)
	require.Len(t, first, protocol.DataFrameSize)
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(first[32:36]))

	dev.fireUpdated()
	second := readReply(t, client)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(second[32:36]))
}

// Scenario 4: two devices sharing MAC 0 are both matched by a MAC-mode DATA
// request for MAC 0.
func TestServer_DataRegistration_ByMACZeroMatchesBoth(t *testing.T) {
	srv, client, cleanup := startTestServer(t)
	defer cleanup()

	devA, devB := newFakeDevice(), newFakeDevice()
	_, err := srv.AddDevice(devA)
	require.NoError(t, err)
	_, err = srv.AddDevice(devB)
	require.NoError(t, err)

	body := make([]byte, protocol.DataRequestBodySize)
	body[0] = uint8(protocol.RegByMAC)
	req := buildClientRequest(1, protocol.MessageData, body)
	_, err = client.Write(req)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	devA.fireUpdated()
	devB.fireUpdated()

	_ = readReply(t, client)
	_ = readReply(t, client)
}

// Scenario 5: a subscription idle past RequestTimeout stops receiving
// updates after the sweep.
func TestServer_SweepExpiresStaleSubscription(t *testing.T) {
	srv, client, cleanup := startTestServer(t)
	defer cleanup()

	dev := newFakeDevice()
	_, err := srv.AddDevice(dev)
	require.NoError(t, err)

	body := make([]byte, protocol.DataRequestBodySize)
	req := buildClientRequest(1, protocol.MessageData, body)
	_, err = client.Write(req)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	dev.fireUpdated()
	_ = readReply(t, client)

	time.Sleep(6 * time.Second)
	dev.fireUpdated()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(500*time.Millisecond)))
	buf := make([]byte, 2048)
	_, err = client.Read(buf)
	assert.Error(t, err, "expected no reply after subscription expiry")
}

// Scenario 6: orientation SIDEWAYS_LEFT remaps accel (1,2,3) -> (3,2,-1),
// driven end-to-end through a real socket.
func TestServer_OrientationRemap_EndToEnd(t *testing.T) {
	srv, client, cleanup := startTestServer(t)
	defer cleanup()

	dev := newFakeDevice()
	dev.accel = device.MotionData{X: 1, Y: 2, Z: 3}
	dev.SetOrientation(device.OrientationSidewaysLeft)
	_, err := srv.AddDevice(dev)
	require.NoError(t, err)

	body := make([]byte, protocol.DataRequestBodySize)
	req := buildClientRequest(1, protocol.MessageData, body)
	_, err = client.Write(req)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	dev.fireUpdated()

	reply := readReply(t, client)
	require.Len(t, reply, protocol.DataFrameSize)
	accelOffset := 32 + 4 + 2 + 1 + 1 + 4 + 12 + 12 + 8
	x := math.Float32frombits(binary.LittleEndian.Uint32(reply[accelOffset : accelOffset+4]))
	y := math.Float32frombits(binary.LittleEndian.Uint32(reply[accelOffset+4 : accelOffset+8]))
	z := math.Float32frombits(binary.LittleEndian.Uint32(reply[accelOffset+8 : accelOffset+12]))
	assert.Equal(t, float32(3), x)
	assert.Equal(t, float32(2), y)
	assert.Equal(t, float32(-1), z)
}

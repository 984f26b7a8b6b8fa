// realtime/hub_test.go
package realtime

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logger "github.com/GPT-Gradient/xynergy-core-sub001/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger()
	os.Exit(m.Run())
}

func newTestHub() *Hub {
	return NewHub(nil, "gateway:events")
}

func newTestClient(h *Hub, userID, tenantID string, buffer int) *Client {
	return &Client{
		hub:      h,
		send:     make(chan []byte, buffer),
		UserID:   userID,
		TenantID: tenantID,
		topics:   make(map[string]struct{}),
	}
}

func remoteEnvelope(t *testing.T, origin, room, payload string) []byte {
	t.Helper()
	raw, err := json.Marshal(envelope{Origin: origin, Room: room, Payload: []byte(payload)})
	require.NoError(t, err)
	return raw
}

func TestHubDeliversToSubscribedRoomOnly(t *testing.T) {
	h := newTestHub()
	orders := newTestClient(h, "user-1", "tenant-1", 4)
	reports := newTestClient(h, "user-2", "tenant-1", 4)
	h.Register(orders)
	h.Register(reports)
	h.Subscribe(orders, "orders")
	h.Subscribe(reports, "reports")

	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{"event":"order.created"}`))

	select {
	case payload := <-orders.send:
		assert.JSONEq(t, `{"event":"order.created"}`, string(payload))
	default:
		t.Fatal("subscribed client received nothing")
	}
	assert.Empty(t, reports.send, "other rooms must not see the event")
}

func TestHubIsolatesTenants(t *testing.T) {
	h := newTestHub()
	a := newTestClient(h, "user-1", "tenant-1", 4)
	b := newTestClient(h, "user-2", "tenant-2", 4)
	h.Register(a)
	h.Register(b)
	h.Subscribe(a, "orders")
	h.Subscribe(b, "orders")

	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))

	assert.Len(t, a.send, 1)
	assert.Empty(t, b.send, "same topic under another tenant is a different room")
}

func TestHubSkipsOwnLoopedBackMessage(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "user-1", "tenant-1", 4)
	h.Register(c)
	h.Subscribe(c, "orders")

	// The instance's own publication loops back from the shared channel;
	// local delivery already happened at publish time
	h.relay(remoteEnvelope(t, h.instanceID, "tenant-1:orders", `{}`))
	assert.Empty(t, c.send)

	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))
	assert.Len(t, c.send, 1)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "user-1", "tenant-1", 4)
	h.Register(c)
	h.Subscribe(c, "orders", "reports")

	h.Unsubscribe(c, "orders")
	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))
	assert.Empty(t, c.send)

	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:reports", `{}`))
	assert.Len(t, c.send, 1)
}

func TestHubUnregisterClearsRooms(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "user-1", "tenant-1", 4)
	h.Register(c)
	h.Subscribe(c, "orders")
	require.Equal(t, 1, h.ConnectionCount())

	h.Unregister(c)
	assert.Equal(t, 0, h.ConnectionCount())

	_, ok := <-c.send
	assert.False(t, ok, "send channel closes on unregister")

	// No residue: delivery to the old room reaches nobody and does not panic
	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))

	// A second unregister is a no-op
	h.Unregister(c)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := newTestHub()
	slow := newTestClient(h, "user-1", "tenant-1", 1)
	healthy := newTestClient(h, "user-2", "tenant-1", 4)
	h.Register(slow)
	h.Register(healthy)
	h.Subscribe(slow, "orders")
	h.Subscribe(healthy, "orders")

	// First event fills the slow client's buffer; the second overflows it
	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))
	h.relay(remoteEnvelope(t, "other-instance", "tenant-1:orders", `{}`))

	assert.Equal(t, 1, h.ConnectionCount(), "slow client is dropped, not blocked on")
	assert.Len(t, healthy.send, 2, "healthy clients keep receiving")
}

func TestHubIgnoresMalformedEnvelope(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "user-1", "tenant-1", 4)
	h.Register(c)
	h.Subscribe(c, "orders")

	h.relay([]byte("not json"))
	assert.Empty(t, c.send)
	assert.Equal(t, 1, h.ConnectionCount())
}

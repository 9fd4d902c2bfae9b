package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
	"chat-hub/internal/repository/mocks"
	"chat-hub/internal/service"
)

// fakePresence records per-room counter movements.
type fakePresence struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakePresence() *fakePresence {
	return &fakePresence{counts: make(map[string]int)}
}

func (f *fakePresence) Incr(_ context.Context, roomCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[roomCode]++
	return nil
}

func (f *fakePresence) Decr(_ context.Context, roomCode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[roomCode]--
	return nil
}

func (f *fakePresence) count(roomCode string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[roomCode]
}

// testHub wires a hub against mocked repositories and starts its routing
// workers. The returned cleanup stops them.
func testHub(t *testing.T) (*Hub, *mocks.RoomRepository, *mocks.MessageRepository, *fakePresence) {
	t.Helper()
	mockRoomRepo := new(mocks.RoomRepository)
	mockMessageRepo := new(mocks.MessageRepository)
	presence := newFakePresence()
	messages := service.NewMessageService(mockMessageRepo, mockRoomRepo)
	h := NewHub(messages, presence, nil)

	done := make(chan struct{})
	go func() {
		h.Run()
		close(done)
	}()
	t.Cleanup(func() {
		h.Shutdown()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("hub did not shut down in time")
		}
	})
	return h, mockRoomRepo, mockMessageRepo, presence
}

func testClient(h *Hub, userID uint, name, verificationCode string) *Client {
	return NewClient(h, nil, Identity{UserID: userID, Name: name, VerificationCode: verificationCode})
}

// recvEvent reads the next queued event from a client's send channel.
func recvEvent(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		require.True(t, ok, "send channel closed while expecting an event")
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(payload, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// expectNoEvent asserts nothing is queued for the client.
func expectNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event: %s", payload)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_Register_Duplicate(t *testing.T) {
	h, _, _, _ := testHub(t)
	client := testClient(h, 1, "alice", "CODE000001")

	require.NoError(t, h.Register(client))
	err := h.Register(client)
	assert.ErrorIs(t, err, service.ErrDuplicateConnection)
}

func TestHub_Subscribe_UnknownConnection(t *testing.T) {
	h, _, _, _ := testHub(t)

	err := h.Subscribe("no-such-conn", "AB12CD34")
	assert.ErrorIs(t, err, service.ErrUnknownConnection)
}

func TestHub_Subscribe_NotifiesRoomIncludingActor(t *testing.T) {
	h, _, _, presence := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))

	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	event := recvEvent(t, alice)
	assert.Equal(t, "status", event["type"])
	assert.Equal(t, "alice joined the room", event["msg"])

	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	for _, c := range []*Client{alice, bob} {
		event := recvEvent(t, c)
		assert.Equal(t, "status", event["type"])
		assert.Equal(t, "bob joined the room", event["msg"])
	}

	assert.Equal(t, 2, presence.count("AB12CD34"))
}

func TestHub_Subscribe_Idempotent(t *testing.T) {
	h, _, _, presence := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	require.NoError(t, h.Register(alice))

	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	recvEvent(t, alice) // joined notice

	// Second join is a no-op: no second notice, no double count.
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	expectNoEvent(t, alice)
	assert.Equal(t, 1, presence.count("AB12CD34"))
	assert.Len(t, h.MembersOf("AB12CD34"), 1)
}

func TestHub_Post_BroadcastsToAllMembers(t *testing.T) {
	h, mockRoomRepo, mockMessageRepo, _ := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	recvEvent(t, alice) // alice joined
	recvEvent(t, alice) // bob joined
	recvEvent(t, bob)   // bob joined

	mockRoomRepo.On("FindByCode", mock.Anything, "AB12CD34").
		Return(&domain.Room{ID: 1, Code: "AB12CD34"}, nil).Once()
	mockMessageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Message")).
		Return(nil).Once()

	require.NoError(t, h.Post(alice.id, "AB12CD34", "hello"))

	// Sender and co-member both receive the broadcast, with the sender's
	// identity attached.
	for _, c := range []*Client{alice, bob} {
		event := recvEvent(t, c)
		assert.Equal(t, "message", event["type"])
		assert.Equal(t, "hello", event["message"])
		assert.Equal(t, "alice", event["username"])
		assert.Equal(t, "CODE000001", event["verification_code"])
		ts, _ := event["timestamp"].(string)
		_, err := time.Parse(domain.DisplayClock, ts)
		assert.NoError(t, err, "timestamp should be HH:MM")
	}

	mockRoomRepo.AssertExpectations(t)
	mockMessageRepo.AssertExpectations(t)
}

func TestHub_Post_UnknownRoom_ErrorToSenderOnly(t *testing.T) {
	h, mockRoomRepo, mockMessageRepo, _ := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))
	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	recvEvent(t, bob)

	mockRoomRepo.On("FindByCode", mock.Anything, "ZZZZ9999").
		Return(nil, repository.ErrRoomNotFound).Once()

	require.NoError(t, h.Post(alice.id, "ZZZZ9999", "hello"))

	event := recvEvent(t, alice)
	assert.Equal(t, "error", event["type"])
	expectNoEvent(t, bob)
	mockMessageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHub_Post_NotAuthenticated(t *testing.T) {
	h, _, mockMessageRepo, _ := testHub(t)
	anon := testClient(h, 0, "", "")
	require.NoError(t, h.Register(anon))

	err := h.Post(anon.id, "AB12CD34", "hello")
	assert.ErrorIs(t, err, service.ErrNotAuthenticated)
	mockMessageRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHub_Post_UnknownConnection(t *testing.T) {
	h, _, _, _ := testHub(t)

	err := h.Post("no-such-conn", "AB12CD34", "hello")
	assert.ErrorIs(t, err, service.ErrUnknownConnection)
}

func TestHub_Unsubscribe_NotifiesRemainingMembers(t *testing.T) {
	h, _, _, presence := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	h.Unsubscribe(alice.id, "AB12CD34")

	event := recvEvent(t, bob)
	assert.Equal(t, "status", event["type"])
	assert.Equal(t, "alice left the room", event["msg"])
	assert.Equal(t, 1, presence.count("AB12CD34"))
	assert.Len(t, h.MembersOf("AB12CD34"), 1)

	// Leaving a room the client is not in is a no-op.
	h.Unsubscribe(alice.id, "AB12CD34")
	expectNoEvent(t, bob)
}

func TestHub_Unregister_RemovesAllMemberships(t *testing.T) {
	h, mockRoomRepo, mockMessageRepo, presence := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	require.NoError(t, h.Subscribe(alice.id, "EF56GH78"))
	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	h.Unregister(alice.id)

	event := recvEvent(t, bob)
	assert.Equal(t, "status", event["type"])
	assert.Equal(t, "alice left the room", event["msg"])
	assert.Empty(t, h.MembersOf("EF56GH78"))
	assert.Len(t, h.MembersOf("AB12CD34"), 1)
	assert.Equal(t, 1, presence.count("AB12CD34"))
	assert.Equal(t, 0, presence.count("EF56GH78"))

	// A post after the disconnect reaches the remaining member only; the
	// departed client's channel is closed and receives nothing.
	mockRoomRepo.On("FindByCode", mock.Anything, "AB12CD34").
		Return(&domain.Room{ID: 1, Code: "AB12CD34"}, nil).Once()
	mockMessageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Message")).
		Return(nil).Once()
	require.NoError(t, h.Post(bob.id, "AB12CD34", "still here"))

	event = recvEvent(t, bob)
	assert.Equal(t, "message", event["type"])
	_, open := <-alice.send
	assert.False(t, open, "departed client's send channel should be closed")

	// Idempotent: a second unregister is a no-op.
	h.Unregister(alice.id)
}

func TestHub_Deliver_RacingDisconnectIsDropped(t *testing.T) {
	h, _, _, _ := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	bob := testClient(h, 2, "bob", "CODE000002")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Register(bob))
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	require.NoError(t, h.Subscribe(bob.id, "AB12CD34"))
	recvEvent(t, alice)
	recvEvent(t, alice)
	recvEvent(t, bob)

	// A broadcast can snapshot the membership, then lose the race to a
	// disconnect before delivering. Replay that interleaving: the stale
	// snapshot still names alice after her send queue closed.
	h.mu.RLock()
	stale := h.membersLocked("AB12CD34")
	h.mu.RUnlock()
	require.Len(t, stale, 2)

	h.Unregister(alice.id)
	recvEvent(t, bob) // alice left notice

	h.deliver(stale, statusEvent("late notice")) // must not panic

	event := recvEvent(t, bob)
	assert.Equal(t, "late notice", event["msg"])
	_, open := <-alice.send
	assert.False(t, open, "the departed client receives nothing")
}

func TestHub_Post_AfterShutdown(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockMessageRepo := new(mocks.MessageRepository)
	messages := service.NewMessageService(mockMessageRepo, mockRoomRepo)
	h := NewHub(messages, nil, nil)
	alice := testClient(h, 1, "alice", "CODE000001")
	require.NoError(t, h.Register(alice))

	h.Shutdown()

	// The shards are closed; a late post must fail cleanly, never send.
	err := h.Post(alice.id, "AB12CD34", "too late")
	assert.ErrorIs(t, err, service.ErrInternalServer)
	h.Shutdown() // idempotent
}

func TestHub_Unregister_UnknownConnection(t *testing.T) {
	h, _, _, _ := testHub(t)
	h.Unregister("no-such-conn") // must not panic
}

func TestHub_ShardFor_IsStablePerRoom(t *testing.T) {
	h, _, _, _ := testHub(t)

	first := h.shardFor("AB12CD34")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, h.shardFor("AB12CD34"), "a room must always hash to the same shard")
	}
}

func TestHub_PerRoomOrdering(t *testing.T) {
	h, mockRoomRepo, mockMessageRepo, _ := testHub(t)
	alice := testClient(h, 1, "alice", "CODE000001")
	require.NoError(t, h.Register(alice))
	require.NoError(t, h.Subscribe(alice.id, "AB12CD34"))
	recvEvent(t, alice)

	const n = 20
	mockRoomRepo.On("FindByCode", mock.Anything, "AB12CD34").
		Return(&domain.Room{ID: 1, Code: "AB12CD34"}, nil).Times(n)
	mockMessageRepo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Message")).
		Return(nil).Times(n)

	contents := []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9",
		"m10", "m11", "m12", "m13", "m14", "m15", "m16", "m17", "m18", "m19"}
	for _, content := range contents {
		require.NoError(t, h.Post(alice.id, "AB12CD34", content))
	}

	// Events arrive in exactly the order they were posted.
	for _, want := range contents {
		event := recvEvent(t, alice)
		require.Equal(t, "message", event["type"])
		assert.Equal(t, want, event["message"])
	}
}

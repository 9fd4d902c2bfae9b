// Package hub is the room membership and broadcast core: it tracks live
// connections, their room subscriptions, and routes messages from a sender to
// every member of a room, persist-first.
package hub

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-hub/internal/domain"
	"chat-hub/internal/dto"
	"chat-hub/internal/service"
	"chat-hub/internal/tasks"
)

// WebSocket timing constants shared by the hub and client pumps.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// routerShards is the number of ordered routing workers. Every room hashes
// to exactly one shard, so messages within a room are persisted and
// broadcast in arrival order while different rooms proceed concurrently.
const routerShards = 16

// shardQueueSize bounds each routing worker's mailbox.
const shardQueueSize = 256

// Presence mirrors per-room online counts into an external store for
// display. All calls are advisory; failures are logged, never surfaced.
type Presence interface {
	Incr(ctx context.Context, roomCode string) error
	Decr(ctx context.Context, roomCode string) error
}

// postRequest is one message event waiting on a routing shard.
type postRequest struct {
	sender   *Client
	roomCode string
	content  string
}

// Hub owns the connection registry and the per-room membership index, and
// routes message events. Membership lives only in memory: it is rebuilt from
// scratch on restart as clients reconnect and rejoin.
type Hub struct {
	messages *service.MessageService

	presence    Presence      // optional
	asynqClient *asynq.Client // optional

	mu     sync.RWMutex
	conns  map[string]*Client             // connection id -> client
	rooms  map[string]map[*Client]struct{} // room code -> members
	joined map[string]map[string]struct{}  // connection id -> room codes
	closed bool

	shards [routerShards]chan postRequest
	wg     sync.WaitGroup
}

// NewHub creates a Hub. presence and asynqClient may be nil; the hub then
// runs without presence counters or background activity tasks.
func NewHub(messages *service.MessageService, presence Presence, asynqClient *asynq.Client) *Hub {
	if messages == nil {
		panic("MessageService cannot be nil for Hub")
	}
	h := &Hub{
		messages:    messages,
		presence:    presence,
		asynqClient: asynqClient,
		conns:       make(map[string]*Client),
		rooms:       make(map[string]map[*Client]struct{}),
		joined:      make(map[string]map[string]struct{}),
	}
	for i := range h.shards {
		h.shards[i] = make(chan postRequest, shardQueueSize)
	}
	return h
}

// Run starts the routing workers and blocks until Shutdown. It should run in
// its own goroutine.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")
	for i := range h.shards {
		h.wg.Add(1)
		go h.runShard(h.shards[i])
	}
	h.wg.Wait()
	log.Info("Hub is shutting down...")
}

// Shutdown stops accepting operations and drains the routing shards. The
// shards close under the write lock, and Post enqueues under the read lock,
// so no send can race the close.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for i := range h.shards {
		close(h.shards[i])
	}
}

// Register adds a connection to the registry. The connection id must not
// already be registered.
func (h *Hub) Register(client *Client) error {
	if client == nil {
		return fmt.Errorf("cannot register a nil client")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return service.ErrInternalServer
	}
	if _, exists := h.conns[client.id]; exists {
		return service.ErrDuplicateConnection
	}
	h.conns[client.id] = client
	h.joined[client.id] = make(map[string]struct{})
	logrus.WithFields(logrus.Fields{
		"conn_id": client.id,
		"user_id": client.identity.UserID,
	}).Info("Client registered to Hub")
	return nil
}

// Unregister removes a connection and, as a side effect, every room
// membership it held, emitting a left notice to each such room. Idempotent:
// unknown ids are a no-op.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	client, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	codes := make([]string, 0, len(h.joined[connID]))
	for code := range h.joined[connID] {
		codes = append(codes, code)
	}
	recipients := make(map[string][]*Client, len(codes))
	for _, code := range codes {
		h.removeMemberLocked(client, code)
		recipients[code] = h.membersLocked(code)
	}
	delete(h.conns, connID)
	delete(h.joined, connID)
	client.closeSend()
	h.mu.Unlock()

	for _, code := range codes {
		h.deliver(recipients[code], statusEvent(client.identity.Name+" left the room"))
		h.decrPresence(code)
	}
	logrus.WithFields(logrus.Fields{
		"conn_id": connID,
		"user_id": client.identity.UserID,
		"rooms":   len(codes),
	}).Info("Client unregistered from Hub")
}

// Subscribe adds a connection to a room's membership set and notifies the
// room, the actor included. Subscribing twice is a no-op.
func (h *Hub) Subscribe(connID, roomCode string) error {
	h.mu.Lock()
	client, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return service.ErrUnknownConnection
	}
	if _, already := h.joined[connID][roomCode]; already {
		h.mu.Unlock()
		return nil
	}
	h.joined[connID][roomCode] = struct{}{}
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Client]struct{})
	}
	h.rooms[roomCode][client] = struct{}{}
	recipients := h.membersLocked(roomCode)
	h.mu.Unlock()

	h.deliver(recipients, statusEvent(client.identity.Name+" joined the room"))
	h.incrPresence(roomCode)
	logrus.WithFields(logrus.Fields{
		"conn_id": connID,
		"user_id": client.identity.UserID,
		"room":    roomCode,
	}).Info("Client subscribed to room")
	return nil
}

// Unsubscribe removes a connection from a room's membership set. Absent
// memberships are a no-op.
func (h *Hub) Unsubscribe(connID, roomCode string) {
	h.mu.Lock()
	client, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, member := h.joined[connID][roomCode]; !member {
		h.mu.Unlock()
		return
	}
	h.removeMemberLocked(client, roomCode)
	recipients := h.membersLocked(roomCode)
	h.mu.Unlock()

	h.deliver(recipients, statusEvent(client.identity.Name+" left the room"))
	h.decrPresence(roomCode)
	logrus.WithFields(logrus.Fields{
		"conn_id": connID,
		"user_id": client.identity.UserID,
		"room":    roomCode,
	}).Info("Client unsubscribed from room")
}

// Post routes one message event: the sender must be a registered,
// authenticated connection; the rest of the pipeline (room lookup, durable
// write, fan-out) runs in arrival order on the room's shard. Failures past
// this point are reported to the sender as error events.
func (h *Hub) Post(connID, roomCode, content string) error {
	// The read lock is held through the shard enqueue: Shutdown closes the
	// shards under the write lock, so a send can never hit a closed channel.
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return service.ErrInternalServer
	}
	client, ok := h.conns[connID]
	if !ok {
		return service.ErrUnknownConnection
	}
	if client.identity.UserID == 0 {
		return service.ErrNotAuthenticated
	}

	req := postRequest{sender: client, roomCode: roomCode, content: content}
	select {
	case h.shardFor(roomCode) <- req:
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"conn_id": connID,
			"room":    roomCode,
		}).Warn("Routing shard full, dropping message")
		return service.ErrStoreUnavailable
	}
}

// MembersOf returns the identities currently subscribed to a room.
func (h *Hub) MembersOf(roomCode string) []Identity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := make([]Identity, 0, len(h.rooms[roomCode]))
	for client := range h.rooms[roomCode] {
		members = append(members, client.identity)
	}
	return members
}

// runShard processes message events for every room hashing to this shard,
// one at a time: persist first, broadcast only after the durable write
// succeeded.
func (h *Hub) runShard(ch chan postRequest) {
	defer h.wg.Done()
	for req := range ch {
		h.route(req)
	}
}

func (h *Hub) route(req postRequest) {
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": req.sender.id,
		"user_id": req.sender.identity.UserID,
		"room":    req.roomCode,
	})

	message, err := h.messages.Post(ctx, req.sender.identity.UserID, req.roomCode, req.content)
	if err != nil {
		// Validation and store failures concern the sender only; the rest of
		// the room never sees the attempt.
		logCtx.WithError(err).Warn("Message rejected")
		req.sender.queueEvent(dto.ErrorEvent{Type: "error", Message: err.Error()})
		return
	}

	h.mu.RLock()
	recipients := h.membersLocked(req.roomCode)
	h.mu.RUnlock()

	h.deliver(recipients, dto.MessageEvent{
		Type:             "message",
		Message:          message.Content,
		Username:         req.sender.identity.Name,
		VerificationCode: req.sender.identity.VerificationCode,
		Timestamp:        message.Timestamp.Format(domain.DisplayClock),
	})
	logCtx.WithField("recipients", len(recipients)).Debug("Message broadcast complete")

	h.enqueueRoomActivity(req.roomCode)
}

// deliver fans an event out to each recipient without blocking on any of
// them. Delivery failures are isolated per connection and swallowed.
func (h *Hub) deliver(recipients []*Client, event interface{}) {
	for _, client := range recipients {
		client.queueEvent(event)
	}
}

// membersLocked snapshots a room's members. Caller must hold mu.
func (h *Hub) membersLocked(roomCode string) []*Client {
	members := make([]*Client, 0, len(h.rooms[roomCode]))
	for client := range h.rooms[roomCode] {
		members = append(members, client)
	}
	return members
}

// removeMemberLocked drops one membership edge. Caller must hold mu.
func (h *Hub) removeMemberLocked(client *Client, roomCode string) {
	delete(h.joined[client.id], roomCode)
	if members, ok := h.rooms[roomCode]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, roomCode)
		}
	}
}

func (h *Hub) incrPresence(roomCode string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Incr(context.Background(), roomCode); err != nil {
		logrus.WithError(err).WithField("room", roomCode).Warn("Failed to increment presence counter")
	}
}

func (h *Hub) decrPresence(roomCode string) {
	if h.presence == nil {
		return
	}
	if err := h.presence.Decr(context.Background(), roomCode); err != nil {
		logrus.WithError(err).WithField("room", roomCode).Warn("Failed to decrement presence counter")
	}
}

// enqueueRoomActivity hands the room's last_active touch to the background
// worker so the post path never waits on it.
func (h *Hub) enqueueRoomActivity(roomCode string) {
	if h.asynqClient == nil {
		return
	}
	payload, err := tasks.NewRoomActivityTask(roomCode)
	if err != nil {
		logrus.WithError(err).WithField("room", roomCode).Error("Failed to build room activity task")
		return
	}
	task := asynq.NewTask(tasks.TypeRoomActivity, payload)
	if _, err := h.asynqClient.Enqueue(task, asynq.Queue("low")); err != nil {
		logrus.WithError(err).WithField("room", roomCode).Warn("Failed to enqueue room activity task")
	}
}

func (h *Hub) shardFor(roomCode string) chan postRequest {
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(roomCode))
	return h.shards[hash.Sum32()%routerShards]
}

func statusEvent(msg string) dto.StatusEvent {
	return dto.StatusEvent{
		Type:      "status",
		Msg:       msg,
		Timestamp: time.Now().Format(domain.DisplayClock),
	}
}

package main

import (
	"crypto/rand"
	"math/big"
	"sort"
	"sync"

	"easymund/internal/ambience"
)

const roomIDLength = 12
const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Room is keyed by a 12-char random alphanumeric id.
type Room struct {
	DisplayName    string
	Clients        map[uint64]struct{}
	Chat           []ChatMessage
	AmbienceID     string
	AmbienceCursor int
}

func newRoom(displayName, defaultAmbienceID string) *Room {
	return &Room{
		DisplayName: displayName,
		Clients:     make(map[uint64]struct{}),
		AmbienceID:  defaultAmbienceID,
	}
}

// Registry is the process-wide context holding clients, rooms, and the
// immutable ambience library under one mutex. No lock is ever
// held across a channel send to the transport.
type Registry struct {
	mu         sync.Mutex
	clients    map[uint64]*Client
	rooms      map[string]*Room
	ambiences  []*ambience.Ambience
	packetSize int
}

// NewRegistry creates an empty registry bound to the given ambience library
// and codec packet size.
func NewRegistry(ambiences []*ambience.Ambience, packetSize int) *Registry {
	return &Registry{
		clients:    make(map[uint64]*Client),
		rooms:      make(map[string]*Room),
		ambiences:  ambiences,
		packetSize: packetSize,
	}
}

// defaultAmbienceID returns the id of the first loaded ambience, or "" if
// none are configured.
func (r *Registry) defaultAmbienceID() string {
	if len(r.ambiences) == 0 {
		return ""
	}
	return r.ambiences[0].ID
}

// CreateRoom generates a fresh 12-char id, inserts a room with the first
// available ambience selected, and returns its id.
func (r *Registry) CreateRoom(displayName string) (string, error) {
	id, err := generateRoomID()
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[id] = newRoom(displayName, r.defaultAmbienceID())
	return id, nil
}

// RestoreRoom re-inserts a room under a known id at startup, used by the
// persistence layer to reload rooms snapshotted before a restart.
func (r *Registry) RestoreRoom(id, displayName, ambienceID string, chat []ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := newRoom(displayName, ambienceID)
	room.Chat = chat
	r.rooms[id] = room
}

// RoomExists reports whether roomID names a live room.
func (r *Registry) RoomExists(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// Connect creates client state for clientID in roomID if the room exists.
func (r *Registry) Connect(clientID uint64, roomID string) (ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, exists := r.rooms[roomID]
	if !exists {
		return false, nil
	}
	client, err := NewClient(clientID, roomID, r.packetSize)
	if err != nil {
		return false, err
	}
	r.clients[clientID] = client
	room.Clients[clientID] = struct{}{}
	return true, nil
}

// Disconnect removes clientID from the registry and its room under one
// critical section, so room membership never outlives the client entry.
// It returns the removed client (nil
// if unknown) and the room id it was part of.
func (r *Registry) Disconnect(clientID uint64) (client *Client, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, ""
	}
	delete(r.clients, clientID)
	if room, ok := r.rooms[client.RoomID]; ok {
		delete(room.Clients, clientID)
	}
	client.State = StateDisconnected
	return client, client.RoomID
}

// WithClient runs fn with the client locked, if it exists.
func (r *Registry) WithClient(clientID uint64, fn func(*Client)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[clientID]; ok {
		fn(c)
	}
}

// Client returns a pointer to the client's state for reads outside the
// mutex; callers in the single-threaded dispatcher and mix tick are the
// only writers and must not retain this across other registry calls.
func (r *Registry) Client(clientID uint64) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[clientID]
	return c, ok
}

// RoomSnapshot is a point-in-time copy of a room's membership and metadata,
// safe to read without the registry mutex held.
type RoomSnapshot struct {
	ID             string
	DisplayName    string
	AmbienceID     string
	AmbienceCursor int
	ClientIDs      []uint64
}

// SnapshotRoom copies roomID's membership and metadata under the mutex.
func (r *Registry) SnapshotRoom(roomID string) (RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return RoomSnapshot{}, false
	}
	ids := make([]uint64, 0, len(room.Clients))
	for id := range room.Clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return RoomSnapshot{
		ID:             roomID,
		DisplayName:    room.DisplayName,
		AmbienceID:     room.AmbienceID,
		AmbienceCursor: room.AmbienceCursor,
		ClientIDs:      ids,
	}, true
}

// SnapshotRoomIDs returns every currently-registered room id.
func (r *Registry) SnapshotRoomIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}

// AdvanceAmbienceCursor stores the new ambience cursor for roomID after a
// tick consumes samples from it.
func (r *Registry) AdvanceAmbienceCursor(roomID string, cursor int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.AmbienceCursor = cursor
	}
}

// SetAmbience sets roomID's ambience selection and resets its cursor to 0.
func (r *Registry) SetAmbience(roomID, ambienceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		room.AmbienceID = ambienceID
		room.AmbienceCursor = 0
	}
}

// Ambience looks up an ambience buffer by id.
func (r *Registry) Ambience(id string) (*ambience.Ambience, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.ambiences {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// AmbienceList returns the wire shape of every loaded ambience, for the
// "room" event's catalog.
func (r *Registry) AmbienceList() []OutAmbience {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OutAmbience, len(r.ambiences))
	for i, a := range r.ambiences {
		out[i] = OutAmbience{ID: a.ID, Name: a.Name}
	}
	return out
}

// RoomParticipants returns the wire view of every joined participant in
// roomID, in client-id order, optionally excluding one client.
func (r *Registry) RoomParticipants(roomID string, except uint64, hasExcept bool) []OutParticipant {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]uint64, 0, len(room.Clients))
	for id := range room.Clients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []OutParticipant
	for _, id := range ids {
		if hasExcept && id == except {
			continue
		}
		if c, ok := r.clients[id]; ok {
			if p, ok := c.OutParticipantView(); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// RoomChatHistory returns a copy of roomID's chat log in wire shape.
func (r *Registry) RoomChatHistory(roomID string) []OutChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]OutChatMessage, len(room.Chat))
	for i, m := range room.Chat {
		out[i] = m.outbound()
	}
	return out
}

// AppendChat appends a chat message to roomID's log with id = its index,
// and returns it.
func (r *Registry) AppendChat(roomID string, msg ChatMessage) (ChatMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return ChatMessage{}, false
	}
	msg.ID = uint64(len(room.Chat))
	room.Chat = append(room.Chat, msg)
	return msg, true
}

// PromoteAdmin demotes whoever currently holds is_admin in roomID and
// promotes clientID, preserving the single-admin invariant.
func (r *Registry) PromoteAdmin(roomID string, clientID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	for id := range room.Clients {
		if c, ok := r.clients[id]; ok && c.Participant != nil {
			c.Participant.IsAdmin = id == clientID
		}
	}
}

// FirstJoinerBecomesAdmin reports whether roomID currently has no joined
// admin, meaning the next joiner should become one.
func (r *Registry) FirstJoinerBecomesAdmin(roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return true
	}
	for id := range room.Clients {
		if c, ok := r.clients[id]; ok && c.Participant != nil && c.Participant.IsAdmin {
			return false
		}
	}
	return true
}

// TransferAdminToLowestRemaining promotes the lowest-id joined client in
// roomID to admin if no admin remains.
func (r *Registry) TransferAdminToLowestRemaining(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	hasAdmin := false
	var lowest uint64
	found := false
	for id := range room.Clients {
		c, ok := r.clients[id]
		if !ok || c.Participant == nil {
			continue
		}
		if c.Participant.IsAdmin {
			hasAdmin = true
		}
		if !found || id < lowest {
			lowest = id
			found = true
		}
	}
	if !hasAdmin && found {
		r.clients[lowest].Participant.IsAdmin = true
	}
}

// AmbienceByteSize returns the total in-memory size of all loaded ambience
// sample buffers, reported by the admin API's /api/metrics.
func (r *Registry) AmbienceByteSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, a := range r.ambiences {
		total += len(a.Samples) * 4
	}
	return total
}

func generateRoomID() (string, error) {
	b := make([]byte, roomIDLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomIDAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = roomIDAlphabet[n.Int64()]
	}
	return string(b), nil
}

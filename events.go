package main

import (
	"encoding/json"
	"log"
	"time"

	"easymund/internal/store"
)

// Sender is the minimal outbound interface the event handlers and mix tick
// need; internal/wsserver.Server satisfies it.
type Sender interface {
	Send(clientID uint64, opcode byte, payload []byte)
}

const (
	wsOpText   = 1
	wsOpBinary = 2
)

// Dispatcher drains the transport's inbound channel and routes connect,
// text, binary, and disconnect events. It is
// the single consumer that serializes registry mutations relative to
// connect/text/binary/disconnect (not relative to the mix tick, which has
// its own synchronization through the registry mutex).
type Dispatcher struct {
	reg   *Registry
	send  Sender
	store *store.Store
}

// NewDispatcher creates a dispatcher bound to reg and send. store may be
// nil to disable persistence.
func NewDispatcher(reg *Registry, send Sender, st *store.Store) *Dispatcher {
	return &Dispatcher{reg: reg, send: send, store: st}
}

// HandleConnect processes a synthetic "connected" event whose text payload
// is the request path. path must be "/<room_id>"; "/" itself
// is malformed and rejected with a client-visible error.
func (d *Dispatcher) HandleConnect(clientID uint64, path string) {
	roomID := path
	if len(roomID) > 0 && roomID[0] == '/' {
		roomID = roomID[1:]
	}
	if roomID == "" {
		d.send.Send(clientID, wsOpText, buildErrorEvent("Conference does not exist"))
		return
	}
	ok, err := d.reg.Connect(clientID, roomID)
	if err != nil {
		log.Printf("[dispatch] client %d: create codec: %v", clientID, err)
		return
	}
	if !ok {
		d.send.Send(clientID, wsOpText, buildErrorEvent("Conference "+roomID+" does not exist"))
		return
	}
	log.Printf("[dispatch] client %d connected to room %s", clientID, roomID)
}

// HandleDisconnect tears down client state and broadcasts the updated
// roster to the room it was part of. The departing client is removed from
// the registry before the roster is computed, so the broadcast excludes it.
func (d *Dispatcher) HandleDisconnect(clientID uint64, captureWriter func(*Client)) {
	client, roomID := d.reg.Disconnect(clientID)
	if client == nil {
		return
	}
	log.Printf("[dispatch] client %d disconnected from room %s", clientID, roomID)
	if captureWriter != nil {
		captureWriter(client)
	}
	if client.Participant == nil || roomID == "" {
		return
	}
	d.reg.TransferAdminToLowestRemaining(roomID)
	d.broadcastParticipants(roomID, 0, false)
	d.broadcast(roomID, buildLeaveEvent())
}

// HandleText parses one text frame as a JSON event and routes it to the
// matching handler. Unparseable JSON and unknown event names are logged
// and ignored; the connection stays open.
func (d *Dispatcher) HandleText(clientID uint64, text string) {
	var evt InEvent
	if err := json.Unmarshal([]byte(text), &evt); err != nil {
		log.Printf("[dispatch] client %d: bad event json: %v", clientID, err)
		return
	}
	switch evt.Event {
	case "join":
		d.handleJoin(clientID, evt)
	case "ambience":
		d.handleAmbience(clientID, evt)
	case "participant":
		d.handleParticipant(clientID, evt)
	case "chat":
		d.handleChat(clientID, evt)
	default:
		log.Printf("[dispatch] client %d: unknown event %q", clientID, evt.Event)
	}
}

func (d *Dispatcher) handleJoin(clientID uint64, evt InEvent) {
	client, ok := d.reg.Client(clientID)
	if !ok {
		return
	}
	name := formatClientID(clientID)
	if evt.Participant != nil && evt.Participant.Name != nil && *evt.Participant.Name != "" {
		name = *evt.Participant.Name
	}
	becomeAdmin := d.reg.FirstJoinerBecomesAdmin(client.RoomID)
	d.reg.WithClient(clientID, func(c *Client) {
		c.Participant = &Participant{Name: name, IsMuted: true, IsAdmin: becomeAdmin}
		c.State = StateJoined
	})
	log.Printf("[dispatch] client %d joined room %s as %q (admin=%v)", clientID, client.RoomID, name, becomeAdmin)

	snap, ok := d.reg.SnapshotRoom(client.RoomID)
	if !ok {
		return
	}
	self, _ := client.OutParticipantView()
	participants := d.reg.RoomParticipants(client.RoomID, 0, false)
	history := d.reg.RoomChatHistory(client.RoomID)
	ambiences := d.reg.AmbienceList()
	d.send.Send(clientID, wsOpText, buildRoomEvent(snap.DisplayName, self, participants, ambiences, snap.AmbienceID, history))
	d.broadcastParticipants(client.RoomID, clientID, true)

	if d.store != nil {
		d.store.UpsertRoom(snap.ID, snap.DisplayName, snap.AmbienceID)
	}
}

func (d *Dispatcher) handleAmbience(clientID uint64, evt InEvent) {
	client, ok := d.reg.Client(clientID)
	if !ok || evt.Ambience == nil {
		return
	}
	d.reg.SetAmbience(client.RoomID, *evt.Ambience)
	log.Printf("[dispatch] room %s ambience set to %q by client %d", client.RoomID, *evt.Ambience, clientID)
	d.broadcast(client.RoomID, buildAmbienceEvent(*evt.Ambience))
	if d.store != nil {
		if snap, ok := d.reg.SnapshotRoom(client.RoomID); ok {
			d.store.UpsertRoom(snap.ID, snap.DisplayName, snap.AmbienceID)
		}
	}
}

func (d *Dispatcher) handleParticipant(clientID uint64, evt InEvent) {
	client, ok := d.reg.Client(clientID)
	if !ok || evt.Participant == nil {
		return
	}
	targetID := clientID
	if evt.Participant.ID != nil {
		targetID = *evt.Participant.ID
	}
	promote := evt.Participant.IsAdmin != nil && *evt.Participant.IsAdmin
	d.reg.WithClient(targetID, func(c *Client) {
		if c.Participant == nil {
			return
		}
		if evt.Participant.IsMuted != nil {
			c.Participant.IsMuted = *evt.Participant.IsMuted
		}
		if evt.Participant.IsSharing != nil {
			c.Participant.IsSharing = *evt.Participant.IsSharing
		}
		if evt.Participant.Name != nil {
			c.Participant.Name = *evt.Participant.Name
		}
	})
	if promote {
		d.reg.PromoteAdmin(client.RoomID, targetID)
	}
	d.broadcastParticipants(client.RoomID, 0, false)
}

func (d *Dispatcher) handleChat(clientID uint64, evt InEvent) {
	client, ok := d.reg.Client(clientID)
	if !ok || evt.Chat == nil || evt.Chat.Message == nil {
		return
	}
	from := formatClientID(clientID)
	if client.Participant != nil {
		from = client.Participant.Name
	}
	msg, ok := d.reg.AppendChat(client.RoomID, ChatMessage{From: from, Text: *evt.Chat.Message, Time: time.Now().UTC()})
	if !ok {
		return
	}
	log.Printf("[dispatch] room %s chat from %q: %q", client.RoomID, from, msg.Text)
	d.broadcast(client.RoomID, buildChatEvent(msg.outbound()))
	if d.store != nil {
		d.store.AppendChat(client.RoomID, int(msg.ID), msg.From, msg.Text, msg.Time)
	}
}

// broadcastParticipants sends a fresh "participants" event to every client
// in roomID, joined or not, optionally skipping one.
func (d *Dispatcher) broadcastParticipants(roomID string, except uint64, hasExcept bool) {
	snap, ok := d.reg.SnapshotRoom(roomID)
	if !ok {
		return
	}
	participants := d.reg.RoomParticipants(roomID, 0, false)
	payload := buildParticipantsEvent(participants)
	for _, id := range snap.ClientIDs {
		if hasExcept && id == except {
			continue
		}
		d.send.Send(id, wsOpText, payload)
	}
}

// broadcast sends payload to every client currently in roomID.
func (d *Dispatcher) broadcast(roomID string, payload []byte) {
	snap, ok := d.reg.SnapshotRoom(roomID)
	if !ok {
		return
	}
	for _, id := range snap.ClientIDs {
		d.send.Send(id, wsOpText, payload)
	}
}

func formatClientID(id uint64) string {
	return "client-" + itoa(id)
}

func itoa(id uint64) string {
	if id == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for id > 0 {
		i--
		buf[i] = byte('0' + id%10)
		id /= 10
	}
	return string(buf[i:])
}

package main

import (
	"encoding/json"
	"testing"
)

type recordedFrame struct {
	clientID uint64
	opcode   byte
	payload  []byte
}

type fakeSender struct {
	frames []recordedFrame
}

func (f *fakeSender) Send(clientID uint64, opcode byte, payload []byte) {
	f.frames = append(f.frames, recordedFrame{clientID: clientID, opcode: opcode, payload: append([]byte(nil), payload...)})
}

func (f *fakeSender) textEventsFor(clientID uint64) []map[string]interface{} {
	var out []map[string]interface{}
	for _, fr := range f.frames {
		if fr.clientID != clientID || fr.opcode != wsOpText {
			continue
		}
		var m map[string]interface{}
		if err := json.Unmarshal(fr.payload, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// TestJoinFanOut checks the join fan-out: the third joiner receives exactly one
// "room" event listing all three participants with the first as admin; the
// first two each receive exactly one "participants" event after the third
// joins.
func TestJoinFanOut(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	send := &fakeSender{}
	d := NewDispatcher(reg, send, nil)

	for _, id := range []uint64{1, 2, 3} {
		if ok, err := reg.Connect(id, roomID); err != nil || !ok {
			t.Fatalf("Connect(%d): ok=%v err=%v", id, ok, err)
		}
	}

	names := map[uint64]string{1: "a", 2: "b", 3: "c"}
	for _, id := range []uint64{1, 2} {
		send.frames = nil
		name := names[id]
		d.handleJoin(id, InEvent{Event: "join", Participant: &InParticipant{Name: &name}})
	}

	send.frames = nil
	nameC := names[3]
	d.handleJoin(3, InEvent{Event: "join", Participant: &InParticipant{Name: &nameC}})

	roomEvents := 0
	for _, m := range send.textEventsFor(3) {
		if m["event"] == "room" {
			roomEvents++
			participants, _ := m["participants"].([]interface{})
			if len(participants) != 3 {
				t.Fatalf("room event has %d participants, want 3", len(participants))
			}
		}
	}
	if roomEvents != 1 {
		t.Fatalf("client 3 got %d room events, want 1", roomEvents)
	}

	for _, id := range []uint64{1, 2} {
		count := 0
		for _, m := range send.textEventsFor(id) {
			if m["event"] == "participants" {
				count++
				participants, _ := m["participants"].([]interface{})
				if len(participants) != 3 {
					t.Fatalf("client %d participants event has %d entries, want 3", id, len(participants))
				}
			}
		}
		if count != 1 {
			t.Fatalf("client %d got %d participants events, want 1", id, count)
		}
	}

	admin1, _ := reg.Client(1)
	if admin1.Participant == nil || !admin1.Participant.IsAdmin {
		t.Fatal("client 1 (first joiner) should be admin")
	}
}

// TestChatBroadcast checks that chat messages are appended in order
// and each append produces one broadcast to every client in the room.
func TestChatBroadcast(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	send := &fakeSender{}
	d := NewDispatcher(reg, send, nil)

	for _, id := range []uint64{1, 2, 3} {
		reg.Connect(id, roomID)
	}

	texts := []string{"m1", "m2", "m3"}
	for _, text := range texts {
		msg := text
		d.handleChat(1, InEvent{Event: "chat", Chat: &InChat{Message: &msg}})
	}

	for _, id := range []uint64{1, 2, 3} {
		var chatTexts []string
		for _, m := range send.textEventsFor(id) {
			if m["event"] != "chat" {
				continue
			}
			chat, _ := m["chat"].(map[string]interface{})
			msg, _ := chat["message"].(map[string]interface{})
			chatTexts = append(chatTexts, msg["text"].(string))
		}
		if len(chatTexts) != 3 {
			t.Fatalf("client %d got %d chat events, want 3", id, len(chatTexts))
		}
		for i, text := range chatTexts {
			if text != texts[i] {
				t.Fatalf("client %d chat[%d] = %q, want %q", id, i, text, texts[i])
			}
		}
	}
}

// TestAmbienceChangeBroadcast checks that setting a new ambience
// resets the room's cursor and broadcasts to every client.
func TestAmbienceChangeBroadcast(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	send := &fakeSender{}
	d := NewDispatcher(reg, send, nil)

	reg.Connect(1, roomID)
	reg.Connect(2, roomID)
	reg.AdvanceAmbienceCursor(roomID, 500)

	ambID := "rain"
	d.handleAmbience(1, InEvent{Event: "ambience", Ambience: &ambID})

	snap, _ := reg.SnapshotRoom(roomID)
	if snap.AmbienceID != "rain" {
		t.Fatalf("room ambience = %q, want rain", snap.AmbienceID)
	}
	if snap.AmbienceCursor != 0 {
		t.Fatalf("ambience cursor = %d, want 0", snap.AmbienceCursor)
	}

	for _, id := range []uint64{1, 2} {
		found := false
		for _, m := range send.textEventsFor(id) {
			if m["event"] == "ambience" && m["ambience"] == "rain" {
				found = true
			}
		}
		if !found {
			t.Fatalf("client %d did not receive ambience event", id)
		}
	}
}

// TestUnknownEventIgnored checks that an unrecognized event name is logged
// and ignored, not an error to the caller.
func TestUnknownEventIgnored(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	send := &fakeSender{}
	d := NewDispatcher(reg, send, nil)
	reg.Connect(1, roomID)

	d.HandleText(1, `{"event":"not_a_real_event"}`)
	if len(send.frames) != 0 {
		t.Fatalf("expected no frames sent for unknown event, got %d", len(send.frames))
	}
}

// TestConnectToMissingRoomSendsError checks that a
// missing room at connect time yields a single error event and no state.
func TestConnectToMissingRoomSendsError(t *testing.T) {
	reg := NewRegistry(nil, 2048)
	send := &fakeSender{}
	d := NewDispatcher(reg, send, nil)

	d.HandleConnect(1, "/does-not-exist")

	if _, ok := reg.Client(1); ok {
		t.Fatal("client should not be registered after failed connect")
	}
	events := send.textEventsFor(1)
	if len(events) != 1 || events[0]["event"] != "error" {
		t.Fatalf("expected exactly one error event, got %v", events)
	}
}

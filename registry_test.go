package main

import "testing"

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	reg := NewRegistry(nil, 2048)
	roomID, err := reg.CreateRoom("test room")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return reg, roomID
}

func joinClient(t *testing.T, reg *Registry, roomID string, id uint64, name string) {
	t.Helper()
	ok, err := reg.Connect(id, roomID)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !ok {
		t.Fatalf("Connect: room %s not found", roomID)
	}
	becomeAdmin := reg.FirstJoinerBecomesAdmin(roomID)
	reg.WithClient(id, func(c *Client) {
		c.Participant = &Participant{Name: name, IsAdmin: becomeAdmin}
		c.State = StateJoined
	})
}

// TestRegistryMembershipInvariant checks that every client id in
// a room's membership exists in the client registry with a matching room id.
func TestRegistryMembershipInvariant(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	joinClient(t, reg, roomID, 1, "a")
	joinClient(t, reg, roomID, 2, "b")

	snap, ok := reg.SnapshotRoom(roomID)
	if !ok {
		t.Fatal("room missing")
	}
	for _, id := range snap.ClientIDs {
		c, ok := reg.Client(id)
		if !ok {
			t.Fatalf("client %d not in registry", id)
		}
		if c.RoomID != roomID {
			t.Fatalf("client %d room = %s, want %s", id, c.RoomID, roomID)
		}
	}
}

// TestSendCursorInvariant checks that the send cursor stays within the
// jitter buffer bounds.
func TestSendCursorInvariant(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	joinClient(t, reg, roomID, 1, "a")
	client, _ := reg.Client(1)

	client.DrainChunk(100)
	if client.SendCursor < 0 || client.SendCursor > len(client.JitterBuffer) {
		t.Fatalf("send_cursor %d out of [0, %d]", client.SendCursor, len(client.JitterBuffer))
	}
}

// TestChatIDInvariant checks that every chat message's id equals its index
// in the room's log.
func TestChatIDInvariant(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	texts := []string{"m1", "m2", "m3"}
	for _, text := range texts {
		if _, ok := reg.AppendChat(roomID, ChatMessage{From: "x", Text: text}); !ok {
			t.Fatalf("AppendChat(%q) failed", text)
		}
	}
	history := reg.RoomChatHistory(roomID)
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	for i, msg := range history {
		if msg.ID != uint64(i) {
			t.Fatalf("history[%d].ID = %d, want %d", i, msg.ID, i)
		}
		if msg.Text != texts[i] {
			t.Fatalf("history[%d].Text = %q, want %q", i, msg.Text, texts[i])
		}
	}
}

// TestSingleAdminInvariant checks that exactly one joined
// participant has is_admin=true.
func TestSingleAdminInvariant(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	joinClient(t, reg, roomID, 1, "a")
	joinClient(t, reg, roomID, 2, "b")
	joinClient(t, reg, roomID, 3, "c")

	admins := countAdmins(reg, roomID)
	if admins != 1 {
		t.Fatalf("admins = %d, want 1", admins)
	}
}

// TestAdminTransferOnDisconnect checks that when the admin
// disconnects, the lowest remaining client id becomes admin.
func TestAdminTransferOnDisconnect(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	joinClient(t, reg, roomID, 1, "a") // admin
	joinClient(t, reg, roomID, 2, "b")

	reg.Disconnect(1)
	reg.TransferAdminToLowestRemaining(roomID)

	c, ok := reg.Client(2)
	if !ok {
		t.Fatal("client 2 missing")
	}
	if c.Participant == nil || !c.Participant.IsAdmin {
		t.Fatal("client 2 should have become admin")
	}
	if countAdmins(reg, roomID) != 1 {
		t.Fatalf("admins after transfer = %d, want 1", countAdmins(reg, roomID))
	}
}

func countAdmins(reg *Registry, roomID string) int {
	snap, _ := reg.SnapshotRoom(roomID)
	n := 0
	for _, id := range snap.ClientIDs {
		if c, ok := reg.Client(id); ok && c.Participant != nil && c.Participant.IsAdmin {
			n++
		}
	}
	return n
}

// TestPromoteAdminDemotesPrevious checks that promoting a new admin demotes
// whoever held it before.
func TestPromoteAdminDemotesPrevious(t *testing.T) {
	reg, roomID := newTestRegistry(t)
	joinClient(t, reg, roomID, 1, "a") // admin
	joinClient(t, reg, roomID, 2, "b")

	reg.PromoteAdmin(roomID, 2)

	c1, _ := reg.Client(1)
	c2, _ := reg.Client(2)
	if c1.Participant.IsAdmin {
		t.Fatal("client 1 should have been demoted")
	}
	if !c2.Participant.IsAdmin {
		t.Fatal("client 2 should have been promoted")
	}
}

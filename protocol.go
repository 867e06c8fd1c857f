package main

import "encoding/json"

// InEvent is the generic shape of a client->server text frame. Fields
// absent from a message are treated as "unchanged" on input, so every field
// below is a pointer or has an explicit zero-value meaning "not present".
type InEvent struct {
	Event       string         `json:"event"`
	Participant *InParticipant `json:"participant,omitempty"`
	Ambience    *string        `json:"ambience,omitempty"`
	Chat        *InChat        `json:"chat,omitempty"`
}

// InParticipant carries the fields the client may set on join/participant.
type InParticipant struct {
	ID        *uint64 `json:"id,omitempty"`
	Name      *string `json:"name,omitempty"`
	IsAdmin   *bool   `json:"is_admin,omitempty"`
	IsMuted   *bool   `json:"is_muted,omitempty"`
	IsSharing *bool   `json:"is_sharing,omitempty"`
}

// InChat carries the fields the client may set on a chat event.
type InChat struct {
	Message *string `json:"message,omitempty"`
}

// OutParticipant is the wire shape of a participant in any outbound event.
type OutParticipant struct {
	ID        uint64 `json:"id"`
	Name      string `json:"name"`
	IsAdmin   bool   `json:"is_admin"`
	IsMuted   bool   `json:"is_muted"`
	IsSharing bool   `json:"is_sharing"`
}

// OutAmbience is the wire shape of one ambience entry in the room event's list.
type OutAmbience struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OutChatMessage is the wire shape of a single chat message.
type OutChatMessage struct {
	ID   uint64 `json:"id"`
	From string `json:"from"`
	Text string `json:"text"`
	Time string `json:"time"`
}

func marshalEvent(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every outbound event is built from this package's own structs;
		// a marshal failure here means a programmer error, not bad input.
		panic("protocol: marshal event: " + err.Error())
	}
	return b
}

// roomEvent is sent once to a joining client.
type roomEvent struct {
	Event        string           `json:"event"`
	RoomName     string           `json:"room_name"`
	Participant  OutParticipant   `json:"participant"`
	Participants []OutParticipant `json:"participants"`
	Ambiences    []OutAmbience    `json:"ambiences"`
	Ambience     string           `json:"ambience"`
	Chat         chatHistory      `json:"chat"`
}

type chatHistory struct {
	History []OutChatMessage `json:"history"`
}

func buildRoomEvent(roomName string, self OutParticipant, participants []OutParticipant, ambiences []OutAmbience, ambience string, history []OutChatMessage) []byte {
	return marshalEvent(roomEvent{
		Event:        "room",
		RoomName:     roomName,
		Participant:  self,
		Participants: participants,
		Ambiences:    ambiences,
		Ambience:     ambience,
		Chat:         chatHistory{History: history},
	})
}

// participantsEvent broadcasts the current roster.
type participantsEvent struct {
	Event        string           `json:"event"`
	Participants []OutParticipant `json:"participants"`
}

func buildParticipantsEvent(participants []OutParticipant) []byte {
	return marshalEvent(participantsEvent{Event: "participants", Participants: participants})
}

// ambienceEvent broadcasts the room's new ambience selection.
type ambienceEvent struct {
	Event    string `json:"event"`
	Ambience string `json:"ambience"`
}

func buildAmbienceEvent(ambience string) []byte {
	return marshalEvent(ambienceEvent{Event: "ambience", Ambience: ambience})
}

// chatEvent broadcasts exactly one newly-appended chat message.
type chatEvent struct {
	Event string           `json:"event"`
	Chat  outChatSingleton `json:"chat"`
}

type outChatSingleton struct {
	Message OutChatMessage `json:"message"`
}

func buildChatEvent(msg OutChatMessage) []byte {
	return marshalEvent(chatEvent{Event: "chat", Chat: outChatSingleton{Message: msg}})
}

// talkingEvent broadcasts the ids currently detected as talking.
type talkingEvent struct {
	Event        string   `json:"event"`
	Participants []uint64 `json:"participants"`
}

func buildTalkingEvent(ids []uint64) []byte {
	return marshalEvent(talkingEvent{Event: "talking", Participants: ids})
}

// leaveEvent is broadcast on disconnect; it carries no extra fields.
type leaveEvent struct {
	Event string `json:"event"`
}

func buildLeaveEvent() []byte {
	return marshalEvent(leaveEvent{Event: "leave"})
}

// errorEvent is sent to a single client, e.g. on connect to a nonexistent room.
type errorEvent struct {
	Event string `json:"event"`
	Error string `json:"error"`
}

func buildErrorEvent(msg string) []byte {
	return marshalEvent(errorEvent{Event: "error", Error: msg})
}

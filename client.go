package main

import (
	"time"

	"easymund/internal/codec"
)

// ClientState is the per-client state-machine position.
// Transitions only move forward: Connected -> Joined -> Disconnected.
type ClientState int

const (
	StateConnected ClientState = iota
	StateJoined
	StateDisconnected
)

// Participant is the user-visible identity attached to a client, absent
// until a "join" event is processed.
type Participant struct {
	Name      string
	IsAdmin   bool
	IsMuted   bool
	IsSharing bool
}

// Client is the ephemeral per-connection entity keyed by a monotonically
// increasing id.
type Client struct {
	ID     uint64
	RoomID string
	State  ClientState

	// JitterBuffer is the ordered sequence of mono f32 samples produced by
	// decoding incoming audio, prefilled with packetSize/2 zero samples as
	// initial latency padding to absorb inter-arrival jitter.
	JitterBuffer []float32
	SendCursor   int

	// Captured mirrors every decoded sample ever appended to JitterBuffer,
	// independent of SendCursor, so the full call can be dumped to
	// client_<id>.wav on disconnect.
	Captured []float32

	Codec *codec.Codec

	IsTalking      bool
	SilenceCounter int

	Participant *Participant
}

// NewClient creates a client bound to roomID with a fresh codec and the
// standard pre-roll padding.
func NewClient(id uint64, roomID string, packetSize int) (*Client, error) {
	c, err := codec.New(packetSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		ID:           id,
		RoomID:       roomID,
		State:        StateConnected,
		JitterBuffer: make([]float32, packetSize/2),
		Codec:        c,
	}, nil
}

// AppendCapture appends newly-decoded samples to both the jitter buffer and
// the debug capture stream.
func (c *Client) AppendCapture(samples []float32) {
	c.JitterBuffer = append(c.JitterBuffer, samples...)
	c.Captured = append(c.Captured, samples...)
}

// DrainChunk reads at most n samples starting at SendCursor, advancing the
// cursor by the number actually read. The chunk may be
// shorter than n ("starving"); this is permitted.
func (c *Client) DrainChunk(n int) []float32 {
	avail := len(c.JitterBuffer) - c.SendCursor
	if avail < 0 {
		avail = 0
	}
	if avail > n {
		avail = n
	}
	start := c.SendCursor
	c.SendCursor += avail
	return c.JitterBuffer[start : start+avail]
}

// OutParticipantView converts this client's participant, if any, to the
// wire shape. ok is false until the client has joined.
func (c *Client) OutParticipantView() (p OutParticipant, ok bool) {
	if c.Participant == nil {
		return OutParticipant{}, false
	}
	return OutParticipant{
		ID:        c.ID,
		Name:      c.Participant.Name,
		IsAdmin:   c.Participant.IsAdmin,
		IsMuted:   c.Participant.IsMuted,
		IsSharing: c.Participant.IsSharing,
	}, true
}

// talkingThreshold and silenceTicksToUnlatch set the detector's
// hysteresis: avg_abs > 0.025 latches talking; 5 consecutive ticks below
// threshold unlatch it.
const (
	talkingThreshold      = 0.025
	silenceTicksToUnlatch = 5
)

// UpdateTalking applies one tick of the talking-hysteresis detector to a
// capture chunk and reports whether is_talking changed this tick.
func (c *Client) UpdateTalking(chunk []float32) (changed bool) {
	var sum float32
	for _, s := range chunk {
		if s < 0 {
			s = -s
		}
		sum += s
	}
	avg := sum / float32(len(chunk)+1)

	if avg > talkingThreshold {
		if !c.IsTalking {
			c.IsTalking = true
			c.SilenceCounter = 0
			return true
		}
		c.SilenceCounter = 0
		return false
	}

	if c.IsTalking {
		c.SilenceCounter++
		if c.SilenceCounter >= silenceTicksToUnlatch {
			c.IsTalking = false
			c.SilenceCounter = 0
			return true
		}
	}
	return false
}

// ChatMessage is one entry in a room's append-only chat log.
type ChatMessage struct {
	ID   uint64
	From string
	Text string
	Time time.Time
}

func (m ChatMessage) outbound() OutChatMessage {
	return OutChatMessage{ID: m.ID, From: m.From, Text: m.Text, Time: m.Time.Format("15:04:05")}
}

package main

import (
	"log"
)

// Stream-kind prefix byte on every binary frame, both directions.
const (
	streamKindAudio byte = 0x00
	streamKindVideo byte = 0x01
)

// HandleBinary routes one inbound binary frame by its leading stream-kind
// byte: audio is decoded and appended to the sender's jitter buffer;
// video is forwarded verbatim, prefix included, to every other client in
// the sender's room with no decoding and no reliability.
func (d *Dispatcher) HandleBinary(clientID uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	switch data[0] {
	case streamKindAudio:
		d.handleAudioBinary(clientID, data[1:])
	case streamKindVideo:
		d.forwardVideo(clientID, data)
	default:
		log.Printf("[dispatch] client %d: unknown stream kind %d", clientID, data[0])
	}
}

func (d *Dispatcher) handleAudioBinary(clientID uint64, payload []byte) {
	client, ok := d.reg.Client(clientID)
	if !ok {
		return
	}
	samples, err := client.Codec.Decode(payload)
	if err != nil {
		log.Printf("[dispatch] client %d: decode: %v", clientID, err)
		return
	}
	d.reg.WithClient(clientID, func(c *Client) {
		c.AppendCapture(samples)
	})
}

func (d *Dispatcher) forwardVideo(senderID uint64, data []byte) {
	client, ok := d.reg.Client(senderID)
	if !ok {
		return
	}
	snap, ok := d.reg.SnapshotRoom(client.RoomID)
	if !ok {
		return
	}
	for _, id := range snap.ClientIDs {
		if id == senderID {
			continue
		}
		d.send.Send(id, wsOpBinary, data)
	}
}

// Mixer is the periodic tick: per-room ambience advance, per-client
// jitter-buffer drain, N×(N-1) downmix, re-encode, and talking detection.
// It runs at fixed period on its own task; all its registry access goes
// through the same mutex the dispatcher uses.
type Mixer struct {
	reg        *Registry
	send       Sender
	packetSize int
}

// NewMixer creates a mixer bound to reg, producing packetSize-sample
// packets per tick.
func NewMixer(reg *Registry, send Sender, packetSize int) *Mixer {
	return &Mixer{reg: reg, send: send, packetSize: packetSize}
}

// Tick runs one iteration of the mix engine over every room.
func (m *Mixer) Tick() {
	for _, roomID := range m.reg.SnapshotRoomIDs() {
		m.tickRoom(roomID)
	}
}

func (m *Mixer) tickRoom(roomID string) {
	snap, ok := m.reg.SnapshotRoom(roomID)
	if !ok {
		return
	}

	// Step 1: ambience chunk, wrapping at end of buffer. If the ambience is
	// shorter than packetSize or missing, the chunk is treated as absent.
	var ambienceChunk []float32
	if amb, ok := m.reg.Ambience(snap.AmbienceID); ok && len(amb.Samples) > 0 {
		chunk, cursor := ambienceChunkFrom(amb.Samples, snap.AmbienceCursor, m.packetSize)
		m.reg.AdvanceAmbienceCursor(roomID, cursor)
		if len(amb.Samples) >= m.packetSize {
			ambienceChunk = chunk
		}
	}

	// Step 2: per-client capture chunks, and step 3: talking detection.
	// Draining and the detector both run under the registry mutex so the
	// dispatcher cannot append to the same jitter buffer mid-drain.
	chunks := make(map[uint64][]float32, len(snap.ClientIDs))
	var talking []uint64
	var talkingChanged bool
	for _, id := range snap.ClientIDs {
		m.reg.WithClient(id, func(c *Client) {
			chunk := c.DrainChunk(m.packetSize)
			chunks[id] = chunk
			if c.UpdateTalking(chunk) {
				talkingChanged = true
			}
			if c.IsTalking {
				talking = append(talking, id)
			}
		})
	}
	if talkingChanged {
		payload := buildTalkingEvent(talking)
		for _, id := range snap.ClientIDs {
			m.send.Send(id, wsOpText, payload)
		}
	}

	// Step 4 & 5: downmix per listener, encode, enqueue.
	for _, listener := range snap.ClientIDs {
		mixed := mixFor(listener, ambienceChunk, chunks)
		if len(mixed) == 0 {
			continue
		}
		client, ok := m.reg.Client(listener)
		if !ok {
			continue
		}
		encoded, err := client.Codec.Encode(mixed)
		if err != nil {
			log.Printf("[mix] room %s client %d: encode: %v", roomID, listener, err)
			continue
		}
		frame := make([]byte, 0, len(encoded)+1)
		frame = append(frame, streamKindAudio)
		frame = append(frame, encoded...)
		m.send.Send(listener, wsOpBinary, frame)
	}
}

// ambienceChunkFrom copies n samples from buf starting at pos, wrapping at
// the end of buf. Returns the chunk and the
// new cursor.
func ambienceChunkFrom(buf []float32, pos, n int) ([]float32, int) {
	if len(buf) == 0 {
		return nil, 0
	}
	if pos >= len(buf) {
		pos = 0
	}
	chunk := make([]float32, n)
	for i := 0; i < n; i++ {
		chunk[i] = buf[pos]
		pos++
		if pos >= len(buf) {
			pos = 0
		}
	}
	return chunk, pos
}

// mixFor sums the ambience chunk (if present) and every other client's
// capture chunk for listener, sample-wise, with no clipping and no gain
// normalization. Result length is the ambience chunk length,
// or, if ambience is absent, the length of the first contributing channel
// (the lowest-id other client with a non-empty chunk).
func mixFor(listener uint64, ambienceChunk []float32, chunks map[uint64][]float32) []float32 {
	length := len(ambienceChunk)
	if length == 0 {
		var first uint64
		found := false
		for id, chunk := range chunks {
			if id == listener || len(chunk) == 0 {
				continue
			}
			if !found || id < first {
				first, found = id, true
			}
		}
		if found {
			length = len(chunks[first])
		}
	}
	if length == 0 {
		return nil
	}

	result := make([]float32, length)
	copy(result, ambienceChunk)
	for id, chunk := range chunks {
		if id == listener {
			continue
		}
		n := len(chunk)
		if n > length {
			n = length
		}
		for i := 0; i < n; i++ {
			result[i] += chunk[i]
		}
	}
	return result
}

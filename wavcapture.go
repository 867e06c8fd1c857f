package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavSampleRate = 44100

// writeClientCapture dumps a disconnected client's full captured stream to
// client_<id>.wav, mono 44.1kHz 16-bit, as a debug artifact. A failure here
// is logged and never blocks disconnect cleanup.
func writeClientCapture(dir string, client *Client) {
	if len(client.Captured) == 0 {
		return
	}
	filename := fmt.Sprintf("%s/client_%d.wav", dir, client.ID)
	f, err := os.Create(filename)
	if err != nil {
		log.Printf("[capture] create %s: %v", filename, err)
		return
	}
	defer f.Close()

	ints := make([]int, len(client.Captured))
	for i, s := range client.Captured {
		ints[i] = int(floatToPCM16(s))
	}

	enc := wav.NewEncoder(f, wavSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: wavSampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		log.Printf("[capture] write %s: %v", filename, err)
		return
	}
	if err := enc.Close(); err != nil {
		log.Printf("[capture] close %s: %v", filename, err)
		return
	}
	log.Printf("[capture] client %d stream (%d samples) written to %s", client.ID, len(client.Captured), filename)
}

func floatToPCM16(f float32) int16 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(f * 32767)
}

package codec

import "testing"

// filteredNoise generates a low-pass-filtered pseudo-random signal, closer
// to real speech than white noise for a round-trip fixture.
func filteredNoise(n int, seed uint32) []float32 {
	out := make([]float32, n)
	var value float32
	state := seed
	for i := range out {
		state = state*1664525 + 1013904223
		rnd := float32(int32(state)) / float32(1<<31) // in [-1, 1)
		value = value*0.85 + rnd*0.15
		out[i] = value
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c, err := New(2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const tolerance = 2.0 / 32767.0
	for round := 0; round < 16; round++ {
		in := filteredNoise(2048, uint32(round+1))
		encoded, err := c.Encode(in)
		if err != nil {
			t.Fatalf("round %d: Encode: %v", round, err)
		}
		decoded, err := c.Decode(encoded)
		if err != nil {
			t.Fatalf("round %d: Decode: %v", round, err)
		}
		if len(decoded) != len(in) {
			t.Fatalf("round %d: got %d samples, want %d", round, len(decoded), len(in))
		}
		for i := range in {
			diff := decoded[i] - in[i]
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				t.Fatalf("round %d: sample %d: |%.6f - %.6f| = %.6f > %.6f",
					round, i, decoded[i], in[i], diff, tolerance)
			}
		}
	}
}

func TestEncodeZeroPadsShortInput(t *testing.T) {
	c, err := New(2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	short := []float32{0.5, 0.5, 0.5}
	encoded, err := c.Encode(short)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2048 {
		t.Fatalf("got %d samples, want 2048", len(decoded))
	}
	for i := 3; i < len(decoded); i++ {
		if decoded[i] != 0 {
			t.Fatalf("sample %d: got %f, want 0 (zero-padded)", i, decoded[i])
		}
	}
}

func TestFrameNumberIncrements(t *testing.T) {
	c, err := New(2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	zero := make([]float32, 2048)
	for i := 0; i < 3; i++ {
		if _, err := c.Encode(zero); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}
	if c.frameNum != 3 {
		t.Fatalf("frameNum = %d, want 3", c.frameNum)
	}
}

func TestStreamInfoShape(t *testing.T) {
	c, err := New(2048)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	info := c.StreamInfo()
	if len(info) != 34 {
		t.Fatalf("StreamInfo length = %d, want 34", len(info))
	}
}

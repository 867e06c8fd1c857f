// Package codec wraps per-client fixed-packet audio encode/decode behind a
// tiny interface: encode(samples) -> bytes, decode(bytes) -> samples. It is
// the server's only boundary with a lossy audio format; every sample that
// crosses it is mono float32 in [-1, 1] at a fixed packet size.
//
// Decoding uses github.com/mewkiz/flac's frame package, which parses a
// standalone FLAC audio frame without requiring its container. Encoding
// pairs with it: mewkiz/flac is decode-only, so this package hand-writes
// minimal verbatim-subframe frames against the FLAC bitstream, the same
// contract the decoder parses on the other end. A verbatim subframe stores
// samples uncompressed, which keeps the encoder small while staying
// wire-compatible.
package codec

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac/frame"
)

const (
	sampleRate    = 44100
	channels      = 1
	bitsPerSample = 16
)

// Codec is one encoder+decoder pair bound to a fixed packet size.
// A Client owns exactly one Codec for its lifetime.
type Codec struct {
	packetSize int
	frameNum   uint64
	streamInfo []byte
}

// New creates a codec for packetSize mono samples per packet at 44.1kHz/16-bit.
func New(packetSize int) (*Codec, error) {
	if packetSize <= 0 || packetSize > 0xFFFF {
		return nil, fmt.Errorf("codec: invalid packet size %d", packetSize)
	}
	return &Codec{
		packetSize: packetSize,
		streamInfo: buildStreamInfo(sampleRate, channels, bitsPerSample, uint16(packetSize)),
	}, nil
}

// StreamInfo returns the synthetic STREAMINFO block body built for this
// codec instance, exposed for diagnostics and for any future container
// writer; the raw-frame decode path below does not require it.
func (c *Codec) StreamInfo() []byte {
	return c.streamInfo
}

// Encode scales, pads, and frames one packet of mono float32 samples in
// [-1, 1]. Fewer than packetSize input samples are right-zero-padded.
func (c *Codec) Encode(samples []float32) ([]byte, error) {
	pcm := make([]int32, c.packetSize)
	for i := 0; i < c.packetSize; i++ {
		var s float32
		if i < len(samples) {
			s = samples[i]
		}
		pcm[i] = floatToInt16(s)
	}

	w := &bitWriter{}
	writeFrameHeader(w, c.packetSize, c.frameNum)
	headerBytes := w.align()
	headerBytes = append(headerBytes, 0) // placeholder for CRC-8, filled below
	headerBytes[len(headerBytes)-1] = crc8ATM(headerBytes[:len(headerBytes)-1])

	sw := &bitWriter{}
	writeVerbatimSubframe(sw, pcm, bitsPerSample)
	body := sw.align()

	frameBytes := make([]byte, 0, len(headerBytes)+len(body)+2)
	frameBytes = append(frameBytes, headerBytes...)
	frameBytes = append(frameBytes, body...)
	crc := crc16IBM(frameBytes)
	frameBytes = append(frameBytes, byte(crc>>8), byte(crc))

	c.frameNum++
	return frameBytes, nil
}

// Decode parses one encoded packet back into packetSize mono float32 samples.
func (c *Codec) Decode(data []byte) ([]float32, error) {
	fr, err := frame.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	if len(fr.Subframes) == 0 {
		return nil, fmt.Errorf("codec: decode: no subframes")
	}
	sub := fr.Subframes[0]
	out := make([]float32, len(sub.Samples))
	for i, s := range sub.Samples {
		out[i] = int16ToFloat(int32(s))
	}
	return out, nil
}

func floatToInt16(f float32) int32 {
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	v := int32(f * 32767)
	return v
}

func int16ToFloat(v int32) float32 {
	return float32(v) / 32768.0
}

// writeFrameHeader writes the fixed-blocksize frame header for a mono,
// 44.1kHz, 16-bit, packetSize-sample frame. Block size 2048 and sample rate
// 44100 both have exact 4-bit codes in the FLAC header, so no extra
// out-of-band bits are required.
func writeFrameHeader(w *bitWriter, packetSize int, frameNum uint64) {
	w.writeBits(0x3FFE, 14) // sync code
	w.writeBits(0, 1)       // reserved
	w.writeBits(0, 1)       // blocking strategy: fixed-blocksize
	w.writeBits(blockSizeCode(packetSize), 4)
	w.writeBits(0x9, 4) // sample rate: 44.1kHz
	w.writeBits(0x0, 4) // channel assignment: mono
	w.writeBits(0x4, 3) // bits per sample: 16
	w.writeBits(0, 1)   // reserved
	for _, b := range encodeUTF8Number(frameNum) {
		w.writeBits(uint64(b), 8)
	}
	if code := blockSizeExtra(packetSize); code != nil {
		w.writeBits(code.value, code.bits)
	}
}

type extraBits struct {
	value uint64
	bits  uint
}

// blockSizeCode returns the 4-bit block-size code for packetSize. 2048 maps
// to the 256*2^(n-8) family (n=0xB); any
// other packet size falls back to the 16-bit "read from end of header" form.
func blockSizeCode(packetSize int) uint64 {
	for n := uint64(0x8); n <= 0xF; n++ {
		if 256*(1<<(n-8)) == packetSize {
			return n
		}
	}
	for n := uint64(0x2); n <= 0x5; n++ {
		if 576*(1<<(n-2)) == packetSize {
			return n
		}
	}
	return 0x7
}

func blockSizeExtra(packetSize int) *extraBits {
	for n := uint64(0x8); n <= 0xF; n++ {
		if 256*(1<<(n-8)) == packetSize {
			return nil
		}
	}
	for n := uint64(0x2); n <= 0x5; n++ {
		if 576*(1<<(n-2)) == packetSize {
			return nil
		}
	}
	return &extraBits{value: uint64(packetSize - 1), bits: 16}
}

// writeVerbatimSubframe writes a FLAC VERBATIM subframe: a zero pad bit, the
// 6-bit subframe type (0b000001 = verbatim), a zero wasted-bits flag, then
// one bps-bit signed sample per value with no prediction or residual coding.
func writeVerbatimSubframe(w *bitWriter, pcm []int32, bps uint) {
	w.writeBits(0, 1) // zero pad
	w.writeBits(1, 6) // subframe type: SUBFRAME_VERBATIM
	w.writeBits(0, 1) // no wasted bits
	for _, s := range pcm {
		w.writeSigned(s, bps)
	}
}

package codec

// buildStreamInfo packs a synthetic FLAC STREAMINFO metadata block body (34
// bytes, matching the on-disk FLAC format exactly) for a fixed-packet-size
// mono stream. Every frame this codec emits satisfies it by construction:
// min/max blocksize both equal packetSize (no variable blocking), and
// min/max framesize are left as generous placeholders since frames are
// verbatim-encoded and their exact size depends only on packetSize and bps.
func buildStreamInfo(sampleRate uint32, channels, bitsPerSample uint8, packetSize uint16) []byte {
	w := &bitWriter{}
	w.writeBits(uint64(packetSize), 16) // min blocksize
	w.writeBits(uint64(packetSize), 16) // max blocksize
	w.writeBits(1024, 24)               // min framesize (placeholder)
	w.writeBits(8192, 24)               // max framesize (placeholder)
	w.writeBits(uint64(sampleRate), 20)
	w.writeBits(uint64(channels-1), 3)
	w.writeBits(uint64(bitsPerSample-1), 5)
	w.writeBits(0, 36) // total samples unknown (streaming)
	info := w.align()
	info = append(info, make([]byte, 16)...) // MD5 placeholder
	return info
}

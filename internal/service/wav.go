package service

import (
	"bytes"
	"encoding/binary"
)

const (
	wavChannels      = 1
	wavBitsPerSample = 16
)

// encodeWAV wraps mono s16le PCM into a RIFF/WAVE container.
func encodeWAV(pcm []byte, sampleRate int) []byte {
	blockAlign := wavChannels * wavBitsPerSample / 8
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavChannels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func silence(seconds float64, sampleRate int) []byte {
	n := int(seconds*float64(sampleRate)) * wavBitsPerSample / 8
	return make([]byte, n)
}

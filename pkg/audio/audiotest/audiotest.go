// Package audiotest builds small encoded assets for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"time"
)

// SampleRate of the generated WAV files.
const SampleRate = 8000

// WAV returns a mono 16-bit PCM file holding a quiet 440 Hz tone of length d.
func WAV(d time.Duration) []byte {
	n := int(d.Seconds() * SampleRate)
	dataLen := uint32(n * 2)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	le(&buf, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	le(&buf, uint32(16))
	le(&buf, uint16(1)) // PCM
	le(&buf, uint16(1)) // mono
	le(&buf, uint32(SampleRate))
	le(&buf, uint32(SampleRate*2))
	le(&buf, uint16(2))
	le(&buf, uint16(16))
	buf.WriteString("data")
	le(&buf, dataLen)
	for i := 0; i < n; i++ {
		v := 0.1 * math.Sin(2*math.Pi*440*float64(i)/SampleRate)
		le(&buf, int16(v*math.MaxInt16))
	}
	return buf.Bytes()
}

func le(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

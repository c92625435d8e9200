// Package wav decodes and encodes RIFF/WAVE audio in memory.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// HeaderSize is the size of a canonical 44-byte PCM WAV header.
	HeaderSize = 44

	formatPCM     = 1
	formatFloat32 = 3
)

var (
	ErrMalformed         = errors.New("wav: malformed data")
	ErrUnsupportedFormat = errors.New("wav: unsupported format")
)

// Clip is decoded audio: interleaved float32 samples in [-1, 1].
type Clip struct {
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the per-channel sample count.
func (c *Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback duration of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Decode parses a RIFF/WAVE buffer. It accepts 16-bit PCM (format 1) and
// 32-bit float (format 3); everything else is ErrUnsupportedFormat. A
// missing data chunk or a data chunk running past the buffer is
// ErrMalformed. Unknown chunks are skipped. A missing fmt chunk falls
// back to mono PCM16 at 44100 Hz, matching what the upload side produces.
func Decode(b []byte) (*Clip, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformed)
	}

	var (
		format     uint16 = formatPCM
		channels   uint16 = 1
		sampleRate uint32 = 44100
		bits       uint16 = 16
		data       []byte
	)

	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body > len(b) {
			return nil, fmt.Errorf("%w: chunk %q overruns buffer", ErrMalformed, id)
		}

		switch id {
		case "fmt ":
			if body+16 > len(b) || size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrMalformed)
			}
			format = binary.LittleEndian.Uint16(b[body:])
			channels = binary.LittleEndian.Uint16(b[body+2:])
			sampleRate = binary.LittleEndian.Uint32(b[body+4:])
			bits = binary.LittleEndian.Uint16(b[body+14:])
		case "data":
			if body+size > len(b) {
				return nil, fmt.Errorf("%w: data chunk overruns buffer", ErrMalformed)
			}
			data = b[body : body+size]
		}

		// Chunks are word-aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if data == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrMalformed)
	}
	if channels == 0 || sampleRate == 0 {
		return nil, fmt.Errorf("%w: zero channels or sample rate", ErrMalformed)
	}

	var samples []float32
	switch {
	case format == formatPCM && bits == 16:
		samples = make([]float32, len(data)/2)
		for i := range samples {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			samples[i] = float32(s) / 32768
		}
	case format == formatFloat32 && bits == 32:
		samples = make([]float32, len(data)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	default:
		return nil, fmt.Errorf("%w: format %d with %d bits", ErrUnsupportedFormat, format, bits)
	}

	return &Clip{
		Samples:    samples,
		Channels:   int(channels),
		SampleRate: int(sampleRate),
	}, nil
}

// Encode renders the clip as 16-bit PCM WAV. Samples are scaled by 32767
// and clamped, so Decode(Encode(c)) reproduces c within 1/32768.
func Encode(c *Clip) []byte {
	pcm := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		v := math.Round(float64(s) * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}

	blockAlign := c.Channels * 2
	byteRate := c.SampleRate * blockAlign

	out := make([]byte, HeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], formatPCM)
	binary.LittleEndian.PutUint16(out[22:], uint16(c.Channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(c.SampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)
	return out
}

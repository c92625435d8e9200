package wav

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	in := &Clip{
		Samples:    []float32{0, 0.25, -0.25, 0.5, -0.5, 0.1234, -0.4321},
		Channels:   1,
		SampleRate: 44100,
	}

	out, err := Decode(Encode(in))
	require.NoError(t, err)

	assert.Equal(t, in.Channels, out.Channels)
	assert.Equal(t, in.SampleRate, out.SampleRate)
	require.Len(t, out.Samples, len(in.Samples))
	for i := range in.Samples {
		assert.InDelta(t, in.Samples[i], out.Samples[i], 1.0/32768, "sample %d", i)
	}
}

func TestEncodeClampsOutOfRange(t *testing.T) {
	in := &Clip{Samples: []float32{1.5, -1.5}, Channels: 1, SampleRate: 44100}

	out, err := Decode(Encode(in))
	require.NoError(t, err)
	require.Len(t, out.Samples, 2)
	assert.InDelta(t, 1.0, out.Samples[0], 1.0/32768)
	assert.InDelta(t, -1.0, out.Samples[1], 1.0/32768)
}

func TestEncodeHeader(t *testing.T) {
	in := &Clip{Samples: make([]float32, 200), Channels: 2, SampleRate: 48000}
	b := Encode(in)

	require.GreaterOrEqual(t, len(b), HeaderSize)
	assert.Equal(t, "RIFF", string(b[0:4]))
	assert.Equal(t, "WAVE", string(b[8:12]))
	assert.Equal(t, uint32(36+400), binary.LittleEndian.Uint32(b[4:]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(b[22:]))           // channels
	assert.Equal(t, uint32(48000), binary.LittleEndian.Uint32(b[24:]))       // rate
	assert.Equal(t, uint32(48000*2*2), binary.LittleEndian.Uint32(b[28:]))   // byte rate
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(b[32:]))           // block align
	assert.Equal(t, uint32(400), binary.LittleEndian.Uint32(b[40:]))         // data size
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	b := Encode(&Clip{Samples: []float32{0.1}, Channels: 1, SampleRate: 44100})
	copy(b[0:4], "RIFX")

	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte("short"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsMissingData(t *testing.T) {
	b := Encode(&Clip{Samples: []float32{0.1, 0.2}, Channels: 1, SampleRate: 44100})
	copy(b[36:40], "junk")

	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsOversizedDataChunk(t *testing.T) {
	b := Encode(&Clip{Samples: []float32{0.1, 0.2}, Channels: 1, SampleRate: 44100})
	binary.LittleEndian.PutUint32(b[40:], 4096) // claims more than the buffer holds

	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeRejectsUnsupportedFormat(t *testing.T) {
	b := Encode(&Clip{Samples: []float32{0.1}, Channels: 1, SampleRate: 44100})
	binary.LittleEndian.PutUint16(b[34:], 24) // 24-bit

	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeFloat32(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.999}
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}

	b := make([]byte, HeaderSize+len(data))
	copy(b[0:4], "RIFF")
	binary.LittleEndian.PutUint32(b[4:], uint32(36+len(data)))
	copy(b[8:12], "WAVE")
	copy(b[12:16], "fmt ")
	binary.LittleEndian.PutUint32(b[16:], 16)
	binary.LittleEndian.PutUint16(b[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(b[22:], 1)
	binary.LittleEndian.PutUint32(b[24:], 22050)
	binary.LittleEndian.PutUint32(b[28:], 22050*4)
	binary.LittleEndian.PutUint16(b[32:], 4)
	binary.LittleEndian.PutUint16(b[34:], 32)
	copy(b[36:40], "data")
	binary.LittleEndian.PutUint32(b[40:], uint32(len(data)))
	copy(b[HeaderSize:], data)

	clip, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, 22050, clip.SampleRate)
	assert.Equal(t, samples, clip.Samples)
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	plain := Encode(&Clip{Samples: []float32{0.25, -0.25}, Channels: 1, SampleRate: 44100})

	// Splice a LIST chunk between fmt and data.
	list := make([]byte, 8+6)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:], 6)

	var b bytes.Buffer
	b.Write(plain[:36])
	b.Write(list)
	if len(list)%2 == 1 {
		b.WriteByte(0)
	}
	b.Write(plain[36:])
	raw := b.Bytes()
	binary.LittleEndian.PutUint32(raw[4:], uint32(len(raw)-8))

	clip, err := Decode(raw)
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 2)
}

func TestClipDuration(t *testing.T) {
	c := &Clip{Samples: make([]float32, 44100*2), Channels: 2, SampleRate: 44100}
	assert.Equal(t, time.Second, c.Duration())
	assert.Equal(t, 44100, c.Frames())
}

func TestDecodeAnyFlacFallback(t *testing.T) {
	pcm := make([]int32, 512)
	for i := range pcm {
		pcm[i] = int32(i%64) * 100
	}

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  65535,
		SampleRate:    44100,
		NChannels:     1,
		BitsPerSample: 16,
	})
	require.NoError(t, err)
	require.NoError(t, enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(pcm)),
			SampleRate:    44100,
			Channels:      frame.ChannelsMono,
			BitsPerSample: 16,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   pcm,
			NSamples:  len(pcm),
		}},
	}))
	require.NoError(t, enc.Close())

	clip, err := DecodeAny(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 44100, clip.SampleRate)
	assert.Equal(t, 1, clip.Channels)
	require.Len(t, clip.Samples, len(pcm))
	assert.InDelta(t, float32(100)/32768, clip.Samples[1], 1e-6)
}

func TestDecodeAnyRejectsGarbage(t *testing.T) {
	_, err := DecodeAny([]byte("definitely not audio, not even close"))
	assert.Error(t, err)
}

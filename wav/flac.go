package wav

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// DecodeAny decodes b as WAV and falls back to FLAC when the WAV parse
// fails. Some storage backends hand out FLAC bytes under a .wav name.
func DecodeAny(b []byte) (*Clip, error) {
	clip, wavErr := Decode(b)
	if wavErr == nil {
		return clip, nil
	}

	clip, flacErr := decodeFlac(b)
	if flacErr == nil {
		return clip, nil
	}
	return nil, fmt.Errorf("%w (flac fallback: %v)", wavErr, flacErr)
}

func decodeFlac(b []byte) (*Clip, error) {
	stream, err := flac.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("flac parse: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	if info.NChannels == 0 || info.SampleRate == 0 {
		return nil, errors.New("flac: zero channels or sample rate")
	}
	channels := int(info.NChannels)
	scale := float32(int64(1) << (info.BitsPerSample - 1))

	var samples []float32
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame: %w", err)
		}
		if len(f.Subframes) != channels {
			return nil, errors.New("flac: channel count mismatch")
		}
		n := int(f.Header.BlockSize)
		for i := 0; i < n; i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(f.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	if len(samples) == 0 {
		return nil, errors.New("flac: no audio frames")
	}

	return &Clip{
		Samples:    samples,
		Channels:   channels,
		SampleRate: int(info.SampleRate),
	}, nil
}

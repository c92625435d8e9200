package session

import "github.com/gulddaggi/MindStage/wav"

// mixGap separates answers in the whole-session mix.
const mixGapSeconds = 0.25

// maxMixBytes caps the secondary upload; longer sessions keep only the
// local copy.
const maxMixBytes = 100 * 1024 * 1024

// buildSessionMix concatenates the captured answers with short silence
// gaps. All captures come from the same recorder, so format is uniform;
// a capture that disagrees anyway is skipped.
func buildSessionMix(clips []*wav.Clip) *wav.Clip {
	var first *wav.Clip
	for _, c := range clips {
		if c != nil && len(c.Samples) > 0 {
			first = c
			break
		}
	}
	if first == nil {
		return nil
	}

	gap := make([]float32, int(mixGapSeconds*float64(first.SampleRate))*first.Channels)

	var samples []float32
	for _, c := range clips {
		if c == nil || len(c.Samples) == 0 {
			continue
		}
		if c.SampleRate != first.SampleRate || c.Channels != first.Channels {
			continue
		}
		if len(samples) > 0 {
			samples = append(samples, gap...)
		}
		samples = append(samples, c.Samples...)
	}

	return &wav.Clip{
		Samples:    samples,
		Channels:   first.Channels,
		SampleRate: first.SampleRate,
	}
}

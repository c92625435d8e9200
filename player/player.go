// Package player plays decoded clips through an output device for an
// exact, bounded duration.
package player

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gulddaggi/MindStage/audio"
	"github.com/gulddaggi/MindStage/wav"
)

// Voice selects which interviewer persona (and optionally which output
// device) a question plays through.
type Voice int

const (
	VoiceStrict Voice = iota
	VoiceLax
)

func (v Voice) String() string {
	if v == VoiceLax {
		return "lax"
	}
	return "strict"
}

// VoiceForDifficulty maps a question difficulty tag to a voice. Unknown
// or empty tags fall back to strict; known reports whether the tag was
// recognized so the caller can log the fallback.
func VoiceForDifficulty(tag string) (voice Voice, known bool) {
	switch strings.ToUpper(strings.TrimSpace(tag)) {
	case "STRICT":
		return VoiceStrict, true
	case "LAX":
		return VoiceLax, true
	}
	return VoiceStrict, false
}

const (
	// minDuration guards against clips with broken headers claiming
	// zero length.
	minDuration = 100 * time.Millisecond

	// drainGrace covers device buffer latency past the nominal clip end.
	drainGrace = 50 * time.Millisecond

	defaultPoll = 10 * time.Millisecond
)

type Player struct {
	ctx     audio.Context
	outputs map[Voice]*audio.DeviceInfo

	// overridable in tests
	now  func() time.Time
	poll time.Duration
}

// New builds a player on ctx. strictOutput and laxOutput name per-voice
// output devices; an empty or unmatched name means the system default.
func New(ctx audio.Context, strictOutput, laxOutput string) *Player {
	p := &Player{
		ctx:     ctx,
		outputs: make(map[Voice]*audio.DeviceInfo),
		now:     time.Now,
		poll:    defaultPoll,
	}
	if strictOutput != "" || laxOutput != "" {
		if outs, err := ctx.Outputs(); err == nil {
			for i := range outs {
				if outs[i].Name == strictOutput {
					p.outputs[VoiceStrict] = &outs[i]
				}
				if outs[i].Name == laxOutput {
					p.outputs[VoiceLax] = &outs[i]
				}
			}
		}
	}
	return p
}

// PlayExact plays the clip through the voice's output and returns when
// the clip has been consumed or the deadline passes, whichever is
// first. The deadline is now + min(duration + grace, safetyCap) on the
// monotonic clock, so the call can never hang on a device that stops
// reporting progress.
func (p *Player) PlayExact(clip *wav.Clip, voice Voice, safetyCap time.Duration) error {
	if clip == nil || clip.SampleRate == 0 || clip.Channels == 0 {
		return fmt.Errorf("player: invalid clip")
	}

	dur := clip.Duration()
	if dur < minDuration {
		dur = minDuration
	}
	wait := dur + drainGrace
	if safetyCap > 0 && wait > safetyCap {
		wait = safetyCap
	}
	deadline := p.now().Add(wait)

	pcm := make([]byte, len(clip.Samples)*2)
	for i, s := range clip.Samples {
		v := int32(s * 32767)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}

	totalFrames := uint64(clip.Frames())
	bytesPerFrame := clip.Channels * 2

	var cursor atomic.Uint64
	pull := func(out []byte, frameCount uint32) uint32 {
		pos := cursor.Load()
		if pos >= totalFrames {
			return 0
		}
		n := uint64(frameCount)
		if pos+n > totalFrames {
			n = totalFrames - pos
		}
		copy(out, pcm[pos*uint64(bytesPerFrame):(pos+n)*uint64(bytesPerFrame)])
		cursor.Add(n)
		return uint32(n)
	}

	device, err := p.ctx.NewPlayback(p.outputs[voice], audio.PlaybackConfig{
		SampleRate: uint32(clip.SampleRate),
		Channels:   uint32(clip.Channels),
	}, pull)
	if err != nil {
		return fmt.Errorf("player: opening output: %w", err)
	}
	defer device.Close()

	if err := device.Start(); err != nil {
		return fmt.Errorf("player: starting output: %w", err)
	}

	for cursor.Load() < totalFrames && p.now().Before(deadline) {
		time.Sleep(p.poll)
	}

	// The cursor reaching the end only means the last frame was handed
	// to the device; let its buffer flush before forcing a stop.
	if cursor.Load() >= totalFrames {
		grace := drainGrace
		if until := deadline.Sub(p.now()); until < grace {
			grace = until
		}
		if grace > 0 {
			time.Sleep(grace)
		}
	}

	device.Stop()
	return nil
}

package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulddaggi/MindStage/audio"
	"github.com/gulddaggi/MindStage/wav"
)

func testClip(seconds float64) *wav.Clip {
	const rate = 8000
	n := int(seconds * rate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.1
	}
	return &wav.Clip{Samples: samples, Channels: 1, SampleRate: rate}
}

func TestVoiceForDifficulty(t *testing.T) {
	cases := []struct {
		tag   string
		voice Voice
		known bool
	}{
		{"STRICT", VoiceStrict, true},
		{"strict", VoiceStrict, true},
		{" Lax ", VoiceLax, true},
		{"", VoiceStrict, false},
		{"MEDIUM", VoiceStrict, false},
	}
	for _, c := range cases {
		voice, known := VoiceForDifficulty(c.tag)
		assert.Equal(t, c.voice, voice, "tag %q", c.tag)
		assert.Equal(t, c.known, known, "tag %q", c.tag)
	}
}

func TestPlayExactCompletesNaturally(t *testing.T) {
	ctx := audio.NewFakeContext(nil)
	p := New(ctx, "", "")
	p.poll = time.Millisecond

	start := time.Now()
	err := p.PlayExact(testClip(0.2), VoiceStrict, 10*time.Second)
	require.NoError(t, err)

	// The fake drains instantly, so the call returns well before the
	// 200 ms nominal duration, let alone the safety cap. It still has
	// to hold the drain grace after the last frame is handed over, so
	// the device tail is not clipped.
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, drainGrace)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestPlayExactDeadlineWhenDeviceStalls(t *testing.T) {
	ctx := audio.NewFakeContext(nil)
	ctx.StallPlayback = true
	p := New(ctx, "", "")
	p.poll = time.Millisecond

	start := time.Now()
	err := p.PlayExact(testClip(30), VoiceLax, 100*time.Millisecond)
	require.NoError(t, err)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second, "suspension must stay bounded")
}

func TestPlayExactShortClipMinimumDuration(t *testing.T) {
	ctx := audio.NewFakeContext(nil)
	ctx.StallPlayback = true
	p := New(ctx, "", "")
	p.poll = time.Millisecond

	start := time.Now()
	// One sample; the 100 ms floor applies, then the deadline fires.
	err := p.PlayExact(&wav.Clip{Samples: []float32{0.5}, Channels: 1, SampleRate: 8000}, VoiceStrict, 10*time.Second)
	require.NoError(t, err)

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestPlayExactRejectsInvalidClip(t *testing.T) {
	p := New(audio.NewFakeContext(nil), "", "")
	assert.Error(t, p.PlayExact(nil, VoiceStrict, time.Second))
	assert.Error(t, p.PlayExact(&wav.Clip{}, VoiceStrict, time.Second))
}

// Package recorder captures microphone audio into a bounded in-memory
// buffer and exposes a cheap RMS level for metering.
package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gulddaggi/MindStage/audio"
	"github.com/gulddaggi/MindStage/wav"
)

// MaxSeconds bounds a single answer recording. Anything past it is
// dropped, not wrapped: the start of an answer matters more than the end.
const MaxSeconds = 180

// meteringSeconds sizes the wrapping ring used for level-only capture.
const meteringSeconds = 1

// levelWindow is the number of samples the RMS level is computed over.
const levelWindow = 1024

const maxTailSeconds = 5

var ErrNoDevice = errors.New("recorder: no capture device available")

type State int32

const (
	StateIdle State = iota
	StateMetering
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMetering:
		return "metering"
	case StateRecording:
		return "recording"
	}
	return "unknown"
}

type Config struct {
	SampleRate uint32
	Channels   uint32
	Device     string // preferred capture device name; empty = first available
}

// captureBuf is a single-producer single-consumer sample buffer. The
// device callback is the only writer; readers order their loads through
// the written counter.
type captureBuf struct {
	data    []int16
	wrap    bool
	written atomic.Uint64 // total samples ever pushed
}

func (b *captureBuf) push(raw []byte) {
	w := b.written.Load()
	n := len(raw) / 2
	if b.wrap {
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
			b.data[(int(w)+i)%len(b.data)] = s
		}
		b.written.Store(w + uint64(n))
		return
	}
	idx := int(w)
	if idx >= len(b.data) {
		return
	}
	if idx+n > len(b.data) {
		n = len(b.data) - idx
	}
	for i := 0; i < n; i++ {
		b.data[idx+i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	b.written.Store(w + uint64(n))
}

// rms returns the root-mean-square of the last levelWindow samples,
// normalized to [0, 1]. For a wrapping buffer the window may race the
// writer; the level is a UI meter, approximate is fine.
func (b *captureBuf) rms() float64 {
	w := int(b.written.Load())
	count := levelWindow
	if w < count {
		count = w
	}
	if !b.wrap && w > len(b.data) {
		w = len(b.data)
	}
	if count == 0 {
		return 0
	}
	var sum float64
	if b.wrap {
		for i := 0; i < count; i++ {
			s := float64(b.data[(w-count+i+len(b.data))%len(b.data)]) / 32768
			sum += s * s
		}
	} else {
		for i := w - count; i < w; i++ {
			s := float64(b.data[i]) / 32768
			sum += s * s
		}
	}
	return math.Sqrt(sum / float64(count))
}

type Recorder struct {
	ctx audio.Context
	cfg Config

	mu     sync.Mutex
	device audio.CaptureDevice

	state atomic.Int32
	cur   atomic.Pointer[captureBuf]
}

func New(ctx audio.Context, cfg Config) *Recorder {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels == 0 {
		cfg.Channels = 1
	}
	return &Recorder{ctx: ctx, cfg: cfg}
}

func (r *Recorder) State() State {
	return State(r.state.Load())
}

// StartRecord begins a fresh bounded recording, force-stopping any
// session already in progress.
func (r *Recorder) StartRecord() error {
	size := MaxSeconds * int(r.cfg.SampleRate) * int(r.cfg.Channels)
	return r.start(StateRecording, &captureBuf{data: make([]int16, size)})
}

// StartMetering begins level-only capture into a small wrapping ring.
// No audio is persisted.
func (r *Recorder) StartMetering() error {
	size := meteringSeconds * int(r.cfg.SampleRate) * int(r.cfg.Channels)
	return r.start(StateMetering, &captureBuf{data: make([]int16, size), wrap: true})
}

func (r *Recorder) start(target State, buf *captureBuf) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	device, err := r.openDevice()
	if err != nil {
		return err
	}

	r.cur.Store(buf)
	device.SetCallback(func(data []byte, _ uint32) {
		buf.push(data)
	})
	if err := device.Start(); err != nil {
		device.ClearCallback()
		device.Close()
		r.cur.Store(nil)
		return fmt.Errorf("starting capture: %w", err)
	}

	r.device = device
	r.state.Store(int32(target))
	return nil
}

func (r *Recorder) openDevice() (audio.CaptureDevice, error) {
	devices, err := r.ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDevice
	}

	selected := &devices[0]
	if r.cfg.Device != "" {
		for i := range devices {
			if devices[i].Name == r.cfg.Device {
				selected = &devices[i]
				break
			}
		}
	}

	return r.ctx.NewCapture(selected, audio.CaptureConfig{
		SampleRate: r.cfg.SampleRate,
		Channels:   r.cfg.Channels,
	})
}

// Level returns the current RMS input level in [0, 1]. It never blocks
// on the capture path and returns 0 when nothing is being captured.
func (r *Recorder) Level() float64 {
	if State(r.state.Load()) == StateIdle {
		return 0
	}
	buf := r.cur.Load()
	if buf == nil {
		return 0
	}
	return buf.rms()
}

// StopRecord stops the device and returns the captured audio from the
// start of the recording through the stop position plus tail seconds
// (clamped to [0, 5] and to the buffer end). A recording where nothing
// arrived yet yields a minimal 100 ms window of silence rather than an
// empty clip. Returns nil only when no recording was active.
func (r *Recorder) StopRecord(tail float64) *wav.Clip {
	r.mu.Lock()
	defer r.mu.Unlock()

	if State(r.state.Load()) != StateRecording {
		return nil
	}
	buf := r.cur.Load()

	pos := int(buf.written.Load())
	if pos > len(buf.data) {
		pos = len(buf.data)
	}

	r.stopLocked()

	if tail < 0 {
		tail = 0
	} else if tail > maxTailSeconds {
		tail = maxTailSeconds
	}
	end := pos + int(tail*float64(r.cfg.SampleRate))*int(r.cfg.Channels)
	if end > len(buf.data) {
		end = len(buf.data)
	}
	if end == 0 {
		end = int(r.cfg.SampleRate) / 10 * int(r.cfg.Channels)
		if end > len(buf.data) {
			end = len(buf.data)
		}
	}

	samples := make([]float32, end)
	for i := 0; i < end; i++ {
		samples[i] = float32(buf.data[i]) / 32768
	}

	return &wav.Clip{
		Samples:    samples,
		Channels:   int(r.cfg.Channels),
		SampleRate: int(r.cfg.SampleRate),
	}
}

// StopMetering stops a metering session. Stopping a full recording via
// this path discards the captured audio.
func (r *Recorder) StopMetering() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// Stop force-stops whatever is running and discards any capture.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *Recorder) stopLocked() {
	if r.device != nil {
		r.device.ClearCallback()
		r.device.Stop()
		r.device.Close()
		r.device = nil
	}
	r.state.Store(int32(StateIdle))
	r.cur.Store(nil)
}

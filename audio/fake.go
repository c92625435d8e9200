package audio

import (
	"sync"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext is an in-memory device backend for tests. Capture devices
// feed the configured PCM bytes to the callback synchronously inside
// Start, so a test observes a fully deterministic buffer; playback
// devices either drain their source immediately (StallPlayback false)
// or never pull at all (StallPlayback true).
type FakeContext struct {
	CaptureDevices []DeviceInfo
	OutputDevices  []DeviceInfo
	PCM            []byte
	StallPlayback  bool

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{
		CaptureDevices: []DeviceInfo{{ID: "fake-in", Name: "fake mic"}},
		OutputDevices:  []DeviceInfo{{ID: "fake-out", Name: "fake speaker"}},
		PCM:            pcm,
	}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.CaptureDevices, nil }
func (f *FakeContext) Outputs() ([]DeviceInfo, error) { return f.OutputDevices, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	c := &FakeCapture{pcm: f.PCM}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) NewPlayback(_ *DeviceInfo, _ PlaybackConfig, pull PullCallback) (PlaybackDevice, error) {
	return &FakePlayback{pull: pull, stall: f.StallPlayback}, nil
}

// Captures returns every capture device handed out so far, in order.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	pcm []byte

	mu      sync.Mutex
	cb      DataCallback
	started bool
	stopped bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake mic" }

func (f *FakeCapture) Started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *FakeCapture) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.started = true
	cb := f.cb
	f.mu.Unlock()

	if cb == nil {
		return nil
	}

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	for pos := 0; pos < len(f.pcm); {
		end := min(pos+chunkBytes, len(f.pcm))
		chunk := make([]byte, end-pos)
		copy(chunk, f.pcm[pos:end])
		cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
		pos = end
	}
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {}

type FakePlayback struct {
	pull  PullCallback
	stall bool

	once sync.Once
	stop chan struct{}
}

func (p *FakePlayback) Start() error {
	p.stop = make(chan struct{})
	if p.stall {
		return nil
	}
	go func() {
		buf := make([]byte, fakeFrameSize*fakeBytesPerFrame)
		for {
			select {
			case <-p.stop:
				return
			default:
			}
			if p.pull(buf, fakeFrameSize) == 0 {
				return
			}
		}
	}()
	return nil
}

func (p *FakePlayback) Stop() {
	p.once.Do(func() {
		if p.stop != nil {
			close(p.stop)
		}
	})
}

func (p *FakePlayback) Close() { p.Stop() }

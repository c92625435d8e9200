//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	return m.list(malgo.Capture)
}

func (m *malgoContext) Outputs() ([]DeviceInfo, error) {
	return m.list(malgo.Playback)
}

func (m *malgoContext) list(kind malgo.DeviceType) ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{
			ID:   hex.EncodeToString(d.ID.Pointer()[:]),
			Name: d.Name(),
		})
	}
	return result, nil
}

func deviceID(device *DeviceInfo) (*malgo.DeviceID, error) {
	if device == nil {
		return nil, nil
	}
	idBytes, err := hex.DecodeString(device.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid device ID: %w", err)
	}
	var devID malgo.DeviceID
	copy(devID[:], idBytes)
	return &devID, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	devID, err := deviceID(device)
	if err != nil {
		return nil, err
	}
	if devID != nil {
		deviceConfig.Capture.DeviceID = devID.Pointer()
	}

	c := &malgoCapture{name: deviceName(device)}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, frameCount uint32) {
			cb := c.callback.Load()
			if cb == nil {
				return
			}
			(*cb)(data, frameCount)
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	c.device = dev
	return c, nil
}

func (m *malgoContext) NewPlayback(device *DeviceInfo, config PlaybackConfig, pull PullCallback) (PlaybackDevice, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	devID, err := deviceID(device)
	if err != nil {
		return nil, err
	}
	if devID != nil {
		deviceConfig.Playback.DeviceID = devID.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			written := pull(out, frameCount)
			// Zero-fill the tail once the source is exhausted so the device
			// plays silence instead of stale buffer contents.
			start := int(written) * int(config.Channels) * 2
			for i := start; i < len(out); i++ {
				out[i] = 0
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	return &malgoPlayback{device: dev}, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

func deviceName(device *DeviceInfo) string {
	if device != nil {
		return device.Name
	}
	return "system default"
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string {
	return c.name
}

type malgoPlayback struct {
	device *malgo.Device
}

func (p *malgoPlayback) Start() error {
	return p.device.Start()
}

func (p *malgoPlayback) Stop() {
	p.device.Stop()
}

func (p *malgoPlayback) Close() {
	p.device.Uninit()
}

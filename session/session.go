// Package session drives one interview from first question to end
// notification: ask, countdown, record, upload, follow up, advance.
package session

import (
	"context"
	"time"

	"github.com/gulddaggi/MindStage/audio"
	"github.com/gulddaggi/MindStage/interview"
	"github.com/gulddaggi/MindStage/player"
	"github.com/gulddaggi/MindStage/wav"
)

type State int

const (
	StateInit State = iota
	StateDeviceCheck
	StateAsking
	StatePrepCountdown
	StateRecording
	StateUploading
	StateNextOrEnd
	StateEnd
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateDeviceCheck:
		return "device-check"
	case StateAsking:
		return "asking"
	case StatePrepCountdown:
		return "prep-countdown"
	case StateRecording:
		return "recording"
	case StateUploading:
		return "uploading"
	case StateNextOrEnd:
		return "next-or-end"
	case StateEnd:
		return "end"
	}
	return "unknown"
}

type Config struct {
	InterviewID    int
	Prep           time.Duration
	Answer         time.Duration
	Followups      bool
	RelistenWindow time.Duration
	RecordingTail  float64 // seconds kept past the stop position
	AskSafetyCap   time.Duration

	// AdvanceDelay is the pause between questions; SignalPoll is how
	// often cooperative flags are checked while recording.
	AdvanceDelay time.Duration
	SignalPoll   time.Duration
}

func (c *Config) applyDefaults() {
	if c.Answer <= 0 {
		c.Answer = 60 * time.Second
	}
	if c.RelistenWindow <= 0 {
		c.RelistenWindow = 10 * time.Second
	}
	if c.AskSafetyCap <= 0 {
		c.AskSafetyCap = 5 * time.Minute
	}
	if c.AdvanceDelay <= 0 {
		c.AdvanceDelay = 400 * time.Millisecond
	}
	if c.SignalPoll <= 0 {
		c.SignalPoll = 50 * time.Millisecond
	}
}

// Questions is the read side of the backend: what to ask.
type Questions interface {
	FetchQuestions(ctx context.Context, interviewID int) ([]interview.QuestionRef, error)
	DownloadAudio(ctx context.Context, url string) ([]byte, error)
	RequestFollowup(ctx context.Context, questionID int, objectKey string) (*interview.QuestionRef, error)
}

// Uploads is the write side: where answers go.
type Uploads interface {
	RequestUploadTarget(ctx context.Context, fileName string) (*interview.UploadTarget, error)
	PutBytes(ctx context.Context, target *interview.UploadTarget, b []byte, contentType string) error
	RegisterAnswer(ctx context.Context, questionID int, objectKey string) error
	NotifyEnd(ctx context.Context, interviewID int, objectKey *string) error
}

// Mic is the recorder surface the orchestrator needs.
type Mic interface {
	StartRecord() error
	StopRecord(tail float64) *wav.Clip
	Stop()
}

// Speaker plays question audio.
type Speaker interface {
	PlayExact(clip *wav.Clip, voice player.Voice, safetyCap time.Duration) error
}

// DeviceLister answers the pre-session capture-device check.
type DeviceLister interface {
	Devices() ([]audio.DeviceInfo, error)
}

// Saver persists artifacts best-effort; empty return means not saved.
type Saver interface {
	SaveRecording(clip *wav.Clip, session string, question int, followup bool) string
	SaveSessionMix(clip *wav.Clip, session string) string
	DumpBadAudio(b []byte) string
}

// Presenter receives progress for display. Implementations must not
// block; the orchestrator calls them from its own goroutine.
type Presenter interface {
	StateChanged(s State)
	Question(index, total int, followup bool)
	Countdown(secondsLeft int)
	RecordingProgress(elapsed, total time.Duration)
	ReplayAvailable(window time.Duration)
	Status(msg string)
	Fatal(msg string)
	Done()
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) StateChanged(State)                        {}
func (NopPresenter) Question(int, int, bool)                   {}
func (NopPresenter) Countdown(int)                             {}
func (NopPresenter) RecordingProgress(time.Duration, time.Duration) {}
func (NopPresenter) ReplayAvailable(time.Duration)             {}
func (NopPresenter) Status(string)                             {}
func (NopPresenter) Fatal(string)                              {}
func (NopPresenter) Done()                                     {}

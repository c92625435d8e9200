package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gulddaggi/MindStage/interview"
	"github.com/gulddaggi/MindStage/log"
	"github.com/gulddaggi/MindStage/player"
	"github.com/gulddaggi/MindStage/wav"
)

// question is a fully prepared question: decoded audio and the voice
// that asks it.
type question struct {
	ref   interview.QuestionRef
	clip  *wav.Clip
	voice player.Voice
}

type Deps struct {
	Questions Questions
	Uploads   Uploads
	Mic       Mic
	Speaker   Speaker
	Devices   DeviceLister
	Saver     Saver
	Presenter Presenter
}

type Orchestrator struct {
	cfg     Config
	backend Deps

	sessionID string

	// cooperative signals from the presentation layer, polled at
	// suspension points; they never interrupt an in-flight upload
	stopFlag   atomic.Bool
	replayFlag atomic.Bool
	exitFlag   atomic.Bool

	// test seams
	now   func() time.Time
	sleep func(time.Duration)

	lastKey  string
	captures []*wav.Clip
	wg       sync.WaitGroup
}

func New(cfg Config, deps Deps) *Orchestrator {
	cfg.applyDefaults()
	if deps.Presenter == nil {
		deps.Presenter = NopPresenter{}
	}
	return &Orchestrator{
		cfg:       cfg,
		backend:   deps,
		sessionID: uuid.NewString(),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

func (o *Orchestrator) SessionID() string { return o.sessionID }

// RequestStop ends the current recording early and moves to upload.
func (o *Orchestrator) RequestStop() { o.stopFlag.Store(true) }

// RequestReplay asks to hear the current question again. Honored once
// per question, and only within the replay window.
func (o *Orchestrator) RequestReplay() { o.replayFlag.Store(true) }

// RequestExit ends the session after the current question completes.
func (o *Orchestrator) RequestExit() { o.exitFlag.Store(true) }

// Wait blocks until the background finish work has completed. Call
// after Run returns, before process exit.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) setState(s State) {
	o.backend.Presenter.StateChanged(s)
	log.Infof("session state: %s", s)
}

func (o *Orchestrator) fatal(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	log.Errorf("session fatal: %v", err)
	o.backend.Presenter.Fatal(err.Error())
	return err
}

// Run executes the whole session. It returns an error only for fatal
// setup problems; per-answer upload failures are reported through the
// presenter and skipped.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setState(StateInit)
	if o.cfg.InterviewID <= 0 {
		return o.fatal("invalid interview id %d", o.cfg.InterviewID)
	}

	refs, err := o.backend.Questions.FetchQuestions(ctx, o.cfg.InterviewID)
	if err != nil {
		return o.fatal("fetching questions: %v", err)
	}
	if len(refs) == 0 {
		return o.fatal("interview %d has no questions", o.cfg.InterviewID)
	}

	o.setState(StateDeviceCheck)
	devices, err := o.backend.Devices.Devices()
	if err != nil {
		return o.fatal("listing capture devices: %v", err)
	}
	if len(devices) == 0 {
		return o.fatal("no capture device available")
	}

	// Question URLs expire; fetch and decode everything up front so a
	// bad download surfaces before the candidate starts answering.
	questions, err := o.prepare(ctx, refs)
	if err != nil {
		return err
	}

	for i := range questions {
		q := &questions[i]
		o.backend.Presenter.Question(i+1, len(questions), false)

		clip := o.askAndRecord(q, false)
		o.captures = append(o.captures, clip)

		o.setState(StateUploading)
		key, putOK := o.uploadAnswer(ctx, q.ref.QuestionID, clip, false)

		if putOK && o.cfg.Followups && !o.exitFlag.Load() {
			o.runFollowup(ctx, q, key, i+1, len(questions))
		}

		o.setState(StateNextOrEnd)
		o.sleep(o.cfg.AdvanceDelay)
		if o.exitFlag.Load() {
			log.Info("exit requested, ending session early")
			break
		}
	}

	o.setState(StateEnd)
	o.wg.Add(1)
	go o.backgroundFinish(context.WithoutCancel(ctx))
	o.backend.Presenter.Done()
	return nil
}

func (o *Orchestrator) prepare(ctx context.Context, refs []interview.QuestionRef) ([]question, error) {
	questions := make([]question, 0, len(refs))
	for _, ref := range refs {
		b, err := o.backend.Questions.DownloadAudio(ctx, ref.URL)
		if err != nil {
			return nil, o.fatal("downloading question %d: %v", ref.QuestionID, err)
		}
		clip, err := wav.DecodeAny(b)
		if err != nil {
			if path := o.backend.Saver.DumpBadAudio(b); path != "" {
				log.Errorf("undecodable audio for question %d dumped to %s", ref.QuestionID, path)
			}
			return nil, o.fatal("decoding question %d: %v", ref.QuestionID, err)
		}
		voice, known := player.VoiceForDifficulty(ref.Difficulty)
		if !known {
			log.Warnf("question %d: unknown difficulty %q, using %s voice", ref.QuestionID, ref.Difficulty, voice)
		}
		questions = append(questions, question{ref: ref, clip: clip, voice: voice})
	}
	return questions, nil
}

// askAndRecord plays the question, counts down, and records the
// answer. One replay is allowed per question, inside the replay
// window; the retry after a replay gets a shortened countdown and no
// second replay.
func (o *Orchestrator) askAndRecord(q *question, followup bool) *wav.Clip {
	// Drop any signal left over from the previous question.
	o.stopFlag.Store(false)
	o.replayFlag.Store(false)

	replayUsed := false

	for attempt := 1; attempt <= 2; attempt++ {
		o.setState(StateAsking)
		if err := o.backend.Speaker.PlayExact(q.clip, q.voice, o.cfg.AskSafetyCap); err != nil {
			log.Warnf("playing question %d: %v", q.ref.QuestionID, err)
		}

		prep := o.cfg.Prep
		if followup || attempt > 1 {
			prep = min(3*time.Second, prep)
		}
		o.setState(StatePrepCountdown)
		o.countdown(prep)

		o.setState(StateRecording)
		if err := o.backend.Mic.StartRecord(); err != nil {
			log.Errorf("starting recording: %v", err)
			return silentClip(q.clip.SampleRate)
		}
		if !replayUsed {
			o.backend.Presenter.ReplayAvailable(o.cfg.RelistenWindow)
		}

		// A replay pressed during Asking or the countdown doesn't
		// count; only presses while recording are honored.
		o.replayFlag.Store(false)

		if o.recordLoop(!replayUsed) {
			replayUsed = true
			o.backend.Mic.Stop() // discard the partial take
			log.Infof("replaying question %d", q.ref.QuestionID)
			continue
		}

		clip := o.backend.Mic.StopRecord(o.cfg.RecordingTail)
		if clip == nil {
			clip = silentClip(q.clip.SampleRate)
		}
		return clip
	}

	// Unreachable: the second pass never replays.
	return silentClip(q.clip.SampleRate)
}

// recordLoop suspends for the answer duration, polling the cooperative
// signals. It reports whether a replay was granted.
func (o *Orchestrator) recordLoop(replayAllowed bool) bool {
	start := o.now()
	deadline := start.Add(o.cfg.Answer)

	for {
		now := o.now()
		o.backend.Presenter.RecordingProgress(now.Sub(start), o.cfg.Answer)

		if o.stopFlag.CompareAndSwap(true, false) {
			return false
		}
		if o.exitFlag.Load() {
			// The exit itself is handled at the question boundary;
			// here it just ends the take.
			return false
		}
		if o.replayFlag.CompareAndSwap(true, false) {
			if replayAllowed && now.Sub(start) < o.cfg.RelistenWindow {
				return true
			}
			log.Info("replay request ignored")
		}
		if !now.Before(deadline) {
			return false
		}
		o.sleep(o.cfg.SignalPoll)
	}
}

func (o *Orchestrator) countdown(d time.Duration) {
	for remaining := d; remaining > 0; {
		o.backend.Presenter.Countdown(int((remaining + time.Second - 1) / time.Second))
		step := min(time.Second, remaining)
		o.sleep(step)
		remaining -= step
	}
}

// uploadAnswer runs encode → local save → presign → PUT → register.
// Every failure is transient: the session moves on without the answer.
// Register is always attempted once the PUT succeeded, and the key is
// remembered for the end notification regardless of how register went.
func (o *Orchestrator) uploadAnswer(ctx context.Context, questionID int, clip *wav.Clip, followup bool) (string, bool) {
	b := wav.Encode(clip)
	o.backend.Saver.SaveRecording(clip, o.sessionID, questionID, followup)

	fileName := fmt.Sprintf("%s_q%d.wav", o.sessionID, questionID)
	if followup {
		fileName = fmt.Sprintf("%s_q%d_followup.wav", o.sessionID, questionID)
	}

	target, err := o.backend.Uploads.RequestUploadTarget(ctx, fileName)
	if err != nil {
		log.Errorf("presign for question %d: %v", questionID, err)
		o.backend.Presenter.Status("upload skipped: could not get an upload slot")
		return "", false
	}

	if err := o.backend.Uploads.PutBytes(ctx, target, b, "audio/wav"); err != nil {
		log.Errorf("upload for question %d: %v", questionID, err)
		log.Upload(questionID, target.ObjectKey, len(b), false)
		o.backend.Presenter.Status("upload failed, continuing")
		return "", false
	}
	o.lastKey = target.ObjectKey
	log.Upload(questionID, target.ObjectKey, len(b), true)

	if err := o.backend.Uploads.RegisterAnswer(ctx, questionID, target.ObjectKey); err != nil {
		log.Errorf("registering answer for question %d: %v", questionID, err)
		o.backend.Presenter.Status("answer uploaded but not registered")
	}
	return target.ObjectKey, true
}

// runFollowup fetches, asks, records, and uploads one follow-up to the
// question just answered. Any failure just advances the session.
func (o *Orchestrator) runFollowup(ctx context.Context, parent *question, parentKey string, index, total int) {
	ref, err := o.backend.Questions.RequestFollowup(ctx, parent.ref.QuestionID, parentKey)
	if err != nil {
		log.Warnf("follow-up request for question %d: %v", parent.ref.QuestionID, err)
		return
	}
	if ref == nil {
		return
	}

	b, err := o.backend.Questions.DownloadAudio(ctx, ref.URL)
	if err != nil {
		log.Warnf("downloading follow-up %d: %v", ref.QuestionID, err)
		return
	}
	clip, err := wav.DecodeAny(b)
	if err != nil {
		log.Warnf("decoding follow-up %d: %v", ref.QuestionID, err)
		return
	}

	// An untagged follow-up keeps the parent's voice.
	voice := parent.voice
	if ref.Difficulty != "" {
		voice, _ = player.VoiceForDifficulty(ref.Difficulty)
	}

	fq := &question{ref: *ref, clip: clip, voice: voice}
	o.backend.Presenter.Question(index, total, true)

	answer := o.askAndRecord(fq, true)
	o.captures = append(o.captures, answer)

	o.setState(StateUploading)
	o.uploadAnswer(ctx, ref.QuestionID, answer, true)
}

// backgroundFinish assembles and uploads the whole-session mix and
// sends the end notification. Detached from the visible flow; every
// failure here is logged and dropped.
func (o *Orchestrator) backgroundFinish(ctx context.Context) {
	defer o.wg.Done()

	var keyPtr *string
	if o.lastKey != "" {
		k := o.lastKey
		keyPtr = &k
	}

	if mix := buildSessionMix(o.captures); mix != nil {
		o.backend.Saver.SaveSessionMix(mix, o.sessionID)
		if key := o.uploadSessionMix(ctx, mix); key != "" {
			keyPtr = &key
		}
	}

	if err := o.backend.Uploads.NotifyEnd(ctx, o.cfg.InterviewID, keyPtr); err != nil {
		log.Warnf("end notification: %v", err)
		return
	}
	log.Info("session end reported")
}

func (o *Orchestrator) uploadSessionMix(ctx context.Context, mix *wav.Clip) string {
	b := wav.Encode(mix)
	if len(b) > maxMixBytes {
		log.Warnf("session mix is %d bytes, skipping upload", len(b))
		return ""
	}

	target, err := o.backend.Uploads.RequestUploadTarget(ctx, o.sessionID+"_full.wav")
	if err != nil {
		log.Warnf("presign for session mix: %v", err)
		return ""
	}
	if err := o.backend.Uploads.PutBytes(ctx, target, b, "audio/wav"); err != nil {
		log.Warnf("uploading session mix: %v", err)
		return ""
	}
	return target.ObjectKey
}

func silentClip(sampleRate int) *wav.Clip {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &wav.Clip{
		Samples:    make([]float32, sampleRate/10),
		Channels:   1,
		SampleRate: sampleRate,
	}
}

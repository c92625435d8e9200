package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gulddaggi/MindStage/api"
	"github.com/gulddaggi/MindStage/audio"
	"github.com/gulddaggi/MindStage/config"
	"github.com/gulddaggi/MindStage/interview"
	"github.com/gulddaggi/MindStage/log"
	"github.com/gulddaggi/MindStage/player"
	"github.com/gulddaggi/MindStage/recorder"
	"github.com/gulddaggi/MindStage/session"
	"github.com/gulddaggi/MindStage/store"
)

var version = "dev"

func main() {
	run()
}

func run() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	devicesFlag := flag.Bool("devices", false, "List capture and output devices and exit")
	selectFlag := flag.Bool("select", false, "Select microphone device interactively")
	checkmicFlag := flag.Bool("checkmic", false, "Show a 5-second microphone level meter and exit")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	idFlag := flag.Int("id", 0, "Interview id (overrides MINDSTAGE_INTERVIEW_ID)")
	logPathFlag := flag.String("logpath", "", "log directory path")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("mindstage %s\n", version)
		os.Exit(0)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	if *devicesFlag {
		listDevices(ctx)
		return
	}

	selectedDevice := *deviceFlag
	if *selectFlag {
		dev, err := audio.SelectDevice(ctx)
		if err != nil {
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		} else if dev != nil {
			selectedDevice = dev.Name
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *idFlag != 0 {
		cfg.InterviewID = *idFlag
	}
	if selectedDevice != "" {
		cfg.Device = selectedDevice
	}

	rec := recorder.New(ctx, recorder.Config{
		SampleRate: uint32(cfg.SampleRate),
		Channels:   1,
		Device:     cfg.Device,
	})

	if *checkmicFlag {
		checkMic(rec)
		return
	}

	tokens := api.NewTokenStore(cfg.AccessToken, cfg.RefreshToken)
	client := api.New(cfg.BaseURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, tokens)
	svc := interview.NewService(client)

	orchCfg := session.Config{
		InterviewID:    cfg.InterviewID,
		Prep:           time.Duration(cfg.PrepSeconds) * time.Second,
		Answer:         time.Duration(cfg.AnswerSeconds) * time.Second,
		Followups:      cfg.Followups,
		RelistenWindow: time.Duration(cfg.RelistenWindowSeconds) * time.Second,
		RecordingTail:  cfg.RecordingTailSeconds,
		AskSafetyCap:   time.Duration(cfg.AskSafetyCapSeconds) * time.Second,
	}
	deps := session.Deps{
		Questions: svc,
		Uploads:   svc,
		Mic:       rec,
		Speaker:   player.New(ctx, cfg.VoiceStrictOutput, cfg.VoiceLaxOutput),
		Devices:   ctx,
		Saver:     store.New(cfg.RecordingsDir, cfg.SaveRecordings),
	}

	if !*tuiFlag {
		deps.Presenter = &consolePresenter{}
		orch := session.New(orchCfg, deps)
		if err := orch.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			orch.Wait()
			os.Exit(1)
		}
		orch.Wait()
		return
	}

	pres := &tuiPresenter{}
	deps.Presenter = pres
	orch := session.New(orchCfg, deps)
	program := NewTUIProgram(orch, rec.Level)
	pres.p = program

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := orch.Run(context.Background()); err != nil {
			log.Errorf("session error: %v", err)
		}
		orch.Wait()
	}()

	if _, err := program.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}

	// The TUI may quit mid-session; make sure the session winds down
	// and the end notification goes out before the process exits.
	orch.RequestExit()
	<-runDone
}

func listDevices(ctx audio.Context) {
	inputs, err := ctx.Devices()
	if err != nil {
		fmt.Printf("Error listing capture devices: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Capture devices:")
	for _, d := range inputs {
		suffix := ""
		if audio.IsBluetooth(d.Name) {
			suffix = " (BT: lower audio quality)"
		}
		fmt.Printf("  %s%s\n", d.Name, suffix)
	}

	outputs, err := ctx.Outputs()
	if err != nil {
		fmt.Printf("Error listing output devices: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Output devices:")
	for _, d := range outputs {
		fmt.Printf("  %s\n", d.Name)
	}
}

// checkMic runs a short level meter so the candidate can confirm the
// microphone works before the real session.
func checkMic(rec *recorder.Recorder) {
	if err := rec.StartMetering(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer rec.StopMetering()

	fmt.Println("Speak into the microphone...")
	const width = 40
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		level := rec.Level()
		n := int(level * 4 * width)
		if n > width {
			n = width
		}
		fmt.Printf("\r[%s%s] %.3f", strings.Repeat("#", n), strings.Repeat("-", width-n), level)
		time.Sleep(100 * time.Millisecond)
	}
	fmt.Println()
}

// consolePresenter is the headless presentation path: plain lines on
// stdout, no key handling.
type consolePresenter struct{}

func (consolePresenter) StateChanged(s session.State) { fmt.Printf("-- %s\n", s) }
func (consolePresenter) Question(index, total int, followup bool) {
	if followup {
		fmt.Printf("== follow-up to question %d\n", index)
		return
	}
	fmt.Printf("== question %d of %d\n", index, total)
}
func (consolePresenter) Countdown(secondsLeft int) { fmt.Printf("   starting in %d\n", secondsLeft) }
func (consolePresenter) RecordingProgress(elapsed, total time.Duration) {}
func (consolePresenter) ReplayAvailable(time.Duration)                  {}
func (consolePresenter) Status(msg string)                              { fmt.Println("   " + msg) }
func (consolePresenter) Fatal(msg string)                               { fmt.Println("FATAL: " + msg) }
func (consolePresenter) Done()                                          { fmt.Println("interview complete") }

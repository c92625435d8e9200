// Package config loads client settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL      string
	InterviewID  int
	AccessToken  string
	RefreshToken string

	PrepSeconds           int
	AnswerSeconds         int
	Followups             bool
	RelistenWindowSeconds int
	RecordingTailSeconds  float64
	AskSafetyCapSeconds   int

	SampleRate int
	Device     string

	VoiceStrictOutput string
	VoiceLaxOutput    string

	RecordingsDir  string
	SaveRecordings bool

	HTTPTimeoutSeconds int
}

// Load reads configuration from MINDSTAGE_* environment variables,
// loading .env first when present. Out-of-range timing values are
// clamped rather than rejected.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:               envStr("MINDSTAGE_BASE_URL", ""),
		InterviewID:           envInt("MINDSTAGE_INTERVIEW_ID", 0),
		AccessToken:           envStr("MINDSTAGE_ACCESS_TOKEN", ""),
		RefreshToken:          envStr("MINDSTAGE_REFRESH_TOKEN", ""),
		PrepSeconds:           envInt("MINDSTAGE_PREP_SECONDS", 3),
		AnswerSeconds:         envInt("MINDSTAGE_ANSWER_SECONDS", 60),
		Followups:             envBool("MINDSTAGE_FOLLOWUPS", false),
		RelistenWindowSeconds: envInt("MINDSTAGE_RELISTEN_WINDOW_SECONDS", 10),
		RecordingTailSeconds:  envFloat("MINDSTAGE_RECORDING_TAIL_SECONDS", 3),
		AskSafetyCapSeconds:   envInt("MINDSTAGE_ASK_SAFETY_CAP_SECONDS", 300),
		SampleRate:            envInt("MINDSTAGE_SAMPLE_RATE", 48000),
		Device:                envStr("MINDSTAGE_DEVICE", ""),
		VoiceStrictOutput:     envStr("MINDSTAGE_VOICE_STRICT_OUTPUT", ""),
		VoiceLaxOutput:        envStr("MINDSTAGE_VOICE_LAX_OUTPUT", ""),
		RecordingsDir:         envStr("MINDSTAGE_RECORDINGS_DIR", "InterviewRecordings"),
		SaveRecordings:        envBool("MINDSTAGE_SAVE_RECORDINGS", true),
		HTTPTimeoutSeconds:    envInt("MINDSTAGE_HTTP_TIMEOUT_SECONDS", 30),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("MINDSTAGE_BASE_URL is required")
	}

	if cfg.RelistenWindowSeconds < 1 {
		cfg.RelistenWindowSeconds = 1
	} else if cfg.RelistenWindowSeconds > 20 {
		cfg.RelistenWindowSeconds = 20
	}
	if cfg.RecordingTailSeconds < 0 {
		cfg.RecordingTailSeconds = 0
	} else if cfg.RecordingTailSeconds > 5 {
		cfg.RecordingTailSeconds = 5
	}
	if cfg.PrepSeconds < 0 {
		cfg.PrepSeconds = 0
	}
	if cfg.AnswerSeconds < 1 {
		cfg.AnswerSeconds = 1
	}
	if cfg.AskSafetyCapSeconds < 1 {
		cfg.AskSafetyCapSeconds = 300
	}
	if cfg.SampleRate < 8000 {
		cfg.SampleRate = 48000
	}
	if cfg.HTTPTimeoutSeconds < 1 {
		cfg.HTTPTimeoutSeconds = 30
	}

	return cfg, nil
}

func envStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// Package store persists session artifacts to disk on a best-effort
// basis. Nothing here may block or fail the interview flow; problems
// are logged and swallowed.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gulddaggi/MindStage/log"
	"github.com/gulddaggi/MindStage/wav"
)

type Store struct {
	dir     string
	enabled bool
}

func New(dir string, enabled bool) *Store {
	return &Store{dir: dir, enabled: enabled}
}

// SaveRecording writes an answer clip as WAV and returns the file path,
// or "" when saving is disabled or failed.
func (s *Store) SaveRecording(clip *wav.Clip, session string, question int, followup bool) string {
	if !s.enabled || clip == nil {
		return ""
	}
	name := fmt.Sprintf("%s_q%d.wav", session, question)
	if followup {
		name = fmt.Sprintf("%s_q%d.followup.wav", session, question)
	}
	return s.writeFile(name, wav.Encode(clip))
}

// SaveSessionMix writes the whole-session concatenated clip.
func (s *Store) SaveSessionMix(clip *wav.Clip, session string) string {
	if !s.enabled || clip == nil {
		return ""
	}
	return s.writeFile(session+"_full.wav", wav.Encode(clip))
}

// DumpBadAudio writes undecodable question bytes for later inspection.
// Unlike recordings this ignores the enabled flag: when question audio
// cannot be decoded the session is over and the bytes are the only
// evidence of what went wrong.
func (s *Store) DumpBadAudio(b []byte) string {
	return s.writeFile("bad_question_audio.bin", b)
}

func (s *Store) writeFile(name string, b []byte) string {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		log.Warnf("store: creating %s: %v", s.dir, err)
		return ""
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, b, 0644); err != nil {
		log.Warnf("store: writing %s: %v", path, err)
		return ""
	}
	log.Infof("store: wrote %s (%d bytes)", path, len(b))
	return path
}

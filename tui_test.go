package main

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gulddaggi/MindStage/session"
)

func TestViewRecordingBeforeFirstProgress(t *testing.T) {
	// The Recording state renders once before the first progress
	// message arrives, while elapsed and total are both still zero.
	m := tuiModel{width: 80, height: 24, state: session.StateRecording}

	var out string
	require.NotPanics(t, func() { out = m.View() })
	assert.Contains(t, out, "REC")
}

func TestBarClampsBadInput(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), bar(math.NaN(), 10))
	assert.Equal(t, strings.Repeat("░", 10), bar(-1, 10))
	assert.Equal(t, strings.Repeat("█", 10), bar(2, 10))
}

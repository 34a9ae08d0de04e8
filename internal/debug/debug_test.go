package debug

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogSuppressedByDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	Log("GRAPH", "edge %s -> %s", "a.R", "b.R")
	assert.Empty(t, buf.String(), "debug output must be suppressed unless explicitly enabled")
}

func TestLogWritesWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	old := EnableDebug
	EnableDebug = "true"
	defer func() { EnableDebug = old }()

	LogGraph("edge %s -> %s", "a.R", "b.R")
	assert.Contains(t, buf.String(), "[DEBUG:GRAPH]")
	assert.Contains(t, buf.String(), "a.R -> b.R")
}

func TestTransportModeSuppressesEvenWhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	SetDebugOutput(&buf)
	defer SetDebugOutput(nil)

	old := EnableDebug
	EnableDebug = "true"
	defer func() { EnableDebug = old }()

	SetTransportMode(true)
	defer SetTransportMode(false)

	LogParent("resolved %s", "p.R")
	assert.Empty(t, buf.String())
}

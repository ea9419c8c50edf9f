package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "timer", "WARN")

	l.Printf("[DEBUG] tick")
	l.Printf("[INFO] started")
	l.Printf("[ERROR] stop failed: %s", "offline")

	out := buf.String()
	assert.NotContains(t, out, "tick")
	assert.NotContains(t, out, "started")
	assert.Contains(t, out, "[ERROR] stop failed: offline")
	assert.Contains(t, out, "timer ")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "inbox", "verbose")

	l.Printf("[DEBUG] hidden")
	l.Printf("[INFO] shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNormalizeLevel(t *testing.T) {
	assert.EqualValues(t, "DEBUG", normalizeLevel(" debug "))
	assert.EqualValues(t, "ERROR", normalizeLevel("error"))
	assert.EqualValues(t, DefaultLevel, normalizeLevel(""))
}

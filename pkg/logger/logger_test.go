package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level slog.Level) (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, &slog.HandlerOptions{Level: level})
	h.noColor = true
	return slog.New(h), &buf
}

func TestColorHandler_Format(t *testing.T) {
	log, buf := newBufferLogger(slog.LevelInfo)

	log.Info("Processed batch", "batch", 2, "total", 5)
	log.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INFO  Processed batch batch=2 total=5\n")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestColorHandler_AttrsAndGroups(t *testing.T) {
	log, buf := newBufferLogger(slog.LevelDebug)

	log.With("request_id", "r1").WithGroup("retry").Warn("backing off", "wait", "1.5s", slog.Group("err", "msg", "too many requests"))

	out := buf.String()
	assert.Contains(t, out, "WARN ")
	assert.Contains(t, out, "request_id=r1")
	assert.Contains(t, out, "retry.wait=1.5s")
	assert.Contains(t, out, `retry.err.msg="too many requests"`)
}

func TestColorHandler_Colors(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorHandler(&buf, nil)
	h.noColor = false
	log := slog.New(h)

	log.Error("boom")
	log.Info("Processed batch")

	out := buf.String()
	assert.Contains(t, out, colorRed+"ERROR"+colorReset)
	assert.Contains(t, out, colorGreen+"Processed batch"+colorReset)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, "json").Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

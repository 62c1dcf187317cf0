package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func collect() (*[]string, func(string)) {
	var lines []string
	return &lines, func(s string) { lines = append(lines, s) }
}

func TestBufferSuccessDropsDetails(t *testing.T) {
	lines, out := collect()
	b := NewBuffer(out, nil, false)
	b.Begin("load-1")
	b.Append("load-1", "row 3 skipped")
	b.Appendf("load-1", "row %d skipped", 7)
	b.Success("load-1", "412 labs, 410 plotted")
	b.Close()

	assert.Equal(t, []string{"[load-1] 412 labs, 410 plotted"}, *lines)
}

func TestBufferVerboseReplaysOnSuccess(t *testing.T) {
	lines, out := collect()
	b := NewBuffer(out, nil, true)
	b.Begin("load-1")
	b.Append("load-1", "row 3 skipped")
	b.Success("load-1", "done")
	b.Close()

	assert.Equal(t, []string{"row 3 skipped", "[load-1] done"}, *lines)
}

func TestBufferFlushErrorReplays(t *testing.T) {
	lines, out := collect()
	b := NewBuffer(out, nil, false)
	b.Begin("load-2")
	b.Append("load-2", "fetching")
	b.Append("load-2", "status 404")
	b.FlushError("load-2", errors.New("lab list load failed"))
	b.Close()

	assert.Equal(t, []string{"fetching", "status 404", "[load-2] lab list load failed"}, *lines)
}

func TestBufferErrorLineGoesToErrOut(t *testing.T) {
	lines, out := collect()
	errs, errOut := collect()
	b := NewBuffer(out, errOut, false)
	b.Begin("load-3")
	b.Append("load-3", "row 2 skipped")
	b.FlushError("load-3", errors.New("status 503"))
	b.Close()

	assert.Equal(t, []string{"row 2 skipped"}, *lines)
	assert.Equal(t, []string{"[load-3] status 503"}, *errs)
}

func TestBufferWritesThroughWithoutBegin(t *testing.T) {
	lines, out := collect()
	b := NewBuffer(out, nil, false)
	b.Append("other", "direct")
	b.Close()
	assert.Equal(t, []string{"direct"}, *lines)
}

func TestNewWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labmap.log")
	l, closeFn := New(Options{Level: "debug", Format: "json", File: path})
	l.Info("server starting")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server starting"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
}

func TestLogfAndErrorfLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	Logf(l)("listening on %s", ":8765")
	Errorf(l)("save session: %v", errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "listening on :8765", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "save session: boom", entries[1].Message)
}

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormatterOutsideLocal(t *testing.T) {
	// Given a production environment
	var buf bytes.Buffer
	log, err := New(Options{Environment: "prod", Level: "debug", Output: &buf})
	require.NoError(t, err)

	// When logging with run and error fields
	log.WithRun("run-1").WithField("calls", 3).Debug("batch started")
	log.WithError(errors.New("boom")).Warn("failed")

	// Then each line is a JSON object carrying the fields
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "run-1", first["run_id"])
	assert.Equal(t, float64(3), first["calls"])
	assert.Equal(t, "debug", first["level"])

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "boom", second["error"])
}

func TestNew_LevelParsing(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"":      logrus.InfoLevel,
		"bogus": logrus.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestNew_WritesDailyFile(t *testing.T) {
	// Given file logging into a temp dir
	dir := t.TempDir()
	var buf bytes.Buffer
	log, err := New(Options{Environment: "prod", Dir: dir, ToFile: true, Output: &buf})
	require.NoError(t, err)

	// When logging a line and closing
	log.Info("hello")
	require.NoError(t, log.Close())

	// Then a single dated file holds the same line as stdout
	matches, err := filepath.Glob(filepath.Join(dir, "callq_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Equal(t, buf.String(), string(data))
}

func TestWithRequest_UsesHeaderOrGeneratesID(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Environment: "prod", Output: &buf})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/analyze", nil)
	req.Header.Set("X-Request-ID", "abc")
	assert.Equal(t, "abc", log.WithRequest(req).Data["req_id"])

	req2 := httptest.NewRequest("GET", "/healthz", nil)
	id, _ := log.WithRequest(req2).Data["req_id"].(string)
	assert.Len(t, id, 36)
}

func TestWithError_NilKeepsEntry(t *testing.T) {
	log := Discard()
	assert.NotContains(t, log.WithError(nil).Data, "error")
}

package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{stdout: &buf, level: INFO, enabled: true}

	l.Debug("hidden", nil)
	l.Info("scenes imported", map[string]interface{}{"skipped": 1, "imported": 3})
	l.Warnf("row %d skipped", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "[INFO] "))
	assert.True(t, strings.HasSuffix(lines[0], "- scenes imported | imported=3 skipped=1"))
	assert.Contains(t, lines[0], "logger_test.go:")
	assert.True(t, strings.HasPrefix(lines[1], "[WARNING] "))
	assert.True(t, strings.HasSuffix(lines[1], "- row 4 skipped"))
}

func TestLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{stdout: &buf, level: DEBUG, enabled: true}
	l.Enable(false)

	l.Error("nothing", nil)
	assert.Empty(t, buf.String())
}

func TestInitLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "app.log")

	logger := GetLogger()
	logger.SetOutput(nil)
	require.NoError(t, InitLogger(logFile, DefaultLogFileOptions()))
	t.Cleanup(func() {
		logger.Close()
		logger.SetOutput(os.Stdout)
	})

	logger.Info("written to file", nil)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

package perf

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	l, err := New(t.TempDir(), "20240301_120000_HHE_BatchNr:25_BatchSize:4_IntSize:8_", "client_HHE", log)
	require.NoError(t, err)
	return l
}

func TestNewCreatesBothLogFiles(t *testing.T) {
	l := newTestLogger(t)
	defer l.Close()

	assert.FileExists(t, l.TimePath)
	assert.FileExists(t, l.MemoryPath)
	assert.Equal(t, "20240301_120000_HHE_BatchNr:25_BatchSize:4_IntSize:8_client_HHE.txt", filepath.Base(l.TimePath))
	assert.Equal(t, filepath.Base(l.TimePath), filepath.Base(l.MemoryPath))
}

func TestLogWritesTimestampedLine(t *testing.T) {
	l := newTestLogger(t)
	l.Log("Client Batch Start")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(l.TimePath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], " : Client Batch Start")
	// Timestamp shape: YYYY-MM-DD HH:MM:SS.uuuuuu
	require.GreaterOrEqual(t, len(lines[0]), len(timestampLayout))
	assert.Equal(t, "-", lines[0][4:5])
	assert.Equal(t, ".", lines[0][19:20])
}

func TestLogWritesMemorySnapshots(t *testing.T) {
	l := newTestLogger(t)
	l.Log("TTP Integer Decryption Start")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(l.MemoryPath)
	require.NoError(t, err)
	content := string(raw)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	assert.Len(t, lines, 6)

	for _, label := range []string{"SWAP:", "RAM Peak:", "RAM:", "Virtual Memory Peak:", "Virtual Memory:"} {
		assert.Contains(t, content, label)
	}
	assert.Contains(t, content, " kB")
}

func TestMemorySnapshotsNonZeroOnLinux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("per-process memory snapshots need /proc")
	}

	l := newTestLogger(t)
	defer l.Close()

	snap := l.snapshot()
	assert.NotZero(t, snap.rssKB)
	assert.NotZero(t, snap.sizeKB)
	assert.NotZero(t, snap.peakKB)
}

func TestSuccessiveLogsAppend(t *testing.T) {
	l := newTestLogger(t)
	l.Log("Client Batch Start")
	l.Log("Client Batch End")
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(l.TimePath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Client Batch Start")
	assert.Contains(t, lines[1], "Client Batch End")
}

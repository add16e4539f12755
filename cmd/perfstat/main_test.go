package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

func TestLogNamePattern(t *testing.T) {
	m := logName.FindStringSubmatch("20240301_120000_HHE_BatchNr:25_BatchSize:4_IntSize:8_client_HHE.txt")
	require.NotNil(t, m)
	assert.Equal(t, "20240301_120000", m[1])
	assert.Equal(t, "HHE_BatchNr:25_BatchSize:4_IntSize:8", m[2])
	assert.Equal(t, "client_HHE", m[3])

	assert.Nil(t, logName.FindStringSubmatch("notes.txt"))
	assert.Nil(t, logName.FindStringSubmatch("20240301_120000_data.bin"))
}

func TestDigestPairsPhases(t *testing.T) {
	content := strings.Join([]string{
		"2024-03-01 12:00:00.000000 : Client initialized",
		"2024-03-01 12:00:00.100000 : Client Batch Start",
		"2024-03-01 12:00:00.200000 : Client Integer Start",
		"2024-03-01 12:00:00.250000 : Client Integer Encryption Start : 90",
		"2024-03-01 12:00:00.350000 : Client Integer Encryption End : 90",
		"2024-03-01 12:00:00.400000 : Client Integer End",
		"2024-03-01 12:00:00.500000 : Client Batch End",
		"2024-03-01 12:00:00.600000 : Client Batch Start",
		"2024-03-01 12:00:00.900000 : Client Batch End",
	}, "\n") + "\n"

	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	summary, err := digest(path, "20240301_120000", "client_HHE", "HHE_BatchNr:2_BatchSize:1_IntSize:8")
	require.NoError(t, err)

	assert.Equal(t, "20240301_120000", summary.Stamp)
	assert.Equal(t, "client_HHE", summary.Role)
	assert.Equal(t, 9, summary.Frames)
	require.Len(t, summary.Phases, 3)

	byName := map[string]int{}
	for i, p := range summary.Phases {
		byName[p.Name] = i
	}

	batch := summary.Phases[byName["Client Batch"]]
	assert.Equal(t, 2, batch.Count)
	assert.Equal(t, int64(700000), batch.TotalMicros)
	assert.Equal(t, int64(300000), batch.MinMicros)
	assert.Equal(t, int64(400000), batch.MaxMicros)

	enc := summary.Phases[byName["Client Integer Encryption"]]
	assert.Equal(t, 1, enc.Count)
	assert.Equal(t, int64(100000), enc.TotalMicros)

	integer := summary.Phases[byName["Client Integer"]]
	assert.Equal(t, 1, integer.Count)
	assert.Equal(t, int64(200000), integer.TotalMicros)
}

func TestDigestIgnoresUnpairedEnds(t *testing.T) {
	content := "2024-03-01 12:00:00.000000 : Server Batch End\n"
	path := filepath.Join(t.TempDir(), "log.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	summary, err := digest(path, "20240301_120000", "server_HHE", "params")
	require.NoError(t, err)
	assert.Empty(t, summary.Phases)
}

func TestArchiveCompressesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "20240301_120000_log.txt")
	content := []byte("2024-03-01 12:00:00.000000 : Client Batch Start\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	archiveDir := filepath.Join(dir, "archive")
	require.NoError(t, archive(path, archiveDir))

	assert.NoFileExists(t, path)

	compressed, err := os.Open(filepath.Join(archiveDir, "20240301_120000_log.txt.xz"))
	require.NoError(t, err)
	defer compressed.Close()

	r, err := xz.NewReader(compressed)
	require.NoError(t, err)
	back, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, content, back)
}

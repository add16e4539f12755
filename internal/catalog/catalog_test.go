package catalog

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cat, err := Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func sampleSummary(stamp, role string) Summary {
	return Summary{
		Stamp:      stamp,
		Role:       role,
		Parameters: "HHE_BatchNr:25_BatchSize:4_IntSize:8",
		Frames:     100,
		Phases: []PhaseStat{
			{Name: "Client Batch", Count: 25, TotalMicros: 50000, MinMicros: 1500, MaxMicros: 3200},
			{Name: "Client Integer", Count: 100, TotalMicros: 42000, MinMicros: 300, MaxMicros: 800},
		},
	}
}

func TestPutGetSummary(t *testing.T) {
	cat := openTestCatalog(t)

	want := sampleSummary("20240301_120000", "client_HHE")
	require.NoError(t, cat.PutSummary(want))

	got, err := cat.GetSummary("20240301_120000", "client_HHE")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetSummaryNotFound(t *testing.T) {
	cat := openTestCatalog(t)

	_, err := cat.GetSummary("20240301_120000", "ttp_HE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutSummaryReplaces(t *testing.T) {
	cat := openTestCatalog(t)

	first := sampleSummary("20240301_120000", "server_HHE")
	require.NoError(t, cat.PutSummary(first))

	second := first
	second.Frames = 200
	require.NoError(t, cat.PutSummary(second))

	got, err := cat.GetSummary("20240301_120000", "server_HHE")
	require.NoError(t, err)
	assert.Equal(t, 200, got.Frames)
}

func TestListRuns(t *testing.T) {
	cat := openTestCatalog(t)

	require.NoError(t, cat.PutSummary(sampleSummary("20240301_120000", "client_HHE")))
	require.NoError(t, cat.PutSummary(sampleSummary("20240301_120000", "ttp_HHE")))
	require.NoError(t, cat.PutSummary(sampleSummary("20240302_080000", "client_HE")))

	runs, err := cat.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 3)

	// Key order: stamp first, role second.
	assert.Equal(t, "client_HHE", runs[0].Role)
	assert.Equal(t, "ttp_HHE", runs[1].Role)
	assert.Equal(t, "20240302_080000", runs[2].Stamp)
}

func TestListRunsEmpty(t *testing.T) {
	cat := openTestCatalog(t)

	runs, err := cat.ListRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

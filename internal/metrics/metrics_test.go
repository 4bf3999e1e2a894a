package metrics

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotSerializesCounters(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RecordProviderCall(100*time.Millisecond, nil)
	RecordProviderCall(200*time.Millisecond, errors.New("boom"))
	RecordReviewerCall()
	RecordWaveCompleted()
	RecordSplitAccepted()
	RecordSplitDropped()

	snap := Get().Snapshot()
	assert.EqualValues(t, 2, snap.ProviderCalls)
	assert.EqualValues(t, 1, snap.ProviderErrors)
	assert.EqualValues(t, 50, snap.ProviderErrorRate)
	assert.EqualValues(t, 150, snap.ProviderAvgLatencyMS)
	assert.EqualValues(t, 1, snap.ReviewerCalls)
	assert.EqualValues(t, 1, snap.WavesCompleted)
	assert.EqualValues(t, 1, snap.SplitsAccepted)
	assert.EqualValues(t, 1, snap.SplitsDropped)

	b, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"provider_calls":2`)
	assert.Contains(t, string(b), `"waves_completed":1`)
}

func TestAverageLatencyZeroWithoutCalls(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	snap := Get().Snapshot()
	assert.Zero(t, snap.ProviderAvgLatencyMS)
	assert.Zero(t, snap.ProviderErrorRate)
}

package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCountsRequests(t *testing.T) {
	s := New()

	s.RecordRequest("agent-1", "tools/call", 10*time.Millisecond)
	s.RecordRequest("agent-1", "tools/call", 30*time.Millisecond)
	s.RecordRequest("agent-2", "resources/read", 20*time.Millisecond)
	s.RecordError("agent-2", "resources/read")

	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap["totalRequests"])
	assert.Equal(t, int64(1), snap["totalErrors"])
	assert.Equal(t, float64(20), snap["avgLatencyMs"])

	byMethod, ok := snap["requestsByType"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(2), byMethod["tools/call"])
	assert.Equal(t, int64(1), byMethod["resources/read"])

	byAgent, ok := snap["requestsByAgent"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(2), byAgent["agent-1"])
}

func TestErrorsCountedPerMethodAndAgent(t *testing.T) {
	s := New()

	s.RecordError("agent-1", "tools/call")
	s.RecordError("agent-1", "tools/call")
	s.RecordError("agent-2", "resources/read")
	s.RecordError("", "initialize")

	snap := s.Snapshot()
	assert.Equal(t, int64(4), snap["totalErrors"])

	errByMethod, ok := snap["errorsByType"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(2), errByMethod["tools/call"])
	assert.Equal(t, int64(1), errByMethod["resources/read"])
	assert.Equal(t, int64(1), errByMethod["initialize"])

	errByAgent, ok := snap["errorsByAgent"].(map[string]int64)
	require.True(t, ok)
	assert.Equal(t, int64(2), errByAgent["agent-1"])
	assert.Equal(t, int64(1), errByAgent["agent-2"])
	assert.Len(t, errByAgent, 2)
}

func TestAnonymousRequestsSkipAgentCounter(t *testing.T) {
	s := New()
	s.RecordRequest("", "initialize", time.Millisecond)

	snap := s.Snapshot()
	byAgent := snap["requestsByAgent"].(map[string]int64)
	assert.Empty(t, byAgent)
	assert.Equal(t, int64(1), snap["totalRequests"])
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New()
	s.RecordRequest("agent-1", "tools/list", time.Millisecond)

	snap := s.Snapshot()
	byMethod := snap["requestsByType"].(map[string]int64)
	byMethod["tools/list"] = 99

	fresh := s.Snapshot()
	assert.Equal(t, int64(1), fresh["requestsByType"].(map[string]int64)["tools/list"])
}

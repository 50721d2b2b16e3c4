package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalRecord(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	journal := NewJournalWriter(&buf)
	journal.Record("article.status_changed", "evt-1", []byte(`{"article_id":7,"status":"DONE"}`))
	require.NoError(t, journal.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "article.status_changed", line["topic"])
	assert.Equal(t, "evt-1", line["event_id"])
	assert.NotEmpty(t, line["timestamp"])

	payload, ok := line["payload"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 7, payload["article_id"])
	assert.Equal(t, "DONE", payload["status"])
}

func TestJournalKeepsInvalidPayloadRaw(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	journal := NewJournalWriter(&buf)
	journal.Record("editor.added", "evt-2", []byte("not json"))

	assert.Contains(t, buf.String(), `"payload_raw":"not json"`)
}

func TestNilJournalIsSafe(t *testing.T) {
	t.Parallel()

	var journal *Journal
	journal.Record("topic", "id", nil)
	assert.NoError(t, journal.Sync())
}

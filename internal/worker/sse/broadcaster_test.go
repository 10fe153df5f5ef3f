package sse

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastWritesEvent(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()

	client, err := b.AddClient(rec)
	require.NoError(t, err)
	require.Equal(t, 1, b.ClientCount())

	b.Broadcast(NewEvent("run_complete", map[string]int{"published": 1}))

	assert.Contains(t, rec.Body.String(), `"type":"run_complete"`)
	assert.Contains(t, rec.Body.String(), `"published":1`)

	b.RemoveClient(client)
	assert.Equal(t, 0, b.ClientCount())
}

func TestRemoveClientAfterDeadCleanup(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()

	client, err := b.AddClient(rec)
	require.NoError(t, err)

	// Dead client cleanup closes Done first; the handler's deferred
	// RemoveClient must not close it again.
	b.removeClientByID(client.ID)
	assert.NotPanics(t, func() { b.RemoveClient(client) })
	assert.Equal(t, 0, b.ClientCount())
}

func TestRemoveClientTwice(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()

	client, err := b.AddClient(rec)
	require.NoError(t, err)

	b.RemoveClient(client)
	assert.NotPanics(t, func() { b.RemoveClient(client) })
}

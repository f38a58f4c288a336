package ws

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEClientFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	client := NewSSEClient(rec, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, client.Send([]byte(`{"product_id":"cola"}`)))
	require.NoError(t, client.Heartbeat())
	assert.Equal(t, "event: stock\ndata: {\"product_id\":\"cola\"}\n\n: ping\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)

	client.Close()
	client.Close()
	select {
	case <-client.Done():
	default:
		t.Fatal("done channel not closed")
	}
	assert.ErrorIs(t, client.Send([]byte("x")), io.EOF)
}

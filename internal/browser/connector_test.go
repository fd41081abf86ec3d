package browser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controlAPIStub(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewConnector(srv.URL)
}

func TestOpenWindowReturnsEndpoint(t *testing.T) {
	var gotPath, gotID string
	c := controlAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req openRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotID = req.ID
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]string{"ws": "ws://127.0.0.1:9222/devtools/browser/abc"},
		})
	})

	ws, err := c.openWindow(context.Background(), "window-7")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", ws)
	assert.Equal(t, "/browser/open", gotPath)
	assert.Equal(t, "window-7", gotID)
}

func TestOpenWindowRefusalIsConnectionError(t *testing.T) {
	c := controlAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"msg":     "window busy",
		})
	})

	_, err := c.openWindow(context.Background(), "window-7")
	require.ErrorIs(t, err, ErrConnection)
	// The raw response is preserved for operators
	assert.Contains(t, err.Error(), "window busy")
}

func TestOpenWindowMissingEndpointIsProtocolError(t *testing.T) {
	c := controlAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]string{},
		})
	})

	_, err := c.openWindow(context.Background(), "window-7")
	require.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), `"success":true`)
}

func TestOpenWindowMalformedBodyIsProtocolError(t *testing.T) {
	c := controlAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>504 gateway timeout</html>"))
	})

	_, err := c.openWindow(context.Background(), "window-7")
	require.ErrorIs(t, err, ErrProtocol)
	assert.Contains(t, err.Error(), "504 gateway timeout")
}

func TestOpenWindowTransportFailureIsConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing listening anymore
	c := NewConnector(srv.URL)

	_, err := c.openWindow(context.Background(), "window-7")
	assert.ErrorIs(t, err, ErrConnection)
}

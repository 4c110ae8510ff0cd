package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeStream(t *testing.T, frames ...string) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("token"))
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "subscribe", sub["type"])
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// keep the connection open until the client leaves
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLastPrice(t *testing.T) {
	url := newFakeStream(t,
		`{"type":"ping"}`,
		`{"type":"trade","data":[{"s":"MSFT","p":410.1,"t":1,"v":1}]}`,
		`{"type":"trade","data":[{"s":"AAPL","p":201.25,"t":2,"v":3},{"s":"AAPL","p":201.5,"t":3,"v":1}]}`,
	)

	price, err := NewStream(url, "test-key", time.Second, nil).LastPrice(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 201.5, price)
}

func TestLastPriceTimeout(t *testing.T) {
	url := newFakeStream(t, `{"type":"ping"}`)

	_, err := NewStream(url, "test-key", 100*time.Millisecond, nil).LastPrice(context.Background(), "AAPL")
	require.Error(t, err)
}

func TestLastPriceStreamError(t *testing.T) {
	url := newFakeStream(t, `{"type":"error","msg":"Invalid API key"}`)

	_, err := NewStream(url, "test-key", time.Second, nil).LastPrice(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

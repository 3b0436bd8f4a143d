package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/arcade-sync/internal/broker"
)

type fixedStats struct {
	connections int
	hub         broker.Stats
}

func (that fixedStats) Connections() int    { return that.connections }
func (that fixedStats) Stats() broker.Stats { return that.hub }

func TestRouter(t *testing.T) {
	stats := fixedStats{connections: 3, hub: broker.Stats{Peers: 2, Channels: 1}}
	h := NewHandlers(slog.New(slog.NewTextHandler(io.Discard, nil)), stats, stats)

	srv := httptest.NewServer(Router(h))
	t.Cleanup(srv.Close)

	t.Run("Ping", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/ping")
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "pong", string(body))
	})

	t.Run("Health reports both servers", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		var health Health
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Equal(t, Health{
			Status: "ok",
			Relay:  RelayHealth{Connections: 3},
			Broker: broker.Stats{Peers: 2, Channels: 1},
		}, health)
	})

	t.Run("Unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

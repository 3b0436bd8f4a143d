package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/arcade-sync/internal/broker"
)

type Handlers interface {
	PingHandler(w http.ResponseWriter, _ *http.Request)
	HealthHandler(w http.ResponseWriter, _ *http.Request)
}

type relayStats interface {
	Connections() int
}

type brokerStats interface {
	Stats() broker.Stats
}

type Health struct {
	Status string       `json:"status"`
	Relay  RelayHealth  `json:"relay"`
	Broker broker.Stats `json:"broker"`
}

type RelayHealth struct {
	Connections int `json:"connections"`
}

type handlers struct {
	logger *slog.Logger
	relay  relayStats
	broker brokerStats
}

func NewHandlers(logger *slog.Logger, relay relayStats, hub brokerStats) Handlers {
	return &handlers{
		logger: logger.With("component", "rest"),
		relay:  relay,
		broker: hub,
	}
}

func (that *handlers) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// HealthHandler - liveness plus the number of relay sockets and broker peers.
func (that *handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	health := Health{
		Status: "ok",
		Relay:  RelayHealth{Connections: that.relay.Connections()},
		Broker: that.broker.Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(health); err != nil {
		that.logger.Error("failed to write health", "error", err)
	}
}

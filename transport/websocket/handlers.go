package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
)

// serveRelay - upgrades the connection and processes relay messages until it closes.
func (that *Server) serveRelay(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveRelay")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := newClient(pkg.GenerateParticipantID(), conn)

	that.clientsMutex.Lock()
	that.clients[c.id] = c
	that.connections[c] = struct{}{}
	that.clientsMutex.Unlock()

	log.Info("relay connection established", "clientID", c.id)

	go c.writePump(that.logger)

	c.readLoop(that.logger, func(data []byte) {
		that.handleMessage(ctx, c, data)
	})

	that.untrack(c)
	that.handleDisconnect(ctx, c)
}

func (that *Server) handleMessage(ctx context.Context, c *client, data []byte) {
	log := that.logger.With("method", "handleMessage", "clientID", c.id)

	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		log.Warn("failed to unmarshal message", "error", err)
		return
	}

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("unknown action", "action", message.Action)
		return
	}

	that.relayMutex.Lock()
	defer that.relayMutex.Unlock()

	if err := handler(ctx, c, &message); err != nil {
		log.Error("error processing message", "action", message.Action, "error", err)
	}
}

func (that *Server) handleCreateRoom(ctx context.Context, c *client, _ *Message) error {
	room, err := that.rooms.CreateRoom(ctx, c.id)
	if err != nil {
		return that.sendError(c, err)
	}

	return that.send(c, actionRoomCreated, RoomPayload{Code: room.Code})
}

func (that *Server) handleJoinRoom(ctx context.Context, c *client, msg *Message) error {
	var payload RoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.rooms.JoinRoom(ctx, payload.Code, c.id)
	if err != nil {
		return that.sendError(c, err)
	}

	that.broadcast(room.Players, actionGameStart, GameStartPayload{Code: room.Code, Players: room.Players})

	return nil
}

// handleMakeMove - a rejected move is reported to the mover only.
func (that *Server) handleMakeMove(ctx context.Context, c *client, msg *Message) error {
	var payload MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.Index == nil {
		return that.sendError(c, errMissingIndex)
	}

	outcome, err := that.rooms.MakeMove(ctx, payload.Code, c.id, *payload.Index)
	if err != nil {
		return that.sendError(c, err)
	}

	that.broadcast(outcome.Players, actionUpdateBoard, BoardPayload{
		Index:    outcome.Index,
		Symbol:   outcome.Symbol,
		NextTurn: outcome.NextTurn,
	})

	if outcome.Winner.Terminal() {
		that.broadcast(outcome.Players, actionGameOver, GameOverPayload{Winner: outcome.Winner})
	}

	return nil
}

func (that *Server) handleRestartGame(ctx context.Context, c *client, msg *Message) error {
	var payload RoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	room, err := that.rooms.Restart(ctx, payload.Code, c.id)
	if err != nil {
		return that.sendError(c, err)
	}

	that.broadcast(room.Players, actionGameReset, nil)

	return nil
}

// handleDisconnect - the room goes away with either player.
func (that *Server) handleDisconnect(ctx context.Context, c *client) {
	log := that.logger.With("method", "handleDisconnect", "clientID", c.id)

	that.relayMutex.Lock()
	defer that.relayMutex.Unlock()

	room, err := that.rooms.Leave(ctx, c.id)
	if errors.Is(err, apperror.ErrRoomNotFound) {
		return
	}

	if err != nil {
		log.Error("failed to leave room", "error", err)
		return
	}

	that.broadcast(room.Opponents(c.id), actionPlayerDisconnected, nil)

	log.Info("player disconnected", "code", room.Code)
}

func (that *Server) send(c *client, action string, payload any) error {
	data, err := encode(action, payload)
	if err != nil {
		return err
	}

	if !c.enqueue(data) {
		return fmt.Errorf("%w: %s", apperror.ErrChannelClosed, c.id)
	}

	return nil
}

func (that *Server) sendError(c *client, cause error) error {
	that.logger.Debug("request rejected", "clientID", c.id, "error", cause)

	return that.send(c, actionErrorMessage, ErrorPayload{Reason: reason(cause)})
}

func (that *Server) broadcast(participants []string, action string, payload any) {
	log := that.logger.With("method", "broadcast", "action", action)

	data, err := encode(action, payload)
	if err != nil {
		log.Error("failed to encode message", "error", err)
		return
	}

	for _, participantID := range participants {
		that.clientsMutex.RLock()
		c, ok := that.clients[participantID]
		that.clientsMutex.RUnlock()

		if !ok {
			log.Warn("connection not found for participant", "participantID", participantID)
			continue
		}

		c.enqueue(data)
	}
}

package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/arcade-sync/internal/apperror"
	"github.com/rocketscienceinc/arcade-sync/internal/broker"
	"github.com/rocketscienceinc/arcade-sync/internal/pkg"
)

// peerEndpoint - a broker.Endpoint backed by a websocket client.
type peerEndpoint struct {
	client *client
}

func (that *peerEndpoint) Send(frame broker.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	if !that.client.enqueue(data) {
		return fmt.Errorf("%w: %s", apperror.ErrChannelClosed, that.client.id)
	}

	return nil
}

// servePeer - claims the identity from ?id= on the broker and relays frames
// until the connection closes.
func (that *Server) servePeer(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "servePeer")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		id = pkg.GenerateParticipantID()
	}

	c := newClient(id, conn)
	endpoint := &peerEndpoint{client: c}

	// open goes out first, before anything the hub may route to this id
	if err = endpoint.Send(broker.Frame{Type: broker.FrameOpen, ID: id}); err != nil {
		_ = conn.Close()
		return
	}

	if _, err = that.hub.Register(id, endpoint); err != nil {
		log.Info("identity rejected", "peerID", id, "error", err)

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteJSON(broker.Frame{Type: broker.FrameError, Kind: broker.KindUnavailableID, ID: id})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, broker.KindUnavailableID), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	that.track(c)

	go c.writePump(that.logger)

	c.readLoop(that.logger, func(data []byte) {
		var frame broker.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Warn("failed to unmarshal frame", "peerID", id, "error", err)
			_ = endpoint.Send(broker.Frame{Type: broker.FrameError, Kind: broker.KindInvalidFrame})
			return
		}

		that.hub.Route(id, frame)
	})

	that.hub.Unregister(id)
	that.untrack(c)
}

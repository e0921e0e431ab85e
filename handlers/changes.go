// handlers/changes.go - WebSocket change feed
package handlers

import (
	"fmt"
	"time"

	"superparty/listeners"
	"superparty/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second // Time allowed to write a message
	pingPeriod = 15 * time.Second // Send pings at this interval

	// Per-connection event buffer. A client that falls further behind
	// loses events rather than stalling the mutating goroutine.
	feedBuffer = 64

	localsChangeOptions = "changeOptions"
)

// clientMessage is what a feed client may send.
type clientMessage struct {
	Type   string `json:"type"`
	TeamID uint   `json:"team_id"`
}

// serverMessage is a reply to a client message.
type serverMessage struct {
	Type   string `json:"type"`
	TeamID uint   `json:"team_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// changeOptions parses the interest and team query parameters.
func changeOptions(interest, team string) (listeners.Options, error) {
	var opts listeners.Options
	if interest == "" {
		interest = listeners.InterestAll.String()
	}
	in, err := listeners.ParseInterest(interest)
	if err != nil {
		return opts, err
	}
	opts.Interest = in
	if team != "" {
		if opts.TeamID, err = utils.ParseID(team); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// UpgradeChanges validates a change feed request before the upgrade.
// GET /ws?interest=heroes|team|teams|all&team=<id>
func (h *PartyHandler) UpgradeChanges(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	opts, err := changeOptions(c.Query("interest"), c.Query("team"))
	if err != nil {
		return utils.JSONError(c, fiber.StatusBadRequest, err.Error())
	}
	if opts.TeamID != 0 {
		if _, err := h.ctrl.Team(opts.TeamID); err != nil {
			return h.fail(c, err)
		}
	}
	c.Locals(localsChangeOptions, opts)
	return c.Next()
}

// Changes streams listener events to one websocket client. The client
// may send {"type":"track","team_id":N} to follow another team.
func (h *PartyHandler) Changes() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		opts, _ := conn.Locals(localsChangeOptions).(listeners.Options)

		feed := listeners.NewChannelListener(feedBuffer)
		sub, err := h.ctrl.Subscribe(feed, opts)
		if err != nil {
			h.logger.Warn("change feed subscribe failed", "error", err)
			_ = conn.WriteJSON(serverMessage{Type: "error", Error: err.Error()})
			return
		}
		defer h.ctrl.Unsubscribe(sub)

		log := h.logger.With("subscription", sub.ID(), "interest", sub.Interest())
		log.Info("change feed connected", "team", sub.TrackedTeam())

		replies := make(chan serverMessage, 8)
		done := make(chan struct{})
		writerDone := make(chan struct{})

		go func() {
			defer close(writerDone)
			h.writePump(conn, feed, replies, done)
		}()

		h.readPump(conn, sub, replies)
		close(done)
		<-writerDone

		log.Info("change feed disconnected", "dropped", feed.Dropped())
	})
}

// readPump handles client messages until the connection fails.
func (h *PartyHandler) readPump(conn *websocket.Conn, sub *listeners.Subscription, replies chan<- serverMessage) {
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("change feed read error", "subscription", sub.ID(), "error", err)
			}
			return
		}

		reply := serverMessage{Type: msg.Type}
		switch msg.Type {
		case "track":
			reply.TeamID = msg.TeamID
			if err := h.ctrl.Track(sub, msg.TeamID); err != nil {
				reply.Error = err.Error()
			}
		default:
			reply.Type = "error"
			reply.Error = fmt.Sprintf("unknown message type %q", msg.Type)
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

// writePump is the only goroutine writing to conn.
func (h *PartyHandler) writePump(conn *websocket.Conn, feed *listeners.ChannelListener, replies <-chan serverMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			h.logger.Debug("change feed write error", "error", err)
			// Unblocks readPump.
			_ = conn.Close()
			return false
		}
		return true
	}

	for {
		select {
		case ev := <-feed.C():
			if !write(ev) {
				return
			}
		case reply := <-replies:
			if !write(reply) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

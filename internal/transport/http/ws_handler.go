package http

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/auth"
	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/proto"
	"github.com/relaychat/relaychat-server/internal/utils"
)

// StatusAuthRejected is the close code for connections whose credential was
// missing, expired or invalid. Such connections are never registered.
const StatusAuthRejected websocket.StatusCode = 4401

// WSHandler upgrades HTTP connections and runs the per-connection lifecycle:
// authenticate, register into the shared registry, pump inbound frames into
// the pipeline, and deregister on any exit path.
type WSHandler struct {
	auth       *auth.Service
	registry   *core.Registry
	pipeline   *core.Pipeline
	frameLimit int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(authService *auth.Service, registry *core.Registry, pipeline *core.Pipeline, frameLimit int, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		auth:       authService,
		registry:   registry,
		pipeline:   pipeline,
		frameLimit: frameLimit,
		log:        logger,
	}
}

// Notify serves GET /ws/notify: a pure ambient notification stream. Inbound
// frames are treated as keepalives and discarded.
func (h *WSHandler) Notify(c *gin.Context) {
	h.serve(c, nil, nil)
}

// Direct serves GET /ws/dm/:peer.
func (h *WSHandler) Direct(c *gin.Context) {
	peer := c.Param("peer")
	h.serve(c,
		func(user string) []core.ChannelKey {
			return []core.ChannelKey{core.DirectKey(user, peer)}
		},
		func(ctx context.Context, user string, frame proto.Frame) error {
			return h.pipeline.SubmitDirect(ctx, user, peer, frame)
		},
	)
}

// Room serves GET /ws/room/:room.
func (h *WSHandler) Room(c *gin.Context) {
	room := c.Param("room")
	h.serve(c,
		func(user string) []core.ChannelKey {
			return []core.ChannelKey{core.RoomKey(room)}
		},
		func(ctx context.Context, user string, frame proto.Frame) error {
			return h.pipeline.SubmitRoom(ctx, room, user, frame)
		},
	)
}

// serve is the shared lifecycle: Connecting -> Authenticated -> Active ->
// Closed. extraKeys yields the conversation key for the endpoint (nil for
// notify-only sockets); submit forwards one frame into the pipeline.
func (h *WSHandler) serve(c *gin.Context, extraKeys func(user string) []core.ChannelKey, submit func(ctx context.Context, user string, frame proto.Frame) error) {
	ctx := c.Request.Context()

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	user, err := h.auth.Verify(c.Query("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		conn.Close(StatusAuthRejected, "authentication rejected")
		return
	}

	wc := newWSConn(utils.NewID(), conn)
	session := core.NewSession(h.registry, wc)
	defer session.Close()

	keys := []core.ChannelKey{core.NotifyKey(user)}
	if extraKeys != nil {
		keys = append(keys, extraKeys(user)...)
	}
	session.Attach(keys...)

	h.log.Debug().Str("conn_id", wc.id).Str("user", user).Msg("ws connection active")

	err = h.readLoop(ctx, conn, wc, user, submit)

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("conn_id", wc.id).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop blocks on inbound frames and forwards them sequentially, so two
// messages from the same sender always reach the pipeline in submission
// order. A storage failure terminates the connection; everything else keeps
// the loop running.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn, user string, submit func(ctx context.Context, user string, frame proto.Frame) error) error {
	limiter := newFrameLimiter(h.frameLimit)

	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		if submit == nil {
			// Notify stream: inbound traffic is keepalive only.
			continue
		}
		if !limiter.allow(time.Now()) {
			h.log.Warn().Str("conn_id", wc.id).Str("user", user).Msg("inbound frame rate limit exceeded, dropping frame")
			continue
		}
		if err := submit(ctx, user, frame); err != nil {
			h.log.Error().Err(err).Str("conn_id", wc.id).Str("user", user).Msg("submit inbound frame")
			return err
		}
	}
}

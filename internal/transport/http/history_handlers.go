package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/store"
)

const defaultHistoryLimit = 200

// HistoryHandlers serves direct and room message history.
type HistoryHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.Store, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{
		store: st,
		log:   logger,
	}
}

// DirectMessageResponse represents one direct message in history responses.
type DirectMessageResponse struct {
	From string `json:"from_user"`
	To   string `json:"to_user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// RoomMessageResponse represents one room message in history responses.
type RoomMessageResponse struct {
	From string `json:"from_user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

// DirectHistory returns direct history with a peer, ascending by timestamp.
// GET /api/dm?with=peer&limit=200
func (h *HistoryHandlers) DirectHistory(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	peer := strings.ToLower(strings.TrimSpace(c.Query("with")))
	if peer == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "with is required"})
		return
	}

	messages, err := h.store.ListDirect(c.Request.Context(), username, peer, historyLimit(c))
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Str("peer", peer).Msg("failed to list direct history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]DirectMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, DirectMessageResponse{From: m.From, To: m.To, Text: m.Text, TS: m.TS})
	}

	c.JSON(http.StatusOK, out)
}

// RoomHistory returns room history, ascending by timestamp.
// GET /api/room?room=name&limit=200
func (h *HistoryHandlers) RoomHistory(c *gin.Context) {
	if _, ok := currentUsername(c); !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room := strings.ToLower(strings.TrimSpace(c.Query("room")))
	if room == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "room is required"})
		return
	}

	messages, err := h.store.ListRoom(c.Request.Context(), room, historyLimit(c))
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list room history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]RoomMessageResponse, 0, len(messages))
	for _, m := range messages {
		out = append(out, RoomMessageResponse{From: m.From, Text: m.Text, TS: m.TS})
	}

	c.JSON(http.StatusOK, out)
}

func historyLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultHistoryLimit
	}
	return limit
}

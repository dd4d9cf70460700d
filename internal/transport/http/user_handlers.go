package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/store"
)

const searchLimit = 50

// UserHandlers provides HTTP handlers for directory operations.
type UserHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// SearchUsers handles searching for registered users.
// GET /api/search-users?q=query
func (h *UserHandlers) SearchUsers(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	users, err := h.store.SearchUsers(c.Request.Context(), query, searchLimit)
	if err != nil {
		h.log.Error().Err(err).Str("query", query).Msg("failed to search users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	results := make([]UserResponse, 0, len(users))
	for _, u := range users {
		if u.Username == username {
			continue
		}
		results = append(results, UserResponse{
			Username:    u.Username,
			DisplayName: u.DisplayName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// DialogResponse summarizes one conversation in the dialogs listing.
type DialogResponse struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	LastTS int64  `json:"last_ts"`
}

// Dialogs lists the caller's conversations keyed "dm:{peer}" / "room:{name}".
// GET /api/dialogs
func (h *UserHandlers) Dialogs(c *gin.Context) {
	username, ok := currentUsername(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	dialogs, err := h.store.ListDialogs(c.Request.Context(), username)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to list dialogs")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	items := make(map[string]DialogResponse, len(dialogs))
	for _, d := range dialogs {
		items[string(d.Kind)+":"+d.ID] = DialogResponse{
			Type:   string(d.Kind),
			ID:     d.ID,
			LastTS: d.LastTS,
		}
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

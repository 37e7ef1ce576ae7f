// Package httpapi wires the HTTP endpoints (POST /api/create-lobby,
// GET /ws) and the gin middleware chain in front of them.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kottz/kolmodin-go/internal/apperr"
	"github.com/kottz/kolmodin-go/internal/lobby"
)

type createLobbyRequest struct {
	GameType      string `json:"game_type"`
	TwitchChannel string `json:"twitch_channel"`
}

type createLobbyResponse struct {
	LobbyID                 string `json:"lobby_id"`
	AdminID                 string `json:"admin_id"`
	GameTypeCreated         string `json:"game_type_created"`
	TwitchChannelSubscribed string `json:"twitch_channel_subscribed,omitempty"`
}

// CreateLobbyHandler returns the gin handler for POST /api/create-lobby.
func CreateLobbyHandler(manager *lobby.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createLobbyRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				apperr.Abort(c, apperr.BadRequest("invalid request body"))
				return
			}
		}

		details, err := manager.Create(req.GameType, req.TwitchChannel)
		if err != nil {
			apperr.Abort(c, apperr.Wrap(apperr.CodeBadRequest, "could not create lobby", err))
			return
		}

		c.JSON(http.StatusOK, createLobbyResponse{
			LobbyID:                 details.LobbyID,
			AdminID:                 details.AdminID,
			GameTypeCreated:         details.GameTypeTag,
			TwitchChannelSubscribed: details.TwitchChannel,
		})
	}
}

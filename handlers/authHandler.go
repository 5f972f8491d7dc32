package handlers

import (
	"net/http"

	"aslserver/auth"
	"aslserver/rating"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ゲスト認証リクエストの構造体
type GuestAuthRequest struct {
	PlayerID string `json:"player_id"`
}

// ゲスト認証ハンドラー。player_id未指定なら新規発行し、
// レーティング行を用意した上でJWTを返す
func GuestAuth(store rating.Store, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GuestAuthRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		playerID := req.PlayerID
		if playerID == "" {
			playerID = uuid.New().String()
		}

		// 初回アクセスならデフォルトEloで行が作られる
		record, err := store.Get(playerID)
		if err != nil {
			logger.Error("Failed to ensure rating record", zap.String("playerID", playerID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare player"})
			return
		}

		token, err := auth.GenerateToken(playerID)
		if err != nil {
			logger.Error("Failed to generate token", zap.String("playerID", playerID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":     token,
			"player_id": playerID,
			"elo":       record.Elo,
		})
	}
}

package handlers

import (
	"errors"
	"net/http"

	"aslserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ランキングの最大取得件数
const rankingsLimit = 50

// ランキング取得ハンドラー。Elo降順で上位を返す
func Rankings(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var records []models.PlayerRating
		if err := db.Order("elo DESC").Limit(rankingsLimit).Find(&records).Error; err != nil {
			logger.Error("Failed to fetch rankings", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rankings"})
			return
		}

		rankings := make([]gin.H, 0, len(records))
		for i, r := range records {
			rankings = append(rankings, gin.H{
				"rank":      i + 1,
				"player_id": r.PlayerID,
				"elo":       r.Elo,
				"wins":      r.Wins,
				"losses":    r.Losses,
			})
		}
		c.JSON(http.StatusOK, gin.H{"rankings": rankings})
	}
}

// プレイヤー戦績取得ハンドラー
func Profile(db *gorm.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := c.Param("player_id")

		var record models.PlayerRating
		if err := db.Where("player_id = ?", playerID).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
				return
			}
			logger.Error("Failed to fetch profile", zap.String("playerID", playerID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch profile"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"player_id": record.PlayerID,
			"elo":       record.Elo,
			"wins":      record.Wins,
			"losses":    record.Losses,
		})
	}
}

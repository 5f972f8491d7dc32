package duel

import (
	"fmt"
	"time"

	"aslserver/duel/actions"
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/metrics"
	"aslserver/models"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// 一定期間経過したルームは放置とみなして破棄する
const staleRoomAge = 2 * time.Hour

// StartScheduler は定期スイープのスケジューラを起動します。
// スイープは待機時間に応じて広がった許容幅でキュー全体を再走査し、
// 成立したペアごとに対戦を開始する。あわせて放置ルームの掃除も行う
func StartScheduler(
	mm *matchmaker.Matchmaker,
	eng *engine.Engine,
	registry *models.ClientRegistry,
	config models.Config,
	logger *zap.Logger,
) *cron.Cron {
	c := cron.New(cron.WithSeconds())

	sweepSpec := fmt.Sprintf("@every %ds", config.SweepIntervalSec)
	_, err := c.AddFunc(sweepSpec, func() {
		pairs := mm.FindAllMatches()
		for _, pair := range pairs {
			actions.StartMatch(pair[0], pair[1], registry, mm, eng, logger)
		}
		if len(pairs) > 0 {
			logger.Info("Queue sweep matched players", zap.Int("pairs", len(pairs)))
		}
		metrics.QueueSize.Set(float64(mm.Size()))
	})
	if err != nil {
		logger.Error("Failed to schedule queue sweep", zap.Error(err))
	}

	_, err = c.AddFunc("0 0 * * * *", func() {
		stale := eng.StaleRooms(staleRoomAge)
		for _, roomID := range stale {
			registry.ClearRoom(roomID)
			eng.CloseRoom(roomID)
			logger.Info("Stale room removed", zap.String("roomID", roomID))
		}
		if len(stale) > 0 {
			metrics.ActiveRooms.Set(float64(eng.RoomCount()))
		}
	})
	if err != nil {
		logger.Error("Failed to schedule room cleanup", zap.Error(err))
	}

	c.Start()
	logger.Info("Scheduler started",
		zap.Int("sweepIntervalSec", config.SweepIntervalSec))
	return c
}

package actions

import (
	"aslserver/duel/broadcast"
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/metrics"
	"aslserver/models"

	"go.uber.org/zap"
)

// StartMatch は成立したペアをルームにし、両者に通知して第1ラウンドを開始します。
// 即時マッチと定期スイープの両方から呼ばれる
func StartMatch(
	ticketA, ticketB *models.QueueTicket,
	registry *models.ClientRegistry,
	mm *matchmaker.Matchmaker,
	eng *engine.Engine,
	logger *zap.Logger,
) {
	room := eng.StartDuel(ticketA, ticketB)

	// クライアント側にもルーム所属を記録（切断時の没収処理に使う）
	registry.SetRoom(ticketA.Conn, room.RoomID)
	registry.SetRoom(ticketB.Conn, room.RoomID)

	metrics.MatchesTotal.Inc()
	metrics.ActiveRooms.Set(float64(eng.RoomCount()))
	metrics.QueueSize.Set(float64(mm.Size()))

	broadcast.SendMatchFound(room, logger)
	startNextRound(eng, room.RoomID, logger)
}

// startNextRound はお題を選んでラウンド開始を両者に通知します。
func startNextRound(eng *engine.Engine, roomID string, logger *zap.Logger) {
	room, err := eng.StartRound(roomID)
	if err != nil {
		logger.Error("Failed to start round", zap.String("roomID", roomID), zap.Error(err))
		return
	}

	room.Mu.Lock()
	roundNumber := room.Round
	targetSign := room.TargetSign
	room.Mu.Unlock()

	broadcast.BroadcastRoundStart(room, roundNumber, targetSign, logger)
}

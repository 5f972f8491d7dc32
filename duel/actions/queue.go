package actions

import (
	"encoding/json"
	"errors"
	"time"

	"aslserver/duel/broadcast"
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/metrics"
	"aslserver/models"
	"aslserver/rating"

	"go.uber.org/zap"
)

func handleEnterQueue(
	client *models.Client,
	message []byte,
	registry *models.ClientRegistry,
	mm *matchmaker.Matchmaker,
	eng *engine.Engine,
	store rating.Store,
	logger *zap.Logger,
) {
	var event models.EnterQueueEvent
	if err := json.Unmarshal(message, &event); err != nil {
		broadcast.SendQueueError(client.Conn, "invalid enter_queue payload", logger)
		return
	}
	if err := event.Validate(); err != nil {
		broadcast.SendQueueError(client.Conn, err.Error(), logger)
		return
	}
	// トークンの主体以外のIDでは並べない
	if event.PlayerID != client.PlayerID {
		broadcast.SendQueueError(client.Conn, "player_id does not match session", logger)
		return
	}

	// Eloはストアの値を正とし、取得できない場合のみ申告値を使う
	elo := event.Elo
	if record, err := store.Get(event.PlayerID); err == nil {
		elo = record.Elo
	} else if elo <= 0 {
		elo = rating.DefaultElo
	}

	ticket := &models.QueueTicket{
		PlayerID: event.PlayerID,
		Conn:     client.Conn,
		Elo:      elo,
		JoinedAt: time.Now(),
	}
	if err := mm.Enqueue(ticket); err != nil {
		if errors.Is(err, matchmaker.ErrAlreadyQueued) {
			broadcast.SendQueueError(client.Conn, "already in queue", logger)
		} else {
			broadcast.SendQueueError(client.Conn, "failed to join queue", logger)
		}
		return
	}
	metrics.QueueSize.Set(float64(mm.Size()))
	broadcast.SendQueueJoined(client.Conn, mm.Size(), logger)

	// 新規エントリーを契機に即時マッチを試みる
	if seeker, opponent, ok := mm.FindMatch(event.PlayerID); ok {
		StartMatch(seeker, opponent, registry, mm, eng, logger)
	}
}

func handleLeaveQueue(client *models.Client, message []byte, mm *matchmaker.Matchmaker, logger *zap.Logger) {
	var event models.LeaveQueueEvent
	if err := json.Unmarshal(message, &event); err != nil {
		broadcast.SendQueueError(client.Conn, "invalid leave_queue payload", logger)
		return
	}
	if err := event.Validate(); err != nil {
		broadcast.SendQueueError(client.Conn, err.Error(), logger)
		return
	}
	if event.PlayerID != client.PlayerID {
		broadcast.SendQueueError(client.Conn, "player_id does not match session", logger)
		return
	}

	mm.Dequeue(event.PlayerID)
	metrics.QueueSize.Set(float64(mm.Size()))
	logger.Info("Player left queue", zap.String("playerID", event.PlayerID))
}

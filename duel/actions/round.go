package actions

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"aslserver/classifier"
	"aslserver/duel/broadcast"
	"aslserver/duel/engine"
	"aslserver/metrics"
	"aslserver/models"

	"go.uber.org/zap"
)

// 分類APIの1呼び出しに許す時間
const classifyTimeout = 30 * time.Second

// handleDrawMade はスナップショット提出を処理します。
// 分類は遅い外部呼び出しなので読み取りループから切り離し、
// 判定が返ってからコアに提出する
func handleDrawMade(
	client *models.Client,
	message []byte,
	registry *models.ClientRegistry,
	eng *engine.Engine,
	cls classifier.Classifier,
	logger *zap.Logger,
) {
	var event models.DrawMadeEvent
	if err := json.Unmarshal(message, &event); err != nil {
		broadcast.SendError(client.Conn, "invalid draw_made payload", logger)
		return
	}
	if err := event.Validate(); err != nil {
		broadcast.SendError(client.Conn, err.Error(), logger)
		return
	}
	if event.PlayerID != client.PlayerID {
		broadcast.SendError(client.Conn, "player_id does not match session", logger)
		return
	}

	room, ok := eng.GetRoom(event.RoomID)
	if !ok {
		broadcast.SendError(client.Conn, "room not found", logger)
		return
	}
	if room.Player(event.PlayerID) == nil {
		broadcast.SendError(client.Conn, "player not in room", logger)
		return
	}

	// 提出時点のラウンド番号とお題を控える。分類中にラウンドが進んだ場合、
	// この提出は過去ラウンド扱いで破棄される。
	// お題はクライアント申告ではなくルームの値を正とする
	room.Mu.Lock()
	roundNumber := room.Round
	targetSign := room.TargetSign
	room.Mu.Unlock()

	imageBytes, err := classifier.DecodeImage(event.Image)
	if err != nil {
		broadcast.SendError(client.Conn, "invalid image data", logger)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), classifyTimeout)
		defer cancel()

		result, err := cls.Classify(ctx, imageBytes, targetSign)
		if err != nil {
			// 分類失敗はルーム状態に触れない。提出者が撮り直して再提出できる
			metrics.ClassificationsTotal.WithLabelValues("error").Inc()
			logger.Error("Classification failed",
				zap.String("roomID", event.RoomID),
				zap.String("playerID", event.PlayerID),
				zap.Error(err),
			)
			broadcast.SendClassificationError(client.Conn, "classification failed, please retry", logger)
			return
		}
		metrics.ClassificationsTotal.WithLabelValues("ok").Inc()

		outcome, err := eng.SubmitResult(event.RoomID, event.PlayerID, roundNumber, result.Matches, result.DetectedSign)
		if err != nil {
			if errors.Is(err, engine.ErrRoomNotFound) {
				broadcast.SendError(client.Conn, "room not found", logger)
			} else if errors.Is(err, engine.ErrPlayerNotInRoom) {
				broadcast.SendError(client.Conn, "player not in room", logger)
			} else {
				broadcast.SendError(client.Conn, "failed to submit result", logger)
			}
			return
		}
		if outcome == nil {
			// 相手の提出待ち、または破棄された提出
			return
		}

		metrics.RoundsTotal.Inc()
		broadcast.BroadcastRoundResult(room, outcome, logger)

		if outcome.MatchEnded {
			broadcast.BroadcastMatchComplete(room, outcome, "", logger)
			registry.ClearRoom(room.RoomID)
			eng.CloseRoom(room.RoomID)
			metrics.ActiveRooms.Set(float64(eng.RoomCount()))
		}
	}()
}

// handlePlayerReady は結果確認の申告を処理します。両者揃ったら次ラウンドへ
func handlePlayerReady(client *models.Client, message []byte, eng *engine.Engine, logger *zap.Logger) {
	var event models.PlayerReadyEvent
	if err := json.Unmarshal(message, &event); err != nil {
		broadcast.SendError(client.Conn, "invalid player_ready payload", logger)
		return
	}
	if err := event.Validate(); err != nil {
		broadcast.SendError(client.Conn, err.Error(), logger)
		return
	}
	if event.PlayerID != client.PlayerID {
		broadcast.SendError(client.Conn, "player_id does not match session", logger)
		return
	}

	bothReady, err := eng.MarkReady(event.RoomID, event.PlayerID)
	if err != nil {
		if errors.Is(err, engine.ErrRoomNotFound) {
			broadcast.SendError(client.Conn, "room not found", logger)
		} else if errors.Is(err, engine.ErrPlayerNotInRoom) {
			broadcast.SendError(client.Conn, "player not in room", logger)
		}
		return
	}
	if bothReady {
		startNextRound(eng, event.RoomID, logger)
	}
}

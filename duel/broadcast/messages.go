package broadcast

import (
	"encoding/json"
	"sync"

	"aslserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 送信はすべてJSONテキストフレーム。失敗はログに残すだけで
// ルーム状態には影響させない

// 書き込み元は読み取りループのほかにスイープや分類ゴルーチンもあるため、
// コネクション単位のミューテックスで直列化する（gorillaは同時書き込み不可）
var connWriteMu sync.Map // キー: *websocket.Conn、値: *sync.Mutex

func writeLock(conn *websocket.Conn) *sync.Mutex {
	mu, _ := connWriteMu.LoadOrStore(conn, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// ReleaseConn は切断されたコネクションの書き込みロックを破棄します。
// 切断クリーンナップから呼ぶこと
func ReleaseConn(conn *websocket.Conn) {
	connWriteMu.Delete(conn)
}

func sendToConn(conn *websocket.Conn, message interface{}, logger *zap.Logger) {
	if conn == nil {
		return
	}
	messageJSON, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}

	mu := writeLock(conn)
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, messageJSON); err != nil {
		logger.Error("Failed to send message", zap.Error(err))
	}
}

func SendQueueJoined(conn *websocket.Conn, position int, logger *zap.Logger) {
	sendToConn(conn, models.QueueJoinedMessage{Type: "queue_joined", Position: position}, logger)
}

// SendQueueError はキュー操作の失敗を本人にだけ通知します。
func SendQueueError(conn *websocket.Conn, message string, logger *zap.Logger) {
	sendToConn(conn, models.QueueErrorMessage{Type: "queue_error", Message: message}, logger)
}

func SendError(conn *websocket.Conn, message string, logger *zap.Logger) {
	sendToConn(conn, models.ErrorMessage{Type: "error", Message: message}, logger)
}

func SendClassificationError(conn *websocket.Conn, message string, logger *zap.Logger) {
	sendToConn(conn, models.ClassificationErrorMessage{Type: "classification_error", Message: message}, logger)
}

func SendSession(conn *websocket.Conn, sessionID, playerID string, logger *zap.Logger) {
	sendToConn(conn, models.SessionMessage{Type: "session", SessionID: sessionID, PlayerID: playerID}, logger)
}

// SendMatchFound は両プレイヤーに個別の内容で成立通知を送ります。
// 相手のIDとEloは視点ごとに入れ替わる
func SendMatchFound(room *models.DuelRoom, logger *zap.Logger) {
	p1, p2 := room.Players[0], room.Players[1]

	sendToConn(p1.Conn, models.MatchFoundMessage{
		Type:        "match_found",
		RoomID:      room.RoomID,
		OpponentID:  p2.ID,
		OpponentElo: p2.Elo,
		IsInitiator: true,
	}, logger)
	sendToConn(p2.Conn, models.MatchFoundMessage{
		Type:        "match_found",
		RoomID:      room.RoomID,
		OpponentID:  p1.ID,
		OpponentElo: p1.Elo,
		IsInitiator: false,
	}, logger)
	logger.Info("Match found notifications sent",
		zap.String("roomID", room.RoomID),
		zap.String("player1", p1.ID),
		zap.String("player2", p2.ID),
	)
}

// BroadcastRoundStart はルーム内の全プレイヤーにラウンド開始を通知します。
func BroadcastRoundStart(room *models.DuelRoom, roundNumber int, targetSign string, logger *zap.Logger) {
	message := models.RoundStartMessage{
		Type:        "round_start",
		RoomID:      room.RoomID,
		RoundNumber: roundNumber,
		TargetSign:  targetSign,
	}
	for _, player := range room.Players {
		if player != nil {
			sendToConn(player.Conn, message, logger)
		}
	}
}

func BroadcastRoundResult(room *models.DuelRoom, outcome *models.RoundOutcome, logger *zap.Logger) {
	var winnerID *string
	if outcome.WinnerID != "" {
		winnerID = &outcome.WinnerID
	}
	message := models.RoundResultMessage{
		Type:          "round_result",
		RoomID:        room.RoomID,
		WinnerID:      winnerID,
		PlayerResults: outcome.PlayerResults,
		Scores:        outcome.Scores,
		IsReplay:      outcome.IsReplay,
	}
	for _, player := range room.Players {
		if player != nil {
			sendToConn(player.Conn, message, logger)
		}
	}
}

func BroadcastMatchComplete(room *models.DuelRoom, outcome *models.RoundOutcome, reason string, logger *zap.Logger) {
	message := models.MatchCompleteMessage{
		Type:          "match_complete",
		RoomID:        room.RoomID,
		WinnerID:      outcome.MatchWinnerID,
		FinalScores:   outcome.Scores,
		RatingChanges: outcome.RatingChanges,
		Reason:        reason,
	}
	for _, player := range room.Players {
		if player != nil {
			sendToConn(player.Conn, message, logger)
		}
	}
	logger.Info("Match results broadcasted", zap.String("roomID", room.RoomID))
}

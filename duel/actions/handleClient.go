package actions

import (
	"encoding/json"

	"aslserver/classifier"
	"aslserver/duel/broadcast"
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/models"
	"aslserver/rating"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleClient はクライアントごとにメッセージを読み取るゴルーチンです。
// ペイロードはイベント種別ごとの構造体にデコードし、検証してから
// コアに渡す。検証エラーは送信者にのみ返す
func HandleClient(
	client *models.Client,
	registry *models.ClientRegistry,
	mm *matchmaker.Matchmaker,
	eng *engine.Engine,
	store rating.Store,
	cls classifier.Classifier,
	logger *zap.Logger,
	onClose func(),
) {
	defer onClose()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		// 受信したメッセージをJSON形式でデコード
		var envelope models.EventEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			logger.Error("Error decoding message", zap.Error(err))
			broadcast.SendError(client.Conn, "invalid message", logger)
			continue
		}

		// メッセージタイプに基づいて適切なアクションを実行
		switch envelope.Type {
		case models.EventEnterQueue:
			handleEnterQueue(client, message, registry, mm, eng, store, logger)
		case models.EventLeaveQueue:
			handleLeaveQueue(client, message, mm, logger)
		case models.EventDrawMade:
			handleDrawMade(client, message, registry, eng, cls, logger)
		case models.EventPlayerReady:
			handlePlayerReady(client, message, eng, logger)
		default:
			logger.Info("Received unknown message type", zap.String("type", envelope.Type))
			broadcast.SendError(client.Conn, "unknown message type", logger)
		}
	}
}

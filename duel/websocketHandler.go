package duel

import (
	"context"
	"net/http"
	"sync"

	"aslserver/classifier"
	"aslserver/duel/actions"
	"aslserver/duel/broadcast"
	"aslserver/duel/connection"
	"aslserver/duel/database"
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/metrics"
	"aslserver/models"
	"aslserver/rating"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

// WebSocket接続へのアップグレードを行う関数
func HandleConnections(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	registry *models.ClientRegistry,
	mm *matchmaker.Matchmaker,
	eng *engine.Engine,
	store rating.Store,
	cls classifier.Classifier,
	rdb *redis.Client,
	logger *zap.Logger,
	upgrader websocket.Upgrader,
) {
	// ユーザーコンテキストの取得
	clientContext, err := connection.FetchClientContext(r, logger)
	if err != nil {
		logger.Error("Error fetching client context", zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// WebSocket接続へのアップグレードと確立
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Error upgrading WebSocket", zap.Error(err))
		return
	}

	client := &models.Client{
		Conn:     conn,
		PlayerID: clientContext.PlayerID,
	}
	registry.Add(client)
	logger.Info("New client added", zap.String("playerID", client.PlayerID))

	// セッションIDの検証と復元。対戦中の再接続なら進行中のルームを
	// プレイヤーIDから引き直し、コネクションを差し替える
	sessionID := r.Header.Get("SessionID")
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID != "" {
		if info, err := database.ValidateSessionID(ctx, rdb, sessionID, logger); err == nil {
			if info.PlayerID == client.PlayerID {
				if room, ok := eng.FindRoomByPlayer(client.PlayerID); ok {
					if err := eng.Rebind(room.RoomID, client.PlayerID, conn); err == nil {
						client.RoomID = room.RoomID
					}
				}
			}
			// 旧セッションの削除。新しいIDは下で発行する
			database.DeleteSessionID(ctx, rdb, sessionID)
		}
	}

	// 切断時のクリーンナップ。読み取りループとPing監視の両方から呼ばれるため
	// 一度だけ実行する
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			conn.Close()
			broadcast.ReleaseConn(conn)
			registry.Remove(client)
			logger.Info("Client removed", zap.String("playerID", client.PlayerID))

			// キュー待機中なら取り除く
			if playerID, ok := mm.DequeueByConn(conn); ok {
				metrics.QueueSize.Set(float64(mm.Size()))
				logger.Info("Player removed from queue on disconnect", zap.String("playerID", playerID))
			}

			// 対戦中なら没収決着。残った側の勝利として通知する
			if room, playerID, ok := eng.FindRoomByConn(conn); ok {
				outcome, err := eng.Forfeit(room.RoomID, playerID)
				if err != nil {
					logger.Error("Forfeit failed", zap.String("roomID", room.RoomID), zap.Error(err))
					return
				}
				if outcome != nil {
					broadcast.BroadcastMatchComplete(room, outcome, "forfeit", logger)
				}
				registry.ClearRoom(room.RoomID)
				eng.CloseRoom(room.RoomID)
				metrics.ActiveRooms.Set(float64(eng.RoomCount()))
			}
		})
	}

	// 再接続用のセッションIDを発行してクライアントに返す
	if err := database.GenerateAndStoreSessionID(ctx, client, rdb, logger); err != nil {
		logger.Error("Failed to generate or store session ID", zap.Error(err))
	}

	// クライアントごとにメッセージ読み取りゴルーチンを起動
	go actions.HandleClient(client, registry, mm, eng, store, cls, logger, cleanup)

	// Ping/Pongを管理するゴルーチンを起動
	go connection.MaintainWebSocketConnection(client, logger, cleanup)
}

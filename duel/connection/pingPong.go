package connection

import (
	"time"

	"aslserver/models"

	"go.uber.org/zap"

	"github.com/gorilla/websocket"
)

// MaintainWebSocketConnection はクライアントのWebSocket接続を維持し、
// Ping/Pongメッセージで接続をチェックします。
// 切断を検知したらonCloseを呼んで終了する
func MaintainWebSocketConnection(c *models.Client, logger *zap.Logger, onClose func()) {
	defer onClose()

	// Pongハンドラの設定: Pongを受信したら読み取りデッドラインを更新
	c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(60 * time.Second)) // 60秒の読み取りデッドライン
		return nil
	})

	// Pingの送信間隔を設定
	pingPeriod := 10 * time.Second // 10秒ごとにPingを送信
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
			logger.Info("Ping failed, connection considered lost",
				zap.String("playerID", c.PlayerID),
				zap.Error(err),
			)
			return
		}
	}
}

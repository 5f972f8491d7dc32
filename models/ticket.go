package models

import (
	"time"

	"github.com/gorilla/websocket"
)

// QueueTicket はキューで待機中のプレイヤー1人分のレコードです。
// キュー在籍中はMatchmakerが所有し、取り出された時点で破棄される
type QueueTicket struct {
	PlayerID string
	Conn     *websocket.Conn // 結果通知の宛先。Matchmaker自身は中身を見ない
	Elo      int
	JoinedAt time.Time // 待ち時間の起点。許容Elo差の拡張に使用
}

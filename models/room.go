package models

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ルームの状態。finishedは終端で、通知後にルームは破棄される
const (
	RoomStatusActive   = "active"
	RoomStatusFinished = "finished"
)

// DuelPlayer はルーム内のプレイヤー1人分の情報
type DuelPlayer struct {
	ID   string
	Elo  int
	Conn *websocket.Conn
}

// PlayerResult は1ラウンドにおける片方のプレイヤーの判定結果
type PlayerResult struct {
	Matches      bool   `json:"matches"`
	DetectedSign string `json:"detected_sign"`
}

// 各対戦のインスタンス。DuelEngineが所有し、Muで保護される
type DuelRoom struct {
	Mu sync.Mutex

	RoomID     string
	Players    [2]*DuelPlayer
	Status     string         // "active" または "finished"
	Scores     map[string]int // キー: Player ID。常に2エントリ
	Round      int            // 1始まり。リプレイでは進まない
	TargetSign string         // 現在のラウンドのお題（A〜Zの1文字）

	// ラウンドごとの蓄積。ラウンド遷移で必ず同時にクリアされる
	RoundResults map[string]PlayerResult // キー: Player ID、最大2エントリ
	ReadyPlayers map[string]bool         // 結果確認済みのプレイヤー、最大2エントリ

	MatchWinnerID string
	CreatedAt     time.Time
}

// Player は所属プレイヤーを返します。所属していなければnil
func (r *DuelRoom) Player(playerID string) *DuelPlayer {
	for _, p := range r.Players {
		if p != nil && p.ID == playerID {
			return p
		}
	}
	return nil
}

// Opponent は相手プレイヤーを返します。所属していなければnil
func (r *DuelRoom) Opponent(playerID string) *DuelPlayer {
	for _, p := range r.Players {
		if p != nil && p.ID != playerID {
			return p
		}
	}
	return nil
}

// RoundOutcome は両者の提出が揃って解決された1ラウンドの結果です。
// MatchEndedがtrueの場合はレーティング変動も含む
type RoundOutcome struct {
	RoomID        string
	RoundNumber   int
	WinnerID      string // ラウンド勝者。リプレイと両者正解時は空
	PlayerResults map[string]PlayerResult
	Scores        map[string]int
	IsReplay      bool
	MatchEnded    bool
	MatchWinnerID string
	RatingChanges map[string]RatingChange
}

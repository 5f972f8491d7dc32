package models

import (
	"errors"
)

// 受信イベントのスキーマ定義。typeフィールドで種別を判定し、
// 各構造体に再デコードしてからValidateで境界チェックを行う。
// 不正なペイロードはコアに届く前にここで弾く

// EventEnvelope は受信メッセージの種別判定にのみ使用します
type EventEnvelope struct {
	Type string `json:"type"`
}

// 受信イベントの種別
const (
	EventEnterQueue  = "enter_queue"
	EventLeaveQueue  = "leave_queue"
	EventDrawMade    = "draw_made"
	EventPlayerReady = "player_ready"
)

type EnterQueueEvent struct {
	PlayerID string `json:"player_id"`
	Elo      int    `json:"elo"`
}

func (e *EnterQueueEvent) Validate() error {
	if e.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if e.Elo < 0 {
		return errors.New("elo must not be negative")
	}
	return nil
}

type LeaveQueueEvent struct {
	PlayerID string `json:"player_id"`
}

func (e *LeaveQueueEvent) Validate() error {
	if e.PlayerID == "" {
		return errors.New("player_id is required")
	}
	return nil
}

// DrawMadeEvent はスナップショット1枚の提出。Imageはbase64（data URI可）
type DrawMadeEvent struct {
	RoomID     string `json:"room_id"`
	PlayerID   string `json:"player_id"`
	Image      string `json:"image"`
	TargetSign string `json:"target_sign"`
}

func (e *DrawMadeEvent) Validate() error {
	if e.RoomID == "" {
		return errors.New("room_id is required")
	}
	if e.PlayerID == "" {
		return errors.New("player_id is required")
	}
	if e.Image == "" {
		return errors.New("image is required")
	}
	if e.TargetSign == "" {
		return errors.New("target_sign is required")
	}
	return nil
}

type PlayerReadyEvent struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

func (e *PlayerReadyEvent) Validate() error {
	if e.RoomID == "" {
		return errors.New("room_id is required")
	}
	if e.PlayerID == "" {
		return errors.New("player_id is required")
	}
	return nil
}

// 送信メッセージのスキーマ定義

type QueueJoinedMessage struct {
	Type     string `json:"type"` // "queue_joined"
	Position int    `json:"position"`
}

type QueueErrorMessage struct {
	Type    string `json:"type"` // "queue_error"
	Message string `json:"message"`
}

// MatchFoundMessage は両プレイヤーに個別送信される
type MatchFoundMessage struct {
	Type        string `json:"type"` // "match_found"
	RoomID      string `json:"room_id"`
	OpponentID  string `json:"opponent_id"`
	OpponentElo int    `json:"opponent_elo"`
	IsInitiator bool   `json:"is_initiator"`
}

type RoundStartMessage struct {
	Type        string `json:"type"` // "round_start"
	RoomID      string `json:"room_id"`
	RoundNumber int    `json:"round_number"`
	TargetSign  string `json:"target_sign"`
}

type RoundResultMessage struct {
	Type          string                  `json:"type"` // "round_result"
	RoomID        string                  `json:"room_id"`
	WinnerID      *string                 `json:"winner_id"` // リプレイ・両者正解時はnull
	PlayerResults map[string]PlayerResult `json:"player_results"`
	Scores        map[string]int          `json:"scores"`
	IsReplay      bool                    `json:"is_replay"`
}

type MatchCompleteMessage struct {
	Type          string                  `json:"type"` // "match_complete"
	RoomID        string                  `json:"room_id"`
	WinnerID      string                  `json:"winner_id"`
	FinalScores   map[string]int          `json:"final_scores"`
	RatingChanges map[string]RatingChange `json:"rating_changes"`
	Reason        string                  `json:"reason,omitempty"` // 通常は空、切断時は"forfeit"
}

type ClassificationErrorMessage struct {
	Type    string `json:"type"` // "classification_error"
	Message string `json:"message"`
}

// SessionMessage は接続直後に払い出すセッションID（再接続用）
type SessionMessage struct {
	Type      string `json:"type"` // "session"
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

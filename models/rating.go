package models

import (
	"gorm.io/gorm"
)

// PlayerRating モデルの定義。レーティング永続化はこのテーブルのみ
type PlayerRating struct {
	gorm.Model
	PlayerID string `gorm:"unique;not null"`
	Elo      int    `gorm:"not null;default:1000"`
	Wins     int    `gorm:"not null;default:0"`
	Losses   int    `gorm:"not null;default:0"`
}

// RatingChange は1試合で適用されたレーティング変動を表します。
// 永続化に失敗した場合はDeltaが0の中立レコードが入る
type RatingChange struct {
	Elo    int `json:"elo"`    // 更新後のElo
	Delta  int `json:"delta"`  // 変動量（敗者は負の値）
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

package rating

import (
	"math"

	"aslserver/models"
)

const (
	// KFactor はElo更新の変動幅係数
	KFactor = 32
	// MinWinDelta は勝者が必ず得る最低ポイント。
	// 格下相手への勝利でも上昇が見えるようにする
	MinWinDelta = 5
	// FloorElo はレーティングの下限
	FloorElo = 100
	// DefaultElo は新規・復旧用のレーティング初期値
	DefaultElo = 1000
)

// MatchResult は1試合分のレーティング更新結果です。
type MatchResult struct {
	Winner models.PlayerRating
	Loser  models.PlayerRating
	Delta  int
}

// ExpectedScore は勝者側の期待勝率を返します。
func ExpectedScore(winnerElo, loserElo int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(loserElo-winnerElo)/400.0))
}

// ApplyMatch は勝敗確定後のレーティングを計算します。
// 副作用はなく、永続化は呼び出し側の責務。
// 勝者は必ずMinWinDelta以上を得て、敗者は同量を失う（下限FloorElo）
func ApplyMatch(winner, loser models.PlayerRating) MatchResult {
	expected := ExpectedScore(winner.Elo, loser.Elo)
	delta := int(math.Round(KFactor * (1.0 - expected)))
	if delta < MinWinDelta {
		delta = MinWinDelta
	}

	winner.Elo += delta
	winner.Wins++

	loser.Elo -= delta
	if loser.Elo < FloorElo {
		loser.Elo = FloorElo
	}
	loser.Losses++

	return MatchResult{Winner: winner, Loser: loser, Delta: delta}
}

// NeutralRecord はレーティングストア障害時に使う中立のデフォルトレコード
func NeutralRecord(playerID string) models.PlayerRating {
	return models.PlayerRating{PlayerID: playerID, Elo: DefaultElo}
}

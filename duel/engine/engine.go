package engine

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"aslserver/models"
	"aslserver/rating"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// お題はASLアルファベット26文字から一様ランダムに選ぶ。連続重複は許容
const targetSigns = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrPlayerNotInRoom = errors.New("player not in room")
)

// Engine は進行中の全ルームを所有し、ラウンドのライフサイクルを回します。
// ルーム集合はEngineのmuで、各ルームの状態はルーム自身のMuで保護される。
// 別ルーム同士の解決は並行して進んでよい
type Engine struct {
	mu    sync.Mutex
	rooms map[string]*models.DuelRoom // キー: Room ID

	winThreshold int
	defaultElo   int
	store        rating.Store

	randMu  sync.Mutex
	randGen *rand.Rand

	logger *zap.Logger
}

func New(store rating.Store, config models.Config, logger *zap.Logger) *Engine {
	defaultElo := config.DefaultElo
	if defaultElo <= 0 {
		defaultElo = rating.DefaultElo
	}
	return &Engine{
		rooms:        make(map[string]*models.DuelRoom),
		winThreshold: config.WinThreshold,
		defaultElo:   defaultElo,
		store:        store,
		randGen:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:       logger,
	}
}

// StartDuel はマッチ成立した2チケットからルームを作ります。
// スコアは両者0で初期化。お題はまだ選ばない
func (e *Engine) StartDuel(ticketA, ticketB *models.QueueTicket) *models.DuelRoom {
	room := &models.DuelRoom{
		RoomID: uuid.New().String(),
		Players: [2]*models.DuelPlayer{
			{ID: ticketA.PlayerID, Elo: ticketA.Elo, Conn: ticketA.Conn},
			{ID: ticketB.PlayerID, Elo: ticketB.Elo, Conn: ticketB.Conn},
		},
		Status: models.RoomStatusActive,
		Scores: map[string]int{
			ticketA.PlayerID: 0,
			ticketB.PlayerID: 0,
		},
		Round:        1,
		RoundResults: make(map[string]models.PlayerResult),
		ReadyPlayers: make(map[string]bool),
		CreatedAt:    time.Now(),
	}

	e.mu.Lock()
	e.rooms[room.RoomID] = room
	e.mu.Unlock()

	e.logger.Info("Duel room created",
		zap.String("roomID", room.RoomID),
		zap.String("player1", ticketA.PlayerID),
		zap.String("player2", ticketB.PlayerID),
	)
	return room
}

// StartRound は新しいお題を選び、ラウンドごとの蓄積をクリアします。
// ラウンド番号は解決時に進むため、ここでは変更しない。
// 初回はルーム作成時の1のまま、リプレイ後も同じ番号で再開する
func (e *Engine) StartRound(roomID string) (*models.DuelRoom, error) {
	room, err := e.lookup(roomID)
	if err != nil {
		return nil, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Status == models.RoomStatusFinished {
		e.logger.Warn("StartRound on finished room ignored", zap.String("roomID", roomID))
		return room, nil
	}

	room.TargetSign = e.randomSign()
	room.RoundResults = make(map[string]models.PlayerResult)
	room.ReadyPlayers = make(map[string]bool)

	e.logger.Info("Round started",
		zap.String("roomID", roomID),
		zap.Int("round", room.Round),
		zap.String("targetSign", room.TargetSign),
	)
	return room, nil
}

// SubmitResult は1プレイヤー分の判定結果を記録します。
// 過去ラウンドや重複の提出は黙って捨てる（上書きしない）。
// 両者分が揃った時点でラウンドを解決し、RoundOutcomeを返す。
// 揃っていない間はnilを返し、呼び出し側は待つ
func (e *Engine) SubmitResult(roomID, playerID string, roundNumber int, matches bool, detectedSign string) (*models.RoundOutcome, error) {
	room, err := e.lookup(roomID)
	if err != nil {
		return nil, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Player(playerID) == nil {
		return nil, ErrPlayerNotInRoom
	}
	if room.Status == models.RoomStatusFinished {
		return nil, nil
	}
	if roundNumber != room.Round {
		// 解決済みラウンドへの遅延提出
		e.logger.Info("Stale round submission dropped",
			zap.String("roomID", roomID),
			zap.String("playerID", playerID),
			zap.Int("submitted", roundNumber),
			zap.Int("current", room.Round),
		)
		return nil, nil
	}
	if _, already := room.RoundResults[playerID]; already {
		e.logger.Info("Duplicate submission ignored",
			zap.String("roomID", roomID),
			zap.String("playerID", playerID),
		)
		return nil, nil
	}

	room.RoundResults[playerID] = models.PlayerResult{
		Matches:      matches,
		DetectedSign: detectedSign,
	}
	if len(room.RoundResults) < 2 {
		return nil, nil
	}

	return e.resolveRound(room), nil
}

// resolveRound は両者分が揃ったラウンドを解決します。room.Mu保持中に呼ぶこと
func (e *Engine) resolveRound(room *models.DuelRoom) *models.RoundOutcome {
	p1, p2 := room.Players[0], room.Players[1]
	r1 := room.RoundResults[p1.ID]
	r2 := room.RoundResults[p2.ID]

	outcome := &models.RoundOutcome{
		RoomID:      room.RoomID,
		RoundNumber: room.Round,
		PlayerResults: map[string]models.PlayerResult{
			p1.ID: r1,
			p2.ID: r2,
		},
	}

	switch {
	case !r1.Matches && !r2.Matches:
		// 両者不正解はリプレイ。スコアもラウンド番号も動かない
		outcome.IsReplay = true

	case r1.Matches && r2.Matches:
		if e.doubleScoreForbidden(room) {
			// 同時正解で同点加算すると決着不能な最終盤面に近づくため
			// リプレイ扱いにする
			outcome.IsReplay = true
		} else {
			room.Scores[p1.ID]++
			room.Scores[p2.ID]++
		}

	case r1.Matches:
		room.Scores[p1.ID]++
		outcome.WinnerID = p1.ID

	default:
		room.Scores[p2.ID]++
		outcome.WinnerID = p2.ID
	}

	if !outcome.IsReplay {
		for _, p := range room.Players {
			if room.Scores[p.ID] >= e.winThreshold {
				room.Status = models.RoomStatusFinished
				room.MatchWinnerID = p.ID
				outcome.MatchEnded = true
				outcome.MatchWinnerID = p.ID
				break
			}
		}
		if !outcome.MatchEnded {
			room.Round++
		}
	}

	outcome.Scores = copyScores(room.Scores)

	if outcome.MatchEnded {
		loser := room.Opponent(room.MatchWinnerID)
		outcome.RatingChanges = e.applyRatings(room.MatchWinnerID, loser.ID)
		e.logger.Info("Match finished",
			zap.String("roomID", room.RoomID),
			zap.String("winnerID", room.MatchWinnerID),
			zap.Any("scores", outcome.Scores),
		)
	} else {
		e.logger.Info("Round resolved",
			zap.String("roomID", room.RoomID),
			zap.Int("round", outcome.RoundNumber),
			zap.String("roundWinner", outcome.WinnerID),
			zap.Bool("replay", outcome.IsReplay),
		)
	}
	return outcome
}

// doubleScoreForbidden は同時正解の同点加算を禁止すべき盤面か判定します。
// 同点から両者加算すると2-2（およびしきい値同時到達）が生まれるため、
// 加算後が2-2以上の同点になる場合はリプレイに倒す
func (e *Engine) doubleScoreForbidden(room *models.DuelRoom) bool {
	s1 := room.Scores[room.Players[0].ID]
	s2 := room.Scores[room.Players[1].ID]
	return s1 == s2 && s1+1 >= 2
}

// applyRatings は試合終了時のレーティング更新を行います。
// ストア障害は試合の決着を妨げてはならないため、失敗した側は
// 中立のデフォルトレコード（変動0）で代替してログに残す
func (e *Engine) applyRatings(winnerID, loserID string) map[string]models.RatingChange {
	changes := map[string]models.RatingChange{
		winnerID: e.neutralChange(),
		loserID:  e.neutralChange(),
	}

	winnerRec, werr := e.store.Get(winnerID)
	loserRec, lerr := e.store.Get(loserID)
	if werr != nil || lerr != nil {
		e.logger.Error("Rating store unavailable, using neutral records",
			zap.String("winnerID", winnerID),
			zap.String("loserID", loserID),
			zap.NamedError("winnerErr", werr),
			zap.NamedError("loserErr", lerr),
		)
		return changes
	}

	result := rating.ApplyMatch(winnerRec, loserRec)

	if err := e.store.Update(result.Winner); err == nil {
		changes[winnerID] = models.RatingChange{
			Elo:    result.Winner.Elo,
			Delta:  result.Delta,
			Wins:   result.Winner.Wins,
			Losses: result.Winner.Losses,
		}
	} else {
		e.logger.Error("Failed to persist winner rating", zap.String("playerID", winnerID), zap.Error(err))
	}

	if err := e.store.Update(result.Loser); err == nil {
		changes[loserID] = models.RatingChange{
			Elo:    result.Loser.Elo,
			Delta:  -result.Delta,
			Wins:   result.Loser.Wins,
			Losses: result.Loser.Losses,
		}
	} else {
		e.logger.Error("Failed to persist loser rating", zap.String("playerID", loserID), zap.Error(err))
	}

	return changes
}

// MarkReady は結果確認済みのプレイヤーを記録します（冪等）。
// 両者揃った時点でtrueを返し、呼び出し側が次のStartRoundを呼ぶ
func (e *Engine) MarkReady(roomID, playerID string) (bool, error) {
	room, err := e.lookup(roomID)
	if err != nil {
		return false, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	if room.Player(playerID) == nil {
		return false, ErrPlayerNotInRoom
	}
	if room.Status == models.RoomStatusFinished {
		return false, nil
	}

	room.ReadyPlayers[playerID] = true
	return len(room.ReadyPlayers) == 2, nil
}

// Forfeit は切断などでプレイヤーが離脱した試合を没収決着にします。
// 残った側の勝利としてレーティングを適用する。
// 既に終了済みの場合はnilを返す
func (e *Engine) Forfeit(roomID, leaverID string) (*models.RoundOutcome, error) {
	room, err := e.lookup(roomID)
	if err != nil {
		return nil, err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	leaver := room.Player(leaverID)
	if leaver == nil {
		return nil, ErrPlayerNotInRoom
	}
	if room.Status == models.RoomStatusFinished {
		return nil, nil
	}

	winner := room.Opponent(leaverID)
	room.Status = models.RoomStatusFinished
	room.MatchWinnerID = winner.ID

	outcome := &models.RoundOutcome{
		RoomID:        room.RoomID,
		RoundNumber:   room.Round,
		Scores:        copyScores(room.Scores),
		MatchEnded:    true,
		MatchWinnerID: winner.ID,
		RatingChanges: e.applyRatings(winner.ID, leaverID),
	}

	e.logger.Info("Match forfeited",
		zap.String("roomID", roomID),
		zap.String("leaverID", leaverID),
		zap.String("winnerID", winner.ID),
	)
	return outcome, nil
}

// Rebind は再接続したプレイヤーのコネクションを差し替えます。
func (e *Engine) Rebind(roomID, playerID string, conn *websocket.Conn) error {
	room, err := e.lookup(roomID)
	if err != nil {
		return err
	}

	room.Mu.Lock()
	defer room.Mu.Unlock()

	player := room.Player(playerID)
	if player == nil {
		return ErrPlayerNotInRoom
	}
	player.Conn = conn
	e.logger.Info("Player reconnected to room",
		zap.String("roomID", roomID),
		zap.String("playerID", playerID),
	)
	return nil
}

func (e *Engine) GetRoom(roomID string) (*models.DuelRoom, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms[roomID]
	return room, ok
}

// FindRoomByPlayer は再接続時にプレイヤーIDから進行中のルームを逆引きします。
// 終了済みルームは再接続の対象にしない
func (e *Engine) FindRoomByPlayer(playerID string) (*models.DuelRoom, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, room := range e.rooms {
		room.Mu.Lock()
		active := room.Status == models.RoomStatusActive && room.Player(playerID) != nil
		room.Mu.Unlock()
		if active {
			return room, true
		}
	}
	return nil, false
}

// FindRoomByConn は切断処理用にコネクションから所属ルームを逆引きします。
func (e *Engine) FindRoomByConn(conn *websocket.Conn) (*models.DuelRoom, string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, room := range e.rooms {
		for _, p := range room.Players {
			if p != nil && p.Conn == conn {
				return room, p.ID, true
			}
		}
	}
	return nil, "", false
}

// CloseRoom はルームを破棄します。終了結果の配信後に呼ぶこと
func (e *Engine) CloseRoom(roomID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rooms, roomID)
}

func (e *Engine) RoomCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rooms)
}

// StaleRooms は一定時間更新のない終了済み・放置ルームのIDを返します。
// 定期クリーンナップ用
func (e *Engine) StaleRooms(olderThan time.Duration) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var stale []string
	cutoff := time.Now().Add(-olderThan)
	for roomID, room := range e.rooms {
		room.Mu.Lock()
		expired := room.CreatedAt.Before(cutoff)
		room.Mu.Unlock()
		if expired {
			stale = append(stale, roomID)
		}
	}
	return stale
}

func (e *Engine) lookup(roomID string) (*models.DuelRoom, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

func (e *Engine) randomSign() string {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return string(targetSigns[e.randGen.Intn(len(targetSigns))])
}

func copyScores(scores map[string]int) map[string]int {
	copied := make(map[string]int, len(scores))
	for playerID, score := range scores {
		copied[playerID] = score
	}
	return copied
}

// ストア障害時の中立レコード。初期Eloは設定値に従う
func (e *Engine) neutralChange() models.RatingChange {
	return models.RatingChange{Elo: e.defaultElo, Delta: 0}
}

package matchmaker

import (
	"errors"
	"sort"
	"sync"
	"time"

	"aslserver/models"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrAlreadyQueued は同一プレイヤーの二重エントリーを表します。
var ErrAlreadyQueued = errors.New("player is already in queue")

// Matchmaker は待機キューを保持し、Elo差の許容範囲内でペアを作ります。
// 許容範囲は待ち時間に応じて段階的に広がる
type Matchmaker struct {
	mu    sync.Mutex
	queue map[string]*models.QueueTicket // キー: Player ID

	baseRange         int
	expansionRate     int
	expansionInterval time.Duration

	now    func() time.Time // テストで差し替えるための時刻関数
	logger *zap.Logger
}

func New(config models.Config, logger *zap.Logger) *Matchmaker {
	return &Matchmaker{
		queue:             make(map[string]*models.QueueTicket),
		baseRange:         config.BaseRange,
		expansionRate:     config.ExpansionRate,
		expansionInterval: time.Duration(config.ExpansionIntervalSec) * time.Second,
		now:               time.Now,
		logger:            logger,
	}
}

// Enqueue はチケットをキューに追加します。既に並んでいる場合はエラー
func (m *Matchmaker) Enqueue(ticket *models.QueueTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.queue[ticket.PlayerID]; exists {
		return ErrAlreadyQueued
	}
	if ticket.JoinedAt.IsZero() {
		ticket.JoinedAt = m.now()
	}
	m.queue[ticket.PlayerID] = ticket
	m.logger.Info("Player queued",
		zap.String("playerID", ticket.PlayerID),
		zap.Int("elo", ticket.Elo),
		zap.Int("queueSize", len(m.queue)),
	)
	return nil
}

// Dequeue はキューからプレイヤーを取り除きます。不在でもエラーにしない
func (m *Matchmaker) Dequeue(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, playerID)
}

// DequeueByConn は切断されたコネクションのチケットを取り除きます。
// 取り除いたプレイヤーIDを返す
func (m *Matchmaker) DequeueByConn(conn *websocket.Conn) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for playerID, ticket := range m.queue {
		if ticket.Conn == conn {
			delete(m.queue, playerID)
			return playerID, true
		}
	}
	return "", false
}

func (m *Matchmaker) IsQueued(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.queue[playerID]
	return ok
}

func (m *Matchmaker) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// DynamicTolerance は現時点で許容されるElo差を返します。
// 待ち時間がexpansionIntervalを超えるたびにexpansionRateずつ広がる
func (m *Matchmaker) DynamicTolerance(ticket *models.QueueTicket) int {
	waitSeconds := m.now().Sub(ticket.JoinedAt).Seconds()
	expansions := int(waitSeconds / m.expansionInterval.Seconds())
	return m.baseRange + expansions*m.expansionRate
}

// FindMatch は指定プレイヤーに最もElo差の小さい相手を探します。
// 双方の許容範囲に収まる相手だけが候補になる。
// 片側だけ待ち時間が長くても、新規参加者側の範囲を超えるペアは作らない。
// 成立した場合は両チケットをキューから取り除いて返す
func (m *Matchmaker) FindMatch(playerID string) (*models.QueueTicket, *models.QueueTicket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seeker, ok := m.queue[playerID]
	if !ok {
		return nil, nil, false
	}

	best := m.closestEligible(seeker, nil)
	if best == nil {
		return nil, nil, false
	}

	delete(m.queue, seeker.PlayerID)
	delete(m.queue, best.PlayerID)
	m.logger.Info("Match found",
		zap.String("playerID", seeker.PlayerID),
		zap.String("opponentID", best.PlayerID),
		zap.Int("eloGap", absInt(seeker.Elo-best.Elo)),
	)
	return seeker, best, true
}

// FindAllMatches はキュー全体を走査し、成立可能なペアを全て返します。
// 新しいイベントが無くても許容範囲の拡張だけで成立するペアを
// 定期スイープで拾うための操作。
// 待ち時間の長いプレイヤーから順に処理し、各チケットは1パスで1回しか使わない
func (m *Matchmaker) FindAllMatches() [][2]*models.QueueTicket {
	m.mu.Lock()
	defer m.mu.Unlock()

	sorted := make([]*models.QueueTicket, 0, len(m.queue))
	for _, ticket := range m.queue {
		sorted = append(sorted, ticket)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
	})

	var matches [][2]*models.QueueTicket
	processed := make(map[string]bool)

	for _, seeker := range sorted {
		if processed[seeker.PlayerID] {
			continue
		}
		if _, still := m.queue[seeker.PlayerID]; !still {
			continue
		}

		best := m.closestEligible(seeker, processed)
		if best == nil {
			continue
		}

		matches = append(matches, [2]*models.QueueTicket{seeker, best})
		processed[seeker.PlayerID] = true
		processed[best.PlayerID] = true
		delete(m.queue, seeker.PlayerID)
		delete(m.queue, best.PlayerID)
	}

	if len(matches) > 0 {
		m.logger.Info("Sweep matched pairs", zap.Int("pairs", len(matches)), zap.Int("remaining", len(m.queue)))
	}
	return matches
}

// closestEligible は双方の許容範囲内で最もElo差の小さい候補を返します。
// 同差の場合は並び始めが早い候補を優先。mu保持中に呼ぶこと
func (m *Matchmaker) closestEligible(seeker *models.QueueTicket, skip map[string]bool) *models.QueueTicket {
	seekerRange := m.DynamicTolerance(seeker)

	var best *models.QueueTicket
	bestDiff := 0
	for playerID, candidate := range m.queue {
		if playerID == seeker.PlayerID {
			continue
		}
		if skip != nil && skip[playerID] {
			continue
		}

		diff := absInt(candidate.Elo - seeker.Elo)
		if diff > seekerRange || diff > m.DynamicTolerance(candidate) {
			continue
		}
		if best == nil || diff < bestDiff ||
			(diff == bestDiff && candidate.JoinedAt.Before(best.JoinedAt)) {
			best = candidate
			bestDiff = diff
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

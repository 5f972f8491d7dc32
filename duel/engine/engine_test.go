package engine

import (
	"errors"
	"testing"

	"aslserver/models"
	"aslserver/rating"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// fakeStore はメモリ上のレーティングストア。失敗の注入もできる
type fakeStore struct {
	records map[string]models.PlayerRating
	getErr  error
	updErr  error
}

func newFakeStore(records ...models.PlayerRating) *fakeStore {
	s := &fakeStore{records: make(map[string]models.PlayerRating)}
	for _, r := range records {
		s.records[r.PlayerID] = r
	}
	return s
}

func (s *fakeStore) Get(playerID string) (models.PlayerRating, error) {
	if s.getErr != nil {
		return models.PlayerRating{}, s.getErr
	}
	if r, ok := s.records[playerID]; ok {
		return r, nil
	}
	r := models.PlayerRating{PlayerID: playerID, Elo: rating.DefaultElo}
	s.records[playerID] = r
	return r, nil
}

func (s *fakeStore) Update(record models.PlayerRating) error {
	if s.updErr != nil {
		return s.updErr
	}
	s.records[record.PlayerID] = record
	return nil
}

func newTestEngine(store rating.Store) *Engine {
	return New(store, models.Config{WinThreshold: 3}, zap.NewNop())
}

func startTestDuel(e *Engine) *models.DuelRoom {
	room := e.StartDuel(
		&models.QueueTicket{PlayerID: "alice", Elo: 1000},
		&models.QueueTicket{PlayerID: "bob", Elo: 1000},
	)
	e.StartRound(room.RoomID)
	return room
}

// 両者分を提出してラウンドを解決するヘルパー
func playRound(t *testing.T, e *Engine, room *models.DuelRoom, aliceMatch, bobMatch bool) *models.RoundOutcome {
	t.Helper()
	round := room.Round

	outcome, err := e.SubmitResult(room.RoomID, "alice", round, aliceMatch, "A")
	if err != nil {
		t.Fatalf("alice submit failed: %v", err)
	}
	if outcome != nil {
		t.Fatal("first submission must not resolve the round")
	}
	outcome, err = e.SubmitResult(room.RoomID, "bob", round, bobMatch, "B")
	if err != nil {
		t.Fatalf("bob submit failed: %v", err)
	}
	if outcome == nil {
		t.Fatal("second submission must resolve the round")
	}
	e.StartRound(room.RoomID)
	return outcome
}

func TestStartDuelInitializesRoom(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	if room.Round != 1 {
		t.Fatalf("round must start at 1, got %d", room.Round)
	}
	if room.Scores["alice"] != 0 || room.Scores["bob"] != 0 {
		t.Fatalf("scores must start at 0: %v", room.Scores)
	}
	if room.TargetSign == "" {
		t.Fatal("StartRound must pick a target sign")
	}
	if e.RoomCount() != 1 {
		t.Fatalf("expected 1 room, got %d", e.RoomCount())
	}
}

func TestBothWrongIsReplay(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	outcome := playRound(t, e, room, false, false)

	if !outcome.IsReplay {
		t.Fatal("both wrong must replay")
	}
	if outcome.WinnerID != "" {
		t.Fatalf("replay has no winner, got %q", outcome.WinnerID)
	}
	if room.Scores["alice"] != 0 || room.Scores["bob"] != 0 {
		t.Fatalf("replay must not change scores: %v", room.Scores)
	}
	if room.Round != 1 {
		t.Fatalf("replay must keep the round number, got %d", room.Round)
	}
}

func TestSingleCorrectScoresRound(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	outcome := playRound(t, e, room, true, false)

	if outcome.WinnerID != "alice" {
		t.Fatalf("expected alice to win the round, got %q", outcome.WinnerID)
	}
	if outcome.Scores["alice"] != 1 || outcome.Scores["bob"] != 0 {
		t.Fatalf("unexpected scores: %v", outcome.Scores)
	}
	if room.Round != 2 {
		t.Fatalf("scored round must advance the counter, got %d", room.Round)
	}
}

func TestBothCorrectFromZeroScoresBoth(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	outcome := playRound(t, e, room, true, true)

	if outcome.IsReplay {
		t.Fatal("0-0 simultaneous correct must score both players")
	}
	if outcome.Scores["alice"] != 1 || outcome.Scores["bob"] != 1 {
		t.Fatalf("unexpected scores: %v", outcome.Scores)
	}
	if outcome.WinnerID != "" {
		t.Fatalf("simultaneous correct has no round winner, got %q", outcome.WinnerID)
	}
}

func TestBothCorrectAtOneOneIsReplay(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	playRound(t, e, room, true, true) // 0-0 -> 1-1
	outcome := playRound(t, e, room, true, true)

	if !outcome.IsReplay {
		t.Fatal("1-1 simultaneous correct must replay, never reach 2-2")
	}
	if room.Scores["alice"] != 1 || room.Scores["bob"] != 1 {
		t.Fatalf("scores must stay 1-1: %v", room.Scores)
	}
}

func TestMatchEndsAtThreshold(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)
	room := startTestDuel(e)

	playRound(t, e, room, true, false)
	playRound(t, e, room, true, false)
	outcome := playRound(t, e, room, true, false)

	if !outcome.MatchEnded {
		t.Fatal("3 round wins must end the match")
	}
	if outcome.MatchWinnerID != "alice" {
		t.Fatalf("expected alice as match winner, got %q", outcome.MatchWinnerID)
	}
	if room.Status != models.RoomStatusFinished {
		t.Fatalf("room must be finished, got %q", room.Status)
	}

	// 同レート同士なので勝者+16/敗者-16
	winnerChange := outcome.RatingChanges["alice"]
	loserChange := outcome.RatingChanges["bob"]
	if winnerChange.Elo != 1016 || winnerChange.Delta != 16 {
		t.Fatalf("unexpected winner change: %+v", winnerChange)
	}
	if loserChange.Elo != 984 || loserChange.Delta != -16 {
		t.Fatalf("unexpected loser change: %+v", loserChange)
	}
	if store.records["alice"].Wins != 1 || store.records["bob"].Losses != 1 {
		t.Fatal("counters must be persisted")
	}
}

func TestRatingStoreFailureDoesNotBlockCompletion(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	e := newTestEngine(store)
	room := startTestDuel(e)

	playRound(t, e, room, true, false)
	playRound(t, e, room, true, false)
	outcome := playRound(t, e, room, true, false)

	if !outcome.MatchEnded {
		t.Fatal("store failure must not prevent match completion")
	}
	for _, playerID := range []string{"alice", "bob"} {
		change := outcome.RatingChanges[playerID]
		if change.Elo != rating.DefaultElo || change.Delta != 0 {
			t.Fatalf("expected neutral record for %s, got %+v", playerID, change)
		}
	}
}

func TestConfiguredDefaultEloUsedForNeutralRecords(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	e := New(store, models.Config{WinThreshold: 3, DefaultElo: 1200}, zap.NewNop())
	room := e.StartDuel(
		&models.QueueTicket{PlayerID: "alice", Elo: 1200},
		&models.QueueTicket{PlayerID: "bob", Elo: 1200},
	)
	e.StartRound(room.RoomID)

	outcome, err := e.Forfeit(room.RoomID, "bob")
	if err != nil {
		t.Fatalf("forfeit failed: %v", err)
	}
	for _, playerID := range []string{"alice", "bob"} {
		change := outcome.RatingChanges[playerID]
		if change.Elo != 1200 || change.Delta != 0 {
			t.Fatalf("neutral record must use the configured default, got %+v for %s", change, playerID)
		}
	}
}

func TestStaleRoundSubmissionDropped(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	playRound(t, e, room, true, false) // round 1 -> 2

	// 遅れて届いた第1ラウンドの結果は黙って捨てる
	outcome, err := e.SubmitResult(room.RoomID, "bob", 1, true, "B")
	if err != nil {
		t.Fatalf("stale submission must not error: %v", err)
	}
	if outcome != nil {
		t.Fatal("stale submission must not resolve anything")
	}
	room.Mu.Lock()
	pending := len(room.RoundResults)
	room.Mu.Unlock()
	if pending != 0 {
		t.Fatalf("stale submission must not be recorded, pending=%d", pending)
	}
}

func TestDuplicateSubmissionIgnored(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	if _, err := e.SubmitResult(room.RoomID, "alice", 1, false, "X"); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// 2通目は最初の記録を上書きしない
	if outcome, err := e.SubmitResult(room.RoomID, "alice", 1, true, "A"); err != nil || outcome != nil {
		t.Fatalf("duplicate must be dropped: outcome=%v err=%v", outcome, err)
	}

	outcome, err := e.SubmitResult(room.RoomID, "bob", 1, true, "B")
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if outcome.WinnerID != "bob" {
		t.Fatalf("first write must win, expected bob, got %q", outcome.WinnerID)
	}
}

func TestSubmitResultValidation(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	if _, err := e.SubmitResult("no-such-room", "alice", 1, true, "A"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if _, err := e.SubmitResult(room.RoomID, "mallory", 1, true, "A"); !errors.Is(err, ErrPlayerNotInRoom) {
		t.Fatalf("expected ErrPlayerNotInRoom, got %v", err)
	}
}

func TestMarkReady(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	both, err := e.MarkReady(room.RoomID, "alice")
	if err != nil || both {
		t.Fatalf("one ready player must not trigger: both=%v err=%v", both, err)
	}
	// 冪等性: 同一プレイヤーの再送では揃わない
	both, _ = e.MarkReady(room.RoomID, "alice")
	if both {
		t.Fatal("repeated ready must stay idempotent")
	}
	both, err = e.MarkReady(room.RoomID, "bob")
	if err != nil || !both {
		t.Fatalf("both ready must trigger: both=%v err=%v", both, err)
	}
}

func TestForfeitAwardsOpponent(t *testing.T) {
	store := newFakeStore()
	e := newTestEngine(store)
	room := startTestDuel(e)

	outcome, err := e.Forfeit(room.RoomID, "alice")
	if err != nil {
		t.Fatalf("forfeit failed: %v", err)
	}
	if !outcome.MatchEnded || outcome.MatchWinnerID != "bob" {
		t.Fatalf("forfeit must award bob: %+v", outcome)
	}
	if store.records["bob"].Wins != 1 || store.records["alice"].Losses != 1 {
		t.Fatal("forfeit must update ratings")
	}

	// 既に終了済みのルームは何もしない
	again, err := e.Forfeit(room.RoomID, "bob")
	if err != nil || again != nil {
		t.Fatalf("double forfeit must be a no-op: outcome=%v err=%v", again, err)
	}
}

func TestSubmitAfterFinishIsDropped(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	e.Forfeit(room.RoomID, "bob")

	outcome, err := e.SubmitResult(room.RoomID, "alice", 1, true, "A")
	if err != nil || outcome != nil {
		t.Fatalf("submission to a finished room must be dropped: outcome=%v err=%v", outcome, err)
	}
}

func TestFindRoomByPlayerResolvesActiveRoom(t *testing.T) {
	e := newTestEngine(newFakeStore())

	if _, ok := e.FindRoomByPlayer("alice"); ok {
		t.Fatal("no room must be found before the duel starts")
	}

	room := startTestDuel(e)
	found, ok := e.FindRoomByPlayer("alice")
	if !ok || found.RoomID != room.RoomID {
		t.Fatalf("expected alice's room %s, got %+v ok=%v", room.RoomID, found, ok)
	}
	if _, ok := e.FindRoomByPlayer("mallory"); ok {
		t.Fatal("stranger must not resolve to a room")
	}

	// 終了済みルームは再接続の対象外
	e.Forfeit(room.RoomID, "bob")
	if _, ok := e.FindRoomByPlayer("alice"); ok {
		t.Fatal("finished room must not be returned")
	}
}

func TestRebindReplacesConnection(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	newConn := &websocket.Conn{}
	if err := e.Rebind(room.RoomID, "alice", newConn); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if room.Player("alice").Conn != newConn {
		t.Fatal("rebind must swap the stored connection")
	}

	// 差し替え後は新しいコネクションから逆引きできる
	found, playerID, ok := e.FindRoomByConn(newConn)
	if !ok || playerID != "alice" || found.RoomID != room.RoomID {
		t.Fatalf("lookup by new conn failed: ok=%v player=%q", ok, playerID)
	}

	if err := e.Rebind(room.RoomID, "mallory", newConn); err != ErrPlayerNotInRoom {
		t.Fatalf("expected ErrPlayerNotInRoom, got %v", err)
	}
	if err := e.Rebind("no-such-room", "alice", newConn); err != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestCloseRoomRemovesIt(t *testing.T) {
	e := newTestEngine(newFakeStore())
	room := startTestDuel(e)

	e.CloseRoom(room.RoomID)
	if _, ok := e.GetRoom(room.RoomID); ok {
		t.Fatal("closed room must be gone")
	}
	if e.RoomCount() != 0 {
		t.Fatalf("expected 0 rooms, got %d", e.RoomCount())
	}
}

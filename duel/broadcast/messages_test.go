package broadcast

import (
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func TestWriteLockIsSharedPerConnection(t *testing.T) {
	c1 := &websocket.Conn{}
	c2 := &websocket.Conn{}
	defer ReleaseConn(c1)
	defer ReleaseConn(c2)

	if writeLock(c1) != writeLock(c1) {
		t.Fatal("same connection must map to the same lock")
	}
	if writeLock(c1) == writeLock(c2) {
		t.Fatal("different connections must not share a lock")
	}
}

func TestWriteLockSerializesWriters(t *testing.T) {
	conn := &websocket.Conn{}
	defer ReleaseConn(conn)

	mu := writeLock(conn)
	mu.Lock()
	// 別経路（スイープや分類ゴルーチン）から同じコネクションを取っても
	// ロックが取れてはならない
	if writeLock(conn).TryLock() {
		t.Fatal("concurrent writer must be blocked on the same connection")
	}
	mu.Unlock()

	if !writeLock(conn).TryLock() {
		t.Fatal("lock must be free after the holder releases it")
	}
	writeLock(conn).Unlock()
}

func TestReleaseConnDropsLock(t *testing.T) {
	conn := &websocket.Conn{}
	before := writeLock(conn)
	ReleaseConn(conn)
	if writeLock(conn) == before {
		t.Fatal("released connection must get a fresh lock")
	}
	ReleaseConn(conn)
}

func TestSendToConnNilIsNoop(t *testing.T) {
	// 宛先不明の送信はパニックせず何もしない
	sendToConn(nil, struct{}{}, zap.NewNop())
}

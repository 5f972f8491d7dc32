package models

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義
type Client struct {
	Conn     *websocket.Conn
	PlayerID string // JWTから抽出したプレイヤーID
	RoomID   string // 対戦中のルームID。未対戦時は空
}

// ClientRegistry は接続中の全クライアントを保持します。
// サーバープロセスで1つ生成し、必要な箇所に参照で渡す
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[*Client]bool
}

func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[*Client]bool)}
}

func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = true
}

func (r *ClientRegistry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// ByConn はコネクションからクライアントを逆引きします。
func (r *ClientRegistry) ByConn(conn *websocket.Conn) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.Conn == conn {
			return c
		}
	}
	return nil
}

// SetRoom はコネクションに対応するクライアントへルームIDを結びつけます。
func (r *ClientRegistry) SetRoom(conn *websocket.Conn, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.Conn == conn {
			c.RoomID = roomID
			return
		}
	}
}

// ClearRoom はルーム破棄時に所属クライアントのRoomIDを外します。
func (r *ClientRegistry) ClearRoom(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.RoomID == roomID {
			c.RoomID = ""
		}
	}
}

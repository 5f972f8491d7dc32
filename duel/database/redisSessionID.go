package database

import (
	"context"
	"encoding/json"
	"time"

	"aslserver/duel/broadcast"
	"aslserver/models"

	"go.uber.org/zap"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// SessionInfo はRedisに保存する再接続用のセッション内容です。
// ルームはエンジンがプレイヤーIDから引き直すため、ここには持たない
type SessionInfo struct {
	PlayerID string `json:"player_id"`
}

// ValidateSessionID checks the session ID from Redis and returns the
// session info if the session is valid.
func ValidateSessionID(ctx context.Context, rdb *redis.Client, sessionID string, logger *zap.Logger) (*SessionInfo, error) {
	sessionInfoJSON, err := rdb.Get(ctx, "session:"+sessionID).Result()
	if err != nil {
		logger.Info("Session ID not found or expired", zap.String("sessionID", sessionID), zap.Error(err))
		return nil, err
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(sessionInfoJSON), &info); err != nil {
		logger.Error("Failed to decode session info", zap.Error(err))
		return nil, err
	}
	return &info, nil
}

// DeleteSessionID は旧セッションを破棄します。
func DeleteSessionID(ctx context.Context, rdb *redis.Client, sessionID string) {
	rdb.Del(ctx, "session:"+sessionID)
}

// GenerateAndStoreSessionID は新しいセッションIDを発行してRedisに保存し、
// クライアントに送り返します。有効期限は24時間
func GenerateAndStoreSessionID(ctx context.Context, client *models.Client, rdb *redis.Client, logger *zap.Logger) error {
	sessionID := uuid.New().String()

	sessionInfo := SessionInfo{
		PlayerID: client.PlayerID,
	}
	sessionInfoJSON, err := json.Marshal(sessionInfo)
	if err != nil {
		logger.Error("Error encoding session info", zap.Error(err))
		return err
	}

	err = rdb.Set(ctx, "session:"+sessionID, sessionInfoJSON, 24*time.Hour).Err()
	if err != nil {
		logger.Error("Error storing session info in Redis", zap.Error(err))
		return err
	}

	broadcast.SendSession(client.Conn, sessionID, client.PlayerID, logger)
	logger.Info("Session ID issued", zap.String("sessionID", sessionID), zap.String("playerID", client.PlayerID))
	return nil
}

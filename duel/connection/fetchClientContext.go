package connection

import (
	"fmt"
	"net/http"
	"strings"

	"aslserver/auth"

	"go.uber.org/zap"
)

// ClientContext はクライアントのセッション情報を保持するための構造体です。
type ClientContext struct {
	PlayerID string
}

// TokenValidation はリクエストからJWTを取り出して検証します。
// ブラウザのWebSocketはヘッダを付けられないことがあるため
// クエリパラメータのtokenも受け付ける
func TokenValidation(r *http.Request, logger *zap.Logger) (string, error) {
	tokenString := r.Header.Get("Authorization")
	if strings.HasPrefix(tokenString, "Bearer ") {
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	}
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	if tokenString == "" {
		return "", fmt.Errorf("no token provided")
	}

	claims, err := auth.ParseToken(tokenString)
	if err != nil {
		logger.Error("Failed to validate token", zap.Error(err))
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return claims.PlayerID, nil
}

func FetchClientContext(r *http.Request, logger *zap.Logger) (*ClientContext, error) {
	playerID, err := TokenValidation(r, logger)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	return &ClientContext{PlayerID: playerID}, nil
}

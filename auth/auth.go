package auth

import (
	"fmt"
	"os"
	"time"

	"aslserver/models"

	"github.com/golang-jwt/jwt/v5"
)

// JwtKey は署名鍵。環境変数JWT_SECRETが未設定の場合は開発用の値を使う
var JwtKey = loadJwtKey()

func loadJwtKey() []byte {
	if key := os.Getenv("JWT_SECRET"); key != "" {
		return []byte(key)
	}
	return []byte("asl_dev_secret_key")
}

// GenerateToken はゲストプレイヤー用のJWTトークンを生成します。
func GenerateToken(playerID string) (string, error) {
	claims := &models.MyClaims{
		PlayerID: playerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JwtKey)
}

// ParseToken はトークンを検証しクレームを返します。
func ParseToken(tokenString string) (*models.MyClaims, error) {
	claims := &models.MyClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return JwtKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.PlayerID == "" {
		return nil, fmt.Errorf("token has no player_id")
	}
	return claims, nil
}

func IsValidToken(tokenString string) (bool, error) {
	_, err := ParseToken(tokenString)
	if err != nil {
		return false, err
	}
	return true, nil
}

package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// InitLogger は本番設定のzapロガーを返します。
// 出力はJSONで、全パッケージにこのロガーを引数で渡して使う
func InitLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// RequestLogger はHTTPリクエスト1件ごとの記録を残すGinミドルウェアです。
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.String("clientIP", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

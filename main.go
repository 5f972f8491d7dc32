package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"aslserver/classifier" //手話サインの画像判定（Gemini API）
	"aslserver/database"   //PostgreSQLとRedisの初期化
	"aslserver/duel"       //対戦ロジックとWebSocket接続
	"aslserver/duel/engine"
	"aslserver/duel/matchmaker"
	"aslserver/handlers" //認証・ランキングなどのHTTPリクエストの処理
	"aslserver/metrics"  //Prometheusメトリクス
	"aslserver/models"   //モデル定義
	"aslserver/rating"   //Eloレーティングの計算と永続化
	"aslserver/utils"    //ロガーの初期化

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	var logger *zap.Logger
	var err error
	logger, err = utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	// Websocket接続で用いる変数を初期化
	registry := models.NewClientRegistry()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	// 設定ファイルの読み込み
	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}

	// 非同期でPostgreSQLとRedisの初期化
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
		}
		if err := database.AutoMigrate(db); err != nil {
			logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	// 2つの初期化が完了するのを待つ
	<-done
	<-done

	metrics.Init()

	// コアコンポーネントの組み立て
	store := rating.NewGormStore(db, config, logger)
	mm := matchmaker.New(config, logger)
	eng := engine.New(store, config, logger)
	cls, err := classifier.NewGeminiClassifier(logger)
	if err != nil {
		logger.Fatal("判定器の初期化に失敗しました", zap.Error(err))
	}

	// クーロンスケジューラのセットアップと呼び出し
	scheduler := duel.StartScheduler(mm, eng, registry, config, logger)
	defer scheduler.Stop()

	router := gin.Default()
	//リクエストロガーを起動
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	//CORS（Cross-Origin Resource Sharing）ポリシーを設定
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173"}, //ここにデプロイサーバーのIPアドレスを設定
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "SessionID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	//各HTTPリクエストのルーティング
	router.POST("/auth/guest", handlers.GuestAuth(store, logger))
	router.GET("/rankings", handlers.Rankings(db, logger))
	router.GET("/profile/:player_id", handlers.Profile(db, logger))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"queue_size":   mm.Size(),
			"active_rooms": eng.RoomCount(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		duel.HandleConnections(c.Request.Context(), c.Writer, c.Request, registry, mm, eng, store, cls, rdb, logger, upgrader)
	})

	// テスト時はHTTPサーバーとして運用。デフォルトポートは ":8080"
	router.Run()
}

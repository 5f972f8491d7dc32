package models

// Config 構造体はデータベース接続とマッチング調整用の設定情報を保持します。
type Config struct {
	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	// マッチメイキングの調整値。ゼロの場合はLoadConfigでデフォルト値が入る
	BaseRange            int `json:"base_range"`             // 許容Elo差の初期値
	ExpansionRate        int `json:"expansion_rate"`         // 1回の拡張で広がるElo差
	ExpansionIntervalSec int `json:"expansion_interval_sec"` // 拡張が起きる待ち秒数
	SweepIntervalSec     int `json:"sweep_interval_sec"`     // キュー全体を走査する周期

	// 対戦ルールの調整値
	WinThreshold int `json:"win_threshold"` // 先取スコア。デフォルトは3
	DefaultElo   int `json:"default_elo"`   // 新規プレイヤーの初期Elo
}

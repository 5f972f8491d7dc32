package rating

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"aslserver/models"
)

// Store はレーティングレコードの取得・更新を抽象化します。
// 実体はPostgreSQLだが、コアはこのインターフェイスしか知らない
type Store interface {
	Get(playerID string) (models.PlayerRating, error)
	Update(record models.PlayerRating) error
}

// GormStore はPostgreSQL上のplayer_ratingsテーブルを操作します。
type GormStore struct {
	db         *gorm.DB
	defaultElo int // 新規行の初期Elo。設定ファイルで調整できる
	logger     *zap.Logger
}

func NewGormStore(db *gorm.DB, config models.Config, logger *zap.Logger) *GormStore {
	defaultElo := config.DefaultElo
	if defaultElo <= 0 {
		defaultElo = DefaultElo
	}
	return &GormStore{db: db, defaultElo: defaultElo, logger: logger}
}

// Get はレコードを取得します。未登録のプレイヤーはデフォルト値で作成される
func (s *GormStore) Get(playerID string) (models.PlayerRating, error) {
	var record models.PlayerRating
	err := s.db.Where("player_id = ?", playerID).
		Attrs(models.PlayerRating{PlayerID: playerID, Elo: s.defaultElo}).
		FirstOrCreate(&record).Error
	if err != nil {
		s.logger.Error("Failed to fetch player rating", zap.String("playerID", playerID), zap.Error(err))
		return models.PlayerRating{}, err
	}
	return record, nil
}

func (s *GormStore) Update(record models.PlayerRating) error {
	err := s.db.Model(&models.PlayerRating{}).
		Where("player_id = ?", record.PlayerID).
		Updates(map[string]interface{}{
			"elo":    record.Elo,
			"wins":   record.Wins,
			"losses": record.Losses,
		}).Error
	if err != nil {
		s.logger.Error("Failed to update player rating", zap.String("playerID", record.PlayerID), zap.Error(err))
	}
	return err
}

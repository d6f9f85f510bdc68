package dao

import (
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/educhain/reward-service/config"
)

type Dao struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Dao {
	return &Dao{DB: db}
}

// NewDB opens the MySQL connection pool described by cfg.
func NewDB(cfg config.DBConf) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed on open mysql")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed on get sql db")
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifeSec > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeSec) * time.Second)
	}
	return db, nil
}

// Migrate creates the reward tables when they do not exist yet.
func (d *Dao) Migrate() error {
	return d.DB.AutoMigrate(&RewardRule{}, &RewardTransaction{}, &UserWallet{})
}

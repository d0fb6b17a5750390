package tests

import (
	"github.com/freemoonfaucet/gas-faucet/internal/config"
	"github.com/freemoonfaucet/gas-faucet/internal/postgres"
	"gorm.io/gorm"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

func GetDatabaseConnection(cfg *config.Config) (*postgres.Postgres, *gorm.DB, error) {
	db, err := postgres.NewPostgres(&postgres.PostgresConfig{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		Username: cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		DbName:   cfg.DatabaseConfig.DbName,
	})
	if err != nil {
		return nil, nil, err
	}

	grm, err := postgres.NewGormFromPostgresConnection(db.Db)
	if err != nil {
		return nil, nil, err
	}
	return db, grm, nil
}

package cmd

import (
	"github.com/freemoonfaucet/gas-faucet/internal/config"
	"github.com/freemoonfaucet/gas-faucet/internal/logger"
	"github.com/freemoonfaucet/gas-faucet/internal/postgres"
	"github.com/freemoonfaucet/gas-faucet/internal/postgres/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations and exit",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		pg, err := postgres.NewPostgres(&postgres.PostgresConfig{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			Username: cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			DbName:   cfg.DatabaseConfig.DbName,
		})
		if err != nil {
			l.Fatal("Failed to setup postgres connection", zap.Error(err))
		}

		grm, err := postgres.NewGormFromPostgresConnection(pg.Db)
		if err != nil {
			l.Fatal("Failed to create gorm instance", zap.Error(err))
		}

		migrator := migrations.NewMigrator(pg.Db, grm, l)
		if err = migrator.MigrateAll(); err != nil {
			l.Fatal("Failed to migrate", zap.Error(err))
		}

		l.Sugar().Info("Migrations complete")
	},
}

package cmd

import (
	"fmt"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/clients/ethereum"
	"github.com/freemoonfaucet/gas-faucet/internal/config"
	"github.com/freemoonfaucet/gas-faucet/internal/faucet"
	"github.com/freemoonfaucet/gas-faucet/internal/logger"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics"
	"github.com/freemoonfaucet/gas-faucet/internal/metrics/prometheus"
	"github.com/freemoonfaucet/gas-faucet/internal/postgres"
	"github.com/freemoonfaucet/gas-faucet/internal/postgres/migrations"
	"github.com/freemoonfaucet/gas-faucet/internal/server"
	"github.com/freemoonfaucet/gas-faucet/internal/shutdown"
	"github.com/freemoonfaucet/gas-faucet/internal/signer"
	"github.com/freemoonfaucet/gas-faucet/internal/storage"
	"github.com/freemoonfaucet/gas-faucet/internal/storage/memory"
	"github.com/freemoonfaucet/gas-faucet/internal/storage/postgresql"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultClaimCooldown = time.Hour * 24
	defaultPayoutTimeout = time.Second * 30
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the faucet",
	Run: func(cmd *cobra.Command, args []string) {
		initRunCmd(cmd)
		cfg := config.NewConfig()

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

		ms, err := metrics.NewMetricsSinkFromConfig(cfg, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup metrics sink", zap.Error(err))
		}

		client := ethereum.NewClient(cfg.EthereumRpcConfig.BaseUrl, l)

		store := buildClaimStore(cfg, l)

		payoutSigner, err := signer.NewSigner(
			client,
			cfg.PayoutConfig.PrivateKey,
			cfg.EthereumRpcConfig.ChainId,
			cfg.PayoutConfig.GasAmount,
			cfg.PayoutConfig.GasPriceWei,
			ms,
			l,
		)
		if err != nil {
			l.Sugar().Fatalw("Failed to setup payout signer", zap.Error(err))
		}

		checker := faucet.NewEligibilityChecker(client, l)

		orchestrator := faucet.NewOrchestrator(&faucet.OrchestratorConfig{
			Cooldown:      cfg.ClaimCooldown,
			PayoutTimeout: cfg.PayoutConfig.Timeout,
		}, store, checker, payoutSigner, ms, l)

		coordinator := faucet.NewCoordinator(orchestrator, ms, l)

		httpShutdown := make(chan bool)
		httpServer := server.NewHttpServer(&server.HttpServerConfig{
			Port: cfg.HttpPort,
		}, coordinator, l)
		httpServer.Start(httpShutdown)

		promShutdown := make(chan bool)
		if cfg.PrometheusConfig.Enabled {
			promServer := prometheus.NewPrometheusServer(&prometheus.PrometheusServerConfig{
				Port: cfg.PrometheusConfig.Port,
			}, l)
			promServer.Start(promShutdown)
		}

		l.Sugar().Info("Started faucet")

		gracefulShutdown := shutdown.CreateGracefulShutdownChannel()

		done := make(chan bool)
		shutdown.ListenForShutdown(gracefulShutdown, done, func() {
			l.Sugar().Info("Shutting down...")
			httpShutdown <- true
			if cfg.PrometheusConfig.Enabled {
				promShutdown <- true
			}
		}, time.Second*5, l)
	},
}

func buildClaimStore(cfg *config.Config, l *zap.Logger) storage.ClaimStore {
	if cfg.DatabaseConfig.Store == config.StoreBackend_Memory {
		l.Sugar().Warn("Using in-memory claim ledger; cooldown enforcement does not survive restarts or span instances")
		return memory.NewInMemoryClaimStore()
	}

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

	return postgresql.NewPostgresClaimStore(grm, l)
}

func initRunCmd(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}

package cmd

import (
	"os"
	"strings"

	"github.com/freemoonfaucet/gas-faucet/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "gas-faucet",
	Short: "Dispenses a fixed amount of FSN gas to provably unused addresses",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.Chain, "c", "testnet", "The chain to use (mainnet, testnet)")

	rootCmd.PersistentFlags().String(config.EthereumRpcBaseUrl, "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Int64(config.EthereumChainId, 46688, `Chain id used for payout transaction signing`)

	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "faucet", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "faucet", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseStore, "postgres", `Claim ledger backend (postgres, memory). Memory is single-instance dev only`)

	rootCmd.PersistentFlags().String(config.PayoutPrivateKey, "", `Hex private key of the coordinator account (env only in production)`)
	rootCmd.PersistentFlags().Int64(config.PayoutGasAmount, 40000, `Units of gas granted per claim`)
	rootCmd.PersistentFlags().Int64(config.PayoutGasPrice, 1000000000, `Gas price in wei used to size and price the payout`)
	rootCmd.PersistentFlags().Duration(config.PayoutTimeout, defaultPayoutTimeout, `Upper bound on the payout submit before its outcome is treated as unknown`)

	rootCmd.PersistentFlags().Duration(config.ClaimCooldown, defaultClaimCooldown, `Minimum time before the same identity may claim again`)

	rootCmd.PersistentFlags().Int(config.HttpPort, 3001, `HTTP API port`)

	rootCmd.PersistentFlags().Bool(config.StatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.StatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.StatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

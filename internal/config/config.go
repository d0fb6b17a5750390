package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "FAUCET"

const (
	Debug = "debug"
	Chain = "chain"

	EthereumRpcBaseUrl = "ethereum.rpc-url"
	EthereumChainId    = "ethereum.chain-id"

	DatabaseHost     = "database.host"
	DatabasePort     = "database.port"
	DatabaseUser     = "database.user"
	DatabasePassword = "database.password"
	DatabaseDbName   = "database.db_name"
	DatabaseStore    = "database.store"

	PayoutPrivateKey = "payout.private-key"
	PayoutGasAmount  = "payout.gas-amount"
	PayoutGasPrice   = "payout.gas-price"
	PayoutTimeout    = "payout.timeout"

	ClaimCooldown = "claim.cooldown"

	HttpPort = "http.port"

	StatsdEnabled    = "datadog.statsd.enabled"
	StatsdUrl        = "datadog.statsd.url"
	StatsdSampleRate = "datadog.statsd.sample-rate"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"
)

type Chain_ string

const (
	Chain_Mainnet Chain_ = "mainnet"
	Chain_Testnet Chain_ = "testnet"
)

// StoreBackend selects the claim ledger implementation. The memory
// backend provides no cross-instance atomicity and exists for local
// development and tests only.
type StoreBackend string

const (
	StoreBackend_Postgres StoreBackend = "postgres"
	StoreBackend_Memory   StoreBackend = "memory"
)

type EthereumRpcConfig struct {
	BaseUrl string
	ChainId int64
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
	Store    StoreBackend
}

type PayoutConfig struct {
	// Hex-encoded private key of the coordinator account that funds
	// payouts. Only ever read from the environment.
	PrivateKey string
	// GasAmount * GasPriceWei is the wei value transferred per claim.
	GasAmount   int64
	GasPriceWei int64
	Timeout     time.Duration
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type Config struct {
	Debug             bool
	Chain             Chain_
	EthereumRpcConfig EthereumRpcConfig
	DatabaseConfig    DatabaseConfig
	PayoutConfig      PayoutConfig
	ClaimCooldown     time.Duration
	HttpPort          int
	StatsdConfig      StatsdConfig
	PrometheusConfig  PrometheusConfig
}

func ParseChain(c string) Chain_ {
	switch c {
	case "mainnet":
		return Chain_Mainnet
	default:
		return Chain_Testnet
	}
}

func parseStoreBackend(s string) StoreBackend {
	switch s {
	case "memory":
		return StoreBackend_Memory
	default:
		return StoreBackend_Postgres
	}
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),
		Chain: ParseChain(viper.GetString(normalizeFlagName(Chain))),

		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl: viper.GetString(normalizeFlagName(EthereumRpcBaseUrl)),
			ChainId: viper.GetInt64(normalizeFlagName(EthereumChainId)),
		},

		DatabaseConfig: DatabaseConfig{
			Host:     viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:     viper.GetInt(normalizeFlagName(DatabasePort)),
			User:     viper.GetString(normalizeFlagName(DatabaseUser)),
			Password: viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:   viper.GetString(normalizeFlagName(DatabaseDbName)),
			Store:    parseStoreBackend(viper.GetString(normalizeFlagName(DatabaseStore))),
		},

		PayoutConfig: PayoutConfig{
			PrivateKey:  viper.GetString(normalizeFlagName(PayoutPrivateKey)),
			GasAmount:   viper.GetInt64(normalizeFlagName(PayoutGasAmount)),
			GasPriceWei: viper.GetInt64(normalizeFlagName(PayoutGasPrice)),
			Timeout:     viper.GetDuration(normalizeFlagName(PayoutTimeout)),
		},

		ClaimCooldown: viper.GetDuration(normalizeFlagName(ClaimCooldown)),
		HttpPort:      viper.GetInt(normalizeFlagName(HttpPort)),

		StatsdConfig: StatsdConfig{
			Enabled:    viper.GetBool(normalizeFlagName(StatsdEnabled)),
			Url:        viper.GetString(normalizeFlagName(StatsdUrl)),
			SampleRate: viper.GetFloat64(normalizeFlagName(StatsdSampleRate)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},
	}
}

// KebabToSnakeCase converts a flag name like "ethereum.rpc-url" into the
// form viper stores it under after env key replacement.
func KebabToSnakeCase(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}

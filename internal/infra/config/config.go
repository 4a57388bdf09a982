package config

// Configuration for the snapshot commands
// Sources, lowest to highest priority: defaults, config.yaml, environment (.env included), command flags
// Built once by the command and passed down, nothing here is global

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"holders-snapshot/internal/infra/apperr"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AddressFromArtifact as contract address means: take it from the artifact's networks section.
const AddressFromArtifact = "artifact"

// MaxChartTop is the most bars the holders chart can draw.
const MaxChartTop = 50

// DefaultContractAddress is the RMutt collection on mainnet.
const DefaultContractAddress = "0x6c61fB2400Bf55624ce15104e00F269102dC2Af4"

type Config struct {
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	App      AppConfig      `mapstructure:"app"`
}

type LedgerConfig struct {
	Mainnet         bool   `mapstructure:"mainnet"`
	InfuraPID       string `mapstructure:"infura_pid"`
	RPCURL          string `mapstructure:"rpc_url"` // overrides the provider URL, e.g. a local node
	ContractAddress string `mapstructure:"contract_address"`
	ArtifactPath    string `mapstructure:"artifact_path"`
	BlockNumber     uint64 `mapstructure:"block_number"`    // 0 = latest
	RequestTimeout  int    `mapstructure:"request_timeout"` // seconds, 0 = transport default
	MaxRetries      int    `mapstructure:"max_retries"`
	RateLimit       int    `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
}

type SnapshotConfig struct {
	OutputPath string `mapstructure:"output_path"`
	Sort       bool   `mapstructure:"sort"`
	Workers    int    `mapstructure:"workers"`
	SkipBurned bool   `mapstructure:"skip_burned"`
	ChartPath  string `mapstructure:"chart_path"`
	ChartTop   int    `mapstructure:"chart_top"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type AppConfig struct {
	LogsDir string `mapstructure:"logs_dir"`
}

func (c LedgerConfig) Timeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// AddressFromArtifact reports whether the contract address has to be resolved from the artifact.
func (c LedgerConfig) AddressFromArtifact() bool {
	return strings.EqualFold(c.ContractAddress, AddressFromArtifact)
}

// NotificationsEnabled reports whether a Telegram report should be sent.
func (c TelegramConfig) NotificationsEnabled() bool {
	return c.BotToken != ""
}

// flag name -> config key
var flagKeys = map[string]string{
	"mainnet":         "ledger.mainnet",
	"infura-pid":      "ledger.infura_pid",
	"rpc-url":         "ledger.rpc_url",
	"contract":        "ledger.contract_address",
	"artifact":        "ledger.artifact_path",
	"block":           "ledger.block_number",
	"request-timeout": "ledger.request_timeout",
	"max-retries":     "ledger.max_retries",
	"rate-limit":      "ledger.rate_limit",
	"output":          "snapshot.output_path",
	"sort":            "snapshot.sort",
	"workers":         "snapshot.workers",
	"skip-burned":     "snapshot.skip_burned",
	"chart":           "snapshot.chart_path",
	"chart-top":       "snapshot.chart_top",
	"telegram-token":  "telegram.bot_token",
	"telegram-chat":   "telegram.chat_id",
	"logs-dir":        "app.logs_dir",
}

// RegisterFlags adds the configuration flags to a command's flag set.
func RegisterFlags(flags *pflag.FlagSet) {
	// Ledger
	flags.Bool("mainnet", false, "Use mainnet instead of the test network (env: MAINNET)")
	flags.String("infura-pid", "", "Infura project id (env: INFURA_PID)")
	flags.String("rpc-url", "", "JSON-RPC endpoint, overrides the Infura URL (env: LEDGER_RPC_URL)")
	flags.String("contract", DefaultContractAddress, "Contract address, or \"artifact\" to read it from the artifact (env: CONTRACT_ADDRESS)")
	flags.String("artifact", "", "Path to the compiled contract JSON (env: CONTRACT_ARTIFACT)")
	flags.Uint64("block", 0, "Block number to query, 0 for latest (env: BLOCK_NUMBER)")
	flags.Int("request-timeout", 0, "Per-call timeout in seconds, 0 to disable (env: LEDGER_REQUEST_TIMEOUT)")
	flags.Int("max-retries", 0, "Retries for rate-limited or 5xx calls (env: LEDGER_MAX_RETRIES)")
	flags.Int("rate-limit", 10, "Max node requests per second, 0 for unlimited (env: LEDGER_RATE_LIMIT)")

	// Snapshot
	flags.String("output", "output.csv", "Output CSV path (env: OUTPUT_PATH)")
	flags.Bool("sort", false, "Sort output by address instead of first-seen order (env: SORT_OUTPUT)")
	flags.Int("workers", 1, "Concurrent ownerOf calls (env: SNAPSHOT_WORKERS)")
	flags.Bool("skip-burned", false, "Skip token ids whose ownerOf reverts (env: SKIP_BURNED)")
	flags.String("chart", "", "Write a top holders chart PNG to this path (env: CHART_PATH)")
	flags.Int("chart-top", 20, "Number of holders on the chart, at most 50 (env: CHART_TOP)")

	// Telegram
	flags.String("telegram-token", "", "Telegram bot token for the completion report (env: TELEGRAM_BOT_TOKEN)")
	flags.String("telegram-chat", "", "Telegram chat id for the completion report (env: TELEGRAM_CHAT_ID)")

	// App
	flags.String("logs-dir", "logs", "Directory for app.log (env: LOGS_DIR)")
}

// LoadConfig reads configuration from
// 1. defaults
// 2. config.yaml in the working directory
// 3. environment, .env loaded first
// 4. flags that were set explicitly
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperr.Config("read config.yaml", err)
		}
	}

	setupEnvAliases(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, apperr.Config("bind flags", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, apperr.Config("decode config", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setupEnvAliases(v *viper.Viper) {
	// Ledger
	v.BindEnv("ledger.mainnet", "MAINNET")
	v.BindEnv("ledger.infura_pid", "INFURA_PID")
	v.BindEnv("ledger.rpc_url", "LEDGER_RPC_URL")
	v.BindEnv("ledger.contract_address", "CONTRACT_ADDRESS")
	v.BindEnv("ledger.artifact_path", "CONTRACT_ARTIFACT")
	v.BindEnv("ledger.block_number", "BLOCK_NUMBER")
	v.BindEnv("ledger.request_timeout", "LEDGER_REQUEST_TIMEOUT")
	v.BindEnv("ledger.max_retries", "LEDGER_MAX_RETRIES")
	v.BindEnv("ledger.rate_limit", "LEDGER_RATE_LIMIT")

	// Snapshot
	v.BindEnv("snapshot.output_path", "OUTPUT_PATH")
	v.BindEnv("snapshot.sort", "SORT_OUTPUT")
	v.BindEnv("snapshot.workers", "SNAPSHOT_WORKERS")
	v.BindEnv("snapshot.skip_burned", "SKIP_BURNED")
	v.BindEnv("snapshot.chart_path", "CHART_PATH")
	v.BindEnv("snapshot.chart_top", "CHART_TOP")

	// Telegram
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	// App
	v.BindEnv("app.logs_dir", "LOGS_DIR")
}

func setDefaults(v *viper.Viper) {
	// Ledger
	v.SetDefault("ledger.mainnet", false)
	v.SetDefault("ledger.infura_pid", "")
	v.SetDefault("ledger.rpc_url", "")
	v.SetDefault("ledger.contract_address", DefaultContractAddress)
	v.SetDefault("ledger.artifact_path", "../rmutt-contract/build/contracts/RMutt.json")
	v.SetDefault("ledger.block_number", 0)
	v.SetDefault("ledger.request_timeout", 0)
	v.SetDefault("ledger.max_retries", 0)
	v.SetDefault("ledger.rate_limit", 10)

	// Snapshot
	v.SetDefault("snapshot.output_path", "output.csv")
	v.SetDefault("snapshot.sort", false)
	v.SetDefault("snapshot.workers", 1)
	v.SetDefault("snapshot.skip_burned", false)
	v.SetDefault("snapshot.chart_path", "")
	v.SetDefault("snapshot.chart_top", 20)

	// Telegram
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	// App
	v.SetDefault("app.logs_dir", "logs")
}

// bindFlags binds only the flags that were set, so a flag default never hides env or config.yaml.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	l := &cfg.Ledger

	if l.RPCURL == "" && strings.TrimSpace(l.InfuraPID) == "" {
		return apperr.Configf("validate", "INFURA_PID is required when no LEDGER_RPC_URL is set")
	}
	l.InfuraPID = strings.TrimSpace(l.InfuraPID)

	if l.ArtifactPath == "" {
		return apperr.Configf("validate", "contract artifact path is empty")
	}

	if !l.AddressFromArtifact() {
		if !common.IsHexAddress(l.ContractAddress) {
			return apperr.Configf("validate", "invalid contract address %q", l.ContractAddress)
		}
		l.ContractAddress = common.HexToAddress(l.ContractAddress).Hex()
	}

	if l.RequestTimeout < 0 {
		return apperr.Configf("validate", "request_timeout must be >= 0, got %d", l.RequestTimeout)
	}
	if l.MaxRetries < 0 {
		return apperr.Configf("validate", "max_retries must be >= 0, got %d", l.MaxRetries)
	}
	if l.RateLimit < 0 {
		return apperr.Configf("validate", "rate_limit must be >= 0, got %d", l.RateLimit)
	}

	s := &cfg.Snapshot
	if s.OutputPath == "" {
		return apperr.Configf("validate", "output path is empty")
	}
	if s.Workers < 1 {
		return apperr.Configf("validate", "workers must be >= 1, got %d", s.Workers)
	}
	if s.ChartTop < 1 || s.ChartTop > MaxChartTop {
		return apperr.Configf("validate", "chart_top must be between 1 and %d, got %d", MaxChartTop, s.ChartTop)
	}

	if cfg.Telegram.NotificationsEnabled() {
		if _, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64); err != nil {
			return apperr.Config("validate", fmt.Errorf("telegram chat id %q is not an integer: %w", cfg.Telegram.ChatID, err))
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "INTENTS_"

var defaultTokenLists = []string{
	"https://tokens.uniswap.org",
	"https://static.optimism.io/optimism.tokenlist.json",
	"https://tokens.coingecko.com/arbitrum-one/all.json",
}

type GlobalFlags struct {
	ConfigPath     string
	EnvFile        string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	MaxStale       string
	NoCache        bool
	LogLevel       string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int
	LogLevel       string

	CacheEnabled   bool
	CachePath      string
	CacheLockPath  string
	MaxStale       time.Duration
	OrderStorePath string
	OrderLockPath  string

	TokenLists       []string
	TokenTTL         time.Duration
	MarketDataURL    string
	MarketDataAPIKey string
	MarketDataRPS    float64

	QuoteRefresh time.Duration
	SlippageBps  int64
	LiFiURL      string
	LiFiAPIKey   string

	// RPCURLs overrides the default public endpoint per chain id.
	RPCURLs     map[int64]string
	MetricsAddr string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	LogLevel string `yaml:"log_level"`
	Cache    struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Orders struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"orders"`
	Tokens struct {
		Lists      []string `yaml:"lists"`
		TTL        string   `yaml:"ttl"`
		MarketData struct {
			URL       string  `yaml:"url"`
			APIKey    string  `yaml:"api_key"`
			APIKeyEnv string  `yaml:"api_key_env"`
			RPS       float64 `yaml:"rps"`
		} `yaml:"market_data"`
	} `yaml:"tokens"`
	Quotes struct {
		Refresh     string `yaml:"refresh"`
		SlippageBps *int64 `yaml:"slippage_bps"`
	} `yaml:"quotes"`
	Providers struct {
		LiFi struct {
			URL       string `yaml:"url"`
			APIKey    string `yaml:"api_key"`
			APIKeyEnv string `yaml:"api_key_env"`
		} `yaml:"lifi"`
	} `yaml:"providers"`
	RPC     map[string]string `yaml:"rpc"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := loadEnvFile(flags.EnvFile); err != nil {
		return Settings{}, err
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.TokenTTL <= 0 {
		settings.TokenTTL = time.Hour
	}
	if settings.QuoteRefresh <= 0 {
		settings.QuoteRefresh = 30 * time.Second
	}
	if settings.SlippageBps < 0 || settings.SlippageBps >= 10_000 {
		return Settings{}, fmt.Errorf("slippage must be between 0 and 9999 bps")
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	cacheDir, err := defaultCacheDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:     "json",
		Timeout:        10 * time.Second,
		Retries:        2,
		LogLevel:       "warn",
		CacheEnabled:   true,
		CachePath:      filepath.Join(cacheDir, "cache.db"),
		CacheLockPath:  filepath.Join(cacheDir, "cache.lock"),
		MaxStale:       24 * time.Hour,
		OrderStorePath: filepath.Join(cacheDir, "orders.db"),
		OrderLockPath:  filepath.Join(cacheDir, "orders.lock"),
		TokenLists:     append([]string(nil), defaultTokenLists...),
		TokenTTL:       time.Hour,
		MarketDataURL:  "https://api.coingecko.com/api/v3",
		MarketDataRPS:  0.5,
		QuoteRefresh:   30 * time.Second,
		SlippageBps:    50,
		LiFiURL:        "https://li.quest/v1",
		RPCURLs:        map[int64]string{},
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "intents", "config.yaml"), nil
}

func defaultCacheDir() (string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "intents"), nil
}

// loadEnvFile imports KEY=VALUE pairs without overriding the real environment.
func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if err := setDuration(&settings.Timeout, cfg.Timeout, "timeout"); err != nil {
		return err
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = cfg.LogLevel
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if err := setDuration(&settings.MaxStale, cfg.Cache.MaxStale, "cache.max_stale"); err != nil {
		return err
	}
	setString(&settings.CachePath, cfg.Cache.Path)
	setString(&settings.CacheLockPath, cfg.Cache.LockPath)
	setString(&settings.OrderStorePath, cfg.Orders.Path)
	setString(&settings.OrderLockPath, cfg.Orders.LockPath)

	if len(cfg.Tokens.Lists) > 0 {
		settings.TokenLists = cfg.Tokens.Lists
	}
	if err := setDuration(&settings.TokenTTL, cfg.Tokens.TTL, "tokens.ttl"); err != nil {
		return err
	}
	setString(&settings.MarketDataURL, cfg.Tokens.MarketData.URL)
	setString(&settings.MarketDataAPIKey, cfg.Tokens.MarketData.APIKey)
	if cfg.Tokens.MarketData.APIKeyEnv != "" {
		settings.MarketDataAPIKey = os.Getenv(cfg.Tokens.MarketData.APIKeyEnv)
	}
	if cfg.Tokens.MarketData.RPS > 0 {
		settings.MarketDataRPS = cfg.Tokens.MarketData.RPS
	}

	if err := setDuration(&settings.QuoteRefresh, cfg.Quotes.Refresh, "quotes.refresh"); err != nil {
		return err
	}
	if cfg.Quotes.SlippageBps != nil {
		settings.SlippageBps = *cfg.Quotes.SlippageBps
	}
	setString(&settings.LiFiURL, cfg.Providers.LiFi.URL)
	setString(&settings.LiFiAPIKey, cfg.Providers.LiFi.APIKey)
	if cfg.Providers.LiFi.APIKeyEnv != "" {
		settings.LiFiAPIKey = os.Getenv(cfg.Providers.LiFi.APIKeyEnv)
	}

	for key, url := range cfg.RPC {
		chainID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return fmt.Errorf("config rpc key %q must be a chain id", key)
		}
		settings.RPCURLs[chainID] = url
	}
	setString(&settings.MetricsAddr, cfg.Metrics.Addr)
	return nil
}

func applyEnv(settings *Settings) error {
	if v := env("OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := env("TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := env("RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	setString(&settings.LogLevel, env("LOG_LEVEL"))
	if v := env("NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := env("MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	setString(&settings.CachePath, env("CACHE_PATH"))
	setString(&settings.CacheLockPath, env("CACHE_LOCK_PATH"))
	setString(&settings.OrderStorePath, env("ORDERS_PATH"))
	setString(&settings.OrderLockPath, env("ORDERS_LOCK_PATH"))
	if v := env("TOKEN_LISTS"); v != "" {
		settings.TokenLists = splitCSV(v)
	}
	if v := env("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.TokenTTL = d
		}
	}
	setString(&settings.MarketDataURL, env("MARKET_DATA_URL"))
	setString(&settings.MarketDataAPIKey, env("MARKET_DATA_API_KEY"))
	if v := env("QUOTE_REFRESH"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.QuoteRefresh = d
		}
	}
	if v := env("SLIPPAGE_BPS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			settings.SlippageBps = n
		}
	}
	setString(&settings.LiFiURL, env("LIFI_URL"))
	setString(&settings.LiFiAPIKey, env("LIFI_API_KEY"))
	setString(&settings.MetricsAddr, env("METRICS_ADDR"))

	// INTENTS_RPC_<CHAINID>=https://...
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, envPrefix+"RPC_") || value == "" {
			continue
		}
		chainID, err := strconv.ParseInt(strings.TrimPrefix(key, envPrefix+"RPC_"), 10, 64)
		if err != nil {
			return fmt.Errorf("env %s: suffix must be a chain id", key)
		}
		settings.RPCURLs[chainID] = value
	}
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitCSV(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitCSV(flags.EnableCommands)
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	setString(&settings.LogLevel, flags.LogLevel)

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + name))
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setDuration(dst *time.Duration, v, field string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config %s: %w", field, err)
	}
	*dst = d
	return nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Stellar       StellarConfig      `mapstructure:"stellar"`
	Businesses    []BusinessConfig   `mapstructure:"businesses"`
	Wallet        WalletConfig       `mapstructure:"wallet"`
	Purchase      PurchaseConfig     `mapstructure:"purchase"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Scheduler     SchedulerConfig    `mapstructure:"scheduler"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type StellarConfig struct {
	HorizonURL        string        `mapstructure:"horizon_url"`
	FriendbotURL      string        `mapstructure:"friendbot_url"`
	NetworkPassphrase string        `mapstructure:"network_passphrase"`
	Network           string        `mapstructure:"network"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	HistoryLimit      int           `mapstructure:"history_limit"`
}

type BusinessConfig struct {
	TokenSymbol   string   `mapstructure:"token_symbol"`
	TokenName     string   `mapstructure:"token_name"`
	Name          string   `mapstructure:"name"`
	WalletAddress string   `mapstructure:"wallet_address"`
	Location      string   `mapstructure:"location"`
	EarnRate      float64  `mapstructure:"earn_rate"`
	MemoKeywords  []string `mapstructure:"memo_keywords"`
}

type WalletConfig struct {
	DetectInterval time.Duration `mapstructure:"detect_interval"`
	DetectAttempts int           `mapstructure:"detect_attempts"`
}

type PurchaseConfig struct {
	BuildTimeout        time.Duration `mapstructure:"build_timeout"`
	SubmitTimeout       time.Duration `mapstructure:"submit_timeout"`
	SubmitAttempts      int           `mapstructure:"submit_attempts"`
	BackoffBase         time.Duration `mapstructure:"backoff_base"`
	RefreshAttempts     int           `mapstructure:"refresh_attempts"`
	RefreshDelayStep    time.Duration `mapstructure:"refresh_delay_step"`
	RefreshInitialDelay time.Duration `mapstructure:"refresh_initial_delay"`
	// TokensPerXLM converts an item price into the loyalty token cost of
	// paying with points instead of XLM.
	TokensPerXLM int64 `mapstructure:"tokens_per_xlm"`
	// RedeemBonusRate earns the customer back a fraction of a redeemed
	// reward's cost.
	RedeemBonusRate float64 `mapstructure:"redeem_bonus_rate"`
}

type NotificationConfig struct {
	InfoTTL  time.Duration `mapstructure:"info_ttl"`
	ErrorTTL time.Duration `mapstructure:"error_ttl"`
}

type SchedulerConfig struct {
	RefreshCron    string        `mapstructure:"refresh_cron"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	Enabled        bool          `mapstructure:"enabled"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(config.Businesses) == 0 {
		config.Businesses = DefaultBusinesses()
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 15)

	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("stellar.horizon_url", "https://horizon-testnet.stellar.org")
	v.SetDefault("stellar.friendbot_url", "https://friendbot.stellar.org")
	v.SetDefault("stellar.network_passphrase", "Test SDF Network ; September 2015")
	v.SetDefault("stellar.network", "TESTNET")
	v.SetDefault("stellar.probe_timeout", "10s")
	v.SetDefault("stellar.request_timeout", "30s")
	v.SetDefault("stellar.history_limit", 15)

	v.SetDefault("wallet.detect_interval", "100ms")
	v.SetDefault("wallet.detect_attempts", 30)

	v.SetDefault("purchase.build_timeout", "45s")
	v.SetDefault("purchase.submit_timeout", "60s")
	v.SetDefault("purchase.submit_attempts", 3)
	v.SetDefault("purchase.backoff_base", "2s")
	v.SetDefault("purchase.refresh_attempts", 5)
	v.SetDefault("purchase.refresh_delay_step", "5s")
	v.SetDefault("purchase.refresh_initial_delay", "5s")
	v.SetDefault("purchase.tokens_per_xlm", 10)
	v.SetDefault("purchase.redeem_bonus_rate", 0.1)

	v.SetDefault("notifications.info_ttl", "10s")
	v.SetDefault("notifications.error_ttl", "15s")

	v.SetDefault("scheduler.refresh_cron", "0 */5 * * * *")
	v.SetDefault("scheduler.refresh_timeout", "2m")
	v.SetDefault("scheduler.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// DefaultBusinesses returns the demo business table used when the config
// file does not declare one. Order matters: memo keyword attribution
// checks businesses in this order and the first match wins.
func DefaultBusinesses() []BusinessConfig {
	return []BusinessConfig{
		{
			TokenSymbol:   "COFFEE",
			TokenName:     "Coffee Shop Rewards",
			Name:          "Stellar Coffee Co.",
			WalletAddress: "GBFHNS7DD2O3MS4LARWVQ7T6HG42FZTATJOSA4LZ5L5BXGRXHHMPDRLK",
			Location:      "Istanbul, Besiktas",
			EarnRate:      1,
			MemoKeywords: []string{
				"coffee", "espresso", "latte", "cappuccino", "americano",
				"mocha", "macchiato", "brew", "cafee", "stellar coffee",
			},
		},
		{
			TokenSymbol:   "CAKE",
			TokenName:     "Cake House Points",
			Name:          "Stellar Cake House",
			WalletAddress: "GARQZZ4P6U4GQYE2IFMV3TCEIACVXOE4WNRRGJBEWGTM2EYHADTGAAZU",
			Location:      "Istanbul, Taksim",
			EarnRate:      1.5,
			MemoKeywords: []string{
				"cake", "chocolate", "cheesecake", "tiramisu", "velvet",
				"bakery", "dessert", "pastry", "stellar cake",
			},
		},
	}
}

func (c *Config) BusinessByTokenSymbol(symbol string) (*BusinessConfig, error) {
	for i := range c.Businesses {
		if c.Businesses[i].TokenSymbol == symbol {
			return &c.Businesses[i], nil
		}
	}
	return nil, fmt.Errorf("business config not found: %s", symbol)
}

func (c *Config) BusinessByName(name string) (*BusinessConfig, error) {
	for i := range c.Businesses {
		if c.Businesses[i].Name == name {
			return &c.Businesses[i], nil
		}
	}
	return nil, fmt.Errorf("business config not found: %s", name)
}

package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gridbot/internal/domain"
)

const (
	defaultCheckInterval      = 15 * time.Second
	defaultPriceCheckInterval = time.Minute
	defaultErrorCooldown      = 5 * time.Minute
	defaultTradeScanLimit     = 50
	defaultMaxActivePairs     = 5
	defaultWalDir             = "./wal"
)

var (
	defaultMinProfit = decimal.NewFromFloat(0.01)
	defaultMakerFee  = decimal.NewFromFloat(0.001)
	defaultTakerFee  = decimal.NewFromFloat(0.001)
)

// Config is the fully parsed configuration of one trading pair.
type Config struct {
	Platform           string
	Pair               domain.Pair
	LowerPrice         decimal.Decimal
	UpperPrice         decimal.Decimal
	GridCount          int
	TotalInvestment    decimal.Decimal
	CheckInterval      time.Duration
	PriceCheckInterval time.Duration
	ErrorCooldown      time.Duration
	MinProfit          decimal.Decimal
	StopLoss           decimal.Decimal
	MakerFeeRate       decimal.Decimal
	TakerFeeRate       decimal.Decimal
	TradeScanLimit     int
	WalDir             string
}

// Entry is the yaml form of a pair configuration. The setup wizard writes
// entries in this shape too.
type Entry struct {
	Platform           string `yaml:"platform"`
	Pair               string `yaml:"pair"`
	LowerPrice         string `yaml:"lower_price"`
	UpperPrice         string `yaml:"upper_price"`
	GridCount          int    `yaml:"grid_count"`
	TotalInvestment    string `yaml:"total_investment"`
	CheckInterval      string `yaml:"check_interval,omitempty"`
	PriceCheckInterval string `yaml:"price_check_interval,omitempty"`
	ErrorCooldown      string `yaml:"error_cooldown,omitempty"`
	MinProfit          string `yaml:"min_profit,omitempty"`
	StopLoss           string `yaml:"stop_loss,omitempty"`
	MakerFeeRate       string `yaml:"maker_fee_rate,omitempty"`
	TakerFeeRate       string `yaml:"taker_fee_rate,omitempty"`
	TradeScanLimit     int    `yaml:"trade_scan_limit,omitempty"`
	WalDir             string `yaml:"wal_dir,omitempty"`
}

// LogConfig controls log destination and rotation.
type LogConfig struct {
	Level      string `yaml:"level,omitempty"`
	Output     string `yaml:"output,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSize    int    `yaml:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// File is the top level yaml document.
type File struct {
	MaxActivePairs int       `yaml:"max_active_pairs,omitempty"`
	Log            LogConfig `yaml:"log,omitempty"`
	Pairs          []Entry   `yaml:"pairs"`
}

// Settings is the fully parsed configuration.
type Settings struct {
	Log   LogConfig
	Pairs []Config
}

// Get parses the --config flag and loads the configuration from yaml.
func Get() (*Settings, error) {
	path := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()
	return FromYaml(*path)
}

// FromYaml loads and validates the configuration from the given file.
func FromYaml(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(file.Pairs) == 0 {
		return nil, fmt.Errorf("config %s contains no pairs", path)
	}

	maxPairs := file.MaxActivePairs
	if maxPairs <= 0 {
		maxPairs = defaultMaxActivePairs
	}
	if len(file.Pairs) > maxPairs {
		return nil, fmt.Errorf("config %s defines %d pairs, limit is %d", path, len(file.Pairs), maxPairs)
	}

	configs := make([]Config, 0, len(file.Pairs))
	for i, entry := range file.Pairs {
		conf, err := entry.parse()
		if err != nil {
			return nil, fmt.Errorf("invalid pair entry %d: %w", i, err)
		}
		configs = append(configs, conf)
	}
	return &Settings{Log: file.Log, Pairs: configs}, nil
}

func (e Entry) parse() (Config, error) {
	pair, err := domain.PairFromString(e.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param: %w", err)
	}

	if e.Platform != "binance" && e.Platform != "bybit" {
		return Config{}, fmt.Errorf("unsupported 'platform' param: %q", e.Platform)
	}

	lower, err := decimal.NewFromString(e.LowerPrice)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'lower_price' param: %w", err)
	}
	upper, err := decimal.NewFromString(e.UpperPrice)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'upper_price' param: %w", err)
	}
	if !upper.GreaterThan(lower) {
		return Config{}, fmt.Errorf("'upper_price' must exceed 'lower_price', got [%s, %s]", lower, upper)
	}

	if e.GridCount < 2 {
		return Config{}, fmt.Errorf("'grid_count' must be at least 2, got %d", e.GridCount)
	}

	investment, err := decimal.NewFromString(e.TotalInvestment)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'total_investment' param: %w", err)
	}
	if !investment.IsPositive() {
		return Config{}, fmt.Errorf("'total_investment' must be positive, got %s", investment)
	}

	conf := Config{
		Platform:        e.Platform,
		Pair:            pair,
		LowerPrice:      lower,
		UpperPrice:      upper,
		GridCount:       e.GridCount,
		TotalInvestment: investment,
		MinProfit:       defaultMinProfit,
		StopLoss:        decimal.Zero,
		MakerFeeRate:    defaultMakerFee,
		TakerFeeRate:    defaultTakerFee,
		TradeScanLimit:  e.TradeScanLimit,
		WalDir:          e.WalDir,
	}

	if conf.CheckInterval, err = optionalDuration(e.CheckInterval, defaultCheckInterval); err != nil {
		return Config{}, fmt.Errorf("incorrect 'check_interval' param: %w", err)
	}
	if conf.PriceCheckInterval, err = optionalDuration(e.PriceCheckInterval, defaultPriceCheckInterval); err != nil {
		return Config{}, fmt.Errorf("incorrect 'price_check_interval' param: %w", err)
	}
	if conf.ErrorCooldown, err = optionalDuration(e.ErrorCooldown, defaultErrorCooldown); err != nil {
		return Config{}, fmt.Errorf("incorrect 'error_cooldown' param: %w", err)
	}
	if conf.TradeScanLimit <= 0 {
		conf.TradeScanLimit = defaultTradeScanLimit
	}
	if conf.WalDir == "" {
		conf.WalDir = defaultWalDir
	}

	if conf.MinProfit, err = optionalDecimal(e.MinProfit, defaultMinProfit); err != nil {
		return Config{}, fmt.Errorf("incorrect 'min_profit' param: %w", err)
	}
	if conf.StopLoss, err = optionalDecimal(e.StopLoss, decimal.Zero); err != nil {
		return Config{}, fmt.Errorf("incorrect 'stop_loss' param: %w", err)
	}
	if conf.MakerFeeRate, err = optionalDecimal(e.MakerFeeRate, defaultMakerFee); err != nil {
		return Config{}, fmt.Errorf("incorrect 'maker_fee_rate' param: %w", err)
	}
	if conf.TakerFeeRate, err = optionalDecimal(e.TakerFeeRate, defaultTakerFee); err != nil {
		return Config{}, fmt.Errorf("incorrect 'taker_fee_rate' param: %w", err)
	}

	return conf, nil
}

func optionalDecimal(s string, def decimal.Decimal) (decimal.Decimal, error) {
	if s == "" {
		return def, nil
	}
	return decimal.NewFromString(s)
}

func optionalDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", d)
	}
	return d, nil
}

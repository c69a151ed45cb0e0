package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
)

// Config ...
type Config struct {
	DB string `yaml:"db_dsn"`

	Service struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"` // downstream WS + health
	} `yaml:"service"`

	OKX struct {
		WSURL   string `yaml:"ws_url"`
		RESTURL string `yaml:"rest_url"`
	} `yaml:"okx"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`

	// Матрица сбора: каждый инструмент собирается по каждому интервалу.
	// Intervals перечисляются от мелкого к крупному — первый считается
	// "живым" и освежается ежеминутным проходом коллектора.
	Instruments []string `yaml:"instruments"`
	Intervals   []string `yaml:"intervals"`

	// Feed
	PingEvery      time.Duration // .env: FEED_PING_EVERY (25s)
	ReconnectDelay time.Duration // .env: FEED_RECONNECT_DELAY (5s)

	// Reconciliation
	MaxSeriesPoints  int // .env: MAX_SERIES_POINTS (5000)
	HistoryPageLimit int // .env: HISTORY_PAGE_LIMIT (100, потолок OKX)
	HistoryMaxPages  int // .env: HISTORY_MAX_PAGES (30)

	// Collector
	CollectPace  time.Duration // .env: COLLECT_PACE (500ms между запросами)
	RefreshEvery time.Duration // .env: COLLECT_REFRESH_EVERY (1m)
	WarmupCount  int           // .env: COLLECT_WARMUP_COUNT (300 свечей на пару)

	// Alerts
	AlertPeriod time.Duration // .env: ALERT_PERIOD (5s)
}

func NewConfig() (*Config, error) {
	config := Config{
		PingEvery:      durationFromEnv("FEED_PING_EVERY", "25s"),
		ReconnectDelay: durationFromEnv("FEED_RECONNECT_DELAY", "5s"),

		MaxSeriesPoints:  intFromEnv("MAX_SERIES_POINTS", 5000),
		HistoryPageLimit: intFromEnv("HISTORY_PAGE_LIMIT", 100),
		HistoryMaxPages:  intFromEnv("HISTORY_MAX_PAGES", 30),

		CollectPace:  durationFromEnv("COLLECT_PACE", "500ms"),
		RefreshEvery: durationFromEnv("COLLECT_REFRESH_EVERY", "1m"),
		WarmupCount:  intFromEnv("COLLECT_WARMUP_COUNT", 300),

		AlertPeriod: durationFromEnv("ALERT_PERIOD", "5s"),
	}

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(&config); err != nil {
		return nil, err
	}

	if dsn := os.Getenv(databaseDSN); dsn != "" {
		config.DB = dsn
	}
	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}

	if config.OKX.WSURL == "" {
		config.OKX.WSURL = "wss://ws.okx.com:8443/ws/v5/business"
	}
	if config.OKX.RESTURL == "" {
		config.OKX.RESTURL = "https://www.okx.com"
	}
	if len(config.Instruments) == 0 {
		config.Instruments = []string{"BTC-USDT", "ETH-USDT"}
	}
	if len(config.Intervals) == 0 {
		config.Intervals = []string{"1m", "5m", "15m", "1H", "4H", "1D"}
	}

	return &config, nil
}

// LiveInterval — самый мелкий интервал матрицы, его освежает
// ежеминутный проход коллектора.
func (c *Config) LiveInterval() string {
	if len(c.Intervals) == 0 {
		return "1m"
	}
	return c.Intervals[0]
}

// PersistedInterval — входит ли интервал в матрицу персистентности.
func (c *Config) PersistedInterval(bar string) bool {
	for _, iv := range c.Intervals {
		if strings.EqualFold(iv, bar) {
			return true
		}
	}
	return false
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}

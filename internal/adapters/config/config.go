package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"vega/pkg/errors"
)

type Config struct {
	App           AppConfig
	Redis         RedisConfig
	Upstox        UpstoxConfig
	Telegram      TelegramConfig
	Market        MarketConfig
	Signals       SignalConfig
	Exits         ExitConfig
	ErrorTracking ErrorTrackingConfig
	Health        HealthConfig
}

type AppConfig struct {
	Name         string        `envconfig:"APP_NAME" default:"vega"`
	Env          string        `envconfig:"APP_ENV" default:"development"`
	LogLevel     string        `envconfig:"LOG_LEVEL" default:"info"`
	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL" default:"60s"`
}

type RedisConfig struct {
	// Optional. When empty the snapshot store runs on the in-process backend.
	Host     string `envconfig:"REDIS_HOST"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

type UpstoxConfig struct {
	BaseURL        string        `envconfig:"UPSTOX_BASE_URL" default:"https://api.upstox.com"`
	InstrumentsURL string        `envconfig:"UPSTOX_INSTRUMENTS_URL" default:"https://assets.upstox.com/market-quote/instruments/exchange/complete.json.gz"`
	AccessToken    string        `envconfig:"UPSTOX_ACCESS_TOKEN" required:"true"`
	Timeout        time.Duration `envconfig:"UPSTOX_TIMEOUT" default:"10s"`
	MaxRetries     int           `envconfig:"UPSTOX_MAX_RETRIES" default:"3"`
	RateLimit      int           `envconfig:"UPSTOX_RATE_LIMIT" default:"10"` // requests per second
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
}

// MarketConfig describes the traded instrument and its session
type MarketConfig struct {
	StrikeGap       float64       `envconfig:"STRIKE_GAP" default:"50"`
	LotSize         int           `envconfig:"LOT_SIZE" default:"50"`
	FetchStrikes    int           `envconfig:"FETCH_STRIKES" default:"5"`    // ATM ± 5 = 11 strikes
	DeepStrikes     int           `envconfig:"DEEP_STRIKES" default:"2"`     // ATM ± 2 = 5 strikes
	MinStrikes      int           `envconfig:"MIN_STRIKES" default:"7"`      // chain validation floor
	MinCandles      int           `envconfig:"MIN_CANDLES" default:"10"`     // candle series validation floor
	MaxPrice        float64       `envconfig:"MAX_PRICE" default:"100000"`   // price sanity ceiling
	SnapshotTTL     time.Duration `envconfig:"SNAPSHOT_TTL" default:"24h"`   // snapshot memory retention
	WarmupMinutes   int           `envconfig:"WARMUP_MINUTES" default:"10"`
	Timezone        string        `envconfig:"MARKET_TIMEZONE" default:"Asia/Kolkata"`
}

// SignalConfig holds entry-side thresholds
type SignalConfig struct {
	// OI unwinding thresholds (percent magnitude, compared against negative change)
	OI5mEntry    float64 `envconfig:"OI_5M_ENTRY_THRESHOLD" default:"1.5"`
	OI15mEntry   float64 `envconfig:"OI_15M_ENTRY_THRESHOLD" default:"1.5"`
	OI5mStrong   float64 `envconfig:"OI_5M_STRONG_THRESHOLD" default:"2.5"`
	OI15mStrong  float64 `envconfig:"OI_15M_STRONG_THRESHOLD" default:"3.0"`
	ATMOIEntry   float64 `envconfig:"ATM_OI_THRESHOLD" default:"2.0"`

	VolumeSpikeMultiplier float64 `envconfig:"VOL_SPIKE_MULTIPLIER" default:"1.5"`
	PCRBullish            float64 `envconfig:"PCR_BULLISH" default:"1.2"`
	PCRBearish            float64 `envconfig:"PCR_BEARISH" default:"0.8"`

	ATRPeriod           int     `envconfig:"ATR_PERIOD" default:"14"`
	ATRFallback         float64 `envconfig:"ATR_FALLBACK" default:"30"`
	ATRTargetMultiplier float64 `envconfig:"ATR_TARGET_MULTIPLIER" default:"2.5"`
	ATRStopMultiplier   float64 `envconfig:"ATR_SL_MULTIPLIER" default:"1.5"`
	ATRStopGammaMult    float64 `envconfig:"ATR_SL_GAMMA_MULTIPLIER" default:"2.0"` // widened on expiry day

	VWAPBuffer     float64 `envconfig:"VWAP_BUFFER" default:"3"`
	VWAPStrictMode bool    `envconfig:"VWAP_STRICT_MODE" default:"true"` // buffer = ATR * VWAPATRMultiple
	VWAPATRMultiple float64 `envconfig:"VWAP_ATR_MULTIPLE" default:"0.5"`

	MinCandleSize float64 `envconfig:"MIN_CANDLE_SIZE" default:"5"`

	MinPrimaryChecks int `envconfig:"MIN_PRIMARY_CHECKS" default:"2"`
	MinConfidence    int `envconfig:"MIN_CONFIDENCE" default:"70"`
	EarlyConfidence  int `envconfig:"EARLY_SIGNAL_CONFIDENCE" default:"85"`

	PremiumStopPercent float64 `envconfig:"PREMIUM_SL_PERCENT" default:"30"`

	// Validator temporal guards
	Cooldown              time.Duration `envconfig:"SIGNAL_COOLDOWN" default:"3m"`
	DuplicateWindow       time.Duration `envconfig:"DUPLICATE_SIGNAL_WINDOW" default:"10m"`
	SameStrikeCooldown    time.Duration `envconfig:"SAME_STRIKE_COOLDOWN" default:"15m"`
	OppositeSignalWindow  time.Duration `envconfig:"OPPOSITE_SIGNAL_WINDOW" default:"10m"`
}

// ExitConfig holds exit-side thresholds
type ExitConfig struct {
	OIReversalThreshold   float64       `envconfig:"EXIT_OI_REVERSAL_THRESHOLD" default:"1.0"`
	OISpikeThreshold      float64       `envconfig:"EXIT_OI_SPIKE_THRESHOLD" default:"4.0"`
	OIConfirmationSamples int           `envconfig:"EXIT_OI_CONFIRMATION_CANDLES" default:"3"`
	VolumeDryThreshold    float64       `envconfig:"EXIT_VOLUME_DRY_THRESHOLD" default:"0.8"`
	PremiumDropPercent    float64       `envconfig:"EXIT_PREMIUM_DROP_PERCENT" default:"10"`
	CandleRejectionMult   float64       `envconfig:"EXIT_CANDLE_REJECTION_MULTIPLIER" default:"2"`

	TrailingEnabled     bool    `envconfig:"ENABLE_TRAILING_SL" default:"true"`
	TrailingDistance    float64 `envconfig:"TRAILING_SL_DISTANCE" default:"0.4"`  // fraction of peak premium
	TrailingNotifyDelta float64 `envconfig:"TRAILING_SL_NOTIFY_DELTA" default:"2"` // min % stop move worth announcing

	MinHoldTime       time.Duration `envconfig:"MIN_HOLD_TIME" default:"5m"`
	MinHoldBeforeOI   time.Duration `envconfig:"MIN_HOLD_BEFORE_OI_EXIT" default:"7m"`
	MinHoldBeforeVol  time.Duration `envconfig:"MIN_HOLD_BEFORE_VOLUME_EXIT" default:"10m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type HealthConfig struct {
	Enabled bool   `envconfig:"HEALTH_ENABLED" default:"true"`
	Addr    string `envconfig:"HEALTH_ADDR" default:":8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == 0) {
		return errors.Wrap(errors.ErrInvalidInput, "telegram enabled but token or chat id missing")
	}
	if c.Market.StrikeGap <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "strike gap must be positive")
	}
	if c.Signals.MinPrimaryChecks < 1 || c.Signals.MinPrimaryChecks > 3 {
		return errors.Wrap(errors.ErrInvalidInput, "min primary checks must be 1..3")
	}
	return nil
}

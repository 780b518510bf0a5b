package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool

	// Billing
	BillingInterval     time.Duration   // one tick per interval, measured from session start
	ReaderSharePercent  decimal.Decimal // reader's share of each billed amount, e.g. 0.70
	LowBalanceThreshold decimal.Decimal // advisory warning below this post-tick balance
	PlatformAccountID   string

	// Session lifecycle
	ReadyWaitTimeout       time.Duration // pending -> cancelled when both sides aren't ready in time
	DisconnectGracePeriod  time.Duration // active -> disconnected after sustained heartbeat loss
	SessionCreateRateLimit string        // ulule/limiter format, e.g. "10-M"

	// Payouts
	MinPayoutAmount decimal.Decimal
	PayoutCron      string // robfig/cron spec
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("BILLING_INTERVAL", "1m")
	viper.SetDefault("READER_SHARE_PERCENT", "0.70")
	viper.SetDefault("LOW_BALANCE_THRESHOLD", "5.00")
	viper.SetDefault("PLATFORM_ACCOUNT_ID", "platform")
	viper.SetDefault("READY_WAIT_TIMEOUT", "2m")
	viper.SetDefault("DISCONNECT_GRACE_PERIOD", "2m")
	viper.SetDefault("SESSION_CREATE_RATE_LIMIT", "10-M")
	viper.SetDefault("MIN_PAYOUT_AMOUNT", "15.00")
	viper.SetDefault("PAYOUT_CRON", "0 0 2 * * *") // daily at 02:00 UTC, with seconds field

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.BillingInterval = parseDurationOr("BILLING_INTERVAL", time.Minute)
	cfg.ReadyWaitTimeout = parseDurationOr("READY_WAIT_TIMEOUT", 2*time.Minute)
	cfg.DisconnectGracePeriod = parseDurationOr("DISCONNECT_GRACE_PERIOD", 2*time.Minute)

	cfg.ReaderSharePercent = parseDecimalOr("READER_SHARE_PERCENT", decimal.RequireFromString("0.70"))
	cfg.LowBalanceThreshold = parseDecimalOr("LOW_BALANCE_THRESHOLD", decimal.RequireFromString("5.00"))
	cfg.MinPayoutAmount = parseDecimalOr("MIN_PAYOUT_AMOUNT", decimal.RequireFromString("15.00"))

	cfg.PlatformAccountID = viper.GetString("PLATFORM_ACCOUNT_ID")
	cfg.SessionCreateRateLimit = viper.GetString("SESSION_CREATE_RATE_LIMIT")
	cfg.PayoutCron = viper.GetString("PAYOUT_CRON")

	return cfg, nil
}

func parseDurationOr(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}

func parseDecimalOr(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := viper.GetString(key)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fallback)
		}
		return fallback
	}
	return d
}

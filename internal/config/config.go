package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL    string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	DefaultTenant  string        `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	Billing BillingConfig `mapstructure:",squash"`
	SMTP    SMTPConfig    `mapstructure:",squash"`
}

// BillingConfig holds the pricing defaults used by the invoice generator.
// Amounts are kept as strings and parsed into decimals by the billing package
// so no precision is lost on the way in.
type BillingConfig struct {
	TaxRate             string `mapstructure:"TAX_RATE"`
	ConsultationFee     string `mapstructure:"CONSULTATION_FEE"`
	PharmacyMarkup      string `mapstructure:"PHARMACY_MARKUP"`
	DefaultDrugPrice    string `mapstructure:"DEFAULT_DRUG_PRICE"`
	DefaultLabPrice     string `mapstructure:"DEFAULT_LAB_PRICE"`
	InsuranceClaimRatio string `mapstructure:"INSURANCE_CLAIM_RATIO"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"SMTP_HOST"`
	Port     int    `mapstructure:"SMTP_PORT"`
	From     string `mapstructure:"SMTP_FROM"`
	Username string `mapstructure:"SMTP_USERNAME"`
	Password string `mapstructure:"SMTP_PASSWORD"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"DEFAULT_TENANT", "CORS_ORIGINS", "REQUEST_TIMEOUT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT",
	"TAX_RATE", "CONSULTATION_FEE", "PHARMACY_MARKUP",
	"DEFAULT_DRUG_PRICE", "DEFAULT_LAB_PRICE", "INSURANCE_CLAIM_RATIO",
	"SMTP_HOST", "SMTP_PORT", "SMTP_FROM", "SMTP_USERNAME", "SMTP_PASSWORD",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("TAX_RATE", "0.075")
	v.SetDefault("CONSULTATION_FEE", "5000")
	v.SetDefault("PHARMACY_MARKUP", "1.2")
	v.SetDefault("DEFAULT_DRUG_PRICE", "500")
	v.SetDefault("DEFAULT_LAB_PRICE", "3000")
	v.SetDefault("INSURANCE_CLAIM_RATIO", "0.30")
	v.SetDefault("SMTP_PORT", 587)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: running in DEVELOPMENT mode, every request without a token is treated as admin")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a token issuer or a signing key must be configured, and billing parameters
// must be positive numbers.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_ISSUER or AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.BodyLimit != "" {
		if _, err := bytes.Parse(c.BodyLimit); err != nil {
			return fmt.Errorf("BODY_LIMIT %q: %w", c.BodyLimit, err)
		}
	}

	checks := map[string]string{
		"TAX_RATE":              c.Billing.TaxRate,
		"CONSULTATION_FEE":      c.Billing.ConsultationFee,
		"PHARMACY_MARKUP":       c.Billing.PharmacyMarkup,
		"DEFAULT_DRUG_PRICE":    c.Billing.DefaultDrugPrice,
		"DEFAULT_LAB_PRICE":     c.Billing.DefaultLabPrice,
		"INSURANCE_CLAIM_RATIO": c.Billing.InsuranceClaimRatio,
	}
	for key, val := range checks {
		if err := positiveNumber(val); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func positiveNumber(s string) error {
	var f float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%g", &f); err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	if f <= 0 {
		return fmt.Errorf("must be greater than zero, got %s", s)
	}
	return nil
}

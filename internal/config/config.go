// Package config loads runtime configuration from the environment, with
// optional .env support for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CatalogTTLSeconds     int
	AuthSecret            string
	AccessTokenTTLMinutes int
	TaxRatePercent        float64
	PublicBaseURL         string
	CurrencyID            string
	MPAccessToken         string
	MPWebhookSecret       string
	AllowUnsignedWebhooks bool
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPassword          string
	EmailFrom             string
	EmailEnabled          bool
}

func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] WARN: could not load .env: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	catalogTTL, err := strconv.Atoi(getEnv("CATALOG_TTL_SECONDS", "30"))
	if err != nil || catalogTTL < 1 {
		catalogTTL = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	taxRate, err := strconv.ParseFloat(getEnv("TAX_RATE_PERCENT", "19"), 64)
	if err != nil || taxRate < 0 || taxRate > 100 {
		taxRate = 19
	}
	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CatalogTTLSeconds:     catalogTTL,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		TaxRatePercent:        taxRate,
		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:8080"), "/"),
		CurrencyID:            getEnv("CURRENCY_ID", "COP"),
		MPAccessToken:         strings.TrimSpace(os.Getenv("MP_ACCESS_TOKEN")),
		MPWebhookSecret:       strings.TrimSpace(os.Getenv("MP_WEBHOOK_SECRET")),
		AllowUnsignedWebhooks: getEnv("ALLOW_UNSIGNED_WEBHOOKS", "false") == "true",
		SMTPHost:              os.Getenv("SMTP_HOST"),
		SMTPPort:              smtpPort,
		SMTPUser:              os.Getenv("SMTP_USER"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		EmailFrom:             getEnv("EMAIL_FROM", "facturas@patitas.dev"),
		EmailEnabled:          getEnv("EMAIL_ENABLED", "false") == "true",
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

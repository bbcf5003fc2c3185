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
	DBUrl                 string
	JWTSecret             string
	AppEnv                string
	PaymentGatewayURL     string
	PaymentMerchantID     string
	PaymentAPIKey         string
	PaymentCallbackURL    string
	PaymentCallbackSecret string
	DomesticCountry       string
	DomesticPrice         float64
	DomesticCurrency      string
	InternationalPrice    float64
	InternationalCurrency string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	callbackSecret, exists := os.LookupEnv("PAYMENT_CALLBACK_SECRET")
	if !exists || callbackSecret == "" {
		return nil, fmt.Errorf("PAYMENT_CALLBACK_SECRET is required")
	}

	return &Config{
		Port:                  getEnv("PORT", "8080"),
		DBUrl:                 getEnv("DB_URL", ""),
		JWTSecret:             jwtSecret,
		AppEnv:                normalizeEnv(getEnv("APP_ENV", "production")),
		PaymentGatewayURL:     getEnv("PAYMENT_GATEWAY_URL", ""),
		PaymentMerchantID:     getEnv("PAYMENT_MERCHANT_ID", ""),
		PaymentAPIKey:         getEnv("PAYMENT_API_KEY", ""),
		PaymentCallbackURL:    getEnv("PAYMENT_CALLBACK_URL", ""),
		PaymentCallbackSecret: callbackSecret,
		DomesticCountry:       getEnv("PRICING_DOMESTIC_COUNTRY", "KZ"),
		DomesticPrice:         getEnvFloat("PRICING_DOMESTIC_AMOUNT", 9000),
		DomesticCurrency:      getEnv("PRICING_DOMESTIC_CURRENCY", "KZT"),
		InternationalPrice:    getEnvFloat("PRICING_INTERNATIONAL_AMOUNT", 25),
		InternationalCurrency: getEnv("PRICING_INTERNATIONAL_CURRENCY", "USD"),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}
